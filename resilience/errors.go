package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrBlocked is returned when a gate cannot admit a caller without waiting
	// (TryAcquire) or when too many callers are already waiting.
	ErrBlocked = errors.New("resilience: gate blocked")

	// ErrAdmissionTimeout is returned when MaxWait elapses before admission.
	ErrAdmissionTimeout = errors.New("resilience: admission wait timed out")

	// ErrInvalidConfig is returned by constructors given an unusable configuration.
	ErrInvalidConfig = errors.New("resilience: invalid config")

	// ErrMaxRetriesExceeded is returned when max retry attempts are exhausted.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")
)
