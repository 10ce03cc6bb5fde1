package keys

import (
	"errors"
	"fmt"
)

// Sentinel errors for key derivation.
var (
	// ErrDerivation is wrapped by every DerivationError.
	ErrDerivation = errors.New("keys: derivation failed")

	// ErrTooManyArgs is returned when more positional values than parameters are given.
	ErrTooManyArgs = errors.New("keys: too many positional arguments")

	// ErrUnknownParam is returned when a named value matches no parameter.
	ErrUnknownParam = errors.New("keys: unknown parameter")

	// ErrDuplicateParam is returned when a parameter receives two values.
	ErrDuplicateParam = errors.New("keys: parameter bound twice")

	// ErrMissingParam is returned when a required parameter has no value.
	ErrMissingParam = errors.New("keys: missing required parameter")

	// ErrInvalidSignature is returned for signatures with empty or repeated names.
	ErrInvalidSignature = errors.New("keys: invalid signature")

	// ErrOpaqueValue is returned for values whose state the encoder cannot see,
	// such as structs with unexported fields. Implement Keyed to key them.
	ErrOpaqueValue = errors.New("keys: value has unexported state")
)

// Stage names the derivation phase that failed.
type Stage string

// Derivation stages.
const (
	StageBind    Stage = "bind"
	StageKeyFunc Stage = "keyfunc"
	StageResolve Stage = "resolve"
	StageEncode  Stage = "encode"
)

// DerivationError reports a failure to derive a call key.
// It matches both ErrDerivation and the underlying cause with errors.Is.
type DerivationError struct {
	Stage Stage
	Err   error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("keys: derivation failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns ErrDerivation and the cause.
func (e *DerivationError) Unwrap() []error {
	return []error{ErrDerivation, e.Err}
}

func derivationError(stage Stage, err error) error {
	return &DerivationError{Stage: stage, Err: err}
}
