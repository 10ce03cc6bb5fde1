package memo

import (
	"context"
	"fmt"

	"github.com/jonwraymond/callgate/health"
)

// Checker reports m as unhealthy once closed and degraded while its last
// journal write has failed.
func Checker[V any](m *Memoizer[V]) health.Checker {
	return health.NewCheckerFunc(m.Name(), func(context.Context) health.Result {
		s := m.Stats()
		details := map[string]any{
			"entries":      s.Entries,
			"in_flight":    s.InFlight,
			"write_errors": s.WriteErrors,
		}
		if s.Path != "" {
			details["path"] = s.Path
		}

		switch {
		case s.Closed:
			return health.Unhealthy("memoizer closed", ErrClosed).WithDetails(details)
		case s.LastWriteError != nil:
			return health.Degraded("last journal write failed", s.LastWriteError).WithDetails(details)
		}
		return health.Healthy(fmt.Sprintf("%d entries", s.Entries)).WithDetails(details)
	})
}
