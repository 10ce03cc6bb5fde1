package resilience

import (
	"context"
	"fmt"

	"github.com/jonwraymond/callgate/health"
)

// GateChecker reports g as degraded while callers are queued for admission
// and healthy otherwise.
func GateChecker(g *Gate) health.Checker {
	return health.NewCheckerFunc(g.Name(), func(context.Context) health.Result {
		m := g.Metrics()
		details := map[string]any{
			"active":         m.Active,
			"max_concurrent": m.MaxConcurrent,
			"waiters":        m.Waiters,
			"rejected":       m.Rejected,
			"timed_out":      m.TimedOut,
		}
		if m.WindowLimit > 0 {
			details["window_used"] = m.WindowUsed
			details["window_limit"] = m.WindowLimit
		}

		if m.Waiters > 0 {
			return health.Degraded(fmt.Sprintf("%d callers waiting", m.Waiters), nil).WithDetails(details)
		}
		return health.Healthy(fmt.Sprintf("%d/%d active", m.Active, m.MaxConcurrent)).WithDetails(details)
	})
}
