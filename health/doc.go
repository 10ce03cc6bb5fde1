// Package health reports the state of memoizers and gates.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// memo and resilience packages provide checkers for their own types: a
// memoizer whose journal writes fail is degraded, a closed one unhealthy; a
// gate with callers waiting is degraded.
//
//	agg := health.NewAggregator(health.AggregatorConfig{Timeout: time.Second})
//	agg.Register(memo.Checker(users))
//	agg.Register(resilience.GateChecker(billing))
//
//	results := agg.CheckAll(ctx)
//	if health.OverallStatus(results) != health.StatusHealthy {
//	    // ...
//	}
package health
