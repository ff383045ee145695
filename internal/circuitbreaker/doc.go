// Package circuitbreaker guards calls to an unreliable dependency.
//
// A breaker moves between three states:
//
//   - CLOSED: calls pass through; each outcome is recorded in a sliding
//     window of the last WindowSize calls. Once at least MinCalls outcomes
//     are present and the failure ratio reaches FailureRatio, the breaker
//     opens.
//   - OPEN: calls are rejected with ErrOpenState without invoking the
//     guarded function. After CoolDown the breaker moves to HALF_OPEN.
//   - HALF_OPEN: up to HalfOpenCalls trial calls pass through; further calls
//     are rejected with ErrTooManyTrialCalls. A successful trial closes the
//     breaker and clears the window, a failed one reopens it and restarts
//     the cool-down.
//
// One breaker exists per dependency and is shared by all concurrent callers.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(circuitbreaker.Settings{
//	    WindowSize:   10,
//	    MinCalls:     5,
//	    FailureRatio: 0.5,
//	    CoolDown:     10 * time.Second,
//	})
//	cb := registry.Get("enrichment-api")
//	info, err := circuitbreaker.Execute(cb, func() (Info, error) {
//	    return client.Fetch(ctx, id)
//	})
package circuitbreaker
