// Package ready provides asynchronous readiness polling and mutation
// coordination: run a callback once a condition (or set of conditions)
// becomes true, once observed content mutates, or once an element scrolls
// into view, with bounded retry, exponential backoff, timeouts,
// deduplication, and cancellation.
//
// # Quick Start
//
// Wait for a set of conditions with per-condition timeouts:
//
//	session, err := ready.Poll(
//	    []ready.Condition{
//	        ready.Predicate(dbReachable).Named("database"),
//	        ready.Selector("#app-root"),
//	    },
//	    func() { log.Println("everything is up") },
//	    ready.WithDocument(doc),
//	    ready.WithTimeout(30*time.Second),
//	    ready.WithTimeoutCallback(func(c ready.Condition) {
//	        log.Printf("gave up waiting for %s", c)
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Destroy()
//
// [PollLite] is the lightweight variant: one shared deadline across all
// conditions, no per-element timeout reporting, no cancellation handle.
//
// # Configuration
//
// All components use the functional options pattern. Session options cover
// the backoff schedule ([WithWait], [WithMultiplier]), bounds ([WithTimeout],
// [WithTimeoutCallback]), evaluation ([WithDocument], [WithEvalErrorPolicy]),
// and the ambient plumbing ([WithLogger], [WithClock]).
//
// # Conditions
//
// A [Condition] is a tagged variant: [Predicate] wraps a check function,
// [Selector] matches against a [Document], and [AlwaysTrue] passes through.
// Evaluation errors and recovered panics are governed by [EvalErrorPolicy];
// the default [RetryOnError] treats them as "not yet satisfied".
//
// # Mutation and Viewability
//
// [Coordinator] wraps mutation observation with a throttle gate (the first
// mutation of a burst fires immediately, the rest of the burst is dropped
// until the gate re-opens) and keeps an active registry supporting
// disconnect by target and bulk disconnect. [TrackView] watches an element's
// bounding box against a viewport on throttled scroll ticks, with a
// synchronous initial check for already-visible elements.
//
// # Resource Loading
//
// [Loader] deduplicates asynchronous loads by URL: concurrent and repeated
// requests for the same key share one underlying operation and one [Load]
// handle. Settled entries, including failures, are cached for the loader's
// lifetime.
//
// # Concurrency
//
// Callbacks are invoked from library goroutines, never from the caller's
// goroutine. Within a session, conditions are polled independently and may
// succeed in any order; the aggregate callback fires on the goroutine that
// detects the last success, exactly once. [Session.Destroy] guarantees no
// further callback fires, even for timers already in flight.
package ready
