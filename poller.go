package ready

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ElementState is the lifecycle state of a single polling element.
//
// Elements move through Pending → Checking → Succeeded | TimedOut |
// Cancelled. The string type keeps states human-readable in logs.
type ElementState string

const (
	// StatePending means the element is waiting for its next scheduled check.
	StatePending ElementState = "pending"

	// StateChecking means the element's condition is being evaluated.
	StateChecking ElementState = "checking"

	// StateSucceeded means the condition evaluated true; the element is done.
	StateSucceeded ElementState = "succeeded"

	// StateTimedOut means the element exceeded its max duration before the
	// condition was satisfied. Timed-out elements never count toward session
	// completion.
	StateTimedOut ElementState = "timed-out"

	// StateCancelled means the session was destroyed before the element
	// settled.
	StateCancelled ElementState = "cancelled"
)

// String implements fmt.Stringer.
func (s ElementState) String() string {
	return string(s)
}

// pollElement is one condition's unit of work inside a [Session].
//
// Each element owns its backoff delay and deadline; the session only reads
// element state through the mutex-guarded setState/state accessors.
type pollElement struct {
	cond  Condition
	index int

	mu        sync.Mutex
	st        ElementState
	startedAt time.Time
}

func (e *pollElement) setState(s ElementState) {
	e.mu.Lock()
	e.st = s
	e.mu.Unlock()
}

func (e *pollElement) state() ElementState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

// Session is a full polling session created by [Poll].
//
// A Session tracks one polling element per condition, each with its own
// backoff schedule and per-element timeout. The aggregate success callback
// fires exactly once, only after every element has succeeded. Destroy the
// session to cancel all pending elements.
//
// All methods are safe for concurrent use.
type Session struct {
	id       string
	cfg      *pollConfig
	elements []*pollElement

	onAllSucceed func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	succeeded int
	fired     bool
	destroyed bool
}

// Poll begins polling the given conditions and invokes onAllSucceed exactly
// once, after every condition has evaluated true at least once.
//
// Each condition is tracked by an independent polling element: checks start
// after the configured wait, and the delay grows by the backoff multiplier
// after every unsatisfied check. With [WithTimeout] set, an element that has
// not succeeded within the bound (measured from its first poll) stops
// polling, triggers the [WithTimeoutCallback] callback once, and permanently
// prevents session completion. A timeout of zero never times out.
//
// Timeouts are advisory: the deadline is checked lazily at each scheduled
// tick, so reporting latency is bounded by the element's current backoff
// delay.
//
// An empty condition list fires onAllSucceed asynchronously from a session
// goroutine; no callback is ever invoked on the caller's goroutine.
//
// Returns an error if onAllSucceed is nil, any condition is invalid, a
// selector condition lacks a document, or an option fails validation.
func Poll(conditions []Condition, onAllSucceed func(), opts ...Option) (*Session, error) {
	if onAllSucceed == nil {
		return nil, errors.New("onAllSucceed callback is required")
	}

	cfg, err := newPollConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := validateConditions(conditions, cfg.doc); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:           uuid.NewString(),
		cfg:          cfg,
		onAllSucceed: onAllSucceed,
		ctx:          ctx,
		cancel:       cancel,
	}

	s.elements = make([]*pollElement, len(conditions))
	for i, c := range conditions {
		s.elements[i] = &pollElement{cond: c, index: i, st: StatePending}
	}

	cfg.logger.Debug("poll session started",
		"session_id", s.id,
		"conditions", len(conditions),
		"wait", cfg.wait.String(),
		"multiplier", cfg.multiplier,
		"timeout", cfg.timeout.String(),
	)

	if len(s.elements) == 0 {
		// nothing to wait for: complete on the session's own goroutine
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.fireAllSucceeded()
		}()
		return s, nil
	}

	for _, e := range s.elements {
		s.wg.Add(1)
		go s.runElement(e)
	}
	return s, nil
}

// runElement drives one element's check/backoff loop until it settles.
func (s *Session) runElement(e *pollElement) {
	defer s.wg.Done()

	e.mu.Lock()
	e.startedAt = s.cfg.clock.Now()
	deadline := time.Time{}
	if s.cfg.timeout > 0 {
		deadline = e.startedAt.Add(s.cfg.timeout)
	}
	e.mu.Unlock()

	wait := s.cfg.wait
	for {
		if s.isDestroyed() {
			e.setState(StateCancelled)
			return
		}
		if !deadline.IsZero() && s.cfg.clock.Now().After(deadline) {
			e.setState(StateTimedOut)
			s.reportTimeout(e)
			return
		}

		timer := s.cfg.clock.Timer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			e.setState(StateCancelled)
			return
		case <-timer.C:
		}

		// a timer already in flight when Destroy was called lands here;
		// nothing effectful may happen past this guard
		if s.isDestroyed() {
			e.setState(StateCancelled)
			return
		}

		e.setState(StateChecking)
		ok, err := evaluate(s.ctx, e.cond, s.cfg.doc, s.cfg.logger)
		if err != nil {
			if s.cfg.policy == StopOnError {
				s.cfg.logger.Error("condition failed, stopping element",
					"session_id", s.id,
					"condition", e.cond.String(),
					"error", err,
				)
				e.setState(StateCancelled)
				return
			}
			// RetryOnError: an error counts as "not yet satisfied"
			s.cfg.logger.Debug("condition evaluation error, will retry",
				"session_id", s.id,
				"condition", e.cond.String(),
				"error", err,
			)
			ok = false
		}

		if ok {
			e.setState(StateSucceeded)
			s.recordSuccess(e)
			return
		}

		e.setState(StatePending)
		wait = time.Duration(float64(wait) * s.cfg.multiplier)
	}
}

// recordSuccess tallies a succeeded element and fires the aggregate callback
// when it was the last one outstanding.
func (s *Session) recordSuccess(e *pollElement) {
	s.mu.Lock()
	s.succeeded++
	done := s.succeeded == len(s.elements)
	s.mu.Unlock()

	s.cfg.logger.Debug("condition satisfied",
		"session_id", s.id,
		"condition", e.cond.String(),
	)

	if done {
		s.fireAllSucceeded()
	}
}

// fireAllSucceeded invokes the aggregate callback at most once, and never
// after Destroy.
func (s *Session) fireAllSucceeded() {
	s.mu.Lock()
	if s.fired || s.destroyed {
		s.mu.Unlock()
		return
	}
	s.fired = true
	s.mu.Unlock()

	s.cfg.logger.Debug("all conditions satisfied", "session_id", s.id)
	s.onAllSucceed()
}

// reportTimeout invokes the timeout callback for a timed-out element, unless
// the session was destroyed.
func (s *Session) reportTimeout(e *pollElement) {
	s.mu.Lock()
	dead := s.destroyed
	s.mu.Unlock()
	if dead {
		return
	}

	s.cfg.logger.Debug("condition timed out",
		"session_id", s.id,
		"condition", e.cond.String(),
		"timeout", s.cfg.timeout.String(),
	)
	if s.cfg.timeoutCallback != nil {
		s.cfg.timeoutCallback(e.cond)
	}
}

func (s *Session) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy cancels every still-pending element and releases the session's
// timers.
//
// After Destroy returns, no success or timeout callback will fire, including
// from timers that were already in flight: every effectful path re-checks the
// session's liveness under the mutex before invoking a callback.
//
// Destroy is idempotent and blocks until all polling goroutines have exited.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.destroyed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.cfg.logger.Debug("poll session destroyed", "session_id", s.id)
}

// States returns a snapshot of every element's current [ElementState], in
// condition order.
func (s *Session) States() []ElementState {
	states := make([]ElementState, len(s.elements))
	for i, e := range s.elements {
		states[i] = e.state()
	}
	return states
}

// Succeeded returns how many elements have succeeded so far.
func (s *Session) Succeeded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded
}
