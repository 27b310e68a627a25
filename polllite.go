package ready

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PollLite polls the given conditions against a single shared deadline and
// invokes callback exactly once, after every condition has evaluated true.
//
// PollLite is the lightweight variant of [Poll]: one absolute deadline is
// computed once at session start from [WithTimeout] (zero means unbounded)
// and shared by all conditions. A condition whose retry loop reaches the
// deadline stops silently; this variant has no timeout reporting, and
// [WithTimeoutCallback] is rejected with an error rather than ignored. Once
// the deadline has passed, no late success can trigger the callback.
//
// Each condition runs its first check with zero delay, bypassing the
// configured wait once, so several independently slow conditions do not
// serialize behind each other's initial backoff. Subsequent checks follow the
// wait/multiplier backoff of [Poll].
//
// The callback receives the ordered per-condition results; on the success
// path every entry is true. An empty condition list invokes the callback
// asynchronously with an empty slice. There is no cancellation handle: a lite
// session runs until it completes or its deadline passes.
//
// Returns an error if callback is nil, any condition is invalid, a selector
// condition lacks a document, or an option fails validation.
func PollLite(conditions []Condition, callback func(results []bool), opts ...Option) error {
	if callback == nil {
		return errors.New("callback is required")
	}

	cfg, err := newPollConfig(opts)
	if err != nil {
		return err
	}
	if cfg.timeoutCallback != nil {
		return errors.New("PollLite does not support WithTimeoutCallback")
	}
	if err := validateConditions(conditions, cfg.doc); err != nil {
		return err
	}

	s := &liteSession{
		id:       uuid.NewString(),
		cfg:      cfg,
		callback: callback,
		results:  make([]bool, len(conditions)),
	}
	if cfg.timeout > 0 {
		s.deadline = cfg.clock.Now().Add(cfg.timeout)
	}

	cfg.logger.Debug("lite poll session started",
		"session_id", s.id,
		"conditions", len(conditions),
		"wait", cfg.wait.String(),
		"timeout", cfg.timeout.String(),
	)

	if len(conditions) == 0 {
		go s.fire()
		return nil
	}

	for i, c := range conditions {
		go s.runCondition(i, c)
	}
	return nil
}

// liteSession is the shared state of one [PollLite] call.
type liteSession struct {
	id       string
	cfg      *pollConfig
	callback func(results []bool)
	deadline time.Time // zero when unbounded

	mu        sync.Mutex
	results   []bool
	succeeded int
	fired     bool
}

// expired reports whether the shared deadline has passed.
func (s *liteSession) expired() bool {
	return !s.deadline.IsZero() && s.cfg.clock.Now().After(s.deadline)
}

// runCondition drives one condition's check loop against the shared deadline.
func (s *liteSession) runCondition(i int, c Condition) {
	wait := s.cfg.wait
	first := true
	for {
		if !first {
			timer := s.cfg.clock.Timer(wait)
			<-timer.C
			wait = time.Duration(float64(wait) * s.cfg.multiplier)
		}
		first = false

		// deadline is checked on every iteration, including the immediate
		// first one; past it the loop stops with no callback of any kind
		if s.expired() {
			s.cfg.logger.Debug("lite poll deadline passed",
				"session_id", s.id,
				"condition", c.String(),
			)
			return
		}

		ok, err := evaluate(context.Background(), c, s.cfg.doc, s.cfg.logger)
		if err != nil {
			if s.cfg.policy == StopOnError {
				s.cfg.logger.Error("condition failed, stopping",
					"session_id", s.id,
					"condition", c.String(),
					"error", err,
				)
				return
			}
			ok = false
		}
		if ok {
			s.recordSuccess(i, c)
			return
		}
	}
}

// recordSuccess marks one condition satisfied and fires the callback when it
// was the last one outstanding.
func (s *liteSession) recordSuccess(i int, c Condition) {
	s.mu.Lock()
	s.results[i] = true
	s.succeeded++
	done := s.succeeded == len(s.results)
	s.mu.Unlock()

	s.cfg.logger.Debug("condition satisfied",
		"session_id", s.id,
		"condition", c.String(),
	)

	if done {
		s.fire()
	}
}

// fire invokes the callback at most once, guarded against the deadline.
func (s *liteSession) fire() {
	if s.expired() {
		return
	}

	s.mu.Lock()
	if s.fired {
		s.mu.Unlock()
		return
	}
	s.fired = true
	results := make([]bool, len(s.results))
	copy(results, s.results)
	s.mu.Unlock()

	s.cfg.logger.Debug("all conditions satisfied", "session_id", s.id)
	s.callback(results)
}
