package ready

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	defaultWait       = 50 * time.Millisecond
	defaultMultiplier = 2.0
)

// pollConfig holds mutable state during session construction.
type pollConfig struct {
	wait            time.Duration
	multiplier      float64
	timeout         time.Duration
	timeoutCallback func(Condition)
	doc             Document
	policy          EvalErrorPolicy
	logger          *slog.Logger
	clock           clock.Clock
}

// Option is a function that configures a polling session during construction.
//
// Option implements the functional options pattern shared by [Poll] and
// [PollLite]. Options return an error if validation fails.
//
// Built-in options: [WithWait], [WithMultiplier], [WithTimeout],
// [WithTimeoutCallback], [WithDocument], [WithEvalErrorPolicy], [WithLogger],
// [WithClock].
type Option func(*pollConfig) error

// WithWait sets the initial delay before each condition's first check and the
// base of the backoff sequence.
//
// After every unsatisfied check the delay is multiplied by the backoff
// multiplier. Defaults to 50ms.
//
// Returns an error if the duration is zero or negative.
func WithWait(d time.Duration) Option {
	return func(cfg *pollConfig) error {
		if d <= 0 {
			return errors.New("wait must be positive")
		}
		cfg.wait = d
		return nil
	}
}

// WithMultiplier sets the backoff growth factor applied to the retry delay
// after each unsatisfied check.
//
// A multiplier of 1 polls at a fixed interval. Defaults to 2.
//
// Returns an error if the multiplier is less than 1.
func WithMultiplier(m float64) Option {
	return func(cfg *pollConfig) error {
		if m < 1 {
			return errors.New("multiplier must be at least 1")
		}
		cfg.multiplier = m
		return nil
	}
}

// WithTimeout bounds how long conditions are polled.
//
// For [Poll] the bound applies per element, measured from the element's first
// poll; an element that exceeds it stops polling, triggers the timeout
// callback, and never counts toward session completion.
//
// For [PollLite] the bound is a single absolute deadline computed once at
// session start and shared by every condition.
//
// Zero means unbounded and is the default. Returns an error if the duration
// is negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *pollConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithTimeoutCallback registers a function invoked once for each element of a
// [Poll] session that times out, receiving the element's [Condition].
//
// The callback runs on the element's polling goroutine and is never invoked
// after [Session.Destroy]. Nil callbacks are silently ignored.
//
// [PollLite] does not report timeouts and rejects this option.
func WithTimeoutCallback(cb func(Condition)) Option {
	return func(cfg *pollConfig) error {
		cfg.timeoutCallback = cb
		return nil
	}
}

// WithDocument sets the [Document] that selector conditions are resolved
// against.
//
// Required when any condition in the session was built with [Selector].
//
// Returns an error if the document is nil.
func WithDocument(doc Document) Option {
	return func(cfg *pollConfig) error {
		if doc == nil {
			return errors.New("document cannot be nil")
		}
		cfg.doc = doc
		return nil
	}
}

// WithEvalErrorPolicy sets how evaluation errors and recovered panics are
// handled. Defaults to [RetryOnError].
func WithEvalErrorPolicy(p EvalErrorPolicy) Option {
	return func(cfg *pollConfig) error {
		if p != RetryOnError && p != StopOnError {
			return errors.New("unknown evaluation error policy")
		}
		cfg.policy = p
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the session.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pollConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithClock sets the clock used for scheduling checks.
//
// Intended for tests, which can drive sessions deterministically with
// [clock.NewMock]. Defaults to the real clock.
//
// Returns an error if the clock is nil.
func WithClock(c clock.Clock) Option {
	return func(cfg *pollConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// newPollConfig applies defaults and options.
func newPollConfig(opts []Option) (*pollConfig, error) {
	cfg := &pollConfig{
		wait:       defaultWait,
		multiplier: defaultMultiplier,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}
	return cfg, nil
}

// validateConditions rejects invalid conditions up front so nothing is ever
// polled forever by mistake.
func validateConditions(conditions []Condition, doc Document) error {
	for i, c := range conditions {
		if err := c.validate(doc); err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}
	}
	return nil
}
