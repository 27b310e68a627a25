package ready

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
)

// Condition is a readiness check that gates a callback.
//
// A Condition is a tagged variant with three shapes, built via the
// constructors [Predicate], [Selector], and [AlwaysTrue]:
//
//   - Predicate: an arbitrary function returning (satisfied, error).
//   - Selector: a selector string resolved against a [Document].
//   - AlwaysTrue: satisfied on the first evaluation (pass-through).
//
// The zero Condition is invalid; [Poll] and [PollLite] reject it with a
// descriptive error rather than polling it forever.
//
// Conditions are immutable values and safe to share between sessions.
type Condition struct {
	kind     conditionKind
	name     string
	pred     func(ctx context.Context) (bool, error)
	selector string
}

type conditionKind int

const (
	kindInvalid conditionKind = iota
	kindPredicate
	kindSelector
	kindAlwaysTrue
)

// Predicate creates a [Condition] from an arbitrary check function.
//
// The function is invoked on every poll tick with the session's context.
// Returning (true, nil) marks the condition satisfied. Errors are handled
// according to the session's [EvalErrorPolicy]; under the default
// [RetryOnError] an error simply means "not yet satisfied".
//
// Example:
//
//	cond := ready.Predicate(func(ctx context.Context) (bool, error) {
//	    _, err := os.Stat("/var/run/app.ready")
//	    return err == nil, nil
//	})
func Predicate(fn func(ctx context.Context) (bool, error)) Condition {
	return Condition{kind: kindPredicate, pred: fn}
}

// PredicateFunc creates a [Condition] from a plain boolean function.
//
// Convenience wrapper around [Predicate] for checks that need no context
// and cannot fail.
func PredicateFunc(fn func() bool) Condition {
	return Condition{kind: kindPredicate, pred: func(context.Context) (bool, error) {
		return fn(), nil
	}}
}

// Selector creates a [Condition] that is satisfied once the selector matches
// in the session's [Document].
//
// Sessions containing selector conditions must be configured with
// [WithDocument]; construction fails otherwise.
func Selector(selector string) Condition {
	return Condition{kind: kindSelector, selector: selector}
}

// AlwaysTrue creates a [Condition] that is satisfied on its first evaluation.
//
// This mirrors the pass-through handling of condition values that are neither
// predicates nor selectors: they never block a session.
func AlwaysTrue() Condition {
	return Condition{kind: kindAlwaysTrue}
}

// Named returns a copy of the condition carrying a display name.
//
// The name appears in logs and is reported through timeout callbacks.
func (c Condition) Named(name string) Condition {
	c.name = name
	return c
}

// Name returns the condition's display name.
//
// If no name was set via [Condition.Named], a name is derived from the
// condition's shape ("predicate", the selector string, or "always-true").
func (c Condition) Name() string {
	if c.name != "" {
		return c.name
	}
	switch c.kind {
	case kindPredicate:
		return "predicate"
	case kindSelector:
		return c.selector
	case kindAlwaysTrue:
		return "always-true"
	default:
		return "invalid"
	}
}

// String implements fmt.Stringer.
func (c Condition) String() string {
	switch c.kind {
	case kindPredicate:
		if c.name != "" {
			return fmt.Sprintf("predicate(%s)", c.name)
		}
		return "predicate"
	case kindSelector:
		return fmt.Sprintf("selector(%s)", c.selector)
	case kindAlwaysTrue:
		return "always-true"
	default:
		return "invalid"
	}
}

// validate reports whether the condition can be polled at all.
func (c Condition) validate(doc Document) error {
	switch c.kind {
	case kindPredicate:
		if c.pred == nil {
			return errors.New("predicate condition has a nil function")
		}
		return nil
	case kindSelector:
		if c.selector == "" {
			return errors.New("selector condition is empty")
		}
		if doc == nil {
			return fmt.Errorf("selector condition %q requires a document (use WithDocument)", c.selector)
		}
		return nil
	case kindAlwaysTrue:
		return nil
	default:
		return errors.New("condition is empty (use Predicate, Selector, or AlwaysTrue)")
	}
}

// EvalErrorPolicy controls how a session treats a condition whose evaluation
// returns an error or panics.
//
// The original coordination layer silently discarded evaluation errors and
// kept retrying; that behavior is preserved here as the named default rather
// than an implicit empty catch.
type EvalErrorPolicy int

const (
	// RetryOnError treats an evaluation error as "not yet satisfied": the
	// element stays in the backoff loop and is checked again. This is the
	// default.
	RetryOnError EvalErrorPolicy = iota

	// StopOnError stops polling the element on the first evaluation error.
	// The element never succeeds and never counts toward session completion;
	// the error is logged.
	StopOnError
)

// String implements fmt.Stringer.
func (p EvalErrorPolicy) String() string {
	switch p {
	case RetryOnError:
		return "retry-on-error"
	case StopOnError:
		return "stop-on-error"
	default:
		return "unknown"
	}
}

// evaluate runs one check of the condition with panic recovery.
//
// A recovered panic is converted to an error and logged with a correlation ID
// so a misbehaving predicate cannot take down the polling goroutine. The
// caller applies the session's [EvalErrorPolicy] to the returned error.
func evaluate(ctx context.Context, c Condition, doc Document, logger *slog.Logger) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			logger.Error("condition panicked during evaluation",
				"condition", c.String(),
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			ok = false
			err = fmt.Errorf("condition panic (correlation_id: %s)", correlationID)
		}
	}()

	switch c.kind {
	case kindPredicate:
		return c.pred(ctx)
	case kindSelector:
		return doc.Match(c.selector), nil
	case kindAlwaysTrue:
		return true, nil
	default:
		// unreachable: sessions validate conditions at construction
		return false, errors.New("invalid condition")
	}
}
