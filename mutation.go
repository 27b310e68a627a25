package ready

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/readykit/ready/internal/gate"
)

const defaultMutationThrottle = 200 * time.Millisecond

// MutationKind categorizes an observed mutation.
type MutationKind string

const (
	// MutationAttributes reports a changed attribute on the target.
	MutationAttributes MutationKind = "attributes"

	// MutationChildList reports added or removed children.
	MutationChildList MutationKind = "child-list"

	// MutationCharacterData reports changed text content.
	MutationCharacterData MutationKind = "character-data"
)

// Mutation is a single observed change on a target.
type Mutation struct {
	// Target is the observed target the mutation occurred on (or under, with
	// subtree observation).
	Target MutationTarget

	// Kind categorizes the change.
	Kind MutationKind
}

// ObserveConfig selects which mutations a target reports.
//
// The zero value observes nothing; use [DefaultObserveConfig] for the common
// attributes + child list + subtree setup.
type ObserveConfig struct {
	Attributes    bool
	ChildList     bool
	CharacterData bool
	Subtree       bool
}

// DefaultObserveConfig returns the default observation setup: attributes and
// child-list changes, across the whole subtree.
func DefaultObserveConfig() ObserveConfig {
	return ObserveConfig{Attributes: true, ChildList: true, Subtree: true}
}

// enabled reports whether the config observes anything at all.
func (c ObserveConfig) enabled() bool {
	return c.Attributes || c.ChildList || c.CharacterData
}

// MutationTarget is something whose mutations can be observed, typically a
// bridge to one element of the embedding application's content tree.
//
// Observe starts reporting mutations matching cfg on the returned channel and
// returns a stop function. Implementations must close the channel once stop
// has been called and must tolerate stop being called more than once.
// Targets are matched by identity in [Coordinator.Disconnect], so
// implementations should be pointer types.
type MutationTarget interface {
	Observe(cfg ObserveConfig) (<-chan Mutation, func())
}

// registration is one (target, observer) pair in a coordinator's active
// registry.
type registration struct {
	target MutationTarget
	stop   func()
}

// Coordinator wraps mutation observation with a throttle gate and an active
// registry enabling bulk disconnect.
//
// Each Coordinator owns its registry; unlike the original process-wide list,
// independent coordinators are fully isolated, which keeps tests hermetic.
// Callers are responsible for disconnecting what they connect; there is no
// implicit teardown lifecycle.
//
// All methods are safe for concurrent use.
type Coordinator struct {
	clock  clock.Clock
	logger *slog.Logger
	active mapset.Set[*registration]
}

// coordinatorConfig holds mutable state during coordinator construction.
type coordinatorConfig struct {
	clock  clock.Clock
	logger *slog.Logger
}

// CoordinatorOption configures a [Coordinator] during construction.
type CoordinatorOption func(*coordinatorConfig) error

// WithCoordinatorLogger sets a custom [slog.Logger] for the coordinator.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(cfg *coordinatorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithCoordinatorClock sets the clock driving throttle windows. Intended for
// tests. Defaults to the real clock.
//
// Returns an error if the clock is nil.
func WithCoordinatorClock(c clock.Clock) CoordinatorOption {
	return func(cfg *coordinatorConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// NewCoordinator creates a mutation [Coordinator] with an empty registry.
func NewCoordinator(opts ...CoordinatorOption) (*Coordinator, error) {
	cfg := &coordinatorConfig{}
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
	return &Coordinator{
		clock:  cfg.clock,
		logger: cfg.logger,
		active: mapset.NewSet[*registration](),
	}, nil
}

// connectConfig holds mutable state for one Connect call.
type connectConfig struct {
	throttle   time.Duration
	observe    ObserveConfig
	observeSet bool
}

// ConnectOption configures a single [Coordinator.Connect] call.
type ConnectOption func(*connectConfig) error

// WithThrottle sets the minimum time between callback invocations for this
// connect call.
//
// The throttle is a gate, not a debounce: the first mutation of a burst fires
// the callback immediately, and mutations arriving before the window has
// elapsed since that fire are dropped (not queued, not batched) until the
// gate re-opens. Zero disables throttling. Defaults to 200ms.
//
// Returns an error if the duration is negative.
func WithThrottle(d time.Duration) ConnectOption {
	return func(cfg *connectConfig) error {
		if d < 0 {
			return errors.New("throttle cannot be negative")
		}
		cfg.throttle = d
		return nil
	}
}

// WithObserveConfig sets which mutations are observed for this connect call.
// Defaults to [DefaultObserveConfig].
//
// Returns an error if the config observes nothing.
func WithObserveConfig(observe ObserveConfig) ConnectOption {
	return func(cfg *connectConfig) error {
		if !observe.enabled() {
			return errors.New("observe config must enable at least one mutation kind")
		}
		cfg.observe = observe
		cfg.observeSet = true
		return nil
	}
}

// Connect starts observing the given targets and invokes callback on gated
// mutations.
//
// Every distinct target gets its own registration in the coordinator's active
// registry, but all targets of one Connect call share a single throttle gate,
// so a burst of mutations across the whole group fires the callback once per
// throttle window. The callback runs on observer goroutines; panics are
// recovered and logged.
//
// Returns an error if callback is nil, no target is given, any target is nil,
// or an option fails validation.
func (c *Coordinator) Connect(targets []MutationTarget, callback func(Mutation), opts ...ConnectOption) error {
	if callback == nil {
		return errors.New("callback is required")
	}
	if len(targets) == 0 {
		return errors.New("at least one target is required")
	}
	for i, t := range targets {
		if t == nil {
			return fmt.Errorf("targets[%d] is nil", i)
		}
	}

	cfg := &connectConfig{throttle: defaultMutationThrottle}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return err
		}
	}
	if !cfg.observeSet {
		cfg.observe = DefaultObserveConfig()
	}

	g := gate.New(cfg.throttle, c.clock)
	for _, t := range targets {
		ch, stop := t.Observe(cfg.observe)
		reg := &registration{target: t, stop: stop}
		c.active.Add(reg)
		go c.forward(reg, ch, g, callback)
	}

	c.logger.Debug("mutation targets connected",
		"targets", len(targets),
		"throttle", cfg.throttle.String(),
	)
	return nil
}

// forward relays one target's mutations through the shared gate until the
// target's channel closes.
func (c *Coordinator) forward(reg *registration, ch <-chan Mutation, g *gate.Gate, callback func(Mutation)) {
	defer c.active.Remove(reg)

	for m := range ch {
		if !g.Try() {
			continue
		}
		c.invokeSafe(callback, m)
	}
}

// invokeSafe calls the mutation callback with panic recovery.
func (c *Coordinator) invokeSafe(callback func(Mutation), m Mutation) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("mutation callback panicked",
				"panic", r,
				"kind", string(m.Kind),
			)
		}
	}()
	callback(m)
}

// Disconnect removes every registration whose target matches, by identity,
// any of the given targets, stopping its underlying observation.
//
// Targets with no active registration are silently ignored.
func (c *Coordinator) Disconnect(targets ...MutationTarget) {
	for _, t := range targets {
		if t == nil {
			continue
		}
		for _, reg := range c.active.ToSlice() {
			if reg.target == t {
				c.active.Remove(reg)
				reg.stop()
			}
		}
	}
}

// DisconnectAll stops every active registration in the registry.
func (c *Coordinator) DisconnectAll() {
	for _, reg := range c.active.ToSlice() {
		c.active.Remove(reg)
		reg.stop()
	}
}

// Active returns the number of live registrations.
func (c *Coordinator) Active() int {
	return c.active.Cardinality()
}
