package ready

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/readykit/ready/internal/gate"
)

const defaultScrollThrottle = 100 * time.Millisecond

// viewConfig holds mutable state during tracker construction.
type viewConfig struct {
	throttle       time.Duration
	fullInView     bool
	zeroHeightHide bool
	removeOnView   bool
	logger         *slog.Logger
	clock          clock.Clock
}

// ViewOption configures a [ViewTracker] during construction.
type ViewOption func(*viewConfig) error

// WithScrollThrottle sets the minimum time between visibility checks across
// scroll events. Zero disables throttling. Defaults to 100ms.
//
// Returns an error if the duration is negative.
func WithScrollThrottle(d time.Duration) ViewOption {
	return func(cfg *viewConfig) error {
		if d < 0 {
			return errors.New("scroll throttle cannot be negative")
		}
		cfg.throttle = d
		return nil
	}
}

// WithFullElementInView requires the element's entire bounding box to lie
// within the viewport for it to count as visible. By default only the top
// edge has to have entered the viewport.
func WithFullElementInView(full bool) ViewOption {
	return func(cfg *viewConfig) error {
		cfg.fullInView = full
		return nil
	}
}

// WithZeroHeightHidden makes zero-height elements never count as visible.
func WithZeroHeightHidden(hide bool) ViewOption {
	return func(cfg *viewConfig) error {
		cfg.zeroHeightHide = hide
		return nil
	}
}

// WithRemoveOnView detaches the tracker's scroll listener immediately after
// the first visibility fire, so the callback fires at most once. Without it
// the callback fires on every qualifying throttled tick.
func WithRemoveOnView(remove bool) ViewOption {
	return func(cfg *viewConfig) error {
		cfg.removeOnView = remove
		return nil
	}
}

// WithViewLogger sets a custom [slog.Logger] for the tracker.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithViewLogger(logger *slog.Logger) ViewOption {
	return func(cfg *viewConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithViewClock sets the clock driving the scroll throttle. Intended for
// tests. Defaults to the real clock.
//
// Returns an error if the clock is nil.
func WithViewClock(c clock.Clock) ViewOption {
	return func(cfg *viewConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// ViewTracker watches one element's visibility inside a [View].
//
// Create trackers with [TrackView]; call [ViewTracker.Stop] to detach the
// scroll listener when the tracker is no longer needed.
type ViewTracker struct {
	el        Boundable
	view      View
	onVisible func()
	cfg       *viewConfig
	gate      *gate.Gate

	mu      sync.Mutex
	remove  func()
	stopped bool
}

// TrackView invokes onVisible when el becomes visible inside view.
//
// An initial check runs synchronously before TrackView returns, so an element
// that is already visible fires the callback without waiting for a scroll
// event. After that, checks run on scroll events, rate-limited by the scroll
// throttle.
//
// Visibility is computed from the element's bounding box against the
// viewport height: with [WithFullElementInView] the whole box must lie within
// [0, height); otherwise it is enough for the top edge to be at or above the
// viewport bottom. [WithZeroHeightHidden] excludes zero-height boxes
// entirely. Only vertical geometry is considered.
//
// With [WithRemoveOnView] the scroll listener is detached immediately after
// the first fire and the callback is invoked at most once; otherwise it is
// invoked on every qualifying throttled tick.
//
// Returns an error if el, view, or onVisible is nil, or an option fails
// validation.
func TrackView(el Boundable, view View, onVisible func(), opts ...ViewOption) (*ViewTracker, error) {
	if el == nil {
		return nil, errors.New("element is required")
	}
	if view == nil {
		return nil, errors.New("view is required")
	}
	if onVisible == nil {
		return nil, errors.New("onVisible callback is required")
	}

	cfg := &viewConfig{throttle: defaultScrollThrottle}
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

	t := &ViewTracker{
		el:        el,
		view:      view,
		onVisible: onVisible,
		cfg:       cfg,
		gate:      gate.New(cfg.throttle, cfg.clock),
	}

	// already-visible elements are detected without any scroll event; with
	// removeOnView this stops the tracker before it ever subscribes
	t.check()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return t, nil
	}
	t.remove = view.OnScroll(t.onScroll)
	return t, nil
}

// onScroll handles one scroll event, applying the throttle gate.
func (t *ViewTracker) onScroll() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return
	}
	if !t.gate.Try() {
		return
	}
	t.check()
}

// check evaluates visibility once and fires the callback if it holds.
//
// The fire decision is a check-and-set under the mutex: concurrent scroll
// deliveries cannot both claim the fire, so with removeOnView the callback
// runs at most once per tracker.
func (t *ViewTracker) check() {
	if !t.visible() {
		return
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	var remove func()
	if t.cfg.removeOnView {
		t.stopped = true
		remove = t.remove
		t.remove = nil
	}
	t.mu.Unlock()

	if remove != nil {
		remove()
	}
	t.onVisible()
}

// visible applies the configured geometry rules to the element's current
// bounding box.
func (t *ViewTracker) visible() bool {
	box := t.el.Bounds()
	height := t.view.Height()

	if t.cfg.zeroHeightHide && box.Height() == 0 {
		return false
	}
	if t.cfg.fullInView {
		return box.Top >= 0 && box.Bottom < height
	}
	return box.Top <= height
}

// Stop detaches the tracker's scroll listener. Idempotent.
func (t *ViewTracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	remove := t.remove
	t.remove = nil
	t.mu.Unlock()

	if remove != nil {
		remove()
	}
}
