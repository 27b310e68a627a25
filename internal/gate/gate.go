// Package gate implements the throttle gate shared by the mutation
// coordinator and the viewability tracker.
//
// A gate allows at most one pass per fixed time window. Unlike a debounce,
// the first trigger of a burst passes immediately; triggers arriving before
// the window has elapsed since that pass are dropped, not queued or batched.
package gate

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Gate is a throttle gate. The zero value is not usable; create gates with
// [New]. All methods are safe for concurrent use.
type Gate struct {
	clock  clock.Clock
	window time.Duration

	mu       sync.Mutex
	lastPass time.Time
}

// New creates a gate that opens at most once per window.
//
// A window of zero disables throttling entirely: every Try passes. A nil
// clock defaults to the real clock.
func New(window time.Duration, c clock.Clock) *Gate {
	if c == nil {
		c = clock.New()
	}
	return &Gate{clock: c, window: window}
}

// Try attempts to pass the gate.
//
// The first call always passes. A passing call closes the gate for the
// window; calls made while the gate is closed report false and leave the
// window untouched, so the gate re-opens exactly window after the last pass.
func (g *Gate) Try() bool {
	if g.window <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if !g.lastPass.IsZero() && now.Sub(g.lastPass) < g.window {
		return false
	}
	g.lastPass = now
	return true
}
