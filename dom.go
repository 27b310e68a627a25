package ready

// The document/view interfaces below are the seams between this library and
// whatever actually owns the content being watched (a headless browser
// bridge, a UI toolkit, a test fake). The library never renders or inspects
// content itself; it only schedules checks against these contracts.

// Document resolves selector conditions.
//
// Implementations report whether at least one node currently matches the
// selector. Match is called repeatedly from polling goroutines and must be
// safe for concurrent use.
type Document interface {
	Match(selector string) bool
}

// Rect is an element's bounding box in viewport coordinates.
//
// Top and Bottom are offsets from the top of the viewport; negative values
// lie above the visible area.
type Rect struct {
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

// Height returns the vertical extent of the box.
func (r Rect) Height() float64 {
	return r.Bottom - r.Top
}

// Boundable is an element whose bounding box can be measured, as needed by
// [TrackView].
type Boundable interface {
	Bounds() Rect
}

// View is the scrollable viewport a [ViewTracker] watches.
//
// OnScroll registers a scroll listener and returns a function that removes
// it. Implementations must tolerate the remove function being called more
// than once.
type View interface {
	Height() float64
	OnScroll(fn func()) (remove func())
}
