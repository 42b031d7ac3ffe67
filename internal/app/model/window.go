package model

import (
	"fmt"
	"time"
)

// Window is a look-back period for click statistics. A zero span means the
// window is unbounded and covers every recorded click.
type Window struct {
	name string
	span time.Duration
}

var (
	Day  = Window{name: "DAY", span: 24 * time.Hour}
	Week = Window{name: "WEEK", span: 7 * 24 * time.Hour}
	All  = Window{name: "ALL"}
)

// Windows returns every window in reporting order.
func Windows() []Window {
	return []Window{Day, Week, All}
}

func (w Window) String() string {
	return w.name
}

// Bounded reports whether the window has a finite span.
func (w Window) Bounded() bool {
	return w.span > 0
}

// Span is the window length; zero for an unbounded window.
func (w Window) Span() time.Duration {
	return w.span
}

// Threshold returns the exclusive lower bound, in epoch milliseconds, of the
// clicks that fall into the window ending at nowMillis.
func (w Window) Threshold(nowMillis int64) int64 {
	if !w.Bounded() {
		return 0
	}
	return nowMillis - w.span.Milliseconds()
}

func (w Window) MarshalText() ([]byte, error) {
	return []byte(w.name), nil
}

func (w *Window) UnmarshalText(text []byte) error {
	for _, candidate := range Windows() {
		if candidate.name == string(text) {
			*w = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown window %q", text)
}

// WindowCount is the number of clicks observed in a window.
type WindowCount struct {
	Window Window `json:"window"`
	Count  int64  `json:"count"`
}
