// Package presentation reconciles generation state into the visibility of
// the "thinking" indicator: showing is debounced so short gaps do not
// flicker, hiding is immediate.
package presentation

import (
	"sync"
	"time"

	"github.com/meetnote/meetnote/internal/chat"
	"github.com/meetnote/meetnote/internal/generate"
)

// ShowDelay is the debounce before the indicator appears.
const ShowDelay = 200 * time.Millisecond

// State is the observable generation state the reconciler decides from.
type State struct {
	Status generate.Status
	// Parts are the streamed parts of the in-flight assistant message.
	Parts []chat.Part
	// PartBoundary is true when the caller knows the last part is complete
	// and the next has not started. It is an override; a trailing tool call
	// is recognized as a boundary without it.
	PartBoundary bool
}

// desired reports whether the indicator should be visible for this state:
// a generation is in flight and there is nothing newer on screen to watch.
// A trailing tool-call part means no text is streaming, so the gap until the
// next part is a waiting period whether the call is still running or done.
func desired(s State) bool {
	if !s.Status.Busy() {
		return false
	}
	if len(s.Parts) == 0 || s.PartBoundary {
		return true
	}
	return s.Parts[len(s.Parts)-1].Tool != nil
}

// Reconciler drives indicator visibility from state updates. It owns one
// timer; a pending show is cancelled the moment the desired state flips.
type Reconciler struct {
	mu       sync.Mutex
	visible  bool
	pending  bool
	closed   bool
	timer    *time.Timer
	delay    time.Duration
	onChange func(visible bool)
}

// New creates a reconciler. onChange is invoked on every visibility flip,
// outside the reconciler's lock; it may be nil.
func New(onChange func(visible bool)) *Reconciler {
	return &Reconciler{
		delay:    ShowDelay,
		onChange: onChange,
	}
}

// NewWithDelay is New with a custom show debounce, for tests.
func NewWithDelay(delay time.Duration, onChange func(visible bool)) *Reconciler {
	return &Reconciler{delay: delay, onChange: onChange}
}

// Update reconciles the indicator against a new state snapshot.
func (r *Reconciler) Update(s State) {
	want := desired(s)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	if !want {
		r.stopTimerLocked()
		if !r.visible {
			r.mu.Unlock()
			return
		}
		r.visible = false
		fn := r.onChange
		r.mu.Unlock()
		if fn != nil {
			fn(false)
		}
		return
	}

	if r.visible || r.pending {
		r.mu.Unlock()
		return
	}

	r.pending = true
	if r.timer == nil {
		r.timer = time.AfterFunc(r.delay, r.show)
	} else {
		r.timer.Reset(r.delay)
	}
	r.mu.Unlock()
}

func (r *Reconciler) show() {
	r.mu.Lock()
	if r.closed || !r.pending {
		r.mu.Unlock()
		return
	}
	r.pending = false
	r.visible = true
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn(true)
	}
}

// Visible returns the current indicator visibility.
func (r *Reconciler) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// Close cancels any pending show and stops the reconciler.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.stopTimerLocked()
}

func (r *Reconciler) stopTimerLocked() {
	r.pending = false
	if r.timer != nil {
		r.timer.Stop()
	}
}
