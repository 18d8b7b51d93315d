package platform

import (
	"sync/atomic"
	"time"
)

// Timeline runs engine work on the main thread. Work is handed to Dispatch;
// delayed work waits on a timer first and never blocks the main thread.
type Timeline struct{}

// NewTimeline returns a Timeline backed by the registered dispatch function.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Post runs fn on the main thread after the current task.
func (t *Timeline) Post(fn func()) {
	dispatchOrReport("timeline.post", "", 0, fn)
}

// PostDelayed runs fn on the main thread once d has elapsed. Cancel must be
// called from the main thread; a cancelled fn never runs, even when its
// timer already fired.
func (t *Timeline) PostDelayed(d time.Duration, fn func()) (cancel func()) {
	var canceled atomic.Bool
	run := func() {
		if !canceled.Load() {
			fn()
		}
	}
	if d <= 0 {
		t.Post(run)
		return func() { canceled.Store(true) }
	}
	timer := time.AfterFunc(d, func() { t.Post(run) })
	return func() {
		canceled.Store(true)
		timer.Stop()
	}
}
