package testing

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrSettleLimit is returned when Settle runs out of steps before the
// timeline becomes idle.
var ErrSettleLimit = errors.New("timeline did not settle")

// FakeTimeline is a manually driven single-threaded timeline with a virtual
// clock. Posted work only runs inside Pump, Advance or Settle, on the calling
// goroutine, which makes engine tests fully deterministic.
//
// Post and PostDelayed are safe to call from any goroutine.
type FakeTimeline struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*task
}

type task struct {
	due      time.Time
	seq      int
	fn       func()
	canceled bool
}

// NewFakeTimeline returns a FakeTimeline starting at a fixed epoch.
func NewFakeTimeline() *FakeTimeline {
	return &FakeTimeline{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current virtual time.
func (tl *FakeTimeline) Now() time.Time {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.now
}

// Post queues fn to run at the current virtual time.
func (tl *FakeTimeline) Post(fn func()) {
	tl.PostDelayed(0, fn)
}

// Dispatch is Post with the signature of platform.RegisterDispatch.
func (tl *FakeTimeline) Dispatch(fn func()) {
	tl.Post(fn)
}

// PostDelayed queues fn to run once the clock has advanced by d. The returned
// function cancels it.
func (tl *FakeTimeline) PostDelayed(d time.Duration, fn func()) (cancel func()) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.seq++
	t := &task{due: tl.now.Add(max(d, 0)), seq: tl.seq, fn: fn}
	tl.tasks = append(tl.tasks, t)
	return func() {
		tl.mu.Lock()
		t.canceled = true
		tl.mu.Unlock()
	}
}

// Pending returns the number of queued, uncancelled tasks.
func (tl *FakeTimeline) Pending() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	n := 0
	for _, t := range tl.tasks {
		if !t.canceled {
			n++
		}
	}
	return n
}

// NextDelay returns how far the clock must advance for the earliest queued
// task to become due, and false if nothing is queued.
func (tl *FakeTimeline) NextDelay() (time.Duration, bool) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	t := tl.earliestLocked()
	if t == nil {
		return 0, false
	}
	return max(t.due.Sub(tl.now), 0), true
}

// Pump runs every task that is due at the current time, including tasks
// those tasks post for the same instant. It returns how many ran.
func (tl *FakeTimeline) Pump() int {
	n := 0
	for tl.runNext(tl.Now()) {
		n++
	}
	return n
}

// Advance moves the clock forward by d, running tasks in due order and
// stopping the clock at each task's due time while it runs.
func (tl *FakeTimeline) Advance(d time.Duration) int {
	target := tl.Now().Add(d)
	n := 0
	for tl.runNext(target) {
		n++
	}
	tl.mu.Lock()
	if tl.now.Before(target) {
		tl.now = target
	}
	tl.mu.Unlock()
	return n
}

// Settle keeps advancing to the next due task until nothing is queued. It
// fails after limit tasks, which guards against self-rescheduling work.
func (tl *FakeTimeline) Settle(limit int) error {
	for i := 0; i < limit; i++ {
		d, ok := tl.NextDelay()
		if !ok {
			return nil
		}
		tl.Advance(d)
	}
	if _, ok := tl.NextDelay(); ok {
		return ErrSettleLimit
	}
	return nil
}

// runNext runs the earliest task due at or before limit.
func (tl *FakeTimeline) runNext(limit time.Time) bool {
	tl.mu.Lock()
	t := tl.earliestLocked()
	if t == nil || t.due.After(limit) {
		tl.mu.Unlock()
		return false
	}
	tl.remove(t)
	if t.due.After(tl.now) {
		tl.now = t.due
	}
	tl.mu.Unlock()

	t.fn()
	return true
}

func (tl *FakeTimeline) earliestLocked() *task {
	live := tl.tasks[:0]
	for _, t := range tl.tasks {
		if !t.canceled {
			live = append(live, t)
		}
	}
	tl.tasks = live
	if len(tl.tasks) == 0 {
		return nil
	}
	sort.SliceStable(tl.tasks, func(i, j int) bool {
		if tl.tasks[i].due.Equal(tl.tasks[j].due) {
			return tl.tasks[i].seq < tl.tasks[j].seq
		}
		return tl.tasks[i].due.Before(tl.tasks[j].due)
	})
	return tl.tasks[0]
}

func (tl *FakeTimeline) remove(t *task) {
	for i, other := range tl.tasks {
		if other == t {
			tl.tasks = append(tl.tasks[:i], tl.tasks[i+1:]...)
			return
		}
	}
}
