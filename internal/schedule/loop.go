// Package schedule runs delayed work on a single cooperative event loop.
//
// Every task, including timer callbacks, executes on the goroutine that
// called Run, one at a time. Timers are cancellable handles: a cancelled
// timer never runs its callback even if it already fired and was waiting
// in the queue.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when work is submitted to a closed loop.
var ErrClosed = errors.New("schedule: loop closed")

// Loop is a single-goroutine task queue with timers.
type Loop struct {
	clock Clock

	mu     sync.Mutex
	tasks  []func()
	timers map[uint64]*Timer
	nextID uint64
	closed bool

	wake chan struct{}
}

// Timer is a cancellable handle for a callback scheduled with After.
type Timer struct {
	id      uint64
	name    string
	loop    *Loop
	stopper Stopper
	done    bool // fired or cancelled, guarded by loop.mu
}

// NewLoop creates a loop using clock for timers. A nil clock uses RealClock.
func NewLoop(clock Clock) *Loop {
	if clock == nil {
		clock = RealClock()
	}
	return &Loop{
		clock:  clock,
		timers: make(map[uint64]*Timer),
		wake:   make(chan struct{}, 1),
	}
}

// Clock returns the loop's clock.
func (l *Loop) Clock() Clock {
	return l.clock
}

// Post queues fn to run on the loop goroutine.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	l.signal()
	return nil
}

// After schedules fn to run on the loop after d.
func (l *Loop) After(d time.Duration, name string, fn func()) (*Timer, error) {
	if fn == nil {
		return nil, errors.New("schedule: nil callback")
	}
	if d < 0 {
		return nil, errors.New("schedule: negative delay for " + name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	l.nextID++
	t := &Timer{id: l.nextID, name: name, loop: l}
	l.timers[t.id] = t
	t.stopper = l.clock.AfterFunc(d, func() { l.fire(t, fn) })
	return t, nil
}

func (l *Loop) fire(t *Timer, fn func()) {
	err := l.Post(func() {
		l.mu.Lock()
		if t.done {
			l.mu.Unlock()
			return
		}
		t.done = true
		delete(l.timers, t.id)
		l.mu.Unlock()

		fn()
	})
	if err != nil {
		l.mu.Lock()
		t.done = true
		delete(l.timers, t.id)
		l.mu.Unlock()
	}
}

// Name returns the label given to After.
func (t *Timer) Name() string {
	return t.name
}

// Cancel prevents the timer's callback from running. It reports whether
// the timer was still pending.
func (t *Timer) Cancel() bool {
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	return t.loop.cancelLocked(t)
}

func (l *Loop) cancelLocked(t *Timer) bool {
	if t.done {
		return false
	}
	t.done = true
	delete(l.timers, t.id)
	if t.stopper != nil {
		t.stopper.Stop()
	}
	return true
}

// CancelAll cancels every pending timer and returns how many were cancelled.
func (l *Loop) CancelAll() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, t := range l.timers {
		if l.cancelLocked(t) {
			n++
		}
	}
	return n
}

// Pending returns the number of timers that have neither fired nor been cancelled.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Close cancels all timers and makes Run return once queued tasks drain.
// It may be called from a task running on the loop and more than once.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	for _, t := range l.timers {
		l.cancelLocked(t)
	}
	l.mu.Unlock()

	l.signal()
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Run executes queued tasks until the loop is closed or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.mu.Lock()
		tasks := l.tasks
		l.tasks = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range tasks {
			fn()
		}
		if len(tasks) > 0 {
			continue
		}
		if closed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Flush blocks until every task queued before the call has run.
func (l *Loop) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := l.Post(func() { close(done) }); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
