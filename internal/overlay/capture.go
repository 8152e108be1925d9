package overlay

import (
	"sync"
	"sync/atomic"

	"overlayctl/internal/logging"
)

// lifecycle is the Uninitialized -> Started -> Stopped state machine shared
// by every backend.
type lifecycle struct {
	mu     sync.Mutex
	status Status
}

func (l *lifecycle) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *lifecycle) set(s Status) {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
}

// begin moves to starting. started is true when a previous Start already
// claimed the capability.
func (l *lifecycle) begin() (started bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.status {
	case StatusUninitialized:
		l.status = StatusStarting
		return false, nil
	case StatusStarting, StatusRunning:
		return true, nil
	default:
		return false, ErrStopped
	}
}

// beginStop moves to stopping and reports whether the caller should tear
// down resources.
func (l *lifecycle) beginStop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.status {
	case StatusStopping, StatusDestroyed:
		return false
	case StatusUninitialized:
		l.status = StatusDestroyed
		return false
	default:
		l.status = StatusStopping
		return true
	}
}

func (l *lifecycle) requireRunning() error {
	switch l.Status() {
	case StatusRunning:
		return nil
	case StatusStopping, StatusDestroyed:
		return ErrStopped
	default:
		return ErrNotStarted
	}
}

// dispatcher routes hooked events to the handler table while input
// collection is enabled.
type dispatcher struct {
	handlers   HandlerTable
	collecting atomic.Bool
	releaseKey uint32
	log        atomic.Pointer[logging.Logger]

	// onRelease runs after the release key turned collection off.
	onRelease func()
}

func (d *dispatcher) logger() *logging.Logger {
	if l := d.log.Load(); l != nil {
		return l
	}
	return logging.NopLogger()
}

// key delivers ev and reports the callback result. delivered is false when
// collection is off or no handler is installed.
func (d *dispatcher) key(ev KeyEvent) (result int, delivered bool) {
	if !d.collecting.Load() {
		return PassThrough, false
	}

	if d.releaseKey != 0 && ev.KeyCode == d.releaseKey {
		if ev.Type.IsKeyDown() && d.collecting.CompareAndSwap(true, false) {
			d.logger().Info("release key pressed, input collection off", "key_code", ev.KeyCode)
			if d.onRelease != nil {
				d.onRelease()
			}
		}
		return Swallow, false
	}

	return d.handlers.DispatchKeyboard(ev)
}

func (d *dispatcher) mouse(ev MouseEvent) (result int, delivered bool) {
	if !d.collecting.Load() {
		return PassThrough, false
	}
	return d.handlers.DispatchMouse(ev)
}
