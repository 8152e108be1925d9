package overlay

import (
	"context"
	"fmt"
	"sort"
	"time"

	"overlayctl/internal/logging"
)

// Simulated is an in-process capability. Events are injected by callers
// or replayed from a script instead of being hooked from the OS.
type Simulated struct {
	lifecycle
	d dispatcher

	logLevel string
	file     *logging.Logger
}

// NewSimulated creates a simulated capability.
func NewSimulated(opts Options) *Simulated {
	return &Simulated{
		d:        dispatcher{releaseKey: opts.ReleaseKeyCode},
		logLevel: opts.LogLevel,
	}
}

// Start opens the capability log at logPath and moves to running.
func (s *Simulated) Start(logPath string) error {
	started, err := s.begin()
	if err != nil || started {
		return err
	}

	log := logging.NopLogger()
	if logPath != "" {
		log, err = logging.NewFileLogger(logPath, s.logLevel)
		if err != nil {
			s.set(StatusUninitialized)
			return fmt.Errorf("overlay: start: %w", err)
		}
	}
	s.file = log
	s.d.log.Store(log.With("backend", BackendSimulated))

	s.set(StatusRunning)
	s.d.logger().Info("capability started", "log_path", logPath)
	return nil
}

// Stop releases input collection and closes the capability log.
func (s *Simulated) Stop() error {
	if !s.beginStop() {
		return nil
	}

	s.d.collecting.Store(false)
	s.d.handlers.Clear()
	s.d.logger().Info("capability stopped")

	var err error
	if s.file != nil {
		err = s.file.Close()
	}
	s.set(StatusDestroyed)
	return err
}

// SwitchInputCollection toggles delivery of injected events.
func (s *Simulated) SwitchInputCollection(enabled bool) error {
	if err := s.requireRunning(); err != nil {
		return err
	}
	s.d.collecting.Store(enabled)
	s.d.logger().Info("input collection switched", "enabled", enabled)
	return nil
}

// InputCollection reports whether injected events reach the callbacks.
func (s *Simulated) InputCollection() bool {
	return s.d.collecting.Load()
}

// SetMouseCallback installs the mouse handler.
func (s *Simulated) SetMouseCallback(cb MouseCallback) {
	s.d.handlers.ReplaceMouse(cb)
}

// SetKeyboardCallback installs the keyboard handler.
func (s *Simulated) SetKeyboardCallback(cb KeyboardCallback) {
	s.d.handlers.ReplaceKeyboard(cb)
}

// InjectMouse delivers ev as if it had been hooked.
func (s *Simulated) InjectMouse(ev MouseEvent) (result int, delivered bool) {
	if s.Status() != StatusRunning {
		return PassThrough, false
	}
	return s.d.mouse(ev)
}

// InjectKey delivers ev as if it had been hooked.
func (s *Simulated) InjectKey(ev KeyEvent) (result int, delivered bool) {
	if s.Status() != StatusRunning {
		return PassThrough, false
	}
	return s.d.key(ev)
}

// Play injects events at their offsets from the moment Play is called.
// It returns when every event was injected, the capability stopped, or
// ctx is done.
func (s *Simulated) Play(ctx context.Context, events []Synthetic) error {
	sorted := make([]Synthetic, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })

	begin := time.Now()
	for _, ev := range sorted {
		wait := time.Until(begin.Add(ev.At))
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		switch s.Status() {
		case StatusStopping, StatusDestroyed:
			return nil
		}

		switch {
		case ev.Key != nil:
			result, delivered := s.InjectKey(*ev.Key)
			s.d.logger().Debug("synthetic key", "key_code", ev.Key.KeyCode, "delivered", delivered, "result", result)
		case ev.Mouse != nil:
			result, delivered := s.InjectMouse(*ev.Mouse)
			s.d.logger().Debug("synthetic mouse", "x", ev.Mouse.X, "y", ev.Mouse.Y, "delivered", delivered, "result", result)
		}
	}
	return nil
}
