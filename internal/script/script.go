// Package script drives the overlay capability through the fixed
// input-collection demonstration: a chain of delayed steps that installs
// the input callbacks, toggles collection on and off, and shuts the
// capability down after the chain completes or the global timeout fires,
// whichever comes first.
package script

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"overlayctl/internal/hotkey"
	"overlayctl/internal/logging"
	"overlayctl/internal/overlay"
	"overlayctl/internal/schedule"
)

// Step is the session's position in the chain. It only moves forward.
type Step int

const (
	StepInit Step = iota
	Step1
	Step2
	Step3
	Step4
	StepFinishing
	StepStopped
)

func (s Step) String() string {
	switch s {
	case StepInit:
		return "init"
	case Step1:
		return "step1"
	case Step2:
		return "step2"
	case Step3:
		return "step3"
	case Step4:
		return "step4"
	case StepFinishing:
		return "finishing"
	case StepStopped:
		return "stopped"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Delays are the waits between the links of the chain.
type Delays struct {
	Initial time.Duration // before step 1
	Step    time.Duration // between steps
	Finish  time.Duration // between "Step finished." and shutdown
	Timeout time.Duration // hard stop, from Run
}

// Options configures a Script.
type Options struct {
	LogPath string
	Delays  Delays

	// ToggleKeyCode switches input collection off when the keyboard callback sees it.
	ToggleKeyCode uint32

	// Directives returned by the callbacks
	MouseResult    int
	KeyboardResult int

	// FinishHotkey ends the session early. Empty disables it.
	FinishHotkey string
}

// DefaultOptions returns the demonstration timings and callback results.
func DefaultOptions(logPath string) Options {
	return Options{
		LogPath: logPath,
		Delays: Delays{
			Initial: 2 * time.Second,
			Step:    5 * time.Second,
			Finish:  2 * time.Second,
			Timeout: 25 * time.Second,
		},
		ToggleKeyCode:  overlay.VKUp,
		MouseResult:    3,
		KeyboardResult: 1,
	}
}

// Observer receives session events. Methods are called from the loop
// goroutine (steps) and from capability threads (input), so they must not
// block.
type Observer interface {
	StepChanged(sessionID string, step Step)
	MouseInput(sessionID string, ev overlay.MouseEvent, result int)
	KeyInput(sessionID string, ev overlay.KeyEvent, result int)
	// InputCollectionChanged follows every toggle the capability accepted.
	InputCollectionChanged(sessionID string, enabled bool)
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	SessionID       string        `json:"session_id"`
	LogPath         string        `json:"log_path"`
	Step            string        `json:"step"`
	Status          string        `json:"status"`
	InputCollection bool          `json:"input_collection"`
	Elapsed         time.Duration `json:"elapsed_ns"`
}

// Script is one run of the step chain against a capability.
type Script struct {
	id      string
	cap     overlay.Capability
	loop    *schedule.Loop
	log     *logging.Logger
	opts    Options
	hotkeys *hotkey.Manager

	mu        sync.RWMutex
	step      Step
	startedAt time.Time
	observers []Observer

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Script. The loop must not be running yet; Run drives it.
func New(capability overlay.Capability, loop *schedule.Loop, log *logging.Logger, opts Options) *Script {
	if log == nil {
		log = logging.NopLogger()
	}
	id := uuid.New().String()
	return &Script{
		id:      id,
		cap:     capability,
		loop:    loop,
		log:     log.WithSession(id),
		opts:    opts,
		hotkeys: hotkey.NewManager(),
		done:    make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Script) ID() string {
	return s.id
}

// AddObserver registers o for session events. Call before Run.
func (s *Script) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Step returns the current step.
func (s *Script) Step() Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.step
}

// Done is closed once the session has stopped.
func (s *Script) Done() <-chan struct{} {
	return s.done
}

// Snapshot reports the current session state.
func (s *Script) Snapshot() Snapshot {
	s.mu.RLock()
	step, startedAt := s.step, s.startedAt
	s.mu.RUnlock()

	var elapsed time.Duration
	if !startedAt.IsZero() {
		elapsed = s.loop.Clock().Now().Sub(startedAt)
	}
	return Snapshot{
		SessionID:       s.id,
		LogPath:         s.opts.LogPath,
		Step:            step.String(),
		Status:          s.cap.Status().String(),
		InputCollection: s.cap.InputCollection(),
		Elapsed:         elapsed,
	}
}

// Start starts the capability and logs its status.
func (s *Script) Start() error {
	s.log.Info("Starting overlay...")
	if err := s.cap.Start(s.opts.LogPath); err != nil {
		return fmt.Errorf("failed to start overlay: %w", err)
	}
	s.log.Info(fmt.Sprintf("Overlay status: %s", s.cap.Status()))

	if _, err := s.hotkeys.Register(s.opts.FinishHotkey, s.Finish); err != nil {
		s.log.Warn("finish hotkey disabled", "hotkey", s.opts.FinishHotkey, "error", err)
	}
	return nil
}

// Run schedules the chain and the global timeout, then drives the loop
// until the session stops. Cancelling ctx stops the session early and Run
// returns ctx.Err().
//
// A scheduling failure is logged once and treated as completion.
func (s *Script) Run(ctx context.Context) error {
	if err := s.schedule(); err != nil {
		s.log.Error(fmt.Sprintf("An error occurred: %v", err))
		s.scriptFinished()
		return nil
	}

	go func() {
		select {
		case <-ctx.Done():
			s.log.Info("run cancelled", "reason", context.Cause(ctx))
			s.Stop()
		case <-s.done:
		}
	}()

	err := s.loop.Run(context.Background())
	s.stop()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Script) schedule() error {
	s.mu.Lock()
	s.startedAt = s.loop.Clock().Now()
	s.mu.Unlock()

	if _, err := s.loop.After(s.opts.Delays.Initial, "step1", s.step1); err != nil {
		return fmt.Errorf("failed to schedule step 1: %w", err)
	}
	if _, err := s.loop.After(s.opts.Delays.Timeout, "script timeout", s.scriptFinished); err != nil {
		return fmt.Errorf("failed to schedule script timeout: %w", err)
	}
	return nil
}

// Finish ends the session early, as if the chain had completed. It is
// safe to call from any goroutine.
func (s *Script) Finish() {
	if err := s.loop.Post(s.scriptFinished); err != nil {
		s.log.Debug("finish ignored", "error", err)
	}
}

// Stop shuts the session down without the "Script finished." record.
// It is safe to call from any goroutine and more than once.
func (s *Script) Stop() {
	if err := s.loop.Post(s.stop); err != nil {
		s.stop()
	}
}

// SetInputCollection toggles input collection outside the chain.
func (s *Script) SetInputCollection(enabled bool) {
	err := s.loop.Post(func() {
		if s.Step() >= StepFinishing {
			return
		}
		s.switchInput(enabled)
	})
	if err != nil {
		s.log.Debug("input toggle ignored", "error", err)
	}
}

func (s *Script) scriptFinished() {
	if s.Step() == StepStopped {
		return
	}
	s.advance(StepFinishing)
	s.log.Info("Script finished.")
	s.stop()
}

// stop is the single terminal path: it cancels every pending timer so the
// losing side of the timeout/chain race never fires.
func (s *Script) stop() {
	s.stopOnce.Do(func() {
		if n := s.loop.CancelAll(); n > 0 {
			s.log.Debug("cancelled pending timers", "count", n)
		}

		if s.cap.Status() == overlay.StatusRunning {
			s.switchInput(false)
		}

		s.log.Info("Stopping overlay...")
		if err := s.cap.Stop(); err != nil {
			s.log.Warn("overlay stop failed", "error", err)
		}
		s.log.Info("Overlay stopped. Exiting...")

		s.advance(StepStopped)
		s.loop.Close()
		close(s.done)
	})
}

// advance moves to next if it is later in the chain.
func (s *Script) advance(next Step) bool {
	s.mu.Lock()
	if next <= s.step {
		s.mu.Unlock()
		return false
	}
	s.step = next
	observers := s.observers
	s.mu.Unlock()

	s.log.Debug("step changed", "step", next.String())
	for _, o := range observers {
		o.StepChanged(s.id, next)
	}
	return true
}

func (s *Script) switchInput(enabled bool) {
	if err := s.cap.SwitchInputCollection(enabled); err != nil {
		s.log.Warn("failed to switch input collection", "enabled", enabled, "error", err)
		return
	}
	for _, o := range s.observersSnapshot() {
		o.InputCollectionChanged(s.id, enabled)
	}
}

func (s *Script) next(d time.Duration, name string, fn func()) {
	if _, err := s.loop.After(d, name, fn); err != nil {
		s.log.Warn("failed to schedule", "next", name, "error", err)
	}
}

func (s *Script) observersSnapshot() []Observer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observers
}
