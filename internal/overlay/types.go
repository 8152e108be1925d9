// Package overlay defines the overlay input capability and its backends.
//
// A capability has a linear lifecycle (uninitialized, started, stopped),
// an input-collection switch and one callback slot per event class. The
// integer a callback returns is a handling directive: zero lets the event
// through, anything else asks the backend to swallow it.
package overlay

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by capabilities
var (
	ErrNotStarted  = errors.New("overlay: capability not started")
	ErrStopped     = errors.New("overlay: capability stopped")
	ErrUnsupported = errors.New("overlay: native input hooks not supported on this platform")
)

// Status mirrors the native overlay thread state.
type Status int

const (
	StatusUninitialized Status = 0
	StatusStarting      Status = 0x0020
	StatusRunning       Status = 0x0040
	StatusStopping      Status = 0x0080
	StatusDestroyed     Status = 0x0100
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("unknown(0x%X)", int(s))
	}
}

// EventType is the window message that produced an input event.
type EventType uint32

const (
	EventKeyDown       EventType = 0x0100
	EventKeyUp         EventType = 0x0101
	EventSysKeyDown    EventType = 0x0104
	EventSysKeyUp      EventType = 0x0105
	EventMouseMove     EventType = 0x0200
	EventLButtonDown   EventType = 0x0201
	EventLButtonUp     EventType = 0x0202
	EventRButtonDown   EventType = 0x0204
	EventRButtonUp     EventType = 0x0205
	EventMButtonDown   EventType = 0x0207
	EventMButtonUp     EventType = 0x0208
	EventMouseWheel    EventType = 0x020A
	EventXButtonDown   EventType = 0x020B
	EventXButtonUp     EventType = 0x020C
	EventMouseHorWheel EventType = 0x020E
)

// IsKeyDown reports whether t is a key press.
func (t EventType) IsKeyDown() bool {
	return t == EventKeyDown || t == EventSysKeyDown
}

// IsKeyUp reports whether t is a key release.
func (t EventType) IsKeyUp() bool {
	return t == EventKeyUp || t == EventSysKeyUp
}

// Virtual-key codes the capability and its callers care about
const (
	VKEscape uint32 = 0x1B
	VKUp     uint32 = 0x26
)

// Handling directives
const (
	PassThrough = 0
	Swallow     = 1
)

// MouseEvent is a pointer event delivered to the mouse callback.
type MouseEvent struct {
	Type     EventType `json:"event_type"`
	X        int32     `json:"x"`
	Y        int32     `json:"y"`
	Modifier uint32    `json:"modifier"`
}

// KeyEvent is a keyboard event delivered to the keyboard callback.
type KeyEvent struct {
	Type    EventType `json:"event_type"`
	KeyCode uint32    `json:"key_code"`
}

// MouseCallback handles a mouse event and returns a handling directive.
type MouseCallback func(MouseEvent) int

// KeyboardCallback handles a keyboard event and returns a handling directive.
type KeyboardCallback func(KeyEvent) int

// Capability is the overlay input capability driven by the step chain.
type Capability interface {
	// Start initializes the capability, writing its own log to logPath.
	// Calling Start again while started is a no-op; after Stop it fails.
	Start(logPath string) error

	// Status returns the lifecycle state without side effects.
	Status() Status

	// Stop releases hooks and resources. It is safe to call repeatedly.
	Stop() error

	// SwitchInputCollection enables or disables delivery of live events to
	// the registered callbacks. It takes effect before the next event.
	SwitchInputCollection(enabled bool) error

	// InputCollection reports whether live events are being delivered.
	InputCollection() bool

	// SetMouseCallback installs cb, replacing any previous mouse handler.
	SetMouseCallback(cb MouseCallback)

	// SetKeyboardCallback installs cb, replacing any previous keyboard handler.
	SetKeyboardCallback(cb KeyboardCallback)
}

// Synthetic is a scripted input event replayed by the simulated backend.
// Exactly one of Mouse and Key is set.
type Synthetic struct {
	At    time.Duration
	Mouse *MouseEvent
	Key   *KeyEvent
}

// Options configures a capability backend.
type Options struct {
	// ReleaseKeyCode releases input collection when pressed while collecting.
	// Zero disables the shortcut.
	ReleaseKeyCode uint32

	// LogLevel is the level of the capability's own log file.
	LogLevel string
}

// Backend names accepted by Open
const (
	BackendAuto      = "auto"
	BackendNative    = "native"
	BackendSimulated = "sim"
)

// ValidBackends returns the accepted backend names.
func ValidBackends() []string {
	return []string{BackendAuto, BackendNative, BackendSimulated}
}

// Open creates the named backend. BackendAuto selects the native hooks
// where they are supported and the simulated backend otherwise.
func Open(backend string, opts Options) (Capability, error) {
	switch backend {
	case BackendSimulated:
		return NewSimulated(opts), nil
	case BackendNative:
		return newNative(opts)
	case BackendAuto, "":
		c, err := newNative(opts)
		if errors.Is(err, ErrUnsupported) {
			return NewSimulated(opts), nil
		}
		return c, err
	default:
		return nil, fmt.Errorf("overlay: unknown backend %q", backend)
	}
}
