//go:build windows

package overlay

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"overlayctl/internal/logging"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPeekMessage         = user32.NewProc("PeekMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessage     = user32.NewProc("DispatchMessageW")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit         = 0x0012
	wmUser         = 0x0400
	wmApp          = 0x8000
	wmTakeInput    = wmApp + 1
	wmReleaseInput = wmApp + 2

	pmNoRemove = 0x0000

	hookThreadExitTimeout = 2 * time.Second
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msllHookStruct struct {
	Pt          struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type winMsg struct {
	Hwnd    windows.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// Low-level hook procedures carry no user data, so the running Native is global.
var activeNative atomic.Pointer[Native]

var (
	keyboardHookCallback = windows.NewCallback(keyboardHookProc)
	mouseHookCallback    = windows.NewCallback(mouseHookProc)
)

// Native installs WH_KEYBOARD_LL and WH_MOUSE_LL hooks on a dedicated,
// OS-locked thread. Hooks exist only while input collection is enabled.
type Native struct {
	lifecycle
	d dispatcher

	logLevel string
	file     *logging.Logger

	threadID atomic.Uint32
	exited   chan struct{}

	// touched only on the hook thread
	keyboardHook uintptr
	mouseHook    uintptr
}

func newNative(opts Options) (Capability, error) {
	n := &Native{logLevel: opts.LogLevel}
	n.d.releaseKey = opts.ReleaseKeyCode
	n.d.onRelease = func() { n.post(wmReleaseInput) }
	return n, nil
}

// Start opens the capability log and starts the hook thread.
func (n *Native) Start(logPath string) error {
	started, err := n.begin()
	if err != nil || started {
		return err
	}

	log := logging.NopLogger()
	if logPath != "" {
		log, err = logging.NewFileLogger(logPath, n.logLevel)
		if err != nil {
			n.set(StatusUninitialized)
			return fmt.Errorf("overlay: start: %w", err)
		}
	}
	n.file = log
	n.d.log.Store(log.With("backend", BackendNative))

	if !activeNative.CompareAndSwap(nil, n) {
		_ = log.Close()
		n.set(StatusUninitialized)
		return errors.New("overlay: another native capability is already running")
	}

	ready := make(chan struct{})
	n.exited = make(chan struct{})
	go n.hookThread(ready)
	<-ready

	n.set(StatusRunning)
	n.d.logger().Info("capability started", "log_path", logPath, "thread_id", n.threadID.Load())
	return nil
}

func (n *Native) hookThread(ready chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(n.exited)

	n.threadID.Store(windows.GetCurrentThreadId())

	// Force the thread message queue into existence before anyone posts to it.
	var msg winMsg
	procPeekMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, wmUser, wmUser, pmNoRemove)
	close(ready)

	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}

		switch msg.Message {
		case wmTakeInput:
			n.hook()
		case wmReleaseInput:
			n.unhook()
		default:
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
			procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
		}
	}

	n.unhook()
}

func (n *Native) hook() {
	if n.keyboardHook != 0 {
		return
	}
	hMod, _, _ := procGetModuleHandle.Call(0)

	var err error
	n.keyboardHook, _, err = procSetWindowsHookEx.Call(whKeyboardLL, keyboardHookCallback, hMod, 0)
	if n.keyboardHook == 0 {
		n.d.logger().Error("failed to set keyboard hook", "err", err)
		return
	}
	n.mouseHook, _, err = procSetWindowsHookEx.Call(whMouseLL, mouseHookCallback, hMod, 0)
	if n.mouseHook == 0 {
		n.d.logger().Error("failed to set mouse hook", "err", err)
		procUnhookWindowsHookEx.Call(n.keyboardHook)
		n.keyboardHook = 0
		return
	}
	n.d.logger().Info("input hooks installed")
}

func (n *Native) unhook() {
	if n.keyboardHook != 0 {
		procUnhookWindowsHookEx.Call(n.keyboardHook)
		n.keyboardHook = 0
	}
	if n.mouseHook != 0 {
		procUnhookWindowsHookEx.Call(n.mouseHook)
		n.mouseHook = 0
		n.d.logger().Info("input hooks removed")
	}
}

func (n *Native) post(msg uint32) bool {
	tid := n.threadID.Load()
	if tid == 0 {
		return false
	}
	ret, _, _ := procPostThreadMessage.Call(uintptr(tid), uintptr(msg), 0, 0)
	return ret != 0
}

// Stop removes the hooks and ends the hook thread.
func (n *Native) Stop() error {
	if !n.beginStop() {
		return nil
	}

	n.d.collecting.Store(false)
	n.d.handlers.Clear()

	if n.post(wmQuit) {
		select {
		case <-n.exited:
		case <-time.After(hookThreadExitTimeout):
			n.d.logger().Warn("hook thread did not exit in time")
		}
	}
	activeNative.CompareAndSwap(n, nil)

	n.d.logger().Info("capability stopped")
	var err error
	if n.file != nil {
		err = n.file.Close()
	}
	n.set(StatusDestroyed)
	return err
}

// SwitchInputCollection installs or removes the hooks.
func (n *Native) SwitchInputCollection(enabled bool) error {
	if err := n.requireRunning(); err != nil {
		return err
	}

	n.d.collecting.Store(enabled)
	msg := uint32(wmReleaseInput)
	if enabled {
		msg = wmTakeInput
	}
	if !n.post(msg) {
		return errors.New("overlay: failed to post to hook thread")
	}
	n.d.logger().Info("input collection switched", "enabled", enabled)
	return nil
}

// InputCollection reports whether hooked events reach the callbacks.
func (n *Native) InputCollection() bool {
	return n.d.collecting.Load()
}

// SetMouseCallback installs the mouse handler.
func (n *Native) SetMouseCallback(cb MouseCallback) {
	n.d.handlers.ReplaceMouse(cb)
}

// SetKeyboardCallback installs the keyboard handler.
func (n *Native) SetKeyboardCallback(cb KeyboardCallback) {
	n.d.handlers.ReplaceKeyboard(cb)
}

func keyboardHookProc(nCode, wParam, lParam uintptr) uintptr {
	if n := activeNative.Load(); n != nil && int32(nCode) >= 0 {
		kbd := (*kbdllHookStruct)(unsafe.Pointer(lParam))
		result, _ := n.d.key(KeyEvent{Type: EventType(wParam), KeyCode: kbd.VkCode})
		if result != PassThrough {
			return 1
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return ret
}

func mouseHookProc(nCode, wParam, lParam uintptr) uintptr {
	if n := activeNative.Load(); n != nil && int32(nCode) >= 0 {
		ms := (*msllHookStruct)(unsafe.Pointer(lParam))
		ev := MouseEvent{
			Type:     EventType(wParam),
			X:        ms.Pt.X,
			Y:        ms.Pt.Y,
			Modifier: ms.MouseData,
		}
		// Moves always pass so the cursor keeps tracking.
		result, _ := n.d.mouse(ev)
		if result != PassThrough && ev.Type != EventMouseMove {
			return 1
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return ret
}
