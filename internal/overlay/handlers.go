package overlay

import "sync"

// HandlerTable holds exactly one handler per event class.
// Replacing a handler is explicit and returns the previous one.
type HandlerTable struct {
	mu       sync.RWMutex
	mouse    MouseCallback
	keyboard KeyboardCallback
}

// ReplaceMouse installs cb and returns the handler it replaced.
func (h *HandlerTable) ReplaceMouse(cb MouseCallback) MouseCallback {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.mouse
	h.mouse = cb
	return prev
}

// ReplaceKeyboard installs cb and returns the handler it replaced.
func (h *HandlerTable) ReplaceKeyboard(cb KeyboardCallback) KeyboardCallback {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.keyboard
	h.keyboard = cb
	return prev
}

// Clear removes both handlers.
func (h *HandlerTable) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mouse = nil
	h.keyboard = nil
}

// DispatchMouse calls the mouse handler. ok is false when none is installed.
func (h *HandlerTable) DispatchMouse(ev MouseEvent) (result int, ok bool) {
	h.mu.RLock()
	cb := h.mouse
	h.mu.RUnlock()

	if cb == nil {
		return PassThrough, false
	}
	return cb(ev), true
}

// DispatchKeyboard calls the keyboard handler. ok is false when none is installed.
func (h *HandlerTable) DispatchKeyboard(ev KeyEvent) (result int, ok bool) {
	h.mu.RLock()
	cb := h.keyboard
	h.mu.RUnlock()

	if cb == nil {
		return PassThrough, false
	}
	return cb(ev), true
}
