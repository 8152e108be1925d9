// Package hotkey matches key combinations against the keyboard events
// delivered by the overlay capability.
package hotkey

import (
	"fmt"
	"strings"
	"sync"
)

// Manager handles hotkey registration and matching
type Manager struct {
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // keys currently held down
}

type registeredHotkey struct {
	parts    []string // e.g., ["CTRL", "SHIFT", "F12"]
	original string
	callback func()
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{
		currentState: make(map[string]bool),
	}
}

// Parse splits a hotkey string such as "Ctrl+Shift+F12" into upper-case
// key names and checks every name is known.
func Parse(hotkeyStr string) ([]string, error) {
	parts := strings.Split(strings.ToUpper(hotkeyStr), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("hotkey %q has an empty key", hotkeyStr)
		}
		if !IsKnownKey(p) {
			return nil, fmt.Errorf("hotkey %q: unknown key %q", hotkeyStr, p)
		}
		parts[i] = p
	}
	return parts, nil
}

// Register registers a hotkey string and a callback. An empty string is ignored.
func (m *Manager) Register(hotkeyStr string, callback func()) (int, error) {
	if hotkeyStr == "" {
		return 0, nil
	}

	parts, err := Parse(hotkeyStr)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: hotkeyStr,
		callback: callback,
	})

	return len(m.hotkeys) - 1, nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// HandleKey updates state from a virtual-key code. Unnamed keys are ignored.
func (m *Manager) HandleKey(vk uint32, isDown bool) []string {
	name := KeyName(vk)
	if name == "" {
		return nil
	}
	return m.UpdateState(name, isDown)
}

// UpdateState records a key transition and runs the callbacks of every
// hotkey completed by it. Auto-repeat presses of a held key do not
// re-trigger. It returns the hotkeys that fired.
func (m *Manager) UpdateState(key string, isDown bool) []string {
	key = strings.ToUpper(key)

	m.mu.Lock()
	wasDown := m.currentState[key]
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}
	m.mu.Unlock()

	if !isDown || wasDown {
		return nil
	}
	return m.checkMatches(key)
}

func (m *Manager) checkMatches(pressed string) []string {
	m.mu.RLock()
	var matched []*registeredHotkey
	for _, hk := range m.hotkeys {
		match, involved := true, false
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
			if part == pressed {
				involved = true
			}
		}
		if match && involved {
			matched = append(matched, hk)
		}
	}
	m.mu.RUnlock()

	fired := make([]string, 0, len(matched))
	for _, hk := range matched {
		hk.callback()
		fired = append(fired, hk.original)
	}
	return fired
}
