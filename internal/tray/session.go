package tray

import (
	"fmt"

	"overlayctl/internal/overlay"
	"overlayctl/internal/script"
)

// Controls is the part of a running session the tray menu drives.
type Controls interface {
	Snapshot() script.Snapshot
	SetInputCollection(enabled bool)
	Finish()
}

// SessionMenu is the tray menu for one session. It follows step changes
// to keep the tooltip and the collection checkbox current.
type SessionMenu struct {
	*Tray
	controls Controls

	collectID int
	enableID  int
	disableID int
	finishID  int
}

var _ script.Observer = (*SessionMenu)(nil)

// NewSessionMenu adds the session items to t.
func NewSessionMenu(controls Controls, t *Tray) *SessionMenu {
	m := &SessionMenu{Tray: t, controls: controls}

	m.collectID = t.AddCheckbox("Input collection", "Whether callbacks receive live input", false, nil)
	t.AddSeparator()
	// The checkbox follows InputCollectionChanged, not the request: a
	// finishing session ignores it.
	m.enableID = t.AddMenuItem("Enable input collection", "", func() {
		controls.SetInputCollection(true)
	})
	m.disableID = t.AddMenuItem("Disable input collection", "", func() {
		controls.SetInputCollection(false)
	})
	t.AddSeparator()
	m.finishID = t.AddMenuItem("Finish", "End the session now", controls.Finish)

	return m
}

// EnableID returns the id of the enable item.
func (m *SessionMenu) EnableID() int { return m.enableID }

// DisableID returns the id of the disable item.
func (m *SessionMenu) DisableID() int { return m.disableID }

// FinishID returns the id of the finish item.
func (m *SessionMenu) FinishID() int { return m.finishID }

// CollectID returns the id of the collection checkbox.
func (m *SessionMenu) CollectID() int { return m.collectID }

// StepChanged refreshes the tooltip and checkbox.
func (m *SessionMenu) StepChanged(_ string, step script.Step) {
	snap := m.controls.Snapshot()
	m.SetTooltip(fmt.Sprintf("overlayctl: %s (%s)", step, snap.Status))
	m.SetItemChecked(m.collectID, snap.InputCollection)
}

// MouseInput is ignored by the tray.
func (m *SessionMenu) MouseInput(string, overlay.MouseEvent, int) {}

// KeyInput refreshes the checkbox, since a key may have released collection.
func (m *SessionMenu) KeyInput(string, overlay.KeyEvent, int) {
	m.SetItemChecked(m.collectID, m.controls.Snapshot().InputCollection)
}

// InputCollectionChanged ticks the checkbox once a switch took effect.
func (m *SessionMenu) InputCollectionChanged(_ string, enabled bool) {
	m.SetItemChecked(m.collectID, enabled)
}
