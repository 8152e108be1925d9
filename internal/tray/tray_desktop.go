//go:build windows || darwin

package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

type systrayNative struct {
	mu    sync.Mutex
	items map[int]*systray.MenuItem
}

func newNative() native {
	return &systrayNative{items: make(map[int]*systray.MenuItem)}
}

// Supported reports whether a native tray is available on this platform.
func Supported() bool { return true }

func (n *systrayNative) run(t *Tray) {
	systray.Run(func() { n.setupMenu(t) }, func() { t.setRunning(false) })
}

// setupMenu is called when systray is ready
func (n *systrayNative) setupMenu(t *Tray) {
	systray.SetTitle(t.title)
	systray.SetTooltip(t.Tooltip())
	systray.SetIcon(icon())

	for _, mi := range t.Items() {
		if mi == nil {
			systray.AddSeparator()
			continue
		}

		var item *systray.MenuItem
		if mi.Checkable {
			item = systray.AddMenuItemCheckbox(mi.Title, mi.Tooltip, mi.checked)
		} else {
			item = systray.AddMenuItem(mi.Title, mi.Tooltip)
		}
		n.mu.Lock()
		n.items[mi.ID] = item
		n.mu.Unlock()

		// Handle clicks in goroutine
		go func(id int, item *systray.MenuItem) {
			for {
				select {
				case <-item.ClickedCh:
					t.Click(id)
				case <-t.quitCh:
					return
				}
			}
		}(mi.ID, item)
	}

	n.mu.Lock()
	count := len(n.items)
	n.mu.Unlock()
	t.log.Debug("tray ready", "items", count)

	// systray.Quit only reaches the tray thread once its window exists.
	if t.ready() {
		systray.Quit()
	}
}

func (n *systrayNative) quit() {
	systray.Quit()
}

func (n *systrayNative) setTooltip(tooltip string) {
	systray.SetTooltip(tooltip)
}

func (n *systrayNative) setChecked(id int, checked bool) {
	n.mu.Lock()
	item := n.items[id]
	n.mu.Unlock()
	if item == nil {
		return
	}
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}
