// Package tray provides the optional system tray menu using getlantern/systray.
//
// The menu model (items, callbacks, tooltip) is platform independent; the
// native tray exists on Windows and macOS only. Elsewhere Run logs that the
// tray is unavailable and waits for Stop.
package tray

import (
	"sync"

	"overlayctl/internal/logging"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID        int
	Title     string
	Tooltip   string
	Checkable bool
	Callback  func()

	checked bool
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	title   string
	tooltip string
	items   []*MenuItem // nil entries are separators
	log     *logging.Logger

	native  native
	running bool
	quitCh  chan struct{}
	once    sync.Once
}

// native is the platform tray implementation.
type native interface {
	run(t *Tray)
	quit()
	setTooltip(tooltip string)
	setChecked(id int, checked bool)
}

// New creates a new system tray
func New(title, tooltip string, log *logging.Logger) *Tray {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Tray{
		title:   title,
		tooltip: tooltip,
		log:     log.With("component", "tray"),
		native:  newNative(),
		quitCh:  make(chan struct{}),
	}
}

// AddMenuItem adds a menu item to the tray and returns its id
func (t *Tray) AddMenuItem(title, tooltip string, callback func()) int {
	return t.add(&MenuItem{Title: title, Tooltip: tooltip, Callback: callback})
}

// AddCheckbox adds a checkable menu item
func (t *Tray) AddCheckbox(title, tooltip string, checked bool, callback func()) int {
	return t.add(&MenuItem{Title: title, Tooltip: tooltip, Checkable: true, checked: checked, Callback: callback})
}

func (t *Tray) add(item *MenuItem) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	item.ID = len(t.items)
	t.items = append(t.items, item)
	return item.ID
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil)
}

// Items returns a copy of the menu, separators included as nil.
func (t *Tray) Items() []*MenuItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*MenuItem, len(t.items))
	for i, it := range t.items {
		if it != nil {
			c := *it
			out[i] = &c
		}
	}
	return out
}

// Checked reports the checked state of a menu item
func (t *Tray) Checked(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if it := t.item(id); it != nil {
		return it.checked
	}
	return false
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	it := t.item(id)
	if it == nil || !it.Checkable || it.checked == checked {
		t.mu.Unlock()
		return
	}
	it.checked = checked
	running := t.running
	t.mu.Unlock()

	if running {
		t.native.setChecked(id, checked)
	}
}

// Tooltip returns the current tooltip
func (t *Tray) Tooltip() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tooltip
}

// SetTooltip updates the tray tooltip
func (t *Tray) SetTooltip(tooltip string) {
	t.mu.Lock()
	t.tooltip = tooltip
	running := t.running
	t.mu.Unlock()

	if running {
		t.native.setTooltip(tooltip)
	}
}

// Click runs the callback of a menu item as if it had been selected.
func (t *Tray) Click(id int) {
	t.mu.Lock()
	it := t.item(id)
	var cb func()
	if it != nil {
		cb = it.Callback
	}
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (t *Tray) item(id int) *MenuItem {
	if id < 0 || id >= len(t.items) {
		return nil
	}
	return t.items[id]
}

// Run starts the tray event loop (blocks until Stop)
func (t *Tray) Run() {
	t.native.run(t)
}

// Stop stops the tray. It is safe to call more than once, and before Run:
// a tray stopped early quits as soon as it becomes ready.
func (t *Tray) Stop() {
	t.once.Do(func() {
		close(t.quitCh)

		t.mu.Lock()
		running := t.running
		t.mu.Unlock()
		if running {
			t.native.quit()
		}
	})
}

// ready marks the native tray as running and reports whether Stop already
// happened, in which case the caller must quit the native loop itself.
func (t *Tray) ready() (stopped bool) {
	t.setRunning(true)
	select {
	case <-t.quitCh:
		return true
	default:
		return false
	}
}

func (t *Tray) setRunning(running bool) {
	t.mu.Lock()
	t.running = running
	t.mu.Unlock()
}

// icon returns a 16x16 32-bit ICO: a filled square with a one-pixel border.
func icon() []byte {
	const (
		size      = 16
		dibHeader = 40
		pixels    = size * size * 4
		mask      = size * 4 // 1bpp AND mask, rows padded to 32 bits
		offset    = 6 + 16
	)
	ico := make([]byte, offset+dibHeader+pixels+mask)

	// ICONDIR
	copy(ico[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// ICONDIRENTRY
	copy(ico[6:22], []byte{
		size, size, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		byte((dibHeader + pixels + mask) & 0xFF), byte((dibHeader + pixels + mask) >> 8), 0x00, 0x00,
		offset, 0x00, 0x00, 0x00,
	})
	// BITMAPINFOHEADER, height doubled for the mask
	copy(ico[22:62], []byte{
		dibHeader, 0x00, 0x00, 0x00,
		size, 0x00, 0x00, 0x00,
		size * 2, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x20, 0x00,
		0x00, 0x00, 0x00, 0x00,
		byte(pixels & 0xFF), byte(pixels >> 8), 0x00, 0x00,
	})

	// BGRA rows, bottom-up
	px := ico[offset+dibHeader:]
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := (y*size + x) * 4
			border := x == 0 || y == 0 || x == size-1 || y == size-1
			if border {
				px[i], px[i+1], px[i+2] = 0x20, 0x20, 0x20
			} else {
				px[i], px[i+1], px[i+2] = 0xD0, 0x80, 0x20
			}
			px[i+3] = 0xFF
		}
	}
	return ico
}
