package tray

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"overlayctl/internal/overlay"
	"overlayctl/internal/script"
)

type fakeControls struct {
	mu       sync.Mutex
	snap     script.Snapshot
	toggles  []bool
	finished int

	// menu receives accepted switches, as the script's observer list would
	menu     *SessionMenu
	ignoring bool
}

func (f *fakeControls) Snapshot() script.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeControls) SetInputCollection(enabled bool) {
	f.mu.Lock()
	f.toggles = append(f.toggles, enabled)
	if f.ignoring {
		f.mu.Unlock()
		return
	}
	f.snap.InputCollection = enabled
	menu := f.menu
	f.mu.Unlock()

	if menu != nil {
		menu.InputCollectionChanged("id", enabled)
	}
}

func (f *fakeControls) Finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
}

func TestMenuItems(t *testing.T) {
	tr := New("overlayctl", "idle", nil)
	a := tr.AddMenuItem("A", "", nil)
	tr.AddSeparator()
	b := tr.AddCheckbox("B", "tip", true, nil)

	if a != 0 || b != 2 {
		t.Errorf("ids = (%d, %d), want (0, 2)", a, b)
	}
	items := tr.Items()
	if len(items) != 3 || items[1] != nil {
		t.Fatalf("Items() = %v, want separator at index 1", items)
	}
	if !items[2].Checkable || !tr.Checked(b) {
		t.Error("checkbox not checkable or not initially checked")
	}

	tr.SetItemChecked(a, true)
	if tr.Checked(a) {
		t.Error("plain item became checked")
	}
	tr.SetItemChecked(b, false)
	if tr.Checked(b) {
		t.Error("SetItemChecked(false) had no effect")
	}

	// Out of range and separator clicks are ignored.
	tr.Click(-1)
	tr.Click(1)
	tr.Click(99)
}

func TestSessionMenu(t *testing.T) {
	ctrl := &fakeControls{snap: script.Snapshot{Status: "running"}}
	m := NewSessionMenu(ctrl, New("overlayctl", "idle", nil))
	ctrl.menu = m

	m.Click(m.EnableID())
	if !m.Checked(m.CollectID()) {
		t.Error("checkbox not checked after enable")
	}
	m.Click(m.DisableID())
	if m.Checked(m.CollectID()) {
		t.Error("checkbox still checked after disable")
	}
	m.Click(m.FinishID())

	ctrl.mu.Lock()
	toggles, finished := ctrl.toggles, ctrl.finished
	ctrl.mu.Unlock()
	if len(toggles) != 2 || !toggles[0] || toggles[1] {
		t.Errorf("toggles = %v, want [true false]", toggles)
	}
	if finished != 1 {
		t.Errorf("finish calls = %d, want 1", finished)
	}
}

func TestSessionMenuIgnoredToggle(t *testing.T) {
	ctrl := &fakeControls{snap: script.Snapshot{Status: "running"}, ignoring: true}
	m := NewSessionMenu(ctrl, New("overlayctl", "idle", nil))
	ctrl.menu = m

	m.Click(m.EnableID())
	if m.Checked(m.CollectID()) {
		t.Error("checkbox ticked for a switch the session ignored")
	}
	ctrl.mu.Lock()
	requests := len(ctrl.toggles)
	ctrl.mu.Unlock()
	if got := requests; got != 1 {
		t.Errorf("toggle requests = %d, want 1", got)
	}
}

func TestSessionMenuFollowsSteps(t *testing.T) {
	ctrl := &fakeControls{snap: script.Snapshot{Status: "running", InputCollection: true}}
	m := NewSessionMenu(ctrl, New("overlayctl", "idle", nil))

	m.StepChanged("id", script.Step2)
	if got, want := m.Tooltip(), "overlayctl: step2 (running)"; got != want {
		t.Errorf("Tooltip() = %q, want %q", got, want)
	}
	if !m.Checked(m.CollectID()) {
		t.Error("checkbox not following collection state")
	}

	ctrl.mu.Lock()
	ctrl.snap.InputCollection = false
	ctrl.mu.Unlock()
	m.KeyInput("id", overlay.KeyEvent{Type: overlay.EventKeyUp, KeyCode: overlay.VKEscape}, 1)
	if m.Checked(m.CollectID()) {
		t.Error("checkbox not cleared after key released collection")
	}
}

func TestRunReturnsAfterStop(t *testing.T) {
	if Supported() {
		t.Skip("native tray needs a desktop session")
	}
	tr := New("overlayctl", "idle", nil)

	done := make(chan struct{})
	go func() {
		tr.Run()
		close(done)
	}()
	tr.Stop()
	tr.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

type fakeNative struct {
	mu    sync.Mutex
	quits int
}

func (f *fakeNative) run(t *Tray) {
	if t.ready() {
		f.quit()
	}
	<-t.quitCh
}

func (f *fakeNative) quit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quits++
}

func (f *fakeNative) setTooltip(string)    {}
func (f *fakeNative) setChecked(int, bool) {}

func (f *fakeNative) quitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quits
}

func TestStopBeforeRun(t *testing.T) {
	tr := New("overlayctl", "idle", nil)
	fn := &fakeNative{}
	tr.native = fn

	tr.Stop()
	if got := fn.quitCount(); got != 0 {
		t.Errorf("native quit calls before Run = %d, want 0", got)
	}

	done := make(chan struct{})
	go func() {
		tr.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return for a tray stopped before Run")
	}
	if got := fn.quitCount(); got != 1 {
		t.Errorf("native quit calls = %d, want 1", got)
	}
}

func TestStopWhileRunning(t *testing.T) {
	tr := New("overlayctl", "idle", nil)
	fn := &fakeNative{}
	tr.native = fn

	done := make(chan struct{})
	go func() {
		tr.Run()
		close(done)
	}()
	waitRunning(t, tr)

	tr.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if got := fn.quitCount(); got != 1 {
		t.Errorf("native quit calls = %d, want 1", got)
	}
}

func waitRunning(t *testing.T, tr *Tray) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tr.mu.Lock()
		running := tr.running
		tr.mu.Unlock()
		if running {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("tray never became ready")
}

func TestIcon(t *testing.T) {
	ico := icon()

	if got := binary.LittleEndian.Uint16(ico[2:4]); got != 1 {
		t.Errorf("ICO type = %d, want 1", got)
	}
	size := binary.LittleEndian.Uint32(ico[14:18])
	offset := binary.LittleEndian.Uint32(ico[18:22])
	if int(offset+size) != len(ico) {
		t.Errorf("offset+size = %d, want %d", offset+size, len(ico))
	}
	if got := binary.LittleEndian.Uint32(ico[22:26]); got != 40 {
		t.Errorf("DIB header size = %d, want 40", got)
	}
}
