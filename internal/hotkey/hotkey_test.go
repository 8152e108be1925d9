package hotkey

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"Ctrl+Shift+F12", []string{"CTRL", "SHIFT", "F12"}, false},
		{" alt + q ", []string{"ALT", "Q"}, false},
		{"Ctrl++Q", nil, true},
		{"Ctrl+Hyper", nil, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Parse(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestKeyName(t *testing.T) {
	tests := []struct {
		vk   uint32
		want string
	}{
		{0x26, "UP"},
		{0x1B, "ESC"},
		{0xA2, "CTRL"},
		{'Q', "Q"},
		{'7', "7"},
		{0x7B, "F12"},
		{0xFF, ""},
	}
	for _, tt := range tests {
		if got := KeyName(tt.vk); got != tt.want {
			t.Errorf("KeyName(0x%X) = %q, want %q", tt.vk, got, tt.want)
		}
	}
}

func TestComboFires(t *testing.T) {
	m := NewManager()
	fired := 0
	if _, err := m.Register("Ctrl+Shift+F12", func() { fired++ }); err != nil {
		t.Fatal(err)
	}

	m.HandleKey(0xA2, true) // left ctrl
	m.HandleKey(0xA0, true) // left shift
	if fired != 0 {
		t.Fatal("fired before combo complete")
	}
	got := m.HandleKey(0x7B, true)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if len(got) != 1 || got[0] != "Ctrl+Shift+F12" {
		t.Errorf("HandleKey() = %v", got)
	}

	// Auto-repeat of the held key does not re-trigger.
	m.HandleKey(0x7B, true)
	if fired != 1 {
		t.Errorf("auto-repeat fired again, count = %d", fired)
	}

	// Release and press again.
	m.HandleKey(0x7B, false)
	m.HandleKey(0x7B, true)
	if fired != 2 {
		t.Errorf("fired = %d after re-press, want 2", fired)
	}
}

func TestUnrelatedKeyDoesNotRefire(t *testing.T) {
	m := NewManager()
	fired := 0
	_, _ = m.Register("Ctrl+Q", func() { fired++ })

	m.UpdateState("CTRL", true)
	m.UpdateState("Q", true)
	m.UpdateState("A", true)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestRegisterEmptyAndClear(t *testing.T) {
	m := NewManager()
	if _, err := m.Register("", func() { t.Error("empty hotkey fired") }); err != nil {
		t.Errorf("Register(\"\") error = %v", err)
	}
	if _, err := m.Register("Ctrl+Nope", func() {}); err == nil {
		t.Error("Register with unknown key error = nil")
	}

	fired := false
	_, _ = m.Register("Q", func() { fired = true })
	m.Clear()
	m.UpdateState("Q", true)
	if fired {
		t.Error("hotkey fired after Clear")
	}
}

func TestHandleKeyIgnoresUnnamed(t *testing.T) {
	m := NewManager()
	if got := m.HandleKey(0xFF, true); got != nil {
		t.Errorf("HandleKey(0xFF) = %v, want nil", got)
	}
}
