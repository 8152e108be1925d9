package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"overlayctl/internal/overlay"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("Default().Validate() = %v, want no errors", errs)
	}

	if cfg.Timing.InitialDelay != 2*time.Second {
		t.Errorf("InitialDelay = %v, want 2s", cfg.Timing.InitialDelay)
	}
	if cfg.Timing.StepDelay != 5*time.Second {
		t.Errorf("StepDelay = %v, want 5s", cfg.Timing.StepDelay)
	}
	if cfg.Timing.FinishDelay != 2*time.Second {
		t.Errorf("FinishDelay = %v, want 2s", cfg.Timing.FinishDelay)
	}
	if cfg.Timing.ScriptTimeout != 25*time.Second {
		t.Errorf("ScriptTimeout = %v, want 25s", cfg.Timing.ScriptTimeout)
	}
	if cfg.Input.ToggleKeyCode != 38 {
		t.Errorf("ToggleKeyCode = %d, want 38", cfg.Input.ToggleKeyCode)
	}
	if cfg.Input.MouseResult != 3 || cfg.Input.KeyboardResult != 1 {
		t.Errorf("results = (%d, %d), want (3, 1)", cfg.Input.MouseResult, cfg.Input.KeyboardResult)
	}
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	if cfg.Timing != want.Timing {
		t.Errorf("Timing = %+v, want %+v", cfg.Timing, want.Timing)
	}
	if cfg.Input != want.Input {
		t.Errorf("Input = %+v, want %+v", cfg.Input, want.Input)
	}
	if cfg.Backend != overlay.BackendAuto {
		t.Errorf("Backend = %q, want %q", cfg.Backend, overlay.BackendAuto)
	}
}

func TestLoadFromFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
backend: sim
timing:
  initial_delay: 100ms
  step_delay: 1s
  script_timeout: 10s
input:
  finish_hotkey: Ctrl+Q
logging:
  level: debug
simulation:
  events:
    - at: 3s
      kind: key_down
      key_code: 38
    - at: 4s
      kind: mouse_move
      x: 10
      y: 20
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend != overlay.BackendSimulated {
		t.Errorf("Backend = %q, want sim", cfg.Backend)
	}
	if cfg.Timing.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", cfg.Timing.InitialDelay)
	}
	if cfg.Timing.FinishDelay != 2*time.Second {
		t.Errorf("FinishDelay = %v, want default 2s", cfg.Timing.FinishDelay)
	}
	if cfg.Input.FinishHotkey != "Ctrl+Q" {
		t.Errorf("FinishHotkey = %q, want Ctrl+Q", cfg.Input.FinishHotkey)
	}
	if len(cfg.Simulation.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(cfg.Simulation.Events))
	}
	if ev := cfg.Simulation.Events[0]; ev.At != 3*time.Second || ev.KeyCode != 38 {
		t.Errorf("Events[0] = %+v", ev)
	}
}

func TestLoadFromEnv(t *testing.T) {
	resetViper(t)
	viper.SetEnvPrefix("OVERLAYCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	t.Setenv("OVERLAYCTL_TIMING_SCRIPT_TIMEOUT", "40s")
	t.Setenv("OVERLAYCTL_BACKEND", "sim")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Timing.ScriptTimeout != 40*time.Second {
		t.Errorf("ScriptTimeout = %v, want 40s", cfg.Timing.ScriptTimeout)
	}
	if cfg.Backend != "sim" {
		t.Errorf("Backend = %q, want sim", cfg.Backend)
	}
}

func TestLoadInvalid(t *testing.T) {
	resetViper(t)
	viper.Set("backend", "gpu")
	viper.Set("timing.script_timeout", "0s")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want validation errors")
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Load() error type = %T, want ValidationErrors", err)
	}
	if len(verrs) != 2 {
		t.Errorf("len(errors) = %d, want 2: %v", len(verrs), verrs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"empty log path", func(c *Config) { c.LogPath = " " }, "log_path"},
		{"unknown backend", func(c *Config) { c.Backend = "x" }, "backend"},
		{"negative step delay", func(c *Config) { c.Timing.StepDelay = -time.Second }, "timing.step_delay"},
		{"zero timeout", func(c *Config) { c.Timing.ScriptTimeout = 0 }, "timing.script_timeout"},
		{"toggle key out of range", func(c *Config) { c.Input.ToggleKeyCode = 300 }, "input.toggle_key_code"},
		{"release equals toggle", func(c *Config) { c.Input.ReleaseKeyCode = 38 }, "input.release_key_code"},
		{"bad hotkey", func(c *Config) { c.Input.FinishHotkey = "Ctrl+Nope" }, "input.finish_hotkey"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad event kind", func(c *Config) {
			c.Simulation.Events = []SyntheticEvent{{Kind: "touch"}}
		}, "simulation.events[0].kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Validate() = %v, want exactly one error", errs)
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	single := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if got := single.Error(); got != "a: bad (got: 1)" {
		t.Errorf("Error() = %q", got)
	}

	multi := ValidationErrors{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}
	if got := multi.Error(); !strings.HasPrefix(got, "2 validation errors:") {
		t.Errorf("Error() = %q, want count prefix", got)
	}
}

func TestYAML(t *testing.T) {
	out, err := Default().YAML()
	if err != nil {
		t.Fatalf("YAML() error = %v", err)
	}

	var back map[string]any
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("rendered YAML does not parse: %v", err)
	}
	for _, key := range []string{"log_path", "backend", "timing", "input", "logging", "monitor", "tray", "simulation"} {
		if _, ok := back[key]; !ok {
			t.Errorf("rendered YAML missing key %q", key)
		}
	}
	if strings.Contains(string(out), "token:") {
		t.Error("empty monitor token should be omitted")
	}
}

func TestSynthetic(t *testing.T) {
	sim := SimulationConfig{Events: []SyntheticEvent{
		{At: time.Second, Kind: "key_down", KeyCode: 38},
		{At: 2 * time.Second, Kind: "MOUSE_DOWN", X: 5, Y: 6},
		{At: 3 * time.Second, Kind: "unknown"},
	}}

	got := sim.Synthetic()
	if len(got) != 2 {
		t.Fatalf("len(Synthetic()) = %d, want 2", len(got))
	}
	if got[0].Key == nil || got[0].Key.Type != overlay.EventKeyDown || got[0].Key.KeyCode != 38 {
		t.Errorf("Synthetic()[0] = %+v", got[0])
	}
	if got[1].Mouse == nil || got[1].Mouse.Type != overlay.EventLButtonDown || got[1].Mouse.X != 5 {
		t.Errorf("Synthetic()[1] = %+v", got[1])
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != filepath.Join("/tmp/xdg", "overlayctl") {
		t.Errorf("ConfigDir() = %q", got)
	}
	if got := ConfigFile(); got != filepath.Join("/tmp/xdg", "overlayctl", "config.yaml") {
		t.Errorf("ConfigFile() = %q", got)
	}
}
