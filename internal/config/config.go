// Package config provides configuration for overlayctl.
//
// Values come from, in increasing precedence: built-in defaults, the YAML
// config file, OVERLAYCTL_* environment variables and command-line flags.
// The defaults reproduce the fixed demonstration timings, so a bare run
// needs no configuration at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"overlayctl/internal/overlay"
)

// Config represents the complete overlayctl configuration
type Config struct {
	// LogPath is handed to the capability's Start; it writes its own log there
	LogPath string `mapstructure:"log_path" yaml:"log_path"`

	// Backend selects the capability: "auto", "native" or "sim"
	Backend string `mapstructure:"backend" yaml:"backend"`

	Timing     TimingConfig     `mapstructure:"timing" yaml:"timing"`
	Input      InputConfig      `mapstructure:"input" yaml:"input"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Monitor    MonitorConfig    `mapstructure:"monitor" yaml:"monitor"`
	Tray       TrayConfig       `mapstructure:"tray" yaml:"tray"`
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
}

// TimingConfig holds the step chain delays
type TimingConfig struct {
	// InitialDelay is the wait before step 1
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	// StepDelay is the wait between consecutive steps
	StepDelay time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	// FinishDelay is the wait between "step finished" and shutdown
	FinishDelay time.Duration `mapstructure:"finish_delay" yaml:"finish_delay"`
	// ScriptTimeout is the hard stop, counted from the start of the run
	ScriptTimeout time.Duration `mapstructure:"script_timeout" yaml:"script_timeout"`
}

// InputConfig controls callback behavior
type InputConfig struct {
	// ToggleKeyCode turns input collection off when seen by the keyboard callback
	ToggleKeyCode uint32 `mapstructure:"toggle_key_code" yaml:"toggle_key_code"`
	// ReleaseKeyCode is the capability's own release shortcut (0 disables)
	ReleaseKeyCode uint32 `mapstructure:"release_key_code" yaml:"release_key_code"`
	// MouseResult is the directive returned by the mouse callback
	MouseResult int `mapstructure:"mouse_result" yaml:"mouse_result"`
	// KeyboardResult is the directive returned by the keyboard callback
	KeyboardResult int `mapstructure:"keyboard_result" yaml:"keyboard_result"`
	// FinishHotkey ends the session early, e.g. "Ctrl+Shift+F12" (empty disables)
	FinishHotkey string `mapstructure:"finish_hotkey" yaml:"finish_hotkey"`
}

// LoggingConfig controls console logging
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "line" ([timestamp] message) or "json"
	Format string `mapstructure:"format" yaml:"format"`
}

// MonitorConfig controls the HTTP/WebSocket status endpoint
type MonitorConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:18090" (empty disables)
	Addr string `mapstructure:"addr" yaml:"addr"`
	// Token, when set, is required as a Bearer token
	Token string `mapstructure:"token" yaml:"token,omitempty"`
}

// TrayConfig controls the system tray menu
type TrayConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// SimulationConfig scripts synthetic input for the simulated backend
type SimulationConfig struct {
	Events []SyntheticEvent `mapstructure:"events" yaml:"events"`
}

// SyntheticEvent is one scripted input event
type SyntheticEvent struct {
	// At is the offset from the start of the run
	At time.Duration `mapstructure:"at" yaml:"at"`
	// Kind is "key_down", "key_up", "mouse_move", "mouse_down" or "mouse_up"
	Kind     string `mapstructure:"kind" yaml:"kind"`
	KeyCode  uint32 `mapstructure:"key_code" yaml:"key_code,omitempty"`
	X        int32  `mapstructure:"x" yaml:"x,omitempty"`
	Y        int32  `mapstructure:"y" yaml:"y,omitempty"`
	Modifier uint32 `mapstructure:"modifier" yaml:"modifier,omitempty"`
}

// Default returns a Config with the demonstration defaults
func Default() *Config {
	return &Config{
		LogPath: filepath.Join(os.TempDir(), "overlayctl", "overlay.log"),
		Backend: overlay.BackendAuto,
		Timing: TimingConfig{
			InitialDelay:  2 * time.Second,
			StepDelay:     5 * time.Second,
			FinishDelay:   2 * time.Second,
			ScriptTimeout: 25 * time.Second,
		},
		Input: InputConfig{
			ToggleKeyCode:  overlay.VKUp,
			ReleaseKeyCode: overlay.VKEscape,
			MouseResult:    3,
			KeyboardResult: 1,
			FinishHotkey:   "Ctrl+Shift+F12",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "line",
		},
		Monitor: MonitorConfig{
			Addr: "",
		},
		Tray: TrayConfig{
			Enabled: false,
		},
		Simulation: SimulationConfig{
			Events: []SyntheticEvent{},
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("log_path", defaults.LogPath)
	viper.SetDefault("backend", defaults.Backend)

	viper.SetDefault("timing.initial_delay", defaults.Timing.InitialDelay)
	viper.SetDefault("timing.step_delay", defaults.Timing.StepDelay)
	viper.SetDefault("timing.finish_delay", defaults.Timing.FinishDelay)
	viper.SetDefault("timing.script_timeout", defaults.Timing.ScriptTimeout)

	viper.SetDefault("input.toggle_key_code", defaults.Input.ToggleKeyCode)
	viper.SetDefault("input.release_key_code", defaults.Input.ReleaseKeyCode)
	viper.SetDefault("input.mouse_result", defaults.Input.MouseResult)
	viper.SetDefault("input.keyboard_result", defaults.Input.KeyboardResult)
	viper.SetDefault("input.finish_hotkey", defaults.Input.FinishHotkey)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)

	viper.SetDefault("monitor.addr", defaults.Monitor.Addr)
	viper.SetDefault("monitor.token", defaults.Monitor.Token)

	viper.SetDefault("tray.enabled", defaults.Tray.Enabled)

	viper.SetDefault("simulation.events", defaults.Simulation.Events)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "overlayctl")
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".overlayctl"
	}
	return filepath.Join(dir, "overlayctl")
}

// ConfigFile returns the path to the default config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}

// Synthetic converts the scripted events into capability input.
func (s SimulationConfig) Synthetic() []overlay.Synthetic {
	out := make([]overlay.Synthetic, 0, len(s.Events))
	for _, ev := range s.Events {
		syn := overlay.Synthetic{At: ev.At}
		switch strings.ToLower(ev.Kind) {
		case "key_down":
			syn.Key = &overlay.KeyEvent{Type: overlay.EventKeyDown, KeyCode: ev.KeyCode}
		case "key_up":
			syn.Key = &overlay.KeyEvent{Type: overlay.EventKeyUp, KeyCode: ev.KeyCode}
		case "mouse_move":
			syn.Mouse = &overlay.MouseEvent{Type: overlay.EventMouseMove, X: ev.X, Y: ev.Y, Modifier: ev.Modifier}
		case "mouse_down":
			syn.Mouse = &overlay.MouseEvent{Type: overlay.EventLButtonDown, X: ev.X, Y: ev.Y, Modifier: ev.Modifier}
		case "mouse_up":
			syn.Mouse = &overlay.MouseEvent{Type: overlay.EventLButtonUp, X: ev.X, Y: ev.Y, Modifier: ev.Modifier}
		default:
			continue
		}
		out = append(out, syn)
	}
	return out
}
