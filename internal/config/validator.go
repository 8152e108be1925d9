package config

import (
	"fmt"
	"slices"
	"strings"

	"overlayctl/internal/hotkey"
	"overlayctl/internal/overlay"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "timing.step_delay")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid console log formats
func ValidLogFormats() []string {
	return []string{"line", "json"}
}

// ValidEventKinds returns the list of valid synthetic event kinds
func ValidEventKinds() []string {
	return []string{"key_down", "key_up", "mouse_move", "mouse_down", "mouse_up"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.LogPath) == "" {
		errors = append(errors, ValidationError{Field: "log_path", Value: c.LogPath, Message: "must not be empty"})
	}
	if !slices.Contains(overlay.ValidBackends(), c.Backend) {
		errors = append(errors, ValidationError{
			Field:   "backend",
			Value:   c.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(overlay.ValidBackends(), ", ")),
		})
	}

	errors = append(errors, c.validateTiming()...)
	errors = append(errors, c.validateInput()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateSimulation()...)

	return errors
}

func (c *Config) validateTiming() []ValidationError {
	var errors []ValidationError
	t := c.Timing

	for _, d := range []struct {
		field string
		value any
		ok    bool
	}{
		{"timing.initial_delay", t.InitialDelay, t.InitialDelay >= 0},
		{"timing.step_delay", t.StepDelay, t.StepDelay >= 0},
		{"timing.finish_delay", t.FinishDelay, t.FinishDelay >= 0},
		{"timing.script_timeout", t.ScriptTimeout, t.ScriptTimeout > 0},
	} {
		if !d.ok {
			msg := "must not be negative"
			if d.field == "timing.script_timeout" {
				msg = "must be positive"
			}
			errors = append(errors, ValidationError{Field: d.field, Value: d.value, Message: msg})
		}
	}

	return errors
}

func (c *Config) validateInput() []ValidationError {
	var errors []ValidationError

	if c.Input.ToggleKeyCode > 0xFF {
		errors = append(errors, ValidationError{
			Field:   "input.toggle_key_code",
			Value:   c.Input.ToggleKeyCode,
			Message: "must be a virtual-key code (0-255)",
		})
	}
	if c.Input.ReleaseKeyCode > 0xFF {
		errors = append(errors, ValidationError{
			Field:   "input.release_key_code",
			Value:   c.Input.ReleaseKeyCode,
			Message: "must be a virtual-key code (0-255)",
		})
	}
	if c.Input.ReleaseKeyCode != 0 && c.Input.ReleaseKeyCode == c.Input.ToggleKeyCode {
		errors = append(errors, ValidationError{
			Field:   "input.release_key_code",
			Value:   c.Input.ReleaseKeyCode,
			Message: "must differ from input.toggle_key_code, the capability consumes it",
		})
	}
	if c.Input.FinishHotkey != "" {
		if _, err := hotkey.Parse(c.Input.FinishHotkey); err != nil {
			errors = append(errors, ValidationError{
				Field:   "input.finish_hotkey",
				Value:   c.Input.FinishHotkey,
				Message: err.Error(),
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateSimulation() []ValidationError {
	var errors []ValidationError

	for i, ev := range c.Simulation.Events {
		if !slices.Contains(ValidEventKinds(), strings.ToLower(ev.Kind)) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("simulation.events[%d].kind", i),
				Value:   ev.Kind,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidEventKinds(), ", ")),
			})
		}
		if ev.At < 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("simulation.events[%d].at", i),
				Value:   ev.At,
				Message: "must not be negative",
			})
		}
	}

	return errors
}
