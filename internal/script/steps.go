package script

import (
	"overlayctl/internal/overlay"
)

func (s *Script) step1() {
	if !s.advance(Step1) {
		return
	}
	s.log.Info("Executing step 1: Setting up input callbacks.")

	s.cap.SetMouseCallback(s.onMouse)
	s.cap.SetKeyboardCallback(s.onKey)

	s.next(s.opts.Delays.Step, "step2", s.step2)
}

func (s *Script) step2() {
	if !s.advance(Step2) {
		return
	}
	s.log.Info("Executing step 2: Enabling input collection.")
	s.switchInput(true)
	s.next(s.opts.Delays.Step, "step3", s.step3)
}

func (s *Script) step3() {
	if !s.advance(Step3) {
		return
	}
	s.log.Info("Executing step 3: Re-enabling input collection.")
	s.switchInput(true)
	s.next(s.opts.Delays.Step, "step4", s.step4)
}

func (s *Script) step4() {
	if !s.advance(Step4) {
		return
	}
	s.log.Info("Executing step 4: Disabling input collection again.")
	s.switchInput(false)
	s.next(s.opts.Delays.Step, "finish", s.stepFinish)
}

func (s *Script) stepFinish() {
	if !s.advance(StepFinishing) {
		return
	}
	s.log.Info("Step finished.")
	s.next(s.opts.Delays.Finish, "script finished", s.scriptFinished)
}

// onMouse runs on the capability's input thread.
func (s *Script) onMouse(ev overlay.MouseEvent) int {
	result := s.opts.MouseResult
	s.log.Info("MouseCallback", "event_type", uint32(ev.Type), "x", ev.X, "y", ev.Y, "modifier", ev.Modifier)

	for _, o := range s.observersSnapshot() {
		o.MouseInput(s.id, ev, result)
	}
	return result
}

// onKey runs on the capability's input thread. The toggle key turns
// collection off; key transitions also feed the finish hotkey.
func (s *Script) onKey(ev overlay.KeyEvent) int {
	result := s.opts.KeyboardResult
	s.log.Info("KeyboardCallback", "event_type", uint32(ev.Type), "key_code", ev.KeyCode)

	if ev.KeyCode == s.opts.ToggleKeyCode {
		s.switchInput(false)
	}

	switch {
	case ev.Type.IsKeyDown():
		s.hotkeys.HandleKey(ev.KeyCode, true)
	case ev.Type.IsKeyUp():
		s.hotkeys.HandleKey(ev.KeyCode, false)
	}

	for _, o := range s.observersSnapshot() {
		o.KeyInput(s.id, ev, result)
	}
	return result
}
