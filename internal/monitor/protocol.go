package monitor

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeHello is sent to a client right after it connects, carrying the current status
	TypeHello MessageType = "hello"

	// TypeStep notifies of a step transition
	TypeStep MessageType = "step"

	// TypeInput notifies of an input event delivered to a callback
	TypeInput MessageType = "input"

	// TypeToggle is sent by a client to switch input collection, and
	// broadcast by the server when the capability accepted a switch
	TypeToggle MessageType = "toggle"

	// TypeFinish is sent by a client to end the session early
	TypeFinish MessageType = "finish"

	// TypeError is sent back when a client message cannot be handled
	TypeError MessageType = "error"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// StepPayload is the payload for TypeStep
type StepPayload struct {
	SessionID string `json:"session_id"`
	Step      string `json:"step"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

// InputPayload is the payload for TypeInput
type InputPayload struct {
	SessionID string `json:"session_id"`
	Device    string `json:"device"` // "mouse" or "keyboard"
	EventType uint32 `json:"event_type"`
	X         int32  `json:"x,omitempty"`
	Y         int32  `json:"y,omitempty"`
	Modifier  uint32 `json:"modifier,omitempty"`
	KeyCode   uint32 `json:"key_code,omitempty"`
	Result    int    `json:"result"`
	Timestamp int64  `json:"timestamp"`
}

// TogglePayload is the payload for TypeToggle
type TogglePayload struct {
	SessionID string `json:"session_id,omitempty"`
	Enabled   bool   `json:"enabled"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ErrorPayload is the payload for TypeError
type ErrorPayload struct {
	Message string `json:"message"`
}
