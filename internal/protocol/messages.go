// Package protocol defines the websocket control messages exchanged with
// live clients. Live session events are sent as domain.LiveEvent values.
package protocol

// Message types from client to server.
const (
	TypeHello           = "hello"
	TypeDismissFeedback = "dismiss_feedback"
	TypeUseSuggestion   = "use_suggestion"
	TypePause           = "pause"
	TypeResume          = "resume"
	TypeSetScreen       = "set_screen"
)

// Message types from server to client.
const (
	TypeHelloAck = "hello_ack"
	TypeAck      = "ack"
	TypeError    = "error"
)

// BaseMessage contains common fields for all control messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
}

// HelloMessage is sent by a client that did not authenticate the upgrade
// request.
type HelloMessage struct {
	BaseMessage
	UserID     string            `json:"user_id,omitempty"`
	APIKey     string            `json:"api_key,omitempty"`
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage confirms the user a connection is bound to.
type HelloAckMessage struct {
	BaseMessage
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

// DismissFeedbackMessage dismisses a feedback event.
type DismissFeedbackMessage struct {
	BaseMessage
	FeedbackID string `json:"feedback_id"`
}

// UseSuggestionMessage marks a suggestion as used.
type UseSuggestionMessage struct {
	BaseMessage
	SuggestionID string `json:"suggestion_id"`
}

// SetScreenMessage toggles screen analysis.
type SetScreenMessage struct {
	BaseMessage
	Enabled bool `json:"enabled"`
}

// AckMessage reports the successful handling of a control message.
type AckMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// ErrorMessage is sent when a control message fails.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeUnauthorized    = "unauthorized"
	ErrorCodeHelloRequired   = "hello_required"
	ErrorCodeNoActiveSession = "no_active_session"
	ErrorCodeNotFound        = "not_found"
	ErrorCodeInvalidState    = "invalid_state"
	ErrorCodeInternalError   = "internal_error"
)
