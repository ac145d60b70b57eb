package domain

// LiveEvent is pushed to every subscriber of a session.
type LiveEvent struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Ts        int64       `json:"ts"` // Unix milliseconds
	Data      interface{} `json:"data,omitempty"`
}

// AudioLevelPayload is the data of an audio_level event.
type AudioLevelPayload struct {
	Source string  `json:"source"`
	Level  float64 `json:"level"`
}

// TranscriptPayload is the data of a transcript event.
type TranscriptPayload struct {
	Segments  []TranscriptSegment `json:"segments"`
	WordCount int                 `json:"word_count"`
}

// SourceErrorPayload is the data of a source_error event.
type SourceErrorPayload struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// FeedbackDismissedPayload is the data of a feedback_dismissed event.
type FeedbackDismissedPayload struct {
	FeedbackID string `json:"feedback_id"`
	Reason     string `json:"reason"`
}

// FeedbackPayload is the data of a feedback event.
type FeedbackPayload struct {
	Feedback FeedbackEvent `json:"feedback"`
	Delivery Delivery      `json:"delivery"`
	State    FeedbackState `json:"state"`
}

// SuggestionsPayload is the data of a suggestions event.
type SuggestionsPayload struct {
	Suggestions []Suggestion `json:"suggestions"`
	Fallback    bool         `json:"fallback,omitempty"`
}
