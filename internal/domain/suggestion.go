package domain

import "time"

// Suggestion is a coaching suggestion produced from the transcript.
type Suggestion struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	Category  SuggestionCategory `json:"category"`
	Content   string             `json:"content"`
	Context   string             `json:"context,omitempty"`
	Priority  Priority           `json:"priority"`
	Used      bool               `json:"used"`
	CreatedAt time.Time          `json:"created_at"`
}
