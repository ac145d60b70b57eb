package domain

import "time"

// Session represents one live coaching session.
type Session struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Type          SessionType   `json:"type"`
	Title         string        `json:"title,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       *time.Time    `json:"ended_at,omitempty"`
	Status        SessionStatus `json:"status"`
	DurationMs    int64         `json:"duration_ms"`
	ScreenEnabled bool          `json:"screen_enabled"`
}

// StartSessionRequest is the user control that starts a session.
type StartSessionRequest struct {
	Type          SessionType `json:"type"`
	Title         string      `json:"title,omitempty"`
	ScreenEnabled bool        `json:"screen_enabled"`
	SystemAudio   bool        `json:"system_audio"`
}

// SessionSnapshot is a read-only view of a live session's state.
type SessionSnapshot struct {
	Session        Session           `json:"session"`
	Transcript     string            `json:"transcript"`
	WordCount      int               `json:"word_count"`
	Suggestions    []Suggestion      `json:"suggestions"`
	LatestAnalysis *VisualAnalysis   `json:"latest_analysis,omitempty"`
	ActiveFeedback *FeedbackEvent    `json:"active_feedback,omitempty"`
	Feedbacks      []FeedbackEvent   `json:"feedbacks"`
	Analytics      SessionAnalytics  `json:"analytics"`
	SourceErrors   map[string]string `json:"source_errors,omitempty"`
}
