package domain

import "time"

// FeedbackContext snapshots the session state an event was produced in.
type FeedbackContext struct {
	SessionType SessionType `json:"session_type"`
	ElapsedMs   int64       `json:"elapsed_ms"`
	Activity    string      `json:"activity,omitempty"`
}

// FeedbackEvent is a timed piece of coaching feedback.
type FeedbackEvent struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Kind       FeedbackKind    `json:"kind"`
	Priority   Priority        `json:"priority"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	Actionable bool            `json:"actionable"`
	NextSteps  []string        `json:"next_steps,omitempty"`
	Dismissed  bool            `json:"dismissed"`
	Context    FeedbackContext `json:"context"`
}
