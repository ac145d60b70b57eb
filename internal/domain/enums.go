// Package domain defines the core domain models for the coaching orchestrator.
package domain

import "strings"

// SessionType represents the kind of live activity being coached.
type SessionType string

const (
	SessionTypeMeeting   SessionType = "meeting"
	SessionTypeExam      SessionType = "exam"
	SessionTypeSalesCall SessionType = "sales_call"
	SessionTypeInterview SessionType = "interview"
	SessionTypeOther     SessionType = "other"
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	switch t {
	case SessionTypeMeeting, SessionTypeExam, SessionTypeSalesCall, SessionTypeInterview, SessionTypeOther:
		return true
	}
	return false
}

// SessionStatus represents the lifecycle status of a session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
)

// SuggestionCategory represents the category of a coaching suggestion.
type SuggestionCategory string

const (
	SuggestionCategoryQuestion SuggestionCategory = "question"
	SuggestionCategoryResponse SuggestionCategory = "response"
	SuggestionCategoryAction   SuggestionCategory = "action"
	SuggestionCategoryNote     SuggestionCategory = "note"
)

// ParseSuggestionCategory normalizes s, falling back to note for unknown values.
func ParseSuggestionCategory(s string) SuggestionCategory {
	switch c := SuggestionCategory(normalize(s)); c {
	case SuggestionCategoryQuestion, SuggestionCategoryResponse, SuggestionCategoryAction, SuggestionCategoryNote:
		return c
	}
	return SuggestionCategoryNote
}

// Priority is shared by suggestions and feedback events.
// Suggestions only use low, medium and high.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority normalizes s and reports whether it is a known priority.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(normalize(s)); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, true
	}
	return "", false
}

// Prominent reports whether events of this priority claim the active feedback slot.
func (p Priority) Prominent() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// Urgency is the urgency reported by a visual analysis.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency normalizes s, falling back to low for unknown values.
func ParseUrgency(s string) Urgency {
	switch u := Urgency(normalize(s)); u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return u
	}
	return UrgencyLow
}

// FeedbackKind represents the kind of a feedback event.
type FeedbackKind string

const (
	FeedbackKindCoaching   FeedbackKind = "coaching"
	FeedbackKindWarning    FeedbackKind = "warning"
	FeedbackKindSuggestion FeedbackKind = "suggestion"
	FeedbackKindInsight    FeedbackKind = "insight"
	FeedbackKindAction     FeedbackKind = "action"
)

// ParseFeedbackKind normalizes s and reports whether it is a known kind.
func ParseFeedbackKind(s string) (FeedbackKind, bool) {
	switch k := FeedbackKind(normalize(s)); k {
	case FeedbackKindCoaching, FeedbackKindWarning, FeedbackKindSuggestion, FeedbackKindInsight, FeedbackKindAction:
		return k, true
	}
	return "", false
}

// FeedbackState is the position of a feedback event in its lifecycle.
type FeedbackState string

const (
	FeedbackStateActive     FeedbackState = "active"
	FeedbackStateBackground FeedbackState = "background"
	FeedbackStateDismissed  FeedbackState = "dismissed"
)

// EventType represents the type of a live event pushed to subscribers.
type EventType string

const (
	EventTypeSessionStarted    EventType = "session_started"
	EventTypeSessionPaused     EventType = "session_paused"
	EventTypeSessionResumed    EventType = "session_resumed"
	EventTypeSessionStopped    EventType = "session_stopped"
	EventTypeAudioLevel        EventType = "audio_level"
	EventTypeTranscript        EventType = "transcript"
	EventTypeSuggestions       EventType = "suggestions"
	EventTypeSuggestionUsed    EventType = "suggestion_used"
	EventTypeAnalysis          EventType = "analysis"
	EventTypeFeedback          EventType = "feedback"
	EventTypeFeedbackDismissed EventType = "feedback_dismissed"
	EventTypeAnalytics         EventType = "analytics"
	EventTypeSourceError       EventType = "source_error"
	EventTypeScreenToggled     EventType = "screen_toggled"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Delivery says how a feedback event is surfaced to live subscribers.
type Delivery string

const (
	DeliveryNotify Delivery = "notify"
	DeliveryQuiet  Delivery = "quiet"
)
