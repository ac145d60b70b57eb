package domain

import "time"

// SessionAnalytics holds the derived metrics of one session.
type SessionAnalytics struct {
	SessionID        string    `json:"session_id"`
	TalkListenRatio  float64   `json:"talk_listen_ratio"`
	SpeakingTimeMs   int64     `json:"speaking_time_ms"`
	ListeningTimeMs  int64     `json:"listening_time_ms"`
	SentimentScore   float64   `json:"sentiment_score"`
	KeyTopics        []string  `json:"key_topics"`
	ActionItems      []string  `json:"action_items"`
	SuggestionsUsed  int       `json:"suggestions_used"`
	SuggestionsTotal int       `json:"suggestions_total"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AnalyticsSummary aggregates analytics across sessions.
type AnalyticsSummary struct {
	Sessions         int     `json:"sessions"`
	SuggestionsTotal int     `json:"suggestions_total"`
	SuggestionsUsed  int     `json:"suggestions_used"`
	SuccessRate      float64 `json:"success_rate"`
	AvgSuggestions   float64 `json:"avg_suggestions"`
	TotalDurationMs  int64   `json:"total_duration_ms"`
}
