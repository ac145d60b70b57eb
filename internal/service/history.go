package service

import (
	"context"

	"github.com/xiaot623/gogo/livecoach/internal/coach"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/repository"
)

// SessionHistory is everything recorded for one session.
type SessionHistory struct {
	Session     domain.Session             `json:"session"`
	Transcript  *domain.Transcript         `json:"transcript,omitempty"`
	Segments    []domain.TranscriptSegment `json:"segments"`
	Suggestions []domain.Suggestion        `json:"suggestions"`
	Feedback    []domain.FeedbackEvent     `json:"feedback"`
	Analytics   *domain.SessionAnalytics   `json:"analytics,omitempty"`
}

// ListSessions lists the sessions of userID. The filter's user is always
// replaced by userID.
func (s *Service) ListSessions(ctx context.Context, userID string, filter store.SessionFilter) ([]domain.Session, error) {
	filter.UserID = userID
	return s.store.ListSessions(ctx, filter)
}

// GetSessionHistory returns the recorded state of one of userID's sessions.
func (s *Service) GetSessionHistory(ctx context.Context, userID, sessionID string) (*SessionHistory, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, domain.ErrNotFound
	}

	h := &SessionHistory{Session: *session}
	if h.Transcript, err = s.store.GetTranscript(ctx, sessionID); err != nil {
		return nil, err
	}
	if h.Segments, err = s.store.ListTranscriptSegments(ctx, sessionID); err != nil {
		return nil, err
	}
	if h.Suggestions, err = s.store.ListSuggestions(ctx, sessionID); err != nil {
		return nil, err
	}
	if h.Feedback, err = s.store.ListFeedback(ctx, sessionID); err != nil {
		return nil, err
	}
	if h.Analytics, err = s.store.GetAnalytics(ctx, sessionID); err != nil {
		return nil, err
	}
	return h, nil
}

// AnalyticsSummary aggregates the recorded analytics of every session of
// userID.
func (s *Service) AnalyticsSummary(ctx context.Context, userID string) (domain.AnalyticsSummary, error) {
	records, err := s.store.ListAnalytics(ctx, userID)
	if err != nil {
		return domain.AnalyticsSummary{}, err
	}
	summary := coach.Summarize(records)

	sessions, err := s.store.ListSessions(ctx, store.SessionFilter{UserID: userID})
	if err != nil {
		return domain.AnalyticsSummary{}, err
	}
	for _, session := range sessions {
		summary.TotalDurationMs += session.DurationMs
	}
	return summary, nil
}
