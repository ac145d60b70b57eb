package store

import (
	"context"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

// Store is the record store behind sessions and their artifacts. Get
// methods return nil, nil when the record does not exist.
type Store interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	UpdateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error)

	SaveTranscript(ctx context.Context, transcript *domain.Transcript) error
	GetTranscript(ctx context.Context, sessionID string) (*domain.Transcript, error)
	CreateTranscriptSegments(ctx context.Context, segments []domain.TranscriptSegment) error
	ListTranscriptSegments(ctx context.Context, sessionID string) ([]domain.TranscriptSegment, error)

	CreateSuggestion(ctx context.Context, suggestion *domain.Suggestion) error
	MarkSuggestionUsed(ctx context.Context, suggestionID string) error
	ListSuggestions(ctx context.Context, sessionID string) ([]domain.Suggestion, error)

	CreateFeedback(ctx context.Context, event *domain.FeedbackEvent) error
	DismissFeedback(ctx context.Context, feedbackID string) error
	ListFeedback(ctx context.Context, sessionID string) ([]domain.FeedbackEvent, error)

	UpsertAnalytics(ctx context.Context, analytics *domain.SessionAnalytics) error
	GetAnalytics(ctx context.Context, sessionID string) (*domain.SessionAnalytics, error)
	ListAnalytics(ctx context.Context, userID string) ([]domain.SessionAnalytics, error)

	Close() error
}

// SessionFilter selects sessions for ListSessions. Zero fields do not filter.
type SessionFilter struct {
	UserID  string
	Status  domain.SessionStatus
	Type    domain.SessionType
	OrderBy string // started_at (default), duration_ms, status, type
	Desc    bool
	Limit   int
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
