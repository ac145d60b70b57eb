// Package store persists sessions, transcripts, suggestions, feedback and
// analytics in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			screen_enabled INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
		`CREATE TABLE IF NOT EXISTS transcripts (
			session_id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			word_count INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS transcript_segments (
			segment_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			text TEXT NOT NULL,
			captured_at DATETIME NOT NULL,
			is_user INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			source TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_segments_session ON transcript_segments(session_id, seq)`,
		`CREATE TABLE IF NOT EXISTS suggestions (
			suggestion_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			context TEXT,
			priority TEXT NOT NULL,
			used INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_suggestions_session ON suggestions(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			feedback_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			ts DATETIME NOT NULL,
			kind TEXT NOT NULL,
			priority TEXT NOT NULL,
			title TEXT,
			message TEXT,
			actionable INTEGER NOT NULL DEFAULT 0,
			next_steps TEXT,
			dismissed INTEGER NOT NULL DEFAULT 0,
			context TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_session ON feedback(session_id, ts)`,
		`CREATE TABLE IF NOT EXISTS session_analytics (
			session_id TEXT PRIMARY KEY,
			talk_listen_ratio REAL NOT NULL DEFAULT 0,
			speaking_time_ms INTEGER NOT NULL DEFAULT 0,
			listening_time_ms INTEGER NOT NULL DEFAULT 0,
			sentiment_score REAL NOT NULL DEFAULT 0,
			key_topics TEXT,
			action_items TEXT,
			suggestions_used INTEGER NOT NULL DEFAULT 0,
			suggestions_total INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, type, title, status, started_at, ended_at, duration_ms, screen_enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Type, nullString(session.Title), session.Status,
		session.StartedAt, nullTime(session.EndedAt), session.DurationMs, session.ScreenEnabled)
	return err
}

// UpdateSession writes the mutable fields of a session.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *domain.Session) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ?, duration_ms = ?, screen_enabled = ?, title = ? WHERE session_id = ?`,
		session.Status, nullTime(session.EndedAt), session.DurationMs, session.ScreenEnabled,
		nullString(session.Title), session.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, type, title, status, started_at, ended_at, duration_ms, screen_enabled
		 FROM sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

var sessionOrderColumns = map[string]string{
	"":            "started_at",
	"started_at":  "started_at",
	"duration_ms": "duration_ms",
	"status":      "status",
	"type":        "type",
}

// ListSessions lists sessions matching filter.
func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error) {
	query := `SELECT session_id, user_id, type, title, status, started_at, ended_at, duration_ms, screen_enabled FROM sessions WHERE 1 = 1`
	var args []interface{}

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}

	column, ok := sessionOrderColumns[filter.OrderBy]
	if !ok {
		return nil, fmt.Errorf("%w: cannot order sessions by %q", domain.ErrInvalidRequest, filter.OrderBy)
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, session_id %s", column, direction, direction)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// SaveTranscript creates or replaces the running transcript of a session.
func (s *SQLiteStore) SaveTranscript(ctx context.Context, t *domain.Transcript) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (session_id, content, word_count, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET content = excluded.content, word_count = excluded.word_count, updated_at = excluded.updated_at`,
		t.SessionID, t.Content, t.WordCount, t.UpdatedAt)
	return err
}

// GetTranscript retrieves the transcript of a session.
func (s *SQLiteStore) GetTranscript(ctx context.Context, sessionID string) (*domain.Transcript, error) {
	var t domain.Transcript
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, content, word_count, updated_at FROM transcripts WHERE session_id = ?`,
		sessionID).Scan(&t.SessionID, &t.Content, &t.WordCount, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTranscriptSegments inserts segments, ignoring ones already stored.
func (s *SQLiteStore) CreateTranscriptSegments(ctx context.Context, segments []domain.TranscriptSegment) error {
	if len(segments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO transcript_segments (segment_id, session_id, seq, text, captured_at, is_user, confidence, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, seg := range segments {
		if _, err := stmt.ExecContext(ctx, seg.ID, seg.SessionID, seg.Seq, seg.Text, seg.CapturedAt,
			seg.IsUser, seg.Confidence, nullString(seg.Source)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListTranscriptSegments lists the segments of a session in sequence order.
func (s *SQLiteStore) ListTranscriptSegments(ctx context.Context, sessionID string) ([]domain.TranscriptSegment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_id, session_id, seq, text, captured_at, is_user, confidence, source
		 FROM transcript_segments WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []domain.TranscriptSegment
	for rows.Next() {
		var seg domain.TranscriptSegment
		var source sql.NullString
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Seq, &seg.Text, &seg.CapturedAt,
			&seg.IsUser, &seg.Confidence, &source); err != nil {
			return nil, err
		}
		seg.Source = source.String
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// CreateSuggestion inserts a suggestion once; repeated inserts of the same
// ID are ignored.
func (s *SQLiteStore) CreateSuggestion(ctx context.Context, sg *domain.Suggestion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO suggestions (suggestion_id, session_id, category, content, context, priority, used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sg.ID, sg.SessionID, sg.Category, sg.Content, nullString(sg.Context), sg.Priority, sg.Used, sg.CreatedAt)
	return err
}

// MarkSuggestionUsed sets the used flag of a suggestion.
func (s *SQLiteStore) MarkSuggestionUsed(ctx context.Context, suggestionID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE suggestions SET used = 1 WHERE suggestion_id = ?`, suggestionID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListSuggestions lists the suggestions of a session by creation time.
func (s *SQLiteStore) ListSuggestions(ctx context.Context, sessionID string) ([]domain.Suggestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT suggestion_id, session_id, category, content, context, priority, used, created_at
		 FROM suggestions WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Suggestion
	for rows.Next() {
		var sg domain.Suggestion
		var snippet sql.NullString
		if err := rows.Scan(&sg.ID, &sg.SessionID, &sg.Category, &sg.Content, &snippet,
			&sg.Priority, &sg.Used, &sg.CreatedAt); err != nil {
			return nil, err
		}
		sg.Context = snippet.String
		out = append(out, sg)
	}
	return out, rows.Err()
}

// CreateFeedback inserts a feedback event once.
func (s *SQLiteStore) CreateFeedback(ctx context.Context, fb *domain.FeedbackEvent) error {
	nextSteps, _ := json.Marshal(fb.NextSteps)
	fbContext, _ := json.Marshal(fb.Context)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO feedback (feedback_id, session_id, ts, kind, priority, title, message, actionable, next_steps, dismissed, context)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.SessionID, fb.Timestamp, fb.Kind, fb.Priority, fb.Title, fb.Message, fb.Actionable,
		string(nextSteps), fb.Dismissed, string(fbContext))
	return err
}

// DismissFeedback sets the dismissed flag of a feedback event.
func (s *SQLiteStore) DismissFeedback(ctx context.Context, feedbackID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE feedback SET dismissed = 1 WHERE feedback_id = ?`, feedbackID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListFeedback lists the feedback events of a session by time.
func (s *SQLiteStore) ListFeedback(ctx context.Context, sessionID string) ([]domain.FeedbackEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feedback_id, session_id, ts, kind, priority, title, message, actionable, next_steps, dismissed, context
		 FROM feedback WHERE session_id = ? ORDER BY ts ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeedbackEvent
	for rows.Next() {
		var fb domain.FeedbackEvent
		var title, message, nextSteps, fbContext sql.NullString
		if err := rows.Scan(&fb.ID, &fb.SessionID, &fb.Timestamp, &fb.Kind, &fb.Priority, &title, &message,
			&fb.Actionable, &nextSteps, &fb.Dismissed, &fbContext); err != nil {
			return nil, err
		}
		fb.Title = title.String
		fb.Message = message.String
		if nextSteps.Valid {
			_ = json.Unmarshal([]byte(nextSteps.String), &fb.NextSteps)
		}
		if fbContext.Valid {
			_ = json.Unmarshal([]byte(fbContext.String), &fb.Context)
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// UpsertAnalytics creates or replaces the analytics record of a session.
func (s *SQLiteStore) UpsertAnalytics(ctx context.Context, a *domain.SessionAnalytics) error {
	topics, _ := json.Marshal(a.KeyTopics)
	items, _ := json.Marshal(a.ActionItems)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_analytics (session_id, talk_listen_ratio, speaking_time_ms, listening_time_ms, sentiment_score,
			key_topics, action_items, suggestions_used, suggestions_total, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			talk_listen_ratio = excluded.talk_listen_ratio,
			speaking_time_ms = excluded.speaking_time_ms,
			listening_time_ms = excluded.listening_time_ms,
			sentiment_score = excluded.sentiment_score,
			key_topics = excluded.key_topics,
			action_items = excluded.action_items,
			suggestions_used = excluded.suggestions_used,
			suggestions_total = excluded.suggestions_total,
			updated_at = excluded.updated_at`,
		a.SessionID, a.TalkListenRatio, a.SpeakingTimeMs, a.ListeningTimeMs, a.SentimentScore,
		string(topics), string(items), a.SuggestionsUsed, a.SuggestionsTotal, a.UpdatedAt)
	return err
}

const analyticsColumns = `a.session_id, a.talk_listen_ratio, a.speaking_time_ms, a.listening_time_ms, a.sentiment_score,
	a.key_topics, a.action_items, a.suggestions_used, a.suggestions_total, a.updated_at`

// GetAnalytics retrieves the analytics record of a session.
func (s *SQLiteStore) GetAnalytics(ctx context.Context, sessionID string) (*domain.SessionAnalytics, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+analyticsColumns+` FROM session_analytics a WHERE a.session_id = ?`, sessionID)
	a, err := scanAnalytics(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAnalytics lists the analytics records of every session of a user.
func (s *SQLiteStore) ListAnalytics(ctx context.Context, userID string) ([]domain.SessionAnalytics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+analyticsColumns+` FROM session_analytics a
		 JOIN sessions s ON s.session_id = a.session_id
		 WHERE s.user_id = ? ORDER BY s.started_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionAnalytics
	for rows.Next() {
		a, err := scanAnalytics(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var session domain.Session
	var title sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&session.ID, &session.UserID, &session.Type, &title, &session.Status,
		&session.StartedAt, &endedAt, &session.DurationMs, &session.ScreenEnabled); err != nil {
		return nil, err
	}
	session.Title = title.String
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	return &session, nil
}

func scanAnalytics(row scanner) (*domain.SessionAnalytics, error) {
	var a domain.SessionAnalytics
	var topics, items sql.NullString
	if err := row.Scan(&a.SessionID, &a.TalkListenRatio, &a.SpeakingTimeMs, &a.ListeningTimeMs, &a.SentimentScore,
		&topics, &items, &a.SuggestionsUsed, &a.SuggestionsTotal, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if topics.Valid {
		_ = json.Unmarshal([]byte(topics.String), &a.KeyTopics)
	}
	if items.Valid {
		_ = json.Unmarshal([]byte(items.String), &a.ActionItems)
	}
	return &a, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
