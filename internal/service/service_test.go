package service

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/auth"
	"github.com/xiaot623/gogo/livecoach/internal/capture"
	"github.com/xiaot623/gogo/livecoach/internal/clock"
	"github.com/xiaot623/gogo/livecoach/internal/coach"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/repository"
	"github.com/xiaot623/gogo/livecoach/tests/helpers"
)

var start = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.SQLiteStore, *clock.Fake) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	fc := clock.NewFake(start)
	svc := New(db, llm.NewMockClient(), Options{
		Coach:       coach.DefaultConfig(),
		AudioFormat: capture.DefaultFormat,
		Clock:       fc,
	})
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc, db, fc
}

func TestOneLiveSessionPerUser(t *testing.T) {
	ctx := context.Background()
	svc, db, fc := newTestService(t)

	session, err := svc.StartSession(ctx, "alice", domain.StartSessionRequest{Type: domain.SessionTypeMeeting, Title: "standup"})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, session.Status)

	_, err = svc.StartSession(ctx, "alice", domain.StartSessionRequest{})
	assert.ErrorIs(t, err, domain.ErrSessionAlreadyActive)

	_, err = svc.StartSession(ctx, "bob", domain.StartSessionRequest{Type: domain.SessionTypeInterview})
	require.NoError(t, err)
	assert.Equal(t, 2, svc.LiveSessionCount())

	fc.Advance(90 * time.Second)
	stopped, err := svc.StopSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(90000), stopped.DurationMs)

	_, err = svc.StopSession(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
	_, err = svc.Snapshot("alice")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	stored, err := db.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, stored.Status)
	assert.Equal(t, "standup", stored.Title)
}

func TestPushAudioReachesTranscript(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.StartSession(ctx, "alice", domain.StartSessionRequest{Type: domain.SessionTypeSalesCall})
	require.NoError(t, err)

	second := make([]byte, capture.DefaultFormat.BytesPerSecond())
	require.NoError(t, svc.PushAudio("alice", second, false))

	require.Eventually(t, func() bool {
		snap, err := svc.Snapshot("alice")
		return err == nil && snap.WordCount == 10
	}, 2*time.Second, 5*time.Millisecond)

	tr, segs, err := svc.LiveTranscript("alice")
	require.NoError(t, err)
	assert.Equal(t, "this is a mock transcript segment with exactly ten words", tr.Content)
	require.Len(t, segs, 1)
	assert.True(t, segs[0].IsUser)

	err = svc.PushAudio("alice", second, true)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest, "system audio was not requested")
	assert.ErrorIs(t, svc.PushAudio("bob", second, false), domain.ErrNoActiveSession)
}

func TestPushFrameRequiresScreenAnalysis(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	_, err := svc.StartSession(ctx, "alice", domain.StartSessionRequest{Type: domain.SessionTypeExam})
	require.NoError(t, err)

	still := capture.Still{Image: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}
	assert.ErrorIs(t, svc.PushFrame("alice", still), domain.ErrInvalidRequest)

	session, err := svc.SetScreenAnalysis(ctx, "alice", true)
	require.NoError(t, err)
	assert.True(t, session.ScreenEnabled)
	assert.NoError(t, svc.PushFrame("alice", still))
	assert.ErrorIs(t, svc.PushFrame("alice", capture.Still{}), domain.ErrInvalidRequest)
}

func TestRecoverOrphanedSessions(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)

	live, err := svc.StartSession(ctx, "alice", domain.StartSessionRequest{Type: domain.SessionTypeMeeting})
	require.NoError(t, err)

	orphans := []domain.Session{
		{ID: "sess_active", UserID: "bob", Type: domain.SessionTypeMeeting, Status: domain.SessionStatusActive, StartedAt: start.Add(-time.Hour)},
		{ID: "sess_paused", UserID: "bob", Type: domain.SessionTypeExam, Status: domain.SessionStatusPaused, StartedAt: start.Add(-2 * time.Hour), DurationMs: 60000},
		{ID: "sess_done", UserID: "bob", Type: domain.SessionTypeOther, Status: domain.SessionStatusCompleted, StartedAt: start.Add(-3 * time.Hour)},
	}
	helpers.SeedSessions(t, db, orphans...)

	var logs bytes.Buffer
	log.SetOutput(&logs)
	n, err := svc.RecoverOrphanedSessions(ctx)
	log.SetOutput(os.Stderr)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, strings.Count(logs.String(), "Recovered 2 orphaned sessions"))

	paused, err := db.GetSession(ctx, "sess_paused")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, paused.Status)
	assert.Equal(t, int64(60000), paused.DurationMs)
	require.NotNil(t, paused.EndedAt)

	stillLive, err := db.GetSession(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, stillLive.Status)
}

func TestHistoryAndSummary(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)

	sessions := []domain.Session{
		{ID: "sess_1", UserID: "alice", Type: domain.SessionTypeMeeting, Status: domain.SessionStatusCompleted, StartedAt: start.Add(-2 * time.Hour), DurationMs: 120000},
		{ID: "sess_2", UserID: "alice", Type: domain.SessionTypeSalesCall, Status: domain.SessionStatusCompleted, StartedAt: start.Add(-time.Hour), DurationMs: 30000},
		{ID: "sess_3", UserID: "bob", Type: domain.SessionTypeMeeting, Status: domain.SessionStatusCompleted, StartedAt: start.Add(-time.Hour), DurationMs: 99000},
	}
	helpers.SeedSessions(t, db, sessions...)
	helpers.SeedAnalytics(t, db,
		domain.SessionAnalytics{SessionID: "sess_1", SuggestionsTotal: 6, SuggestionsUsed: 3, UpdatedAt: start},
		domain.SessionAnalytics{SessionID: "sess_2", SuggestionsTotal: 2, SuggestionsUsed: 1, UpdatedAt: start},
		domain.SessionAnalytics{SessionID: "sess_3", SuggestionsTotal: 10, SuggestionsUsed: 10, UpdatedAt: start},
	)

	summary, err := svc.AnalyticsSummary(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sessions)
	assert.Equal(t, 8, summary.SuggestionsTotal)
	assert.InDelta(t, 0.5, summary.SuccessRate, 1e-9)
	assert.InDelta(t, 4.0, summary.AvgSuggestions, 1e-9)
	assert.Equal(t, int64(150000), summary.TotalDurationMs)

	empty, err := svc.AnalyticsSummary(ctx, "carol")
	require.NoError(t, err)
	assert.Zero(t, empty.SuccessRate)
	assert.Zero(t, empty.AvgSuggestions)

	list, err := svc.ListSessions(ctx, "alice", store.SessionFilter{UserID: "bob", OrderBy: "duration_ms", Desc: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sess_1", list[0].ID)

	h, err := svc.GetSessionHistory(ctx, "alice", "sess_2")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Analytics.SuggestionsTotal)

	_, err = svc.GetSessionHistory(ctx, "alice", "sess_3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFollowIdentityStopsSignedOutUsers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, _, _ := newTestService(t)

	identity := auth.NewStatic("alice")
	changes, unsubscribe := identity.Subscribe()
	defer unsubscribe()
	go svc.FollowIdentity(ctx, changes)

	_, err := svc.StartSession(ctx, "alice", domain.StartSessionRequest{Type: domain.SessionTypeMeeting})
	require.NoError(t, err)

	identity.Set("bob")
	require.Eventually(t, func() bool { return svc.LiveSessionCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestShutdownStopsEverySession(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)

	var ids []string
	for _, user := range []string{"alice", "bob", "carol"} {
		s, err := svc.StartSession(ctx, user, domain.StartSessionRequest{Type: domain.SessionTypeMeeting})
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	require.NoError(t, svc.Shutdown(ctx))
	assert.Equal(t, 0, svc.LiveSessionCount())
	for _, id := range ids {
		s, err := db.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionStatusCompleted, s.Status)
	}
}

// flakyTranscriptStore fails the transcript write of one session and slows
// down everyone else's.
type flakyTranscriptStore struct {
	*store.SQLiteStore

	mu        sync.Mutex
	failFor   string
	slowWrite time.Duration
}

func (f *flakyTranscriptStore) SaveTranscript(ctx context.Context, tr *domain.Transcript) error {
	f.mu.Lock()
	failFor, slow := f.failFor, f.slowWrite
	f.mu.Unlock()
	if tr.SessionID == failFor {
		return errors.New("disk full")
	}
	time.Sleep(slow)
	return f.SQLiteStore.SaveTranscript(ctx, tr)
}

func TestShutdownFlushesOthersWhenOneFlushFails(t *testing.T) {
	ctx := context.Background()
	db := &flakyTranscriptStore{SQLiteStore: helpers.NewTestSQLiteStore(t), slowWrite: 300 * time.Millisecond}
	svc := New(db, llm.NewMockClient(), Options{
		Coach:       coach.DefaultConfig(),
		AudioFormat: capture.DefaultFormat,
		Clock:       clock.NewFake(start),
	})

	ids := map[string]string{}
	second := make([]byte, capture.DefaultFormat.BytesPerSecond())
	for _, user := range []string{"alice", "bob"} {
		s, err := svc.StartSession(ctx, user, domain.StartSessionRequest{Type: domain.SessionTypeMeeting})
		require.NoError(t, err)
		ids[user] = s.ID
		require.NoError(t, svc.PushAudio(user, second, false))
	}
	for _, user := range []string{"alice", "bob"} {
		require.Eventually(t, func() bool {
			snap, err := svc.Snapshot(user)
			return err == nil && snap.WordCount == 10
		}, 2*time.Second, 5*time.Millisecond)
	}

	db.mu.Lock()
	db.failFor = ids["alice"]
	db.mu.Unlock()

	err := svc.Shutdown(ctx)
	require.Error(t, err)
	var perr *domain.PersistenceError
	assert.True(t, errors.As(err, &perr))

	bobTranscript, err := db.GetTranscript(ctx, ids["bob"])
	require.NoError(t, err)
	require.NotNil(t, bobTranscript)
	assert.Equal(t, 10, bobTranscript.WordCount)

	for _, user := range []string{"alice", "bob"} {
		s, err := db.GetSession(ctx, ids[user])
		require.NoError(t, err)
		assert.Equal(t, domain.SessionStatusCompleted, s.Status, user)
	}
}
