// Package helpers holds fixtures shared by package tests.
package helpers

import (
	"context"
	"testing"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/repository"
)

// NewTestSQLiteStore opens an in-memory store that is closed when the test
// ends.
func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// SeedSessions records finished or orphaned sessions directly in the store.
func SeedSessions(t *testing.T, s store.Store, sessions ...domain.Session) {
	t.Helper()
	for i := range sessions {
		if err := s.CreateSession(context.Background(), &sessions[i]); err != nil {
			t.Fatalf("failed to seed session %s: %v", sessions[i].ID, err)
		}
	}
}

// SeedAnalytics upserts analytics records for seeded sessions.
func SeedAnalytics(t *testing.T, s store.Store, records ...domain.SessionAnalytics) {
	t.Helper()
	for i := range records {
		if err := s.UpsertAnalytics(context.Background(), &records[i]); err != nil {
			t.Fatalf("failed to seed analytics for %s: %v", records[i].SessionID, err)
		}
	}
}
