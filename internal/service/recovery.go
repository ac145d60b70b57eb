package service

import (
	"context"
	"log"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/repository"
)

// RecoverOrphanedSessions completes sessions that the store still lists as
// active or paused but that no orchestrator owns, which happens when the
// process died mid-session. Only the active time recorded before the crash
// is kept. It returns the number of sessions completed.
func (s *Service) RecoverOrphanedSessions(ctx context.Context) (int, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.mu.Lock()
	owned := make(map[string]bool, len(s.live))
	for _, ls := range s.live {
		owned[ls.orch.ID()] = true
	}
	s.mu.Unlock()

	recovered := 0
	for _, status := range []domain.SessionStatus{domain.SessionStatusActive, domain.SessionStatusPaused} {
		orphans, err := s.store.ListSessions(sweepCtx, store.SessionFilter{Status: status})
		if err != nil {
			return recovered, err
		}
		for _, session := range orphans {
			if owned[session.ID] {
				continue
			}
			now := s.opts.Clock.Now()
			session.Status = domain.SessionStatusCompleted
			session.EndedAt = &now
			if err := s.store.UpdateSession(sweepCtx, &session); err != nil {
				log.Printf("WARN: failed to complete orphaned session %s: %v", session.ID, err)
				continue
			}
			recovered++
		}
	}
	if recovered > 0 {
		log.Printf("Recovered %d orphaned sessions", recovered)
	}
	return recovered, nil
}
