package service

import (
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/capture"
	"github.com/xiaot623/gogo/livecoach/internal/clock"
	"github.com/xiaot623/gogo/livecoach/internal/coach"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/repository"
)

// PublisherFunc returns the live event publisher of a user.
type PublisherFunc func(userID string) coach.Publisher

// Options configures a Service.
type Options struct {
	Coach       coach.Config
	AudioFormat capture.Format
	Clock       clock.Clock
	Policy      coach.DeliveryPolicy
	Publishers  PublisherFunc
}

// Service owns at most one live session per user and maps user controls to
// it. Devices are push devices fed by the transport layer.
type Service struct {
	store   store.Store
	backend llm.Backend
	opts    Options

	mu   sync.Mutex
	live map[string]*liveSession
}

type liveSession struct {
	orch   *coach.Orchestrator
	mic    *capture.PushMicrophone
	system *capture.PushMicrophone
	screen *capture.PushScreen
}

func New(store store.Store, backend llm.Backend, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.AudioFormat.SampleRate == 0 {
		opts.AudioFormat = capture.DefaultFormat
	}
	return &Service{
		store:   store,
		backend: backend,
		opts:    opts,
		live:    make(map[string]*liveSession),
	}
}

func (s *Service) current(userID string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.live[userID]
	if !ok {
		return nil, domain.ErrNoActiveSession
	}
	return ls, nil
}

// LiveSessionCount returns the number of running sessions.
func (s *Service) LiveSessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Shutdown stops every live session concurrently, flushing each one. A
// failed flush does not cut the others short; all failures are returned.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*liveSession, 0, len(s.live))
	for userID, ls := range s.live {
		sessions = append(sessions, ls)
		delete(s.live, userID)
	}
	s.mu.Unlock()

	var g errgroup.Group
	errs := make([]error, len(sessions))
	for i, ls := range sessions {
		g.Go(func() error {
			_, err := ls.orch.Stop(ctx)
			if err != nil && !errors.Is(err, domain.ErrSessionStopped) {
				log.Printf("ERROR: failed to stop session %s on shutdown: %v", ls.orch.ID(), err)
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()
	for _, ls := range sessions {
		ls.orch.Wait()
	}
	return errors.Join(errs...)
}

// FollowIdentity stops the sessions of users that are no longer signed in
// whenever the signed-in user changes. It returns when changes is closed
// or ctx is done.
func (s *Service) FollowIdentity(ctx context.Context, changes <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case userID, ok := <-changes:
			if !ok {
				return
			}
			s.mu.Lock()
			var others []string
			for id := range s.live {
				if id != userID {
					others = append(others, id)
				}
			}
			s.mu.Unlock()
			for _, id := range others {
				if _, err := s.StopSession(ctx, id); err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
					log.Printf("WARN: failed to stop session of signed-out user %s: %v", id, err)
				}
			}
		}
	}
}
