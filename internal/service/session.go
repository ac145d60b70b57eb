package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/capture"
	"github.com/xiaot623/gogo/livecoach/internal/coach"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

// StartSession starts a live session for userID.
func (s *Service) StartSession(ctx context.Context, userID string, req domain.StartSessionRequest) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[userID]; ok {
		return domain.Session{}, domain.ErrSessionAlreadyActive
	}

	ls := &liveSession{
		mic:    capture.NewPushMicrophone("microphone", s.opts.AudioFormat),
		system: capture.NewPushMicrophone("system_audio", s.opts.AudioFormat),
		screen: capture.NewPushScreen("screen"),
	}
	deps := coach.Deps{
		Backend:     s.backend,
		Store:       s.store,
		Clock:       s.opts.Clock,
		Policy:      s.opts.Policy,
		Microphone:  ls.mic,
		SystemAudio: ls.system,
		Screen:      ls.screen,
	}
	if s.opts.Publishers != nil {
		deps.Publisher = s.opts.Publishers(userID)
	}

	orch, err := coach.New(deps, s.opts.Coach, userID, req)
	if err != nil {
		return domain.Session{}, err
	}
	if err := orch.Start(ctx); err != nil {
		return domain.Session{}, err
	}
	ls.orch = orch
	s.live[userID] = ls

	snap, err := orch.Snapshot()
	if err != nil {
		return domain.Session{}, err
	}
	return snap.Session, nil
}

// StopSession stops the live session of userID. The flushed session is
// returned even when the final flush failed.
func (s *Service) StopSession(ctx context.Context, userID string) (domain.Session, error) {
	s.mu.Lock()
	ls, ok := s.live[userID]
	delete(s.live, userID)
	s.mu.Unlock()
	if !ok {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	return ls.orch.Stop(ctx)
}

// PauseSession pauses the live session of userID.
func (s *Service) PauseSession(ctx context.Context, userID string) (domain.Session, error) {
	ls, err := s.current(userID)
	if err != nil {
		return domain.Session{}, err
	}
	return ls.orch.Pause(ctx)
}

// ResumeSession resumes the live session of userID.
func (s *Service) ResumeSession(ctx context.Context, userID string) (domain.Session, error) {
	ls, err := s.current(userID)
	if err != nil {
		return domain.Session{}, err
	}
	return ls.orch.Resume(ctx)
}

// SetScreenAnalysis toggles screen analysis of the live session.
func (s *Service) SetScreenAnalysis(ctx context.Context, userID string, enabled bool) (domain.Session, error) {
	ls, err := s.current(userID)
	if err != nil {
		return domain.Session{}, err
	}
	return ls.orch.SetScreenAnalysis(ctx, enabled)
}

// DismissFeedback dismisses a feedback event of the live session.
func (s *Service) DismissFeedback(userID, feedbackID string) (domain.FeedbackEvent, error) {
	ls, err := s.current(userID)
	if err != nil {
		return domain.FeedbackEvent{}, err
	}
	return ls.orch.DismissFeedback(feedbackID)
}

// MarkSuggestionUsed marks a suggestion of the live session as used.
func (s *Service) MarkSuggestionUsed(userID, suggestionID string) (domain.Suggestion, error) {
	ls, err := s.current(userID)
	if err != nil {
		return domain.Suggestion{}, err
	}
	return ls.orch.MarkSuggestionUsed(suggestionID)
}

// PushAudio feeds PCM16LE bytes into the microphone, or the system audio
// device when system is set. Audio sent while paused is rejected.
func (s *Service) PushAudio(userID string, pcm []byte, system bool) error {
	ls, err := s.current(userID)
	if err != nil {
		return err
	}
	dev := ls.mic
	if system {
		dev = ls.system
	}
	if _, err := dev.Write(pcm); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// PushFrame offers a screen capture to the live session.
func (s *Service) PushFrame(userID string, still capture.Still) error {
	ls, err := s.current(userID)
	if err != nil {
		return err
	}
	if len(still.Image) == 0 {
		return fmt.Errorf("%w: empty frame", domain.ErrInvalidRequest)
	}
	if err := ls.screen.Submit(still); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// Snapshot returns the state of the live session of userID.
func (s *Service) Snapshot(userID string) (domain.SessionSnapshot, error) {
	ls, err := s.current(userID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return ls.orch.Snapshot()
}

// LiveTranscript returns the transcript of the live session.
func (s *Service) LiveTranscript(userID string) (domain.Transcript, []domain.TranscriptSegment, error) {
	ls, err := s.current(userID)
	if err != nil {
		return domain.Transcript{}, nil, err
	}
	return ls.orch.Transcript()
}

// Suggestions returns the suggestions of the live session.
func (s *Service) Suggestions(userID string) ([]domain.Suggestion, error) {
	ls, err := s.current(userID)
	if err != nil {
		return nil, err
	}
	return ls.orch.Suggestions()
}

// Analyses returns the retained screen analyses and the latest one.
func (s *Service) Analyses(userID string) ([]domain.VisualAnalysis, *domain.VisualAnalysis, error) {
	ls, err := s.current(userID)
	if err != nil {
		return nil, nil, err
	}
	history, err := ls.orch.Analyses()
	if err != nil {
		return nil, nil, err
	}
	latest, err := ls.orch.LatestAnalysis()
	return history, latest, err
}

// ActiveFeedbacks returns the non-dismissed, non-low events of the live session.
func (s *Service) ActiveFeedbacks(userID string) ([]domain.FeedbackEvent, error) {
	ls, err := s.current(userID)
	if err != nil {
		return nil, err
	}
	return ls.orch.ActiveFeedbacks()
}

// RecentInsights returns the feedback events created within window.
func (s *Service) RecentInsights(userID string, window time.Duration) ([]domain.FeedbackEvent, error) {
	ls, err := s.current(userID)
	if err != nil {
		return nil, err
	}
	return ls.orch.RecentInsights(window)
}

// LiveAnalytics returns the analytics of the live session.
func (s *Service) LiveAnalytics(userID string) (domain.SessionAnalytics, error) {
	ls, err := s.current(userID)
	if err != nil {
		return domain.SessionAnalytics{}, err
	}
	return ls.orch.Analytics()
}
