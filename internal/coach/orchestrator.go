// Package coach runs live coaching sessions: it schedules transcription,
// suggestion, screen analysis and feedback calls around the capture sources
// of one session and persists what they produce.
package coach

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/capture"
	"github.com/xiaot623/gogo/livecoach/internal/clock"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/repository"
	"github.com/xiaot623/gogo/livecoach/internal/ring"
)

// Publisher receives live events for subscribers of a session.
type Publisher interface {
	Publish(ev domain.LiveEvent)
}

// DeliveryPolicy decides how a feedback event is surfaced.
type DeliveryPolicy interface {
	Decide(ctx context.Context, sessionType domain.SessionType, ev domain.FeedbackEvent) (domain.Delivery, error)
}

// Deps are the collaborators of an orchestrator. Microphone is required;
// the other devices are optional.
type Deps struct {
	Backend   llm.Backend
	Store     store.Store
	Clock     clock.Clock
	Publisher Publisher
	Policy    DeliveryPolicy

	Microphone  capture.Microphone
	SystemAudio capture.Microphone
	Screen      capture.Screen
}

// Orchestrator owns one live session. All session state is confined to a
// single loop goroutine; timers, device callbacks and inference results are
// posted to it as closures.
type Orchestrator struct {
	deps Deps
	cfg  Config
	id   string

	inbox chan func()
	quit  chan struct{}
	done  chan struct{}

	opMu    sync.Mutex
	started bool
	running atomic.Bool
	runCtx  context.Context
	cancel  context.CancelFunc
	calls   sync.WaitGroup

	mic    *capture.AudioSource
	system *capture.AudioSource
	screen *capture.ScreenSource

	// Loop-owned state.
	session      domain.Session
	activeSince  time.Time
	stopping     bool
	timers       []clock.Timer
	transcript   *Transcript
	suggestions  *SuggestionScheduler
	vision       *VisionScheduler
	feedback     *FeedbackEngine
	analytics    *Analytics
	frames       *ring.Ring[domain.CaptureFrame]
	chunks       map[int64]capture.AudioChunk
	sourceErrors map[string]string
	persister    *Persister
}

// New prepares an orchestrator for a new session of userID. Nothing runs
// until Start.
func New(deps Deps, cfg Config, userID string, req domain.StartSessionRequest) (*Orchestrator, error) {
	if deps.Backend == nil || deps.Store == nil || deps.Microphone == nil {
		return nil, errors.New("coach: backend, store and microphone are required")
	}
	if userID == "" {
		return nil, domain.ErrInvalidRequest
	}
	sessionType := req.Type
	if sessionType == "" {
		sessionType = domain.SessionTypeOther
	}
	if !sessionType.Valid() {
		return nil, domain.ErrInvalidRequest
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}

	id := domain.NewID("sess")
	runCtx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		id:     id,
		inbox:  make(chan func(), 256),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		runCtx: runCtx,
		cancel: cancel,
		session: domain.Session{
			ID:            id,
			UserID:        userID,
			Type:          sessionType,
			Title:         req.Title,
			Status:        domain.SessionStatusActive,
			ScreenEnabled: req.ScreenEnabled && deps.Screen != nil,
		},
		transcript:   NewTranscript(),
		suggestions:  NewSuggestionScheduler(cfg.SuggestionWordStep),
		vision:       NewVisionScheduler(cfg.AnalysisMinGap, cfg.AnalysisHistorySize),
		feedback:     NewFeedbackEngine(cfg.FeedbackLowTTL, cfg.FeedbackHistorySize),
		analytics:    NewAnalytics(id),
		frames:       ring.New[domain.CaptureFrame](max(cfg.FrameBufferSize, 1)),
		chunks:       make(map[int64]capture.AudioChunk),
		sourceErrors: make(map[string]string),
	}

	seq := &capture.Sequencer{}
	o.mic = o.newAudioSource(deps.Microphone, true, seq)
	if deps.SystemAudio != nil && req.SystemAudio {
		o.system = o.newAudioSource(deps.SystemAudio, false, seq)
	}
	if deps.Screen != nil {
		o.screen = capture.NewScreenSource(deps.Screen, capture.ScreenOptions{
			Clock:    deps.Clock,
			Interval: cfg.ScreenInterval,
			OnFrame:  func(f domain.CaptureFrame) { o.post(func() { o.onFrame(f) }) },
			OnError:  func(err error) { o.post(func() { o.onSourceError(err) }) },
		})
	}
	return o, nil
}

func (o *Orchestrator) newAudioSource(mic capture.Microphone, isUser bool, seq *capture.Sequencer) *capture.AudioSource {
	name := mic.Name()
	return capture.NewAudioSource(mic, capture.AudioOptions{
		Clock:         o.deps.Clock,
		ChunkInterval: o.cfg.ChunkInterval,
		IsUser:        isUser,
		Sequencer:     seq,
		OnLevel: func(level float64) {
			o.post(func() { o.onLevel(name, level) })
		},
		OnChunk: func(c capture.AudioChunk) { o.post(func() { o.onChunk(c) }) },
		OnError: func(err error) { o.post(func() { o.onSourceError(err) }) },
	})
}

// ID returns the session id.
func (o *Orchestrator) ID() string { return o.id }

// UserID returns the owner of the session.
func (o *Orchestrator) UserID() string { return o.session.UserID }

// Start records the session, starts the loop, the timers and the capture
// sources. A device that cannot be acquired is reported as a source error
// and the session continues without it. Failure to record the session is
// returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	if o.started {
		return domain.ErrSessionAlreadyActive
	}

	o.session.StartedAt = o.deps.Clock.Now()
	if err := o.deps.Store.CreateSession(ctx, &o.session); err != nil {
		o.cancel()
		return &domain.PersistenceError{Op: "create_session", Err: err}
	}
	o.started = true
	o.persister = NewPersister(o.deps.Store, o.deps.Clock, o.id, o.cfg.TranscriptDebounce, o.cfg.StoreWriteTimeout)
	o.running.Store(true)
	go o.loop()

	screenOn := false
	_ = o.call(func() {
		o.activeSince = o.session.StartedAt
		o.timers = append(o.timers,
			clock.Every(o.deps.Clock, o.cfg.AnalysisInterval, func() { o.post(o.analysisTick) }),
			clock.Every(o.deps.Clock, o.cfg.FeedbackSweepInterval, func() { o.post(o.sweepTick) }),
		)
		screenOn = o.session.ScreenEnabled
		o.persister.SaveAnalytics(o.analytics.Snapshot(o.session.StartedAt))
		o.publish(domain.EventTypeSessionStarted, o.session)
	})

	o.startAudio()
	if screenOn {
		o.startScreen()
	}
	return nil
}

// Stop ends the session: timers are cancelled, devices released, the
// duration finalized and pending writes flushed before the session is
// marked completed. In-flight inference results are discarded. A failed
// final flush is returned along with the completed session.
func (o *Orchestrator) Stop(ctx context.Context) (domain.Session, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	if !o.started {
		return domain.Session{}, domain.ErrNoActiveSession
	}

	already := false
	if err := o.call(func() {
		if o.stopping {
			already = true
			return
		}
		o.stopping = true
		for _, t := range o.timers {
			t.Stop()
		}
		o.timers = nil
	}); err != nil || already {
		return domain.Session{}, domain.ErrSessionStopped
	}

	o.stopSources()

	var final domain.Session
	_ = o.call(func() {
		now := o.deps.Clock.Now()
		if o.session.Status == domain.SessionStatusActive {
			o.session.DurationMs += now.Sub(o.activeSince).Milliseconds()
		}
		o.session.Status = domain.SessionStatusCompleted
		o.session.EndedAt = &now
		o.persister.SaveAnalytics(o.analytics.Snapshot(now))
		final = o.session
	})
	o.cancel()

	err := o.persister.Finish(ctx, final)
	close(o.quit)
	<-o.done

	o.publishEvent(domain.LiveEvent{
		Type:      domain.EventTypeSessionStopped,
		SessionID: o.id,
		Ts:        final.EndedAt.UnixMilli(),
		Data:      final,
	})
	if err != nil {
		log.Printf("ERROR: session %s: final flush failed: %v", o.id, err)
	}
	return final, err
}

// Wait blocks until every inference call issued by the session returned.
func (o *Orchestrator) Wait() {
	o.calls.Wait()
}

// Pause stops capture and excludes the paused time from the duration.
// Results already in flight are still applied.
func (o *Orchestrator) Pause(ctx context.Context) (domain.Session, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	var out domain.Session
	var opErr error
	if err := o.call(func() {
		if o.stopping {
			opErr = domain.ErrSessionStopped
			return
		}
		if o.session.Status != domain.SessionStatusActive {
			opErr = domain.ErrInvalidRequest
			return
		}
		now := o.deps.Clock.Now()
		o.session.DurationMs += now.Sub(o.activeSince).Milliseconds()
		o.session.Status = domain.SessionStatusPaused
		o.persister.SaveSession(o.session)
		o.publish(domain.EventTypeSessionPaused, o.session)
		out = o.session
	}); err != nil {
		return domain.Session{}, err
	}
	if opErr != nil {
		return domain.Session{}, opErr
	}
	o.stopSources()
	return out, nil
}

// Resume restarts capture after Pause.
func (o *Orchestrator) Resume(ctx context.Context) (domain.Session, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	var out domain.Session
	var opErr error
	if err := o.call(func() {
		if o.stopping {
			opErr = domain.ErrSessionStopped
			return
		}
		if o.session.Status != domain.SessionStatusPaused {
			opErr = domain.ErrInvalidRequest
			return
		}
		o.activeSince = o.deps.Clock.Now()
		o.session.Status = domain.SessionStatusActive
		o.persister.SaveSession(o.session)
		o.publish(domain.EventTypeSessionResumed, o.session)
		out = o.session
	}); err != nil {
		return domain.Session{}, err
	}
	if opErr != nil {
		return domain.Session{}, opErr
	}
	o.startAudio()
	if out.ScreenEnabled {
		o.startScreen()
	}
	return out, nil
}

// SetScreenAnalysis turns screen capture and analysis on or off.
func (o *Orchestrator) SetScreenAnalysis(ctx context.Context, enabled bool) (domain.Session, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	if enabled && o.screen == nil {
		return domain.Session{}, domain.ErrInvalidRequest
	}

	var out domain.Session
	var opErr error
	if err := o.call(func() {
		if o.stopping {
			opErr = domain.ErrSessionStopped
			return
		}
		if o.session.ScreenEnabled != enabled {
			o.session.ScreenEnabled = enabled
			if enabled {
				delete(o.sourceErrors, o.screen.Name())
			}
			o.persister.SaveSession(o.session)
			o.publish(domain.EventTypeScreenToggled, o.session)
		}
		out = o.session
	}); err != nil {
		return domain.Session{}, err
	}
	if opErr != nil {
		return domain.Session{}, opErr
	}

	switch {
	case !enabled && o.screen != nil:
		o.screen.Stop()
	case enabled && out.Status == domain.SessionStatusActive:
		o.startScreen()
	}
	return out, nil
}

// DismissFeedback dismisses a feedback event.
func (o *Orchestrator) DismissFeedback(id string) (domain.FeedbackEvent, error) {
	var out domain.FeedbackEvent
	var opErr error
	if err := o.call(func() {
		ev, changed, err := o.feedback.Dismiss(id)
		if err != nil {
			opErr = err
			return
		}
		if changed {
			o.persister.FeedbackDismissed(id)
			o.publish(domain.EventTypeFeedbackDismissed, domain.FeedbackDismissedPayload{FeedbackID: id, Reason: "user"})
		}
		out = ev
	}); err != nil {
		return domain.FeedbackEvent{}, err
	}
	return out, opErr
}

// MarkSuggestionUsed flips the used flag of a suggestion.
func (o *Orchestrator) MarkSuggestionUsed(id string) (domain.Suggestion, error) {
	var out domain.Suggestion
	var opErr error
	if err := o.call(func() {
		sg, changed, err := o.suggestions.MarkUsed(id)
		if err != nil {
			opErr = err
			return
		}
		if changed {
			o.persister.SuggestionUsed(id)
			o.publish(domain.EventTypeSuggestionUsed, sg)
			o.refreshSuggestionCounts()
			o.analyticsChanged()
		}
		out = sg
	}); err != nil {
		return domain.Suggestion{}, err
	}
	return out, opErr
}

// Snapshot returns the current state of the session.
func (o *Orchestrator) Snapshot() (domain.SessionSnapshot, error) {
	var snap domain.SessionSnapshot
	err := o.call(func() {
		now := o.deps.Clock.Now()
		s := o.session
		s.DurationMs = o.elapsed(now).Milliseconds()
		snap = domain.SessionSnapshot{
			Session:        s,
			Transcript:     o.transcript.Text(),
			WordCount:      o.transcript.WordCount(),
			Suggestions:    o.suggestions.All(),
			LatestAnalysis: o.vision.Latest(),
			ActiveFeedback: o.feedback.Active(),
			Feedbacks:      o.feedback.All(),
			Analytics:      o.analytics.Snapshot(now),
		}
		if len(o.sourceErrors) > 0 {
			snap.SourceErrors = make(map[string]string, len(o.sourceErrors))
			for k, v := range o.sourceErrors {
				snap.SourceErrors[k] = v
			}
		}
	})
	return snap, err
}

// Transcript returns the assembled transcript and its segments.
func (o *Orchestrator) Transcript() (domain.Transcript, []domain.TranscriptSegment, error) {
	var t domain.Transcript
	var segs []domain.TranscriptSegment
	err := o.call(func() {
		t = o.transcript.Record(o.id, o.deps.Clock.Now())
		segs = o.transcript.Segments()
	})
	return t, segs, err
}

// Suggestions returns every suggestion of the session.
func (o *Orchestrator) Suggestions() ([]domain.Suggestion, error) {
	var out []domain.Suggestion
	err := o.call(func() { out = o.suggestions.All() })
	return out, err
}

// Analyses returns the retained screen analyses, oldest first.
func (o *Orchestrator) Analyses() ([]domain.VisualAnalysis, error) {
	var out []domain.VisualAnalysis
	err := o.call(func() { out = o.vision.History() })
	return out, err
}

// LatestAnalysis returns the most recent screen analysis, nil before the
// first attempt.
func (o *Orchestrator) LatestAnalysis() (*domain.VisualAnalysis, error) {
	var out *domain.VisualAnalysis
	err := o.call(func() { out = o.vision.Latest() })
	return out, err
}

// ActiveFeedbacks returns the non-dismissed events above low priority.
func (o *Orchestrator) ActiveFeedbacks() ([]domain.FeedbackEvent, error) {
	var out []domain.FeedbackEvent
	err := o.call(func() { out = o.feedback.ActiveFeedbacks() })
	return out, err
}

// RecentInsights returns the events created within window.
func (o *Orchestrator) RecentInsights(window time.Duration) ([]domain.FeedbackEvent, error) {
	var out []domain.FeedbackEvent
	err := o.call(func() { out = o.feedback.Recent(o.deps.Clock.Now(), window) })
	return out, err
}

// Analytics returns the current analytics record.
func (o *Orchestrator) Analytics() (domain.SessionAnalytics, error) {
	var out domain.SessionAnalytics
	err := o.call(func() { out = o.analytics.Snapshot(o.deps.Clock.Now()) })
	return out, err
}

func (o *Orchestrator) loop() {
	defer close(o.done)
	for {
		select {
		case fn := <-o.inbox:
			fn()
		case <-o.quit:
			return
		}
	}
}

// post queues fn on the loop. It reports false once the loop has exited.
func (o *Orchestrator) post(fn func()) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.inbox <- fn:
		return true
	case <-o.done:
		return false
	}
}

// call runs fn on the loop and waits for it. Before Start there is no loop
// and the session does not exist yet.
func (o *Orchestrator) call(fn func()) error {
	if !o.running.Load() {
		return domain.ErrNoActiveSession
	}
	ran := make(chan struct{})
	if !o.post(func() { fn(); close(ran) }) {
		return domain.ErrSessionStopped
	}
	select {
	case <-ran:
		return nil
	case <-o.done:
		select {
		case <-ran:
			return nil
		default:
			return domain.ErrSessionStopped
		}
	}
}

// live reports whether async results may still be applied.
func (o *Orchestrator) live() bool {
	return !o.stopping && o.session.Status != domain.SessionStatusCompleted
}

func (o *Orchestrator) elapsed(now time.Time) time.Duration {
	d := time.Duration(o.session.DurationMs) * time.Millisecond
	if o.session.Status == domain.SessionStatusActive {
		d += now.Sub(o.activeSince)
	}
	return d
}

func (o *Orchestrator) startAudio() {
	for _, src := range []*capture.AudioSource{o.mic, o.system} {
		if src == nil {
			continue
		}
		if err := src.Start(o.runCtx); err != nil {
			o.post(func() { o.onSourceError(err) })
		}
	}
}

func (o *Orchestrator) startScreen() {
	if o.screen == nil {
		return
	}
	if err := o.screen.Start(o.runCtx); err != nil {
		o.post(func() { o.onSourceError(err) })
	}
}

func (o *Orchestrator) stopSources() {
	if o.mic != nil {
		o.mic.Stop()
	}
	if o.system != nil {
		o.system.Stop()
	}
	if o.screen != nil {
		o.screen.Stop()
	}
}

// goInfer runs an inference call off the loop and posts its completion.
func (o *Orchestrator) goInfer(call func(ctx context.Context) (string, error), done func(out string, err error)) {
	o.calls.Add(1)
	go func() {
		defer o.calls.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.InferenceTimeout)
		defer cancel()
		out, err := call(ctx)
		o.post(func() { done(out, err) })
	}()
}

func (o *Orchestrator) onLevel(source string, level float64) {
	if !o.live() || o.session.Status != domain.SessionStatusActive {
		return
	}
	o.publish(domain.EventTypeAudioLevel, domain.AudioLevelPayload{Source: source, Level: level})
}

func (o *Orchestrator) onSourceError(err error) {
	if !o.live() {
		return
	}
	source := "capture"
	var devErr *domain.DeviceError
	if errors.As(err, &devErr) {
		source = devErr.Source
	}
	o.sourceErrors[source] = err.Error()
	log.Printf("WARN: session %s: %v", o.id, err)
	o.publish(domain.EventTypeSourceError, domain.SourceErrorPayload{Source: source, Error: err.Error()})
}

func (o *Orchestrator) onChunk(c capture.AudioChunk) {
	if !o.live() {
		return
	}
	meta := c
	meta.Data = nil
	o.chunks[c.Seq] = meta
	backend, lang := o.deps.Backend, o.cfg.TranscribeLanguage
	o.goInfer(func(ctx context.Context) (string, error) {
		return backend.TranscribeAudio(ctx, c.Data, c.MIMEType, lang)
	}, func(text string, err error) {
		o.applyTranscription(c.Seq, text, err)
	})
}

func (o *Orchestrator) applyTranscription(seq int64, text string, err error) {
	if !o.live() {
		return
	}
	chunk := o.chunks[seq]
	resolvedFrom := o.transcript.Next()

	var applied []domain.TranscriptSegment
	if err != nil {
		log.Printf("WARN: session %s: transcription of chunk %d failed: %v", o.id, seq, err)
		applied = o.transcript.Skip(seq)
	} else {
		applied = o.transcript.Append(seq, domain.TranscriptSegment{
			ID:         domain.NewID("seg"),
			SessionID:  o.id,
			Text:       text,
			CapturedAt: chunk.CapturedAt,
			IsUser:     chunk.IsUser,
			Confidence: 1,
			Source:     chunk.Source,
		})
	}
	for _, seg := range applied {
		if c, ok := o.chunks[seg.Seq]; ok {
			o.analytics.AddSpeech(seg.IsUser, c.Duration)
		}
	}
	// Every slot the transcript moved past is settled, blank ones included.
	for s := resolvedFrom; s < o.transcript.Next(); s++ {
		delete(o.chunks, s)
	}
	if len(applied) == 0 {
		return
	}

	now := o.deps.Clock.Now()
	o.persister.TranscriptChanged(o.transcript.Record(o.id, now), applied)
	o.publish(domain.EventTypeTranscript, domain.TranscriptPayload{Segments: applied, WordCount: o.transcript.WordCount()})
	o.analyticsChanged()
	o.maybeSuggest()
}

func (o *Orchestrator) maybeSuggest() {
	if !o.suggestions.Observe(o.transcript.WordCount()) {
		return
	}
	req := llm.SuggestionPrompt(string(o.session.Type), o.transcript.Tail(o.cfg.TranscriptTailWords))
	backend := o.deps.Backend
	o.goInfer(func(ctx context.Context) (string, error) {
		return backend.GenerateText(ctx, req)
	}, o.applySuggestions)
}

func (o *Orchestrator) applySuggestions(out string, err error) {
	if !o.live() {
		return
	}
	if err != nil {
		o.suggestions.Fail()
		log.Printf("WARN: session %s: suggestion request failed: %v", o.id, err)
		return
	}

	res := llm.ParseJSON[llm.SuggestionReply](out)
	if !res.Ok() {
		log.Printf("WARN: session %s: suggestion reply was not JSON, keeping raw text", o.id)
	}
	added, hints := o.suggestions.Complete(o.id, o.deps.Clock.Now(), res)
	for _, sg := range added {
		o.persister.SaveSuggestion(sg)
	}
	if len(added) > 0 {
		o.publish(domain.EventTypeSuggestions, domain.SuggestionsPayload{Suggestions: added, Fallback: !res.Ok()})
	}
	o.refreshSuggestionCounts()
	o.analytics.ApplyHints(hints)
	o.analyticsChanged()
}

func (o *Orchestrator) refreshSuggestionCounts() {
	total, used := o.suggestions.Counts()
	o.analytics.SetSuggestionCounts(total, used)
}

func (o *Orchestrator) analyticsChanged() {
	snap := o.analytics.Snapshot(o.deps.Clock.Now())
	o.persister.SaveAnalytics(snap)
	o.publish(domain.EventTypeAnalytics, snap)
}

func (o *Orchestrator) onFrame(f domain.CaptureFrame) {
	if !o.live() || !o.session.ScreenEnabled || o.session.Status != domain.SessionStatusActive {
		return
	}
	o.frames.Push(f)
}

func (o *Orchestrator) analysisTick() {
	if !o.live() || !o.session.ScreenEnabled || o.session.Status != domain.SessionStatusActive {
		return
	}
	frame, ok := o.frames.Latest()
	if !ok || !o.vision.ShouldAnalyze(&frame) {
		return
	}
	o.vision.Begin(frame)

	req := llm.VisionPrompt(string(o.session.Type), frame.WindowLabel, llm.ImageInput{Data: frame.Image, MIMEType: frame.MIMEType})
	backend := o.deps.Backend
	o.goInfer(func(ctx context.Context) (string, error) {
		return backend.GenerateMultimodal(ctx, req)
	}, func(out string, err error) {
		o.applyAnalysis(frame, out, err)
	})
}

func (o *Orchestrator) applyAnalysis(frame domain.CaptureFrame, out string, err error) {
	if !o.live() {
		return
	}
	now := o.deps.Clock.Now()
	var a domain.VisualAnalysis
	if err != nil {
		log.Printf("WARN: session %s: screen analysis failed: %v", o.id, err)
		a = o.vision.Fail(frame, now)
	} else {
		a = o.vision.Complete(frame, now, llm.ParseJSON[llm.VisionReply](out))
	}
	o.publish(domain.EventTypeAnalysis, a)
	o.maybeFeedback(a)
}

func (o *Orchestrator) maybeFeedback(a domain.VisualAnalysis) {
	if !o.feedback.TryBegin(a) {
		return
	}
	now := o.deps.Clock.Now()
	fctx := domain.FeedbackContext{
		SessionType: o.session.Type,
		ElapsedMs:   o.elapsed(now).Milliseconds(),
		Activity:    a.Context,
	}
	req := llm.FeedbackPrompt(llm.FeedbackInput{
		SessionType:    string(o.session.Type),
		Elapsed:        o.elapsed(now),
		TranscriptTail: o.transcript.Tail(o.cfg.TranscriptTailWords / 2),
		VisualContent:  a.Content,
		VisualContext:  a.Context,
	})
	backend := o.deps.Backend
	o.goInfer(func(ctx context.Context) (string, error) {
		return backend.GenerateText(ctx, req)
	}, func(out string, err error) {
		o.applyFeedback(fctx, out, err)
	})
}

func (o *Orchestrator) applyFeedback(fctx domain.FeedbackContext, out string, err error) {
	if !o.live() {
		return
	}
	if err != nil {
		o.feedback.Fail()
		log.Printf("WARN: session %s: feedback request failed: %v", o.id, err)
		return
	}
	ev, _ := o.feedback.Complete(o.id, o.deps.Clock.Now(), fctx, llm.ParseJSON[llm.FeedbackReply](out))
	if ev == nil {
		log.Printf("WARN: session %s: feedback reply unusable, skipping", o.id)
		return
	}
	o.persister.SaveFeedback(*ev)

	delivery := domain.DeliveryNotify
	if o.deps.Policy != nil {
		d, err := o.deps.Policy.Decide(o.runCtx, o.session.Type, *ev)
		if err != nil {
			log.Printf("WARN: session %s: delivery policy failed: %v", o.id, err)
		} else {
			delivery = d
		}
	}
	state, _ := o.feedback.State(ev.ID)
	o.publish(domain.EventTypeFeedback, domain.FeedbackPayload{Feedback: *ev, Delivery: delivery, State: state})
}

func (o *Orchestrator) sweepTick() {
	if !o.live() {
		return
	}
	for _, ev := range o.feedback.Sweep(o.deps.Clock.Now()) {
		o.persister.FeedbackDismissed(ev.ID)
		o.publish(domain.EventTypeFeedbackDismissed, domain.FeedbackDismissedPayload{FeedbackID: ev.ID, Reason: "expired"})
	}
}

func (o *Orchestrator) publish(t domain.EventType, data interface{}) {
	o.publishEvent(domain.LiveEvent{
		Type:      t,
		SessionID: o.id,
		Ts:        o.deps.Clock.Now().UnixMilli(),
		Data:      data,
	})
}

func (o *Orchestrator) publishEvent(ev domain.LiveEvent) {
	if o.deps.Publisher != nil {
		o.deps.Publisher.Publish(ev)
	}
}
