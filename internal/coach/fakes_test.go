package coach

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/capture"
	"github.com/xiaot623/gogo/livecoach/internal/clock"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/repository"
	"github.com/xiaot623/gogo/livecoach/tests/helpers"
)

type fakeBackend struct {
	mu sync.Mutex

	transcribe func(audio []byte) (string, error)
	text       func(req llm.TextRequest) (string, error)
	vision     func(req llm.MultimodalRequest) (string, error)
	gate       chan struct{}

	transcribeCalls int
	textCalls       int
	visionCalls     int
	textInFlight    int
	maxTextInFlight int
}

func (b *fakeBackend) GenerateText(ctx context.Context, req llm.TextRequest) (string, error) {
	b.mu.Lock()
	b.textCalls++
	b.textInFlight++
	if b.textInFlight > b.maxTextInFlight {
		b.maxTextInFlight = b.textInFlight
	}
	gate, fn := b.gate, b.text
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.textInFlight--
		b.mu.Unlock()
	}()
	if gate != nil {
		<-gate
	}
	if fn == nil {
		return "", errors.New("no text backend")
	}
	return fn(req)
}

func (b *fakeBackend) GenerateMultimodal(ctx context.Context, req llm.MultimodalRequest) (string, error) {
	b.mu.Lock()
	b.visionCalls++
	fn := b.vision
	b.mu.Unlock()
	if fn == nil {
		return "", errors.New("no vision backend")
	}
	return fn(req)
}

func (b *fakeBackend) TranscribeAudio(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	b.mu.Lock()
	b.transcribeCalls++
	fn := b.transcribe
	b.mu.Unlock()
	if fn == nil {
		return "", errors.New("no transcription backend")
	}
	return fn(audio)
}

func (b *fakeBackend) counts() (transcribe, text, vision int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transcribeCalls, b.textCalls, b.visionCalls
}

// recordingStore records the order of writes and can fail transcript writes.
type recordingStore struct {
	*store.SQLiteStore

	mu             sync.Mutex
	ops            []string
	failTranscript bool
	failCreate     bool

	// Segment writes wait on segmentGate once entered, and the next
	// segmentFailures of them fail.
	segmentEntered  chan struct{}
	segmentGate     chan struct{}
	segmentFailures int
}

func newRecordingStore(t *testing.T) *recordingStore {
	return &recordingStore{SQLiteStore: helpers.NewTestSQLiteStore(t)}
}

func (r *recordingStore) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingStore) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *recordingStore) CreateSession(ctx context.Context, s *domain.Session) error {
	if r.failCreate {
		return errors.New("database is locked")
	}
	return r.SQLiteStore.CreateSession(ctx, s)
}

func (r *recordingStore) SaveTranscript(ctx context.Context, t *domain.Transcript) error {
	r.record("transcript")
	r.mu.Lock()
	fail := r.failTranscript
	r.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return r.SQLiteStore.SaveTranscript(ctx, t)
}

func (r *recordingStore) CreateTranscriptSegments(ctx context.Context, segments []domain.TranscriptSegment) error {
	r.mu.Lock()
	entered, gate := r.segmentEntered, r.segmentGate
	r.segmentEntered, r.segmentGate = nil, nil
	fail := r.segmentFailures > 0
	if fail {
		r.segmentFailures--
	}
	r.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	if fail {
		return errors.New("disk full")
	}
	return r.SQLiteStore.CreateTranscriptSegments(ctx, segments)
}

func (r *recordingStore) UpdateSession(ctx context.Context, s *domain.Session) error {
	r.record("session:" + string(s.Status))
	return r.SQLiteStore.UpdateSession(ctx, s)
}

func (r *recordingStore) CreateSuggestion(ctx context.Context, sg *domain.Suggestion) error {
	r.record("suggestion")
	return r.SQLiteStore.CreateSuggestion(ctx, sg)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LiveEvent
}

func (p *recordingPublisher) Publish(ev domain.LiveEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) ofType(t domain.EventType) []domain.LiveEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.LiveEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type deniedMicrophone struct{}

func (deniedMicrophone) Name() string          { return "microphone" }
func (deniedMicrophone) Format() capture.Format { return capture.DefaultFormat }
func (deniedMicrophone) Open(ctx context.Context) (io.ReadCloser, error) {
	return nil, errors.New("permission denied")
}

type quietPolicy struct{}

func (quietPolicy) Decide(ctx context.Context, st domain.SessionType, ev domain.FeedbackEvent) (domain.Delivery, error) {
	return domain.DeliveryQuiet, nil
}

type harness struct {
	o      *Orchestrator
	clock  *clock.Fake
	store  *recordingStore
	pub    *recordingPublisher
	screen *capture.PushScreen
}

func newHarness(t *testing.T, be llm.Backend, req domain.StartSessionRequest, edit ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		clock:  clock.NewFake(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)),
		store:  newRecordingStore(t),
		pub:    &recordingPublisher{},
		screen: capture.NewPushScreen("screen"),
	}
	deps := Deps{
		Backend:    be,
		Store:      h.store,
		Clock:      h.clock,
		Publisher:  h.pub,
		Microphone: capture.NewPushMicrophone("microphone", capture.DefaultFormat),
		Screen:     h.screen,
	}
	for _, fn := range edit {
		fn(&deps)
	}
	o, err := New(deps, DefaultConfig(), "user-1", req)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.o = o
	t.Cleanup(func() {
		_, _ = o.Stop(context.Background())
		o.Wait()
	})
	return h
}

// chunk feeds an audio chunk straight into the loop.
func (h *harness) chunk(seq int64, isUser bool) {
	c := capture.AudioChunk{
		Seq:        seq,
		Source:     "microphone",
		IsUser:     isUser,
		Data:       []byte{byte(seq)},
		MIMEType:   "audio/wav",
		CapturedAt: h.clock.Now(),
		Duration:   time.Second,
	}
	h.o.post(func() { h.o.onChunk(c) })
}
