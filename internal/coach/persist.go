package coach

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/clock"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/repository"
)

type writeJob struct {
	op     string
	run    func(ctx context.Context) error
	failed func()
	result chan error
}

type transcriptWrite struct {
	transcript domain.Transcript
	segments   []domain.TranscriptSegment
}

// Persister writes session state to the store without blocking its caller.
// Writes run one at a time on a single goroutine in submission order.
// Transcript writes are debounced; suggestions and feedback are inserted
// immediately, once per ID.
type Persister struct {
	store        store.Store
	clock        clock.Clock
	sessionID    string
	debounce     time.Duration
	writeTimeout time.Duration

	mu       sync.Mutex
	queue    []writeJob
	wake     chan struct{}
	closed   bool
	pending  *transcriptWrite
	timer    clock.Timer
	inserted map[string]bool

	done chan struct{}
}

// NewPersister starts a persister for sessionID.
func NewPersister(s store.Store, c clock.Clock, sessionID string, debounce, writeTimeout time.Duration) *Persister {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	p := &Persister{
		store:        s,
		clock:        c,
		sessionID:    sessionID,
		debounce:     debounce,
		writeTimeout: writeTimeout,
		wake:         make(chan struct{}, 1),
		inserted:     make(map[string]bool),
		done:         make(chan struct{}),
	}
	go p.run()
	return p
}

// TranscriptChanged schedules a transcript write debounce after the latest
// change. Segments accumulate until written.
func (p *Persister) TranscriptChanged(t domain.Transcript, segments []domain.TranscriptSegment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.pending == nil {
		p.pending = &transcriptWrite{}
	}
	p.pending.transcript = t
	p.pending.segments = append(p.pending.segments, segments...)

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = p.clock.AfterFunc(p.debounce, p.flushTranscript)
}

// TranscriptPending reports whether a debounced write is waiting.
func (p *Persister) TranscriptPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

func (p *Persister) flushTranscript() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.pending == nil {
		return
	}
	w := p.pending
	p.pending = nil
	p.timer = nil
	p.enqueueLocked(p.transcriptJob(w, nil))
}

func (p *Persister) transcriptJob(w *transcriptWrite, result chan error) writeJob {
	return writeJob{
		op: "transcript",
		run: func(ctx context.Context) error {
			return p.writeTranscript(ctx, w)
		},
		// A failed write is folded back so the next write or the final
		// flush carries its segments.
		failed: func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.pending == nil {
				p.pending = w
				return
			}
			p.pending.segments = append(append([]domain.TranscriptSegment(nil), w.segments...), p.pending.segments...)
		},
		result: result,
	}
}

// finalTranscriptJob writes whatever is pending when it runs, so segments
// folded back by an earlier failed write are included.
func (p *Persister) finalTranscriptJob(result chan error) writeJob {
	return writeJob{
		op: "transcript",
		run: func(ctx context.Context) error {
			p.mu.Lock()
			w := p.pending
			p.pending = nil
			p.mu.Unlock()
			if w == nil {
				return nil
			}
			return p.writeTranscript(ctx, w)
		},
		result: result,
	}
}

func (p *Persister) writeTranscript(ctx context.Context, w *transcriptWrite) error {
	if err := p.store.CreateTranscriptSegments(ctx, w.segments); err != nil {
		return err
	}
	return p.store.SaveTranscript(ctx, &w.transcript)
}

// SaveSuggestion inserts sg unless it was already submitted.
func (p *Persister) SaveSuggestion(sg domain.Suggestion) {
	p.once(sg.ID, "create_suggestion", func(ctx context.Context) error {
		return p.store.CreateSuggestion(ctx, &sg)
	})
}

// SuggestionUsed records a used flag.
func (p *Persister) SuggestionUsed(id string) {
	p.enqueue("mark_suggestion_used", func(ctx context.Context) error {
		return p.store.MarkSuggestionUsed(ctx, id)
	})
}

// SaveFeedback inserts ev unless it was already submitted.
func (p *Persister) SaveFeedback(ev domain.FeedbackEvent) {
	p.once(ev.ID, "create_feedback", func(ctx context.Context) error {
		return p.store.CreateFeedback(ctx, &ev)
	})
}

// FeedbackDismissed records a dismissal.
func (p *Persister) FeedbackDismissed(id string) {
	p.enqueue("dismiss_feedback", func(ctx context.Context) error {
		return p.store.DismissFeedback(ctx, id)
	})
}

// SaveAnalytics upserts the analytics record.
func (p *Persister) SaveAnalytics(a domain.SessionAnalytics) {
	p.enqueue("upsert_analytics", func(ctx context.Context) error {
		return p.store.UpsertAnalytics(ctx, &a)
	})
}

// SaveSession writes the mutable session fields.
func (p *Persister) SaveSession(s domain.Session) {
	p.enqueue("update_session", func(ctx context.Context) error {
		return p.store.UpdateSession(ctx, &s)
	})
}

func (p *Persister) once(id, op string, run func(ctx context.Context) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.inserted[id] {
		return
	}
	p.inserted[id] = true
	p.enqueueLocked(writeJob{op: op, run: run})
}

func (p *Persister) enqueue(op string, run func(ctx context.Context) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.enqueueLocked(writeJob{op: op, run: run})
}

func (p *Persister) enqueueLocked(j writeJob) {
	p.queue = append(p.queue, j)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Finish cancels the debounce, writes any pending transcript and then the
// completed session, in that order, and stops the writer. The transcript
// write runs after every queued write, so it also carries segments of a
// debounced write that failed meanwhile. Errors of these two writes are
// returned.
func (p *Persister) Finish(ctx context.Context, session domain.Session) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.ErrSessionStopped
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	transcriptDone := make(chan error, 1)
	sessionDone := make(chan error, 1)
	p.enqueueLocked(p.finalTranscriptJob(transcriptDone))
	p.enqueueLocked(writeJob{
		op: "complete_session",
		run: func(ctx context.Context) error {
			return p.store.UpdateSession(ctx, &session)
		},
		result: sessionDone,
	})
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, ch := range []chan error{transcriptDone, sessionDone} {
		select {
		case err := <-ch:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return errors.Join(errs...)
}

func (p *Persister) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		jobs := p.queue
		p.queue = nil
		closed := p.closed
		p.mu.Unlock()

		for _, j := range jobs {
			p.exec(j)
		}
		if len(jobs) > 0 {
			continue
		}
		if closed {
			return
		}
		<-p.wake
	}
}

func (p *Persister) exec(j writeJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	err := j.run(ctx)
	if err != nil {
		err = &domain.PersistenceError{Op: j.op, Err: err}
		if j.result == nil {
			log.Printf("WARN: session %s: %v", p.sessionID, err)
		}
		if j.failed != nil {
			j.failed()
		}
	}
	if j.result != nil {
		j.result <- err
	}
}
