package coach

import (
	"strings"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/ring"
)

// FeedbackEngine turns analyses into feedback events and tracks their
// lifecycle. Each event is created active or background by priority and
// ends dismissed. Only one event holds the active slot.
type FeedbackEngine struct {
	lowTTL   time.Duration
	inFlight bool
	active   string
	history  *ring.Ring[*domain.FeedbackEvent]
	states   map[string]domain.FeedbackState
}

// NewFeedbackEngine creates an engine keeping historySize events. Low
// priority events expire lowTTL after creation.
func NewFeedbackEngine(lowTTL time.Duration, historySize int) *FeedbackEngine {
	if historySize <= 0 {
		historySize = 50
	}
	return &FeedbackEngine{
		lowTTL:  lowTTL,
		history: ring.New[*domain.FeedbackEvent](historySize),
		states:  make(map[string]domain.FeedbackState),
	}
}

// TryBegin reports whether a feedback request should be issued for a.
// Degraded analyses never produce feedback.
func (f *FeedbackEngine) TryBegin(a domain.VisualAnalysis) bool {
	if a.Degraded || f.inFlight {
		return false
	}
	f.inFlight = true
	return true
}

// InFlight reports whether a request is outstanding.
func (f *FeedbackEngine) InFlight() bool { return f.inFlight }

// Fail clears the in-flight request.
func (f *FeedbackEngine) Fail() { f.inFlight = false }

// Complete applies a reply. A reply that did not parse or lacks a valid
// kind, priority or text yields no event. superseded is the event moved out
// of the active slot, if any.
func (f *FeedbackEngine) Complete(sessionID string, now time.Time, fctx domain.FeedbackContext, res llm.Result[llm.FeedbackReply]) (ev, superseded *domain.FeedbackEvent) {
	f.inFlight = false
	if !res.Ok() {
		return nil, nil
	}
	r := res.Parsed
	kind, ok := domain.ParseFeedbackKind(r.Kind)
	if !ok {
		return nil, nil
	}
	priority, ok := domain.ParsePriority(r.Priority)
	if !ok {
		return nil, nil
	}
	title, message := strings.TrimSpace(r.Title), strings.TrimSpace(r.Message)
	if title == "" && message == "" {
		return nil, nil
	}

	ev = &domain.FeedbackEvent{
		ID:         domain.NewID("fb"),
		SessionID:  sessionID,
		Timestamp:  now,
		Kind:       kind,
		Priority:   priority,
		Title:      title,
		Message:    message,
		Actionable: r.Actionable,
		NextSteps:  r.NextSteps,
		Context:    fctx,
	}

	if priority.Prominent() {
		if prev := f.find(f.active); prev != nil {
			f.states[prev.ID] = domain.FeedbackStateBackground
			cp := *prev
			superseded = &cp
		}
		f.active = ev.ID
		f.states[ev.ID] = domain.FeedbackStateActive
	} else {
		f.states[ev.ID] = domain.FeedbackStateBackground
	}

	if evicted, ok := f.history.Push(ev); ok {
		delete(f.states, evicted.ID)
		if evicted.ID == f.active {
			f.active = ""
		}
	}

	out := *ev
	return &out, superseded
}

// Dismiss marks an event dismissed. changed is false when it already was.
func (f *FeedbackEngine) Dismiss(id string) (ev domain.FeedbackEvent, changed bool, err error) {
	e := f.find(id)
	if e == nil {
		return domain.FeedbackEvent{}, false, domain.ErrNotFound
	}
	if e.Dismissed {
		return *e, false, nil
	}
	f.dismiss(e)
	return *e, true, nil
}

// Sweep dismisses low priority events at least lowTTL old and returns them.
func (f *FeedbackEngine) Sweep(now time.Time) []domain.FeedbackEvent {
	var expired []domain.FeedbackEvent
	for _, e := range f.history.Items() {
		if e.Dismissed || e.Priority != domain.PriorityLow {
			continue
		}
		if now.Sub(e.Timestamp) >= f.lowTTL {
			f.dismiss(e)
			expired = append(expired, *e)
		}
	}
	return expired
}

func (f *FeedbackEngine) dismiss(e *domain.FeedbackEvent) {
	e.Dismissed = true
	f.states[e.ID] = domain.FeedbackStateDismissed
	if f.active == e.ID {
		f.active = ""
	}
}

// State returns the lifecycle state of an event.
func (f *FeedbackEngine) State(id string) (domain.FeedbackState, bool) {
	s, ok := f.states[id]
	return s, ok
}

// Active returns the event in the active slot, or nil.
func (f *FeedbackEngine) Active() *domain.FeedbackEvent {
	e := f.find(f.active)
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}

// ActiveFeedbacks returns every non-dismissed event above low priority.
func (f *FeedbackEngine) ActiveFeedbacks() []domain.FeedbackEvent {
	var out []domain.FeedbackEvent
	for _, e := range f.history.Items() {
		if !e.Dismissed && e.Priority != domain.PriorityLow {
			out = append(out, *e)
		}
	}
	return out
}

// Recent returns the events created within window before now.
func (f *FeedbackEngine) Recent(now time.Time, window time.Duration) []domain.FeedbackEvent {
	cutoff := now.Add(-window)
	var out []domain.FeedbackEvent
	for _, e := range f.history.Items() {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, *e)
		}
	}
	return out
}

// All returns every retained event, oldest first.
func (f *FeedbackEngine) All() []domain.FeedbackEvent {
	items := f.history.Items()
	out := make([]domain.FeedbackEvent, len(items))
	for i, e := range items {
		out[i] = *e
	}
	return out
}

func (f *FeedbackEngine) find(id string) *domain.FeedbackEvent {
	if id == "" {
		return nil
	}
	for _, e := range f.history.Items() {
		if e.ID == id {
			return e
		}
	}
	return nil
}
