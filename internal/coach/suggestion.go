package coach

import (
	"strings"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

// SuggestionHints are the optional analytics fields of a suggestion reply.
type SuggestionHints struct {
	Sentiment   *float64
	Topics      []string
	ActionItems []string
}

// SuggestionScheduler triggers suggestion requests as the transcript grows
// and keeps the suggestions of a session. At most one request is in flight.
type SuggestionScheduler struct {
	step        int
	lastBucket  int
	inFlight    bool
	suggestions []domain.Suggestion
}

// NewSuggestionScheduler creates a scheduler that fires every step words.
func NewSuggestionScheduler(step int) *SuggestionScheduler {
	if step <= 0 {
		step = 50
	}
	return &SuggestionScheduler{step: step}
}

// Observe reports whether a request should be issued for the current word
// count. A crossing seen while a request is in flight is dropped.
func (s *SuggestionScheduler) Observe(words int) bool {
	bucket := words / s.step
	if bucket <= s.lastBucket {
		return false
	}
	s.lastBucket = bucket
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

// InFlight reports whether a request is outstanding.
func (s *SuggestionScheduler) InFlight() bool { return s.inFlight }

// Complete applies a reply and returns the suggestions it added. A reply
// that did not parse becomes a single response suggestion carrying the raw
// text.
func (s *SuggestionScheduler) Complete(sessionID string, now time.Time, res llm.Result[llm.SuggestionReply]) ([]domain.Suggestion, SuggestionHints) {
	s.inFlight = false

	if !res.Ok() {
		raw := strings.TrimSpace(res.Raw)
		if raw == "" {
			return nil, SuggestionHints{}
		}
		sg := domain.Suggestion{
			ID:        domain.NewID("sug"),
			SessionID: sessionID,
			Category:  domain.SuggestionCategoryResponse,
			Content:   raw,
			Priority:  domain.PriorityMedium,
			CreatedAt: now,
		}
		s.suggestions = append(s.suggestions, sg)
		return []domain.Suggestion{sg}, SuggestionHints{}
	}

	reply := res.Parsed
	var added []domain.Suggestion
	for _, item := range reply.Suggestions {
		content := strings.TrimSpace(item.Content)
		if content == "" {
			continue
		}
		priority, ok := domain.ParsePriority(item.Priority)
		if !ok || priority == domain.PriorityUrgent {
			priority = domain.PriorityMedium
		}
		sg := domain.Suggestion{
			ID:        domain.NewID("sug"),
			SessionID: sessionID,
			Category:  domain.ParseSuggestionCategory(item.Category),
			Content:   content,
			Context:   strings.TrimSpace(item.Context),
			Priority:  priority,
			CreatedAt: now,
		}
		s.suggestions = append(s.suggestions, sg)
		added = append(added, sg)
	}

	return added, SuggestionHints{
		Sentiment:   reply.Sentiment,
		Topics:      reply.Topics,
		ActionItems: reply.ActionItems,
	}
}

// Fail clears the in-flight request. The next crossing retries.
func (s *SuggestionScheduler) Fail() {
	s.inFlight = false
}

// MarkUsed flips the used flag of a suggestion. changed is false when it was
// already used.
func (s *SuggestionScheduler) MarkUsed(id string) (sg domain.Suggestion, changed bool, err error) {
	for i := range s.suggestions {
		if s.suggestions[i].ID != id {
			continue
		}
		changed = !s.suggestions[i].Used
		s.suggestions[i].Used = true
		return s.suggestions[i], changed, nil
	}
	return domain.Suggestion{}, false, domain.ErrNotFound
}

// All returns a copy of every suggestion in creation order.
func (s *SuggestionScheduler) All() []domain.Suggestion {
	return append([]domain.Suggestion(nil), s.suggestions...)
}

// Counts returns the total and used number of suggestions.
func (s *SuggestionScheduler) Counts() (total, used int) {
	for _, sg := range s.suggestions {
		if sg.Used {
			used++
		}
	}
	return len(s.suggestions), used
}
