package coach

import (
	"strings"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

const maxAnalyticsItems = 20

// Analytics accumulates the derived metrics of one session.
type Analytics struct {
	rec domain.SessionAnalytics
}

// NewAnalytics creates an empty record for sessionID.
func NewAnalytics(sessionID string) *Analytics {
	return &Analytics{rec: domain.SessionAnalytics{SessionID: sessionID}}
}

// AddSpeech attributes d of speech to the user or to the other side.
func (a *Analytics) AddSpeech(isUser bool, d time.Duration) {
	if d <= 0 {
		return
	}
	if isUser {
		a.rec.SpeakingTimeMs += d.Milliseconds()
	} else {
		a.rec.ListeningTimeMs += d.Milliseconds()
	}
	a.rec.TalkListenRatio = TalkListenRatio(a.rec.SpeakingTimeMs, a.rec.ListeningTimeMs)
}

// SetSuggestionCounts records the suggestion totals.
func (a *Analytics) SetSuggestionCounts(total, used int) {
	a.rec.SuggestionsTotal = total
	a.rec.SuggestionsUsed = used
}

// ApplyHints merges the analytics hints of a suggestion reply. It reports
// whether anything changed.
func (a *Analytics) ApplyHints(h SuggestionHints) bool {
	changed := false
	if h.Sentiment != nil {
		s := *h.Sentiment
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		a.rec.SentimentScore = s
		changed = true
	}
	var n int
	a.rec.KeyTopics, n = mergeUnique(a.rec.KeyTopics, h.Topics)
	changed = changed || n > 0
	a.rec.ActionItems, n = mergeUnique(a.rec.ActionItems, h.ActionItems)
	return changed || n > 0
}

// Snapshot returns a copy of the record stamped with now.
func (a *Analytics) Snapshot(now time.Time) domain.SessionAnalytics {
	out := a.rec
	out.KeyTopics = append([]string(nil), a.rec.KeyTopics...)
	out.ActionItems = append([]string(nil), a.rec.ActionItems...)
	out.UpdatedAt = now
	return out
}

// TalkListenRatio is the share of speech time spoken by the user, 0 when
// nobody has spoken.
func TalkListenRatio(speakingMs, listeningMs int64) float64 {
	total := speakingMs + listeningMs
	if total <= 0 {
		return 0
	}
	return float64(speakingMs) / float64(total)
}

// Summarize aggregates per-session records. Rates are 0 when there is
// nothing to divide by.
func Summarize(records []domain.SessionAnalytics) domain.AnalyticsSummary {
	var s domain.AnalyticsSummary
	s.Sessions = len(records)
	for _, r := range records {
		s.SuggestionsTotal += r.SuggestionsTotal
		s.SuggestionsUsed += r.SuggestionsUsed
	}
	if s.SuggestionsTotal > 0 {
		s.SuccessRate = float64(s.SuggestionsUsed) / float64(s.SuggestionsTotal)
	}
	if s.Sessions > 0 {
		s.AvgSuggestions = float64(s.SuggestionsTotal) / float64(s.Sessions)
	}
	return s
}

func mergeUnique(dst, src []string) ([]string, int) {
	added := 0
	for _, v := range src {
		v = strings.TrimSpace(v)
		if v == "" || len(dst) >= maxAnalyticsItems {
			continue
		}
		dup := false
		for _, d := range dst {
			if strings.EqualFold(d, v) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
			added++
		}
	}
	return dst, added
}
