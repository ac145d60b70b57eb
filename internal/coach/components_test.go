package coach

import (
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/clock"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

func TestTranscriptAssemblesInSubmissionOrder(t *testing.T) {
	words := []string{"one", "two", "three", "four", "five", "six", "seven", "eight"}
	want := strings.Join(words, " ")
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		order := rng.Perm(len(words))
		tr := NewTranscript()
		var applied []string
		for _, i := range order {
			for _, seg := range tr.Append(int64(i+1), domain.TranscriptSegment{Text: words[i]}) {
				applied = append(applied, seg.Text)
			}
		}
		require.Equal(t, want, tr.Text(), "order %v", order)
		require.Equal(t, words, applied, "order %v", order)
		require.Equal(t, len(words), tr.WordCount())
		require.Zero(t, tr.Waiting())
	}
}

func TestTranscriptSkipReleasesBufferedResults(t *testing.T) {
	tr := NewTranscript()

	assert.Empty(t, tr.Append(3, domain.TranscriptSegment{Text: "world"}))
	assert.Empty(t, tr.Append(2, domain.TranscriptSegment{Text: "  "}))
	assert.True(t, tr.Buffered(3))
	assert.Equal(t, "", tr.Text())

	applied := tr.Skip(1)
	require.Len(t, applied, 1)
	assert.Equal(t, int64(3), applied[0].Seq)
	assert.Equal(t, "world", tr.Text())
	assert.False(t, tr.Buffered(3))

	// Late duplicates are ignored.
	assert.Empty(t, tr.Append(1, domain.TranscriptSegment{Text: "late"}))
	assert.Equal(t, "world", tr.Text())
}

func TestTranscriptTail(t *testing.T) {
	tr := NewTranscript()
	tr.Append(1, domain.TranscriptSegment{Text: "a b c"})
	tr.Append(2, domain.TranscriptSegment{Text: "d e"})

	assert.Equal(t, "d e", tr.Tail(2))
	assert.Equal(t, "a b c d e", tr.Tail(0))
	assert.Equal(t, 5, tr.WordCount())
}

func TestSuggestionTriggersAtEachFiftyWords(t *testing.T) {
	s := NewSuggestionScheduler(50)
	var fired []int
	for w := 0; w <= 150; w += 10 {
		if s.Observe(w) {
			fired = append(fired, w)
			s.Complete("s1", time.Now(), llm.ParseJSON[llm.SuggestionReply](`{"suggestions":[]}`))
		}
	}
	assert.Equal(t, []int{50, 100, 150}, fired)
}

func TestSuggestionTriggerDroppedWhileInFlight(t *testing.T) {
	s := NewSuggestionScheduler(50)

	require.True(t, s.Observe(50))
	assert.False(t, s.Observe(100), "second crossing while in flight")
	assert.True(t, s.InFlight())

	s.Fail()
	assert.False(t, s.Observe(110), "the dropped crossing is not replayed")
	assert.True(t, s.Observe(150))
}

func TestSuggestionCompleteParsed(t *testing.T) {
	s := NewSuggestionScheduler(50)
	s.Observe(50)

	reply := `{"suggestions":[
		{"category":"question","content":"Ask about timeline","priority":"high"},
		{"category":"banter","content":"Smile","priority":"extreme"},
		{"category":"note","content":"   "}
	],"sentiment":0.5,"topics":["pricing"]}`
	added, hints := s.Complete("s1", time.Now(), llm.ParseJSON[llm.SuggestionReply](reply))

	require.Len(t, added, 2)
	assert.Equal(t, domain.SuggestionCategoryQuestion, added[0].Category)
	assert.Equal(t, domain.PriorityHigh, added[0].Priority)
	assert.Equal(t, domain.SuggestionCategoryNote, added[1].Category)
	assert.Equal(t, domain.PriorityMedium, added[1].Priority)
	require.NotNil(t, hints.Sentiment)
	assert.Equal(t, []string{"pricing"}, hints.Topics)
	assert.False(t, s.InFlight())
}

func TestSuggestionFallbackWrapsRawReply(t *testing.T) {
	s := NewSuggestionScheduler(50)
	s.Observe(50)

	added, _ := s.Complete("s1", time.Now(), llm.ParseJSON[llm.SuggestionReply]("Try asking about their goals."))
	require.Len(t, added, 1)
	assert.Equal(t, domain.SuggestionCategoryResponse, added[0].Category)
	assert.Equal(t, domain.PriorityMedium, added[0].Priority)
	assert.Equal(t, "Try asking about their goals.", added[0].Content)

	_, changed, err := s.MarkUsed(added[0].ID)
	require.NoError(t, err)
	assert.True(t, changed)
	_, changed, err = s.MarkUsed(added[0].ID)
	require.NoError(t, err)
	assert.False(t, changed)
	_, _, err = s.MarkUsed("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	total, used := s.Counts()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, used)
}

func TestVisionGapPolicy(t *testing.T) {
	t0 := time.Unix(1000, 0)
	v := NewVisionScheduler(8*time.Second, 20)
	frame := func(at time.Duration) *domain.CaptureFrame {
		return &domain.CaptureFrame{ID: domain.NewID("frm"), CapturedAt: t0.Add(at)}
	}

	assert.False(t, v.ShouldAnalyze(nil))

	first := frame(0)
	require.True(t, v.ShouldAnalyze(first))
	v.Begin(*first)
	assert.False(t, v.ShouldAnalyze(frame(9*time.Second)), "in flight")
	v.Complete(*first, t0, llm.ParseJSON[llm.VisionReply](`{"content":"slides","urgency":"high"}`))

	second := frame(9 * time.Second)
	require.True(t, v.ShouldAnalyze(second))
	v.Begin(*second)
	v.Complete(*second, t0.Add(9*time.Second), llm.ParseJSON[llm.VisionReply](`{"content":"code"}`))

	assert.False(t, v.ShouldAnalyze(frame(12*time.Second)))

	history := v.History()
	require.Len(t, history, 2)
	assert.Equal(t, domain.UrgencyHigh, history[0].Urgency)
	assert.Equal(t, domain.UrgencyLow, history[1].Urgency)
}

func TestVisionFailureLeavesPlaceholder(t *testing.T) {
	v := NewVisionScheduler(8*time.Second, 20)
	assert.Nil(t, v.Latest())

	f := domain.CaptureFrame{ID: "frm_1", CapturedAt: time.Unix(0, 0)}
	v.Begin(f)
	v.Fail(f, time.Unix(1, 0))

	latest := v.Latest()
	require.NotNil(t, latest)
	assert.True(t, latest.Degraded)
	assert.Equal(t, domain.UrgencyLow, latest.Urgency)
	assert.False(t, v.InFlight())

	v.Begin(f)
	raw := v.Complete(f, time.Unix(2, 0), llm.ParseJSON[llm.VisionReply]("A terminal window."))
	assert.False(t, raw.Degraded)
	assert.Equal(t, "A terminal window.", raw.Content)
	assert.Equal(t, domain.UrgencyLow, raw.Urgency)
}

func TestVisionHistoryIsBounded(t *testing.T) {
	v := NewVisionScheduler(0, 3)
	for i := 0; i < 5; i++ {
		f := domain.CaptureFrame{ID: domain.NewID("frm"), CapturedAt: time.Unix(int64(i), 0)}
		v.Begin(f)
		v.Fail(f, f.CapturedAt)
	}
	assert.Len(t, v.History(), 3)
}

func feedbackReply(priority string) llm.Result[llm.FeedbackReply] {
	return llm.ParseJSON[llm.FeedbackReply](`{"type":"coaching","priority":"` + priority + `","title":"t","message":"m"}`)
}

func TestFeedbackActiveSlot(t *testing.T) {
	f := NewFeedbackEngine(30*time.Second, 50)
	now := time.Unix(0, 0)
	a := domain.VisualAnalysis{Content: "screen"}

	require.True(t, f.TryBegin(a))
	assert.False(t, f.TryBegin(a), "single flight")
	first, superseded := f.Complete("s1", now, domain.FeedbackContext{}, feedbackReply("high"))
	require.NotNil(t, first)
	assert.Nil(t, superseded)
	assert.Equal(t, first.ID, f.Active().ID)

	f.TryBegin(a)
	medium, _ := f.Complete("s1", now, domain.FeedbackContext{}, feedbackReply("medium"))
	require.NotNil(t, medium)
	assert.Equal(t, first.ID, f.Active().ID, "medium does not take the slot")
	state, _ := f.State(medium.ID)
	assert.Equal(t, domain.FeedbackStateBackground, state)

	f.TryBegin(a)
	urgent, superseded := f.Complete("s1", now, domain.FeedbackContext{}, feedbackReply("urgent"))
	require.NotNil(t, superseded)
	assert.Equal(t, first.ID, superseded.ID)
	assert.Equal(t, urgent.ID, f.Active().ID)
	state, _ = f.State(first.ID)
	assert.Equal(t, domain.FeedbackStateBackground, state)

	assert.Len(t, f.ActiveFeedbacks(), 3)

	_, changed, err := f.Dismiss(urgent.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Nil(t, f.Active())
	state, _ = f.State(urgent.ID)
	assert.Equal(t, domain.FeedbackStateDismissed, state)

	_, changed, err = f.Dismiss(urgent.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	_, _, err = f.Dismiss("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFeedbackSkipsUnusableReplies(t *testing.T) {
	f := NewFeedbackEngine(30*time.Second, 50)
	a := domain.VisualAnalysis{Content: "screen"}

	for _, reply := range []string{
		"not json at all",
		`{"type":"rant","priority":"high","title":"t"}`,
		`{"type":"coaching","priority":"critical","title":"t"}`,
		`{"type":"coaching","priority":"high","title":" ","message":""}`,
	} {
		require.True(t, f.TryBegin(a))
		ev, _ := f.Complete("s1", time.Now(), domain.FeedbackContext{}, llm.ParseJSON[llm.FeedbackReply](reply))
		assert.Nil(t, ev, reply)
	}
	assert.Empty(t, f.All())

	assert.False(t, f.TryBegin(domain.VisualAnalysis{Degraded: true}))
}

func TestFeedbackLowPriorityExpiresWithinSweepWindow(t *testing.T) {
	start := time.Unix(0, 0)
	for offset := time.Duration(0); offset < 5*time.Second; offset += 700 * time.Millisecond {
		fc := clock.NewFake(start)
		f := NewFeedbackEngine(30*time.Second, 50)

		var dismissedAt time.Time
		sweep := clock.Every(fc, 5*time.Second, func() {
			if len(f.Sweep(fc.Now())) > 0 {
				dismissedAt = fc.Now()
			}
		})

		fc.Advance(offset)
		created := fc.Now()
		f.TryBegin(domain.VisualAnalysis{})
		ev, _ := f.Complete("s1", created, domain.FeedbackContext{}, feedbackReply("low"))
		require.NotNil(t, ev)
		assert.Empty(t, f.ActiveFeedbacks(), "low events are not listed as active")

		for dismissedAt.IsZero() && fc.Now().Sub(created) < time.Minute {
			fc.Advance(100 * time.Millisecond)
		}
		sweep.Stop()

		age := dismissedAt.Sub(created)
		assert.GreaterOrEqual(t, age, 30*time.Second, "offset %v", offset)
		assert.Less(t, age, 35*time.Second, "offset %v", offset)
	}
}

func TestFeedbackHistoryEvictionClearsActive(t *testing.T) {
	f := NewFeedbackEngine(30*time.Second, 2)
	f.TryBegin(domain.VisualAnalysis{})
	high, _ := f.Complete("s1", time.Unix(0, 0), domain.FeedbackContext{}, feedbackReply("high"))
	for i := 0; i < 2; i++ {
		f.TryBegin(domain.VisualAnalysis{})
		f.Complete("s1", time.Unix(1, 0), domain.FeedbackContext{}, feedbackReply("medium"))
	}
	assert.Nil(t, f.Active())
	_, known := f.State(high.ID)
	assert.False(t, known)
	assert.Len(t, f.All(), 2)
}

func TestFeedbackRecent(t *testing.T) {
	f := NewFeedbackEngine(30*time.Second, 50)
	base := time.Unix(1000, 0)
	for _, at := range []time.Duration{0, 4 * time.Minute, 9 * time.Minute} {
		f.TryBegin(domain.VisualAnalysis{})
		f.Complete("s1", base.Add(at), domain.FeedbackContext{}, feedbackReply("medium"))
	}
	assert.Len(t, f.Recent(base.Add(10*time.Minute), 5*time.Minute), 1)
	assert.Len(t, f.Recent(base.Add(10*time.Minute), 10*time.Minute), 3)
}

func TestAnalyticsRatioAndHints(t *testing.T) {
	a := NewAnalytics("s1")
	assert.Equal(t, 0.0, a.Snapshot(time.Now()).TalkListenRatio)

	a.AddSpeech(true, 3*time.Second)
	a.AddSpeech(false, time.Second)
	snap := a.Snapshot(time.Now())
	assert.InDelta(t, 0.75, snap.TalkListenRatio, 1e-9)
	assert.Equal(t, int64(3000), snap.SpeakingTimeMs)

	score := 4.0
	assert.True(t, a.ApplyHints(SuggestionHints{Sentiment: &score, Topics: []string{"Pricing", "pricing", " "}}))
	assert.False(t, a.ApplyHints(SuggestionHints{Topics: []string{"PRICING"}}))
	snap = a.Snapshot(time.Now())
	assert.Equal(t, 1.0, snap.SentimentScore)
	assert.Equal(t, []string{"Pricing"}, snap.KeyTopics)
}

func TestSummarizeNeverDividesByZero(t *testing.T) {
	empty := Summarize(nil)
	assert.Equal(t, 0.0, empty.SuccessRate)
	assert.Equal(t, 0.0, empty.AvgSuggestions)

	none := Summarize([]domain.SessionAnalytics{{}, {}})
	assert.False(t, math.IsNaN(none.SuccessRate))
	assert.Equal(t, 0.0, none.SuccessRate)
	assert.Equal(t, 0.0, none.AvgSuggestions)

	s := Summarize([]domain.SessionAnalytics{
		{SuggestionsTotal: 4, SuggestionsUsed: 1},
		{SuggestionsTotal: 2, SuggestionsUsed: 2},
	})
	assert.InDelta(t, 0.5, s.SuccessRate, 1e-9)
	assert.InDelta(t, 3.0, s.AvgSuggestions, 1e-9)
	assert.Equal(t, 2, s.Sessions)
}
