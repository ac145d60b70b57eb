package coach

import (
	"strings"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/ring"
)

const degradedContent = "Screen analysis unavailable"

// VisionScheduler decides when a captured frame is analysed and keeps the
// recent analyses. At most one analysis is in flight and consecutive
// analysed frames are at least minGap apart.
type VisionScheduler struct {
	minGap   time.Duration
	analyzed bool
	lastAt   time.Time
	inFlight bool
	history  *ring.Ring[domain.VisualAnalysis]
}

// NewVisionScheduler creates a scheduler keeping historySize analyses.
func NewVisionScheduler(minGap time.Duration, historySize int) *VisionScheduler {
	if historySize <= 0 {
		historySize = 20
	}
	return &VisionScheduler{minGap: minGap, history: ring.New[domain.VisualAnalysis](historySize)}
}

// ShouldAnalyze reports whether frame may be analysed now.
func (v *VisionScheduler) ShouldAnalyze(frame *domain.CaptureFrame) bool {
	if frame == nil || v.inFlight {
		return false
	}
	if !v.analyzed {
		return true
	}
	return frame.CapturedAt.Sub(v.lastAt) >= v.minGap
}

// Begin marks frame as being analysed.
func (v *VisionScheduler) Begin(frame domain.CaptureFrame) {
	v.inFlight = true
	v.analyzed = true
	v.lastAt = frame.CapturedAt
}

// InFlight reports whether an analysis is outstanding.
func (v *VisionScheduler) InFlight() bool { return v.inFlight }

// Complete records the reply for frame. A reply that did not parse is kept
// as a low urgency analysis of the raw text.
func (v *VisionScheduler) Complete(frame domain.CaptureFrame, now time.Time, res llm.Result[llm.VisionReply]) domain.VisualAnalysis {
	if !res.Ok() && strings.TrimSpace(res.Raw) == "" {
		return v.Fail(frame, now)
	}
	v.inFlight = false

	a := domain.VisualAnalysis{
		ID:        domain.NewID("va"),
		Timestamp: now,
		FrameID:   frame.ID,
		Context:   frame.WindowLabel,
		Urgency:   domain.UrgencyLow,
	}
	if res.Ok() {
		r := res.Parsed
		a.Content = strings.TrimSpace(r.Content)
		a.Elements = r.Elements
		a.Suggestions = r.Suggestions
		a.Urgency = domain.ParseUrgency(r.Urgency)
		if c := strings.TrimSpace(r.Context); c != "" {
			a.Context = c
		}
	} else {
		a.Content = strings.TrimSpace(res.Raw)
	}
	v.history.Push(a)
	return a
}

// Fail records a degraded placeholder for frame so a latest analysis
// always exists after the first attempt.
func (v *VisionScheduler) Fail(frame domain.CaptureFrame, now time.Time) domain.VisualAnalysis {
	v.inFlight = false
	a := domain.VisualAnalysis{
		ID:        domain.NewID("va"),
		Timestamp: now,
		FrameID:   frame.ID,
		Content:   degradedContent,
		Context:   frame.WindowLabel,
		Urgency:   domain.UrgencyLow,
		Degraded:  true,
	}
	v.history.Push(a)
	return a
}

// Latest returns the most recent analysis, or nil before the first attempt.
func (v *VisionScheduler) Latest() *domain.VisualAnalysis {
	a, ok := v.history.Latest()
	if !ok {
		return nil
	}
	return &a
}

// History returns the retained analyses, oldest first.
func (v *VisionScheduler) History() []domain.VisualAnalysis {
	return v.history.Items()
}
