package coach

import (
	"strings"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

// Transcript assembles transcribed chunks in the order they were submitted,
// whatever order their transcriptions complete in. Sequence numbers start
// at 1 and every number must eventually be appended or skipped.
type Transcript struct {
	next     int64
	pending  map[int64]*domain.TranscriptSegment
	segments []domain.TranscriptSegment
	text     strings.Builder
	words    int
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{next: 1, pending: make(map[int64]*domain.TranscriptSegment)}
}

// Append records the transcription of chunk seq and returns the segments
// that became applicable, in order. A segment with blank text resolves the
// slot without adding text.
func (t *Transcript) Append(seq int64, seg domain.TranscriptSegment) []domain.TranscriptSegment {
	seg.Seq = seq
	seg.Text = strings.TrimSpace(seg.Text)
	if seg.Text == "" {
		return t.resolve(seq, nil)
	}
	return t.resolve(seq, &seg)
}

// Skip resolves chunk seq without text, e.g. after a failed transcription.
func (t *Transcript) Skip(seq int64) []domain.TranscriptSegment {
	return t.resolve(seq, nil)
}

func (t *Transcript) resolve(seq int64, seg *domain.TranscriptSegment) []domain.TranscriptSegment {
	if seq < t.next {
		return nil
	}
	if _, dup := t.pending[seq]; dup {
		return nil
	}
	t.pending[seq] = seg

	var applied []domain.TranscriptSegment
	for {
		s, ok := t.pending[t.next]
		if !ok {
			break
		}
		delete(t.pending, t.next)
		t.next++
		if s == nil {
			continue
		}
		if t.text.Len() > 0 {
			t.text.WriteByte(' ')
		}
		t.text.WriteString(s.Text)
		t.words += len(strings.Fields(s.Text))
		t.segments = append(t.segments, *s)
		applied = append(applied, *s)
	}
	return applied
}

// Text returns the assembled transcript.
func (t *Transcript) Text() string { return t.text.String() }

// WordCount returns the number of words in the assembled transcript.
func (t *Transcript) WordCount() int { return t.words }

// Next returns the lowest sequence number not yet resolved.
func (t *Transcript) Next() int64 { return t.next }

// Waiting returns the number of results buffered behind a missing one.
func (t *Transcript) Waiting() int { return len(t.pending) }

// Buffered reports whether the result of seq is held behind a missing one.
func (t *Transcript) Buffered(seq int64) bool {
	_, ok := t.pending[seq]
	return ok
}

// Segments returns a copy of the applied segments.
func (t *Transcript) Segments() []domain.TranscriptSegment {
	return append([]domain.TranscriptSegment(nil), t.segments...)
}

// Tail returns the last n words of the transcript.
func (t *Transcript) Tail(n int) string {
	words := strings.Fields(t.text.String())
	if n > 0 && len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

// Record returns the persisted form of the transcript.
func (t *Transcript) Record(sessionID string, now time.Time) domain.Transcript {
	return domain.Transcript{
		SessionID: sessionID,
		Content:   t.text.String(),
		WordCount: t.words,
		UpdatedAt: now,
	}
}
