package domain

import "time"

// TranscriptSegment is one transcribed audio chunk.
type TranscriptSegment struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Seq        int64     `json:"seq"`
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"captured_at"`
	IsUser     bool      `json:"is_user"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}

// Transcript is the persisted running transcript of a session.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Content   string    `json:"content"`
	WordCount int       `json:"word_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CaptureFrame is one screen capture. Frames are never persisted.
type CaptureFrame struct {
	ID          string    `json:"id"`
	Image       []byte    `json:"-"`
	MIMEType    string    `json:"mime_type"`
	CapturedAt  time.Time `json:"captured_at"`
	WindowLabel string    `json:"window_label,omitempty"`
}
