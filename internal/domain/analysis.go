package domain

import "time"

// VisualAnalysis is the result of analysing one screen frame.
type VisualAnalysis struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	FrameID     string    `json:"frame_id"`
	Content     string    `json:"content"`
	Elements    []string  `json:"elements"`
	Context     string    `json:"context"`
	Suggestions []string  `json:"suggestions"`
	Urgency     Urgency   `json:"urgency"`
	// Degraded marks placeholders recorded when the vision call failed.
	Degraded bool `json:"degraded,omitempty"`
}
