package coach

import "time"

// Config holds the cadences and bounds of an orchestrator.
type Config struct {
	ChunkInterval         time.Duration
	ScreenInterval        time.Duration
	AnalysisInterval      time.Duration
	AnalysisMinGap        time.Duration
	SuggestionWordStep    int
	FeedbackSweepInterval time.Duration
	FeedbackLowTTL        time.Duration
	TranscriptDebounce    time.Duration
	FrameBufferSize       int
	AnalysisHistorySize   int
	FeedbackHistorySize   int
	StoreWriteTimeout     time.Duration
	InferenceTimeout      time.Duration
	TranscribeLanguage    string
	TranscriptTailWords   int
}

// DefaultConfig returns the standard cadences.
func DefaultConfig() Config {
	return Config{
		ChunkInterval:         time.Second,
		ScreenInterval:        3 * time.Second,
		AnalysisInterval:      10 * time.Second,
		AnalysisMinGap:        8 * time.Second,
		SuggestionWordStep:    50,
		FeedbackSweepInterval: 5 * time.Second,
		FeedbackLowTTL:        30 * time.Second,
		TranscriptDebounce:    2 * time.Second,
		FrameBufferSize:       10,
		AnalysisHistorySize:   20,
		FeedbackHistorySize:   50,
		StoreWriteTimeout:     5 * time.Second,
		InferenceTimeout:      30 * time.Second,
		TranscriptTailWords:   200,
	}
}
