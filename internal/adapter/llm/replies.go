package llm

// SuggestionItem is one coaching suggestion in a SuggestionReply.
type SuggestionItem struct {
	Category string `json:"category"`
	Content  string `json:"content"`
	Context  string `json:"context"`
	Priority string `json:"priority"`
}

// SuggestionReply is the JSON a model returns for a suggestion prompt. The
// analytics hints are optional.
type SuggestionReply struct {
	Suggestions []SuggestionItem `json:"suggestions"`
	Sentiment   *float64         `json:"sentiment,omitempty"`
	Topics      []string         `json:"topics,omitempty"`
	ActionItems []string         `json:"action_items,omitempty"`
}

// VisionReply is the JSON a model returns for a screen analysis prompt.
type VisionReply struct {
	Content     string   `json:"content"`
	Elements    []string `json:"elements"`
	Context     string   `json:"context"`
	Suggestions []string `json:"suggestions"`
	Urgency     string   `json:"urgency"`
}

// FeedbackReply is the JSON a model returns for a feedback prompt.
type FeedbackReply struct {
	Kind       string   `json:"type"`
	Priority   string   `json:"priority"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Actionable bool     `json:"actionable"`
	NextSteps  []string `json:"next_steps"`
}
