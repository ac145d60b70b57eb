package llm

import (
	"fmt"
	"strings"
	"time"
)

const coachSystem = "You are a discreet real-time coach. Reply with JSON only, no commentary."

// SuggestionPrompt asks for coaching suggestions about the recent transcript.
func SuggestionPrompt(sessionType, transcriptTail string) TextRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Session type: %s\n", sessionType)
	b.WriteString("Recent conversation:\n")
	b.WriteString(transcriptTail)
	b.WriteString("\n\nSuggest up to 3 things the user could say or do next. Respond as:\n")
	b.WriteString(`{"suggestions":[{"category":"question|response|action|note","content":"...","context":"...","priority":"low|medium|high"}],`)
	b.WriteString(`"sentiment":-1.0..1.0,"topics":["..."],"action_items":["..."]}`)
	return TextRequest{System: coachSystem, Prompt: b.String(), MaxTokens: 600, Temperature: 0.4}
}

// VisionPrompt asks for an analysis of a screen capture.
func VisionPrompt(sessionType, windowLabel string, image ImageInput) MultimodalRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Session type: %s\n", sessionType)
	if windowLabel != "" {
		fmt.Fprintf(&b, "Active window: %s\n", windowLabel)
	}
	b.WriteString("Describe what is on screen and anything the user should act on. Respond as:\n")
	b.WriteString(`{"content":"...","elements":["..."],"context":"...","suggestions":["..."],"urgency":"low|medium|high"}`)
	return MultimodalRequest{System: coachSystem, Prompt: b.String(), Images: []ImageInput{image}, MaxTokens: 500}
}

// FeedbackInput is the context a feedback prompt is built from.
type FeedbackInput struct {
	SessionType    string
	Elapsed        time.Duration
	TranscriptTail string
	VisualContent  string
	VisualContext  string
}

// FeedbackPrompt asks for one prioritized coaching event.
func FeedbackPrompt(in FeedbackInput) TextRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Session type: %s\n", in.SessionType)
	fmt.Fprintf(&b, "Elapsed: %d minutes\n", int(in.Elapsed.Minutes()))
	fmt.Fprintf(&b, "Screen: %s\n", in.VisualContent)
	if in.VisualContext != "" {
		fmt.Fprintf(&b, "Screen context: %s\n", in.VisualContext)
	}
	b.WriteString("Recent conversation:\n")
	b.WriteString(in.TranscriptTail)
	b.WriteString("\n\nGive one piece of feedback. Respond as:\n")
	b.WriteString(`{"type":"coaching|warning|suggestion|insight|action","priority":"low|medium|high|urgent",`)
	b.WriteString(`"title":"...","message":"...","actionable":true,"next_steps":["..."]}`)
	return TextRequest{System: coachSystem, Prompt: b.String(), MaxTokens: 400, Temperature: 0.3}
}
