package llm

import (
	"context"
	"strings"
	"sync/atomic"
)

// MockClient is a deterministic Backend for local runs and tests.
type MockClient struct {
	calls atomic.Int64
}

// NewMockClient creates a new mock backend.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// GenerateText returns a canned reply matching the kind of prompt.
func (m *MockClient) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n := m.calls.Add(1)

	if strings.Contains(req.Prompt, `"next_steps"`) {
		priority := "medium"
		if n%3 == 0 {
			priority = "high"
		}
		return `{"type":"coaching","priority":"` + priority + `","title":"Keep it concise",` +
			`"message":"Summarize your point before moving on.","actionable":true,` +
			`"next_steps":["Pause for questions"]}`, nil
	}
	return "```json\n" +
		`{"suggestions":[` +
		`{"category":"question","content":"Ask what success looks like for them.","context":"goals","priority":"high"},` +
		`{"category":"note","content":"They mentioned a deadline.","context":"timeline","priority":"low"}],` +
		`"sentiment":0.4,"topics":["goals","timeline"],"action_items":["Send recap"]}` +
		"\n```", nil
}

// GenerateMultimodal returns a canned screen analysis.
func (m *MockClient) GenerateMultimodal(ctx context.Context, req MultimodalRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.calls.Add(1)
	return `{"content":"A shared document is on screen.","elements":["document","cursor"],` +
		`"context":"reviewing notes","suggestions":["Point to the agenda"],"urgency":"medium"}`, nil
}

// TranscribeAudio returns a fixed ten-word sentence for any non-empty clip.
func (m *MockClient) TranscribeAudio(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", nil
	}
	m.calls.Add(1)
	return "this is a mock transcript segment with exactly ten words", nil
}
