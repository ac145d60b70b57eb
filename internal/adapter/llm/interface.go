// Package llm provides the inference backend used for transcription,
// coaching suggestions, screen analysis and feedback synthesis.
package llm

import "context"

// TextRequest is a single-turn text generation request.
type TextRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ImageInput is one image attached to a multimodal request.
type ImageInput struct {
	Data     []byte
	MIMEType string
}

// MultimodalRequest is a text prompt with attached images.
type MultimodalRequest struct {
	System    string
	Prompt    string
	Images    []ImageInput
	MaxTokens int
}

// Backend defines the inference operations the coach depends on. Every
// failure, transport or otherwise, is reported as an error.
type Backend interface {
	// GenerateText returns the model's reply to a text prompt.
	GenerateText(ctx context.Context, req TextRequest) (string, error)

	// GenerateMultimodal returns the model's reply to a prompt with images.
	GenerateMultimodal(ctx context.Context, req MultimodalRequest) (string, error)

	// TranscribeAudio returns the text spoken in an encoded audio clip.
	TranscribeAudio(ctx context.Context, audio []byte, mimeType, language string) (string, error)
}

// Ensure implementations satisfy Backend.
var (
	_ Backend = (*Client)(nil)
	_ Backend = (*MockClient)(nil)
)
