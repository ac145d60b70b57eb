package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultBaseURL         = "https://api.openai.com/v1"
	DefaultTextModel       = "gpt-4o-mini"
	DefaultVisionModel     = "gpt-4o-mini"
	DefaultTranscribeModel = "whisper-1"
	DefaultTimeout         = 30 * time.Second
	DefaultMaxRetries      = 2
	DefaultMaxImageDim     = 1280
)

// Config holds the connection settings for Client.
type Config struct {
	BaseURL         string
	APIKey          string
	TextModel       string
	VisionModel     string
	TranscribeModel string
	Timeout         time.Duration
	MaxRetries      int
	MaxImageDim     int
}

// Client talks to an OpenAI-compatible API.
type Client struct {
	api openaigo.Client
	cfg Config
}

// NewClient creates a new client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = DefaultVisionModel
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = DefaultTranscribeModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxImageDim <= 0 {
		cfg.MaxImageDim = DefaultMaxImageDim
	}

	api := openaigo.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &Client{api: api, cfg: cfg}
}

// GenerateText sends a chat completion with an optional system message.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	messages := make([]openaigo.ChatCompletionMessageParamUnion, 0, 2)
	if s := strings.TrimSpace(req.System); s != "" {
		messages = append(messages, openaigo.SystemMessage(s))
	}
	messages = append(messages, openaigo.UserMessage(req.Prompt))

	params := openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(c.cfg.TextModel),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaigo.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openaigo.Float(req.Temperature)
	}
	return c.complete(ctx, params)
}

// GenerateMultimodal sends a chat completion with images attached as data URLs.
// Images larger than MaxImageDim are downscaled first.
func (c *Client) GenerateMultimodal(ctx context.Context, req MultimodalRequest) (string, error) {
	parts := make([]openaigo.ChatCompletionContentPartUnionParam, 0, 1+len(req.Images))
	parts = append(parts, openaigo.TextContentPart(req.Prompt))
	for _, img := range req.Images {
		prepared, err := PrepareImage(img, c.cfg.MaxImageDim)
		if err != nil {
			return "", fmt.Errorf("prepare image: %w", err)
		}
		dataURL := "data:" + prepared.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(prepared.Data)
		parts = append(parts, openaigo.ImageContentPart(openaigo.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}))
	}

	messages := make([]openaigo.ChatCompletionMessageParamUnion, 0, 2)
	if s := strings.TrimSpace(req.System); s != "" {
		messages = append(messages, openaigo.SystemMessage(s))
	}
	messages = append(messages, openaigo.UserMessage(parts))

	params := openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(c.cfg.VisionModel),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaigo.Int(int64(req.MaxTokens))
	}
	return c.complete(ctx, params)
}

// TranscribeAudio uploads an audio clip to the transcription endpoint.
func (c *Client) TranscribeAudio(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio")
	}
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	params := openaigo.AudioTranscriptionNewParams{
		File:  openaigo.File(bytes.NewReader(audio), "chunk"+extensionFor(mimeType), mimeType),
		Model: openaigo.AudioModel(c.cfg.TranscribeModel),
	}
	if language != "" {
		params.Language = openaigo.String(language)
	}

	resp, err := c.api.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *Client) complete(ctx context.Context, params openaigo.ChatCompletionNewParams) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/webm":
		return ".webm"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".wav"
	}
}
