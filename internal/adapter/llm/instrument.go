package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

const meterName = "github.com/xiaot623/gogo/livecoach/internal/adapter/llm"

// Operation names used in metrics and InferenceError.
const (
	OpText       = "generate_text"
	OpMultimodal = "generate_multimodal"
	OpTranscribe = "transcribe_audio"
)

type instrumented struct {
	next    Backend
	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

// Instrument wraps a Backend so every call is counted and timed, and every
// failure is returned as a *domain.InferenceError.
func Instrument(b Backend) Backend {
	meter := otel.Meter(meterName)
	calls, _ := meter.Int64Counter("livecoach.inference.calls",
		metric.WithDescription("Inference backend calls by operation and outcome"))
	latency, _ := meter.Float64Histogram("livecoach.inference.latency_ms",
		metric.WithDescription("Inference backend call latency"),
		metric.WithUnit("ms"))
	return &instrumented{next: b, calls: calls, latency: latency}
}

func (i *instrumented) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	start := time.Now()
	out, err := i.next.GenerateText(ctx, req)
	return out, i.record(ctx, OpText, start, err)
}

func (i *instrumented) GenerateMultimodal(ctx context.Context, req MultimodalRequest) (string, error) {
	start := time.Now()
	out, err := i.next.GenerateMultimodal(ctx, req)
	return out, i.record(ctx, OpMultimodal, start, err)
}

func (i *instrumented) TranscribeAudio(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	start := time.Now()
	out, err := i.next.TranscribeAudio(ctx, audio, mimeType, language)
	return out, i.record(ctx, OpTranscribe, start, err)
}

func (i *instrumented) record(ctx context.Context, op string, start time.Time, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ms := float64(time.Since(start).Microseconds()) / 1000
	i.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), attribute.String("outcome", outcome)))
	i.latency.Record(ctx, ms, metric.WithAttributes(attribute.String("op", op)))
	if err != nil {
		return &domain.InferenceError{Op: op, Err: err}
	}
	return nil
}
