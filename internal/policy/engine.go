package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

// Engine evaluates the feedback delivery policy with OPA.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the delivery policy in policyContent.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.feedback_delivery.decision"),
		rego.Module("feedback_delivery.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// LoadEngine prepares the policy stored at path, or DefaultPolicy when path
// is empty.
func LoadEngine(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(content))
}

// Decide returns how a new feedback event is pushed to live subscribers.
// An undefined decision or an unknown value is treated as notify.
func (e *Engine) Decide(ctx context.Context, sessionType domain.SessionType, ev domain.FeedbackEvent) (domain.Delivery, error) {
	input := map[string]interface{}{
		"session_type": string(sessionType),
		"priority":     string(ev.Priority),
		"kind":         string(ev.Kind),
		"actionable":   ev.Actionable,
		"elapsed_ms":   ev.Context.ElapsedMs,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.DeliveryNotify, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok && domain.Delivery(s) == domain.DeliveryQuiet {
		return domain.DeliveryQuiet, nil
	}
	return domain.DeliveryNotify, nil
}

// DefaultPolicy keeps exams quiet unless something is high priority and
// never interrupts with low priority tips.
const DefaultPolicy = `
package feedback_delivery

default decision := "notify"

# Exams: only high and urgent events interrupt.
decision := "quiet" if {
	input.session_type == "exam"
	input.priority in {"low", "medium"}
}

# Low priority tips are never pushed as notifications.
decision := "quiet" if {
	input.session_type != "exam"
	input.priority == "low"
}
`
