package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	tests := []struct {
		name        string
		sessionType domain.SessionType
		priority    domain.Priority
		want        domain.Delivery
	}{
		{"exam medium is quiet", domain.SessionTypeExam, domain.PriorityMedium, domain.DeliveryQuiet},
		{"exam urgent notifies", domain.SessionTypeExam, domain.PriorityUrgent, domain.DeliveryNotify},
		{"meeting medium notifies", domain.SessionTypeMeeting, domain.PriorityMedium, domain.DeliveryNotify},
		{"meeting low is quiet", domain.SessionTypeMeeting, domain.PriorityLow, domain.DeliveryQuiet},
		{"sales high notifies", domain.SessionTypeSalesCall, domain.PriorityHigh, domain.DeliveryNotify},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Decide(ctx, tt.sessionType, domain.FeedbackEvent{Priority: tt.priority, Kind: domain.FeedbackKindCoaching})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnknownDecisionNotifies(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package feedback_delivery

decision := "shout" if { input.priority == "high" }
`)
	require.NoError(t, err)

	got, err := engine.Decide(ctx, domain.SessionTypeOther, domain.FeedbackEvent{Priority: domain.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryNotify, got)

	got, err = engine.Decide(ctx, domain.SessionTypeOther, domain.FeedbackEvent{Priority: domain.PriorityLow})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryNotify, got)
}

func TestLoadEngine(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "delivery.rego")
	require.NoError(t, os.WriteFile(path, []byte(`
package feedback_delivery

default decision := "quiet"
`), 0o600))

	engine, err := LoadEngine(ctx, path)
	require.NoError(t, err)
	got, err := engine.Decide(ctx, domain.SessionTypeMeeting, domain.FeedbackEvent{Priority: domain.PriorityUrgent})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryQuiet, got)

	_, err = LoadEngine(ctx, filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)

	_, err = NewEngine(ctx, "package broken\n\ndecision := ")
	assert.Error(t, err)
}
