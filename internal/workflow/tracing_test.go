package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/featureflow/internal/telemetry"
)

func TestOrchestrator_Spans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	h := newHarness(t, nil, WithTracer(tt.Tracer(instrumentationName)))

	resp := h.start(t, []string{})
	_, err := h.o.Abort(context.Background(), resp.WorkflowID, "done here")
	require.NoError(t, err)
	_, err = h.o.Step(context.Background(), "missing-0001", nil)
	require.ErrorIs(t, err, ErrNotFound)

	tt.AssertSpanExists(t, "workflow.start")
	tt.AssertSpanAttribute(t, "workflow.start", "workflow.id", resp.WorkflowID)
	tt.AssertSpanAttribute(t, "workflow.abort", "workflow.id", resp.WorkflowID)

	step := tt.SpanByName("workflow.step")
	require.NotNil(t, step)
	assert.Equal(t, codes.Error, step.Status().Code)
	assert.Contains(t, step.Status().Description, "workflow not found")
}
