// internal/workers/nlp/orchestrate-query/handler_test.go
package orchestratequery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/pkg/registry"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t, fields: map[string]interface{}{}}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{t: l.t, fields: merged}
}

type fakeOrchestrator struct {
	result models.OrchestrationResult
	delay  time.Duration
	got    *models.QueryContext
}

func (f *fakeOrchestrator) Orchestrate(ctx context.Context, _ string, qc *models.QueryContext) models.OrchestrationResult {
	f.got = qc
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return f.result
}

func newTestHandler(t *testing.T, o Orchestrator, timeoutMs int) *Handler {
	reg, err := registry.Default()
	require.NoError(t, err)
	v, err := reg.InputValidator(TaskType)
	require.NoError(t, err)
	return NewHandler(LoadConfig(timeoutMs), o, v, NewTestLogger(t))
}

func TestExecute_Answer(t *testing.T) {
	fake := &fakeOrchestrator{result: models.OrchestrationResult{
		Analysis: models.NLPResult{RequestID: "req-1", Intent: models.Intent{Type: models.IntentCount}, ConfidenceScore: 0.8},
		Response: &models.ConvergedResponse{
			Text:               "Foram 12 entregas atrasadas.",
			ContributingAgents: []string{"deliveries", "orders"},
			ValidationNote:     "Observação: confira.",
		},
		Validation: &models.ValidationResult{Score: 0.6},
	}}
	h := newTestHandler(t, fake, 0)

	qc := &models.QueryContext{DomainHint: models.DomainDeliveries}
	out, err := h.Execute(context.Background(), &Input{Query: "entregas atrasadas", Context: qc})
	require.NoError(t, err)

	assert.Same(t, qc, fake.got)
	assert.Equal(t, "req-1", out.RequestID)
	assert.Equal(t, "count", out.IntentType)
	assert.Equal(t, "Foram 12 entregas atrasadas.", out.ResponseText)
	assert.Equal(t, []string{"deliveries", "orders"}, out.ContributingAgents)
	assert.Equal(t, 0.6, out.ValidationScore)
	assert.Equal(t, "Observação: confira.", out.ValidationNote)
	assert.False(t, out.ClarificationNeeded)
	assert.Nil(t, out.Clarification)
}

func TestExecute_Clarification(t *testing.T) {
	fake := &fakeOrchestrator{result: models.OrchestrationResult{
		Clarification: &models.ClarificationRequest{Questions: []string{"Qual cliente?"}},
	}}
	h := newTestHandler(t, fake, 0)

	out, err := h.Execute(context.Background(), &Input{Query: "cliente"})
	require.NoError(t, err)
	assert.True(t, out.ClarificationNeeded)
	assert.Empty(t, out.ResponseText)
	assert.NotNil(t, out.ContributingAgents)
}

func TestExecute_InsufficientStillCompletes(t *testing.T) {
	fake := &fakeOrchestrator{result: models.OrchestrationResult{
		Response: &models.ConvergedResponse{Text: "Não encontrei informações suficientes.", Insufficient: true},
	}}
	h := newTestHandler(t, fake, 0)

	out, err := h.Execute(context.Background(), &Input{Query: "frete"})
	require.NoError(t, err)
	assert.True(t, out.Insufficient)
	assert.NotEmpty(t, out.ResponseText)
	assert.Empty(t, out.ContributingAgents)
}

func TestExecute_Deadline(t *testing.T) {
	h := newTestHandler(t, &fakeOrchestrator{delay: time.Second}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Execute(ctx, &Input{Query: "frete"})
	require.Error(t, err)
	std := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeLLMTimeout, std.Code)
	assert.True(t, std.Retryable)
}

func TestDecode(t *testing.T) {
	h := newTestHandler(t, &fakeOrchestrator{}, 0)

	input, err := h.Decode(`{"query":"faturamento do Carrefour"}`)
	require.NoError(t, err)
	assert.Nil(t, input.Context)

	_, err = h.Decode(`{"query":42}`)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.Normalize(err).Code)
}
