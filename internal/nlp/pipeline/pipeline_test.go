package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/confidence"
)

var fixedNow = time.Date(2025, time.October, 15, 11, 0, 0, 0, time.UTC)

type stubHints struct {
	patterns []models.KnowledgePattern
	err      error
	calls    []string
}

func (s *stubHints) Hints(_ context.Context, text string) ([]models.KnowledgePattern, error) {
	s.calls = append(s.calls, text)
	return s.patterns, s.err
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(config.PipelineConfig{}, logger.NewTestLogger(t), opts...)
}

func TestAnalyze_ScenarioA(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Analyze(context.Background(), "Quantas entregas do Assai estão atrasadas hoje?", nil)

	client, ok := models.FirstEntity(res.Entities, models.EntityClient)
	require.True(t, ok)
	assert.Equal(t, "Assai", client.NormalizedValue.Text)

	date, ok := models.FirstEntity(res.Entities, models.EntityDate)
	require.True(t, ok)
	assert.Equal(t, "2025-10-15", date.NormalizedValue.Text)

	assert.Equal(t, models.IntentCount, res.Intent.Type)
	assert.GreaterOrEqual(t, res.ConfidenceScore, 0.6)
	assert.False(t, res.ClarificationNeeded)
	assert.Nil(t, res.Clarification)
	assert.Nil(t, res.Error)

	assert.Equal(t, models.DomainDeliveries, res.Context.BusinessDomain)
	assert.Equal(t, models.TemporalSpecificDate, res.Context.TemporalScope.Kind)
	assert.Equal(t, "Assai", res.Context.ImplicitFilters[models.FilterClient])
	assert.Equal(t, "delayed", res.Context.ImplicitFilters[models.FilterStatus])
	assert.NotEmpty(t, res.RequestID)
}

func TestAnalyze_ScenarioB(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Analyze(context.Background(), "cliente", nil)

	assert.True(t, res.ClarificationNeeded)
	require.NotNil(t, res.Clarification)
	assert.Contains(t, res.Clarification.Questions, confidence.QuestionClient)
	assert.LessOrEqual(t, len(res.Clarification.Examples), 3)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperrors.ErrCodeAmbiguousQuery, res.Error.Code)
}

func TestAnalyze_EmptyQuery(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Analyze(context.Background(), "", nil)

	assert.Equal(t, "", res.NormalizedText)
	assert.Empty(t, res.Entities)
	assert.NotEmpty(t, res.Intent.Type)
	assert.True(t, res.ClarificationNeeded)
}

func TestAnalyze_ConfidenceAlwaysInRange(t *testing.T) {
	p := newTestPipeline(t)
	queries := []string{
		"Qual o faturamento do Carrefour em setembro?",
		"liste pedidos urgentes do cliente Zaffari para RJ nos ultimos 7 dias",
		"frete R$ 1.500,00 12% 40 caixas nota fiscal 12345 pedido 999",
		"!!!???",
		"onde",
		"\xff\xfe",
	}
	for _, q := range queries {
		res := p.Analyze(context.Background(), q, nil)
		assert.GreaterOrEqual(t, res.ConfidenceScore, 0.0, q)
		assert.LessOrEqual(t, res.ConfidenceScore, 1.0, q)
		assert.NotEmpty(t, res.Intent.Type, q)
	}
}

func TestAnalyze_UsesHints(t *testing.T) {
	hints := &stubHints{patterns: []models.KnowledgePattern{{
		PatternType:    models.PatternIntent,
		PatternText:    "assai",
		Interpretation: string(models.IntentTrend),
		Confidence:     0.9,
	}}}
	p := newTestPipeline(t, WithHints(hints))

	res := p.Analyze(context.Background(), "e o Assai", nil)
	assert.Equal(t, []string{"e o assai"}, hints.calls)
	assert.Equal(t, models.IntentTrend, res.Intent.Type)
	assert.Len(t, res.KnowledgeHints, 1)
}

func TestAnalyze_ClientAliasHint(t *testing.T) {
	hints := &stubHints{patterns: []models.KnowledgePattern{{
		PatternType:    models.PatternClientAlias,
		PatternText:    "atac",
		Interpretation: "Atacadão",
		Confidence:     0.8,
	}}}
	p := newTestPipeline(t, WithHints(hints))

	res := p.Analyze(context.Background(), "Pedidos do Atac", nil)
	assert.Equal(t, "Atacadão", res.Context.ImplicitFilters[models.FilterClient])
	assert.False(t, models.HasEntity(res.Entities, models.EntityClient))
}

func TestAnalyze_DomainHintBreaksTie(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Analyze(context.Background(), "frete do pedido", nil)
	require.Equal(t, models.DomainGeneral, res.Context.BusinessDomain)

	hints := &stubHints{patterns: []models.KnowledgePattern{{
		PatternType:    models.PatternDomain,
		PatternText:    "frete do pedido",
		Interpretation: string(models.DomainOrders),
		Confidence:     0.7,
	}}}
	p = newTestPipeline(t, WithHints(hints))
	res = p.Analyze(context.Background(), "frete do pedido", nil)
	assert.Equal(t, models.DomainOrders, res.Context.BusinessDomain)
}

func TestAnalyze_HintFailureIsIgnored(t *testing.T) {
	hints := &stubHints{err: errors.New("redis down")}
	p := newTestPipeline(t, WithHints(hints))

	res := p.Analyze(context.Background(), "Quantas entregas do Assai estão atrasadas hoje?", nil)
	assert.Empty(t, res.KnowledgeHints)
	assert.Equal(t, models.IntentCount, res.Intent.Type)
}

func TestAnalyze_CallerContext(t *testing.T) {
	p := newTestPipeline(t)
	qc := &models.QueryContext{DomainHint: models.DomainFinance, Filters: map[string]string{"client": "Makro"}}

	res := p.Analyze(context.Background(), "resumo de hoje", qc)
	assert.Equal(t, models.DomainFinance, res.Context.BusinessDomain)
	assert.Equal(t, "Makro", res.Context.ImplicitFilters[models.FilterClient])
}
