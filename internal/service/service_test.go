package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/agents"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/knowledge"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/llm"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/lexicon"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/pipeline"
)

const scenarioA = "Quantas entregas do Assai estão atrasadas hoje?"

var fixedNow = time.Date(2025, time.October, 15, 11, 0, 0, 0, time.UTC)

func answering(text string) llm.Completer {
	return llm.CompleterFunc(func(context.Context, llm.Request) (string, error) { return text, nil })
}

func newTestService(t *testing.T, c llm.Completer, store *knowledge.Store) *Service {
	svc, err := New(Options{
		Completer:       c,
		Store:           store,
		Logger:          logger.NewTestLogger(t),
		PipelineOptions: []pipeline.Option{pipeline.WithClock(func() time.Time { return fixedNow })},
	})
	require.NoError(t, err)
	return svc
}

func newTestStore(t *testing.T) (*knowledge.Store, *knowledge.MemoryRepository) {
	repo := knowledge.NewMemoryRepository()
	store := knowledge.NewStore(repo, config.KnowledgeConfig{}, logger.NewTestLogger(t))
	require.NoError(t, store.Open(context.Background()))
	return store, repo
}

func TestOrchestrate_Answer(t *testing.T) {
	svc := newTestService(t, answering("Foram encontradas 2 entregas atrasadas do Assai hoje."), nil)

	res := svc.Orchestrate(context.Background(), scenarioA, nil)
	require.NotNil(t, res.Response)
	assert.Nil(t, res.Clarification)
	assert.Equal(t, "Foram encontradas 2 entregas atrasadas do Assai hoje.", res.Response.Text)
	assert.Equal(t, []string{"deliveries"}, res.Response.ContributingAgents)
	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.Approved)
	assert.Len(t, res.Trace, 5)
	assert.Equal(t, models.IntentCount, res.Analysis.Intent.Type)
}

func TestOrchestrate_ExampleQueriesGetAnswers(t *testing.T) {
	svc := newTestService(t, answering("Nenhum registro encontrado para o período."), nil)

	for domain, queries := range lexicon.Default().Examples {
		for _, q := range queries {
			res := svc.Orchestrate(context.Background(), q, nil)
			if res.Clarification != nil {
				continue
			}
			require.NotNil(t, res.Response, "%s: %q", domain, q)
			assert.False(t, res.Response.Insufficient, "%s: %q", domain, q)
			assert.NotEmpty(t, res.Response.ContributingAgents, "%s: %q", domain, q)
		}
	}
}

func TestOrchestrate_Clarification(t *testing.T) {
	calls := 0
	c := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		calls++
		return "x", nil
	})
	svc := newTestService(t, c, nil)

	res := svc.Orchestrate(context.Background(), "cliente", nil)
	assert.Nil(t, res.Response)
	require.NotNil(t, res.Clarification)
	assert.NotEmpty(t, res.Clarification.Questions)
	assert.Equal(t, 0, calls)
}

func TestOrchestrate_CompleterDown(t *testing.T) {
	svc := newTestService(t, llm.Unavailable{}, nil)

	res := svc.Orchestrate(context.Background(), scenarioA, nil)
	require.NotNil(t, res.Response)
	assert.Equal(t, agents.FallbackText, res.Response.Text)
	assert.True(t, res.Response.Insufficient)
	assert.Equal(t, models.AgentFailed, res.Trace[0].Status)
}

func TestOrchestrate_ApprovedAnswerIsReinforced(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store, repo := newTestStore(t)
	svc := newTestService(t, answering("Foram encontradas 2 entregas atrasadas do Assai hoje."), store)

	res := svc.Orchestrate(context.Background(), scenarioA, nil)
	require.NotNil(t, res.Response)
	require.NoError(t, svc.Close())

	records := repo.Feedback()
	require.Len(t, records, 2)
	assert.Equal(t, models.PatternIntent, records[0].PatternType)
	assert.Equal(t, string(models.IntentCount), records[0].Interpretation)
	assert.Equal(t, models.PatternClientAlias, records[1].PatternType)
	assert.Equal(t, "Assai", records[1].Interpretation)
}

func TestRecordFeedback_InformsLaterQueries(t *testing.T) {
	store, _ := newTestStore(t)
	svc := newTestService(t, nil, store)
	defer svc.Close()
	ctx := context.Background()

	rec, err := svc.RecordFeedback(ctx, models.FeedbackInput{
		Query:          "e o Assai?",
		PatternType:    models.PatternIntent,
		PatternText:    "ASSAÍ",
		Interpretation: string(models.IntentTrend),
		Outcome:        models.FeedbackReinforce,
	})
	require.NoError(t, err)
	assert.Equal(t, "assai", rec.PatternText)

	res := svc.Analyze(ctx, "e o Assai", nil)
	require.Len(t, res.KnowledgeHints, 1)
	assert.Equal(t, "assai", res.KnowledgeHints[0].PatternText)
	assert.Equal(t, models.IntentTrend, res.Intent.Type)
}

func TestRecordFeedback_ClientAliasAndDomain(t *testing.T) {
	store, _ := newTestStore(t)
	svc := newTestService(t, nil, store)
	defer svc.Close()
	ctx := context.Background()

	for _, in := range []models.FeedbackInput{
		{PatternType: models.PatternClientAlias, PatternText: "Atac", Interpretation: "Atacadão", Outcome: models.FeedbackReinforce},
		{PatternType: models.PatternDomain, PatternText: "resumo geral", Interpretation: string(models.DomainFinance), Outcome: models.FeedbackReinforce},
	} {
		_, err := svc.RecordFeedback(ctx, in)
		require.NoError(t, err)
	}

	res := svc.Analyze(ctx, "pedidos do atac", nil)
	assert.Equal(t, "Atacadão", res.Context.ImplicitFilters[models.FilterClient])

	res = svc.Analyze(ctx, "resumo geral de hoje", nil)
	assert.Equal(t, models.DomainFinance, res.Context.BusinessDomain)
}

func TestRecordFeedback_WithoutStore(t *testing.T) {
	svc := newTestService(t, nil, nil)

	_, err := svc.RecordFeedback(context.Background(), models.FeedbackInput{
		PatternType: models.PatternIntent, PatternText: "x", Outcome: models.FeedbackReinforce,
	})
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeKnowledgeStoreFailed, stdErr.Code)
	assert.NoError(t, svc.Close())
}

func TestRefine(t *testing.T) {
	svc := newTestService(t, nil, nil)

	res, err := svc.Refine(context.Background(), "remessas do Assai atrasadas hoje", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Trace)
	assert.LessOrEqual(t, len(res.Trace), 3)
	assert.Len(t, res.Trajectory, len(res.Trace))
}

func TestRefineWithBudget(t *testing.T) {
	svc := newTestService(t, nil, nil)

	res, err := svc.RefineWithBudget(context.Background(), "remessas do Assai atrasadas hoje", nil, 1)
	require.NoError(t, err)
	assert.Len(t, res.Trace, 1)
}
