// Package service is the caller-facing entry point: one explicitly built
// object wiring the query pipeline, the specialists and the feedback store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/agents"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/metrics"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/observability"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/knowledge"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/llm"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/pipeline"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/nlp/refinement"
)

var ErrFeedbackDisabled = errors.New("FEEDBACK_DISABLED")

type Options struct {
	Pipeline        config.PipelineConfig
	LLM             config.LLMConfig
	Completer       llm.Completer
	Store           *knowledge.Store
	Observability   *observability.Observability
	Logger          logger.Logger
	PipelineOptions []pipeline.Option
}

type Service struct {
	pipeline     *pipeline.Pipeline
	refiner      *refinement.Loop
	refineTarget float64
	orchestrator *agents.Orchestrator
	store        *knowledge.Store
	obs          *observability.Observability
	log          logger.Logger
}

func New(opts Options) (*Service, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	cfg := opts.Pipeline.WithDefaults()

	profiles, err := agents.DefaultProfiles()
	if err != nil {
		return nil, fmt.Errorf("load specialist profiles: %w", err)
	}

	pipeOpts := opts.PipelineOptions
	if opts.Store != nil {
		pipeOpts = append([]pipeline.Option{pipeline.WithHints(opts.Store)}, pipeOpts...)
	}
	p := pipeline.New(cfg, log, pipeOpts...)

	specialists := agents.NewSpecialists(profiles, opts.Completer,
		agents.WithRelevanceThreshold(cfg.RelevanceThreshold),
		agents.WithGeneration(opts.LLM.MaxTokens, opts.LLM.Temperature),
	)

	return &Service{
		pipeline:     p,
		refiner:      refinement.New(p, p.Lexicon(), cfg.RefinementTarget, cfg.MaxIterations),
		refineTarget: cfg.RefinementTarget,
		orchestrator: agents.NewOrchestrator(agents.AsResponders(specialists), cfg, log),
		store:        opts.Store,
		obs:          opts.Observability,
		log:          log.With(map[string]interface{}{"component": "service"}),
	}, nil
}

// Analyze interprets one query. It never panics and never returns a nil intent.
func (s *Service) Analyze(ctx context.Context, query string, qc *models.QueryContext) (result models.NLPResult) {
	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "nlq.analyze")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Analyze panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			result = models.NLPResult{
				Query:  query,
				Intent: models.Intent{Type: models.IntentListing},
				Error:  apperrors.NewInternalError(fmt.Errorf("panic: %v", r)),
			}
		}
		s.obs.RecordQuery(ctx, "analyze", outcomeOf(result), time.Since(start))
	}()

	result = s.pipeline.Analyze(ctx, query, qc)
	span.SetAttributes(
		attribute.String("intent", string(result.Intent.Type)),
		attribute.Float64("confidence", result.ConfidenceScore),
	)
	return result
}

func outcomeOf(r models.NLPResult) string {
	switch {
	case r.Error != nil && r.Error.Code != apperrors.ErrCodeAmbiguousQuery:
		return "error"
	case r.ClarificationNeeded:
		return "clarification"
	default:
		return "ok"
	}
}

// Refine runs the refinement loop over the query.
func (s *Service) Refine(ctx context.Context, query string, qc *models.QueryContext) (*refinement.Result, error) {
	return s.RefineWithBudget(ctx, query, qc, 0)
}

// RefineWithBudget is Refine with an explicit iteration budget; zero keeps
// the configured one.
func (s *Service) RefineWithBudget(ctx context.Context, query string, qc *models.QueryContext, maxIterations int) (*refinement.Result, error) {
	ctx, span := s.obs.StartSpan(ctx, "nlq.refine")
	defer span.End()

	loop := s.refiner
	if maxIterations > 0 {
		loop = refinement.New(s.pipeline, s.pipeline.Lexicon(), s.refineTarget, maxIterations)
	}
	res, err := loop.Run(ctx, query, qc)
	if res != nil {
		metrics.RefinementIterations.Observe(float64(len(res.Trace)))
		span.SetAttributes(attribute.Int("iterations", len(res.Trace)), attribute.Bool("converged", res.Converged))
	}
	return res, err
}

// Orchestrate answers a query, or asks for clarification when the analysis is
// not confident enough. Exactly one of Response and Clarification is set.
func (s *Service) Orchestrate(ctx context.Context, query string, qc *models.QueryContext) (result models.OrchestrationResult) {
	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "nlq.orchestrate")
	defer span.End()

	outcome := "converged"
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Orchestrate panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			result.Clarification = nil
			result.Response = &models.ConvergedResponse{
				Text:               agents.FallbackText,
				ContributingAgents: []string{},
				Insufficient:       true,
			}
			outcome = "error"
		}
		s.obs.RecordQuery(ctx, "orchestrate", outcome, time.Since(start))
	}()

	analysis := s.Analyze(ctx, query, qc)
	result.Analysis = analysis
	if analysis.ClarificationNeeded {
		clar := analysis.Clarification
		if clar == nil {
			clar = &models.ClarificationRequest{}
		}
		result.Clarification = clar
		outcome = "clarification"
		return result
	}

	out := s.orchestrator.Run(ctx, analysis)
	response := out.Response
	validation := out.Validation
	result.Response = &response
	result.Validation = &validation
	result.Trace = out.Responses
	if response.Insufficient {
		outcome = "insufficient"
	}
	span.SetAttributes(
		attribute.Int("contributors", len(response.ContributingAgents)),
		attribute.Float64("validation_score", validation.Score),
	)

	if validation.Approved && !response.Insufficient {
		s.reinforce(analysis)
	}
	return result
}

// reinforce queues positive feedback for the interpretation that produced an
// approved answer.
func (s *Service) reinforce(a models.NLPResult) {
	if s.store == nil || a.NormalizedText == "" {
		return
	}
	s.store.Enqueue(models.FeedbackInput{
		Query:          a.Query,
		PatternType:    models.PatternIntent,
		PatternText:    a.NormalizedText,
		Interpretation: string(a.Intent.Type),
		Outcome:        models.FeedbackReinforce,
	})
	for _, e := range a.Entities {
		if e.Type != models.EntityClient || e.NormalizedValue == nil {
			continue
		}
		s.store.Enqueue(models.FeedbackInput{
			Query:          a.Query,
			PatternType:    models.PatternClientAlias,
			PatternText:    e.RawText,
			Interpretation: e.NormalizedValue.Text,
			Outcome:        models.FeedbackReinforce,
		})
	}
}

// RecordFeedback stores explicit caller feedback. The pattern text is
// normalized the same way queries are.
func (s *Service) RecordFeedback(ctx context.Context, in models.FeedbackInput) (models.FeedbackRecord, error) {
	if s.store == nil {
		return models.FeedbackRecord{}, fmt.Errorf("%w: %w", apperrors.NewKnowledgeStoreFailedError("record_feedback", ErrFeedbackDisabled), ErrFeedbackDisabled)
	}
	in.PatternText = s.pipeline.Normalizer().Normalize(in.PatternText)
	return s.store.Record(ctx, in)
}

// Close flushes queued feedback and releases the store.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
