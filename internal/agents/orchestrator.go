package agents

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/metrics"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

const DefaultAgentTimeout = 30 * time.Second

// Responder is one specialist as seen by the orchestrator. Each call gets its
// own copy of the analysis.
type Responder interface {
	ID() string
	Respond(ctx context.Context, analysis models.NLPResult) models.AgentResponse
}

// Outcome is everything one orchestration produced.
type Outcome struct {
	Responses  []models.AgentResponse
	Validation models.ValidationResult
	Response   models.ConvergedResponse
	Err        *apperrors.StandardError
}

// Orchestrator fans a query out to every specialist, waits for all of them,
// then validates and merges the answers.
type Orchestrator struct {
	specialists []Responder
	critic      *Critic
	synth       *Synthesizer
	timeout     time.Duration
	log         logger.Logger
}

func NewOrchestrator(specialists []Responder, cfg config.PipelineConfig, log logger.Logger) *Orchestrator {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	timeout := time.Duration(cfg.AgentTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultAgentTimeout
	}
	return &Orchestrator{
		specialists: specialists,
		critic:      NewCritic(cfg.CriticPenalty, cfg.ApprovalThreshold),
		synth:       NewSynthesizer(cfg.RelevanceThreshold, cfg.FootnoteThreshold, cfg.SecondaryConfidence, cfg.ExcerptLength),
		timeout:     timeout,
		log:         log.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// AsResponders adapts concrete specialists to the orchestrator's interface.
func AsResponders(specs []*Specialist) []Responder {
	out := make([]Responder, len(specs))
	for i, s := range specs {
		out[i] = s
	}
	return out
}

// Run never fails: specialist errors are kept on their responses and an
// empty merge yields the fallback text with Err set.
func (o *Orchestrator) Run(ctx context.Context, analysis models.NLPResult) Outcome {
	responses := o.Collect(ctx, analysis)
	validation := o.critic.Validate(responses)
	merged := o.synth.Synthesize(responses, validation)

	out := Outcome{Responses: responses, Validation: validation, Response: merged}
	switch {
	case merged.Insufficient:
		out.Err = apperrors.NewConvergenceImpossibleError(len(responses))
		metrics.ConvergenceOutcomes.WithLabelValues("insufficient").Inc()
	case len(merged.ContributingAgents) == 1:
		metrics.ConvergenceOutcomes.WithLabelValues("single").Inc()
	default:
		metrics.ConvergenceOutcomes.WithLabelValues("merged").Inc()
	}

	o.log.Info("Orchestration finished", map[string]interface{}{
		"requestId":    analysis.RequestID,
		"specialists":  len(responses),
		"contributors": merged.ContributingAgents,
		"score":        validation.Score,
		"approved":     validation.Approved,
	})
	return out
}

// Collect runs every specialist concurrently under one deadline and returns
// their responses in specialist order once all have finished.
func (o *Orchestrator) Collect(ctx context.Context, analysis models.NLPResult) []models.AgentResponse {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	results := make([]models.AgentResponse, len(o.specialists))
	var g errgroup.Group
	for i, s := range o.specialists {
		g.Go(func() error {
			results[i] = o.invoke(ctx, s, analysis.Clone())
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// invoke isolates one specialist: a panic or an overrun becomes a failed response.
func (o *Orchestrator) invoke(ctx context.Context, s Responder, analysis models.NLPResult) models.AgentResponse {
	start := time.Now()
	done := make(chan models.AgentResponse, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- failed(models.AgentResponse{AgentID: s.ID()}, fmt.Errorf("panic: %v", r))
			}
		}()
		done <- s.Respond(ctx, analysis)
	}()

	var resp models.AgentResponse
	select {
	case resp = <-done:
	case <-ctx.Done():
		select {
		case resp = <-done:
		default:
			resp = failed(models.AgentResponse{AgentID: s.ID()}, ctx.Err())
		}
	}
	if resp.Latency == 0 {
		resp.Latency = time.Since(start)
	}

	metrics.SpecialistCalls.WithLabelValues(s.ID(), string(resp.Status)).Inc()
	metrics.SpecialistLatency.WithLabelValues(s.ID()).Observe(resp.Latency.Seconds())
	if resp.Err != nil {
		o.log.Warn("Specialist failed", map[string]interface{}{
			"agent": s.ID(),
			"error": resp.Error,
		})
	}
	return resp
}
