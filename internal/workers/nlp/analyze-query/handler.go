// internal/workers/nlp/analyze-query/handler.go
package analyzequery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/metrics"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/validation"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

const (
	TaskType = "nlp-analyze-query"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Analyzer is the part of the service this worker needs.
type Analyzer interface {
	Analyze(ctx context.Context, query string, qc *models.QueryContext) models.NLPResult
}

type Handler struct {
	config    *Config
	analyzer  Analyzer
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	logger    Logger
}

func NewHandler(config *Config, analyzer Analyzer, validator *validation.Validator, log Logger) *Handler {
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:    config,
		analyzer:  analyzer,
		validator: validator,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.Decode(job.Variables)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// Decode validates the job variables against the registered input schema.
func (h *Handler) Decode(variables string) (*Input, error) {
	if res := h.validator.ValidateJSON([]byte(variables)); !res.Valid {
		return nil, apperrors.NewInvalidInputError(res.Summary())
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result := h.analyzer.Analyze(ctx, input.Query, input.Context)
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	h.logger.Info("query analyzed", map[string]interface{}{
		"requestId":     result.RequestID,
		"intent":        result.Intent.Type,
		"confidence":    result.ConfidenceScore,
		"clarification": result.ClarificationNeeded,
	})

	return newOutput(result), nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.failJob(client, job, apperrors.NewInternalError(err))
		return
	}

	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	code := apperrors.Normalize(err).Code
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
