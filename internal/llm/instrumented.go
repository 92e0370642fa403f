package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/metrics"
)

// Instrumented bounds each call by a timeout, records metrics and maps
// failures onto the LLM error codes.
type Instrumented struct {
	next    Completer
	timeout time.Duration
	log     logger.Logger
}

func NewInstrumented(next Completer, timeout time.Duration, log logger.Logger) *Instrumented {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Instrumented{
		next:    next,
		timeout: timeout,
		log:     log.With(map[string]interface{}{"provider": next.Provider()}),
	}
}

func (i *Instrumented) Provider() string { return i.next.Provider() }

func (i *Instrumented) Complete(ctx context.Context, req Request) (string, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	provider := i.next.Provider()
	start := time.Now()
	text, err := i.next.Complete(ctx, req)
	metrics.LLMLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.LLMRequests.WithLabelValues(provider, "ok").Inc()
		return text, nil
	case errors.Is(err, context.DeadlineExceeded):
		metrics.LLMRequests.WithLabelValues(provider, "timeout").Inc()
		i.log.Warn("LLM request timed out", map[string]interface{}{"timeout": i.timeout.String()})
		return "", fmt.Errorf("%w: %w", apperrors.NewLLMTimeoutError(), err)
	default:
		metrics.LLMRequests.WithLabelValues(provider, "error").Inc()
		i.log.Warn("LLM request failed", map[string]interface{}{"error": err})
		return "", fmt.Errorf("%w: %w", apperrors.NewLLMCallFailedError(provider, err), err)
	}
}

// RateLimited waits for a token before each call.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

func NewRateLimited(next Completer, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Provider() string { return r.next.Provider() }

func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Complete(ctx, req)
}
