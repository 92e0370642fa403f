// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/camunda"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	apphttp "github.com/Rafael-2109/frete-sistema-sub002/internal/common/http"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/observability"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/service"
	"github.com/Rafael-2109/frete-sistema-sub002/pkg/registry"

	aq "github.com/Rafael-2109/frete-sistema-sub002/internal/workers/nlp/analyze-query"
	oq "github.com/Rafael-2109/frete-sistema-sub002/internal/workers/nlp/orchestrate-query"
	rf "github.com/Rafael-2109/frete-sistema-sub002/internal/workers/nlp/record-feedback"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("app", cfg.App.Name))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Service (LLM, knowledge store, pipeline) with retry ---
	var (
		svc *service.Service
		res *service.Resources
	)
	err = retryWithBackoff(func() error {
		var err error
		svc, res, err = service.NewFromConfig(ctx, cfg, obs, log)
		return err
	}, 10, 2*time.Second, zapLog, "Service initialization")
	if err != nil {
		zapLog.Fatal("service init failed after retries", zap.Error(err))
	}
	zapLog.Info("Service ready",
		zap.String("llmProvider", cfg.LLM.Provider),
		zap.String("knowledgeBackend", cfg.Knowledge.Backend),
		zap.Bool("redisCache", res.Redis != nil),
	)

	checks := res.Checks()

	// --- Zeebe workers ---
	var (
		zeebe   *camunda.Client
		workers *camunda.Workers
	)
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda))
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		checks["zeebe"] = zeebe.HealthCheck

		reg, err := registry.Default()
		if err != nil {
			zapLog.Fatal("activity registry failed to load", zap.Error(err))
		}
		workers = camunda.NewWorkers(zeebe.GetClient(), log)
		startWorkers(workers, reg, cfg, svc, log, zapLog)
		zapLog.Info("Workers registered", zap.Strings("taskTypes", workers.Running()))
	} else {
		zapLog.Info("Camunda disabled, serving health and metrics only")
	}

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           apphttp.NewHealthMux(checks, 2*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if workers != nil {
		workers.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := svc.Close(); err != nil {
		zapLog.Error("Error closing knowledge store", zap.Error(err))
	}
	if err := res.Close(); err != nil {
		zapLog.Error("Error closing redis", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorkers(workers *camunda.Workers, reg *registry.ActivityRegistry, cfg *config.Config, svc *service.Service, log logger.Logger, zapLog *zap.Logger) {
	// Analyze Query
	if taskType := aq.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := workerConfig(cfg, reg, taskType)
		v, err := reg.InputValidator(taskType)
		if err != nil {
			zapLog.Fatal("failed to create nlp-analyze-query handler", zap.Error(err))
		}
		handler := aq.NewHandler(aq.LoadConfig(wcfg.Timeout), svc, v, &analyzeQueryLoggerAdapter{log})
		workers.Start(taskType, wcfg, handler.Handle)
	}

	// Orchestrate Query
	if taskType := oq.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := workerConfig(cfg, reg, taskType)
		v, err := reg.InputValidator(taskType)
		if err != nil {
			zapLog.Fatal("failed to create nlp-orchestrate-query handler", zap.Error(err))
		}
		handler := oq.NewHandler(oq.LoadConfig(wcfg.Timeout), svc, v, &orchestrateQueryLoggerAdapter{log})
		workers.Start(taskType, wcfg, handler.Handle)
	}

	// Record Feedback
	if taskType := rf.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := workerConfig(cfg, reg, taskType)
		v, err := reg.InputValidator(taskType)
		if err != nil {
			zapLog.Fatal("failed to create nlp-record-feedback handler", zap.Error(err))
		}
		handler := rf.NewHandler(rf.LoadConfig(wcfg.Timeout), svc, v, &recordFeedbackLoggerAdapter{log})
		workers.Start(taskType, wcfg, handler.Handle)
	}
}

// workerConfig falls back to the registry timeout for workers missing from config.
func workerConfig(cfg *config.Config, reg *registry.ActivityRegistry, taskType string) config.WorkerConfig {
	if wcfg, ok := cfg.Workers[taskType]; ok {
		return wcfg
	}
	wcfg := config.GetWorkerConfig(cfg, taskType)
	if act, ok := reg.Find(taskType); ok {
		if d, err := act.TimeoutDuration(); err == nil && d > 0 {
			wcfg.Timeout = int(d / time.Millisecond)
		}
	}
	return wcfg
}

// Logger adapters for workers that have their own Logger interfaces
type analyzeQueryLoggerAdapter struct {
	logger.Logger
}

func (a *analyzeQueryLoggerAdapter) With(fields map[string]interface{}) aq.Logger {
	return &analyzeQueryLoggerAdapter{a.Logger.With(fields)}
}

type orchestrateQueryLoggerAdapter struct {
	logger.Logger
}

func (a *orchestrateQueryLoggerAdapter) With(fields map[string]interface{}) oq.Logger {
	return &orchestrateQueryLoggerAdapter{a.Logger.With(fields)}
}

type recordFeedbackLoggerAdapter struct {
	logger.Logger
}

func (a *recordFeedbackLoggerAdapter) With(fields map[string]interface{}) rf.Logger {
	return &recordFeedbackLoggerAdapter{a.Logger.With(fields)}
}
