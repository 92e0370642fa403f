// internal/common/camunda/worker.go
package camunda

import (
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
)

// JobWorkerSource is the part of zbc.Client that opens job workers.
type JobWorkerSource interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

// Workers tracks the job workers opened for one process so they can be
// closed together on shutdown.
type Workers struct {
	source  JobWorkerSource
	log     logger.Logger
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewWorkers(source JobWorkerSource, log logger.Logger) *Workers {
	return &Workers{source: source, log: log, workers: map[string]worker.JobWorker{}}
}

// Start opens a worker for taskType unless the config disables it.
func (w *Workers) Start(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) bool {
	if !wcfg.Enabled {
		w.log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	jw := w.source.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	w.mu.Lock()
	w.workers[taskType] = jw
	w.mu.Unlock()

	w.log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

// Running lists the task types with an open worker.
func (w *Workers) Running() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.workers))
	for t := range w.workers {
		out = append(out, t)
	}
	return out
}

// Close stops polling and waits for in-flight jobs.
func (w *Workers) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for taskType, jw := range w.workers {
		w.log.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		jw.Close()
		jw.AwaitClose()
	}
	w.workers = map[string]worker.JobWorker{}
}
