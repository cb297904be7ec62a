package camunda

import (
	"context"
	"sync"
	"time"

	"dominion-workers/internal/common/config"
	"dominion-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobWorkerFactory is the part of zbc.Client needed to open job workers.
type JobWorkerFactory interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

var _ JobWorkerFactory = (zbc.Client)(nil)

// Instrument wraps handler with the active-jobs gauge and the job duration histogram.
func Instrument(taskType string, handler worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer func() {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		}()
		handler(client, job)
	}
}

// Pool tracks the job workers opened by the process so they can be closed on shutdown.
type Pool struct {
	mu      sync.Mutex
	workers map[string]worker.JobWorker
	logger  *zap.Logger
}

func NewPool(log *zap.Logger) *Pool {
	return &Pool{
		workers: make(map[string]worker.JobWorker),
		logger:  log,
	}
}

// Start opens a job worker for taskType unless it is disabled in wcfg.
func (p *Pool) Start(client JobWorkerFactory, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) bool {
	if !wcfg.Enabled {
		p.logger.Info("worker disabled", zap.String("taskType", taskType))
		return false
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	p.mu.Lock()
	p.workers[taskType] = jobWorker
	p.mu.Unlock()

	p.logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
	return true
}

// TaskTypes lists the task types with an open worker.
func (p *Pool) TaskTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.workers))
	for t := range p.workers {
		out = append(out, t)
	}
	return out
}

// Stop closes every worker and waits for in-flight jobs until ctx is done.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	workers := p.workers
	p.workers = make(map[string]worker.JobWorker)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for taskType, w := range workers {
		wg.Add(1)
		go func(taskType string, w worker.JobWorker) {
			defer wg.Done()
			p.logger.Info("stopping worker", zap.String("taskType", taskType))
			w.Close()
			w.AwaitClose()
		}(taskType, w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("timed out waiting for workers to stop", zap.Error(ctx.Err()))
	}
}
