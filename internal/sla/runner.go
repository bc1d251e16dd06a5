package sla

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"providence/internal/clock"
	"providence/internal/domain"
	"providence/internal/metrics"
	"providence/internal/push"
	"providence/internal/store"
)

// Runner processes queued SLA jobs with a worker pool.
// Params: store for the job queue and history reads, push publisher for
// job progress events.
// Returns: background computation engine started by the service.
type Runner struct {
	store        store.Store
	publisher    push.Publisher
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
	workers      int
	pollInterval time.Duration
}

// NewRunner creates an SLA job runner.
// Params: collaborators, worker count, and queue poll cadence.
// Returns: initialized runner; Run starts the workers.
func NewRunner(
	st store.Store,
	publisher push.Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
	workers int,
	pollInterval time.Duration,
) *Runner {
	if workers < 1 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Runner{
		store:        st,
		publisher:    publisher,
		clock:        clk,
		logger:       logger,
		metrics:      m,
		workers:      workers,
		pollInterval: pollInterval,
	}
}

// Run starts the worker pool and blocks until the context is canceled.
// Params: context controlling the pool lifetime.
// Returns: after all workers exit.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.workLoop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

// workLoop claims and processes jobs until cancellation.
// Params: context and worker index for logging.
// Returns: on context cancellation.
func (r *Runner) workLoop(ctx context.Context, worker int) {
	for {
		processed, err := r.ProcessNext(ctx)
		if err != nil {
			r.logger.Error("sla job claim failed", "worker", worker, "error", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.pollInterval):
		}
	}
}

// ProcessNext claims and completes at most one queued job.
// Params: context for store access.
// Returns: true when a job was processed; claim errors are returned,
// computation errors finish the job as failed.
func (r *Runner) ProcessNext(ctx context.Context) (bool, error) {
	job, ok, err := r.store.ClaimNextJob(ctx, domain.JobTypeSla, r.clock.Now())
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	r.announce(ctx, job)

	result, computeErr := r.compute(ctx, job)

	var resultBody []byte
	jobError := ""
	if computeErr != nil {
		jobError = computeErr.Error()
		r.logger.Warn("sla job failed", "jobId", job.ID, "error", computeErr)
	} else {
		resultBody, err = json.Marshal(result)
		if err != nil {
			jobError = fmt.Sprintf("encode result: %v", err)
		}
	}

	finished, err := r.store.CompleteJob(ctx, job.ID, resultBody, jobError, r.clock.Now())
	if err != nil {
		return true, fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	if r.metrics != nil {
		r.metrics.SlaJobs.WithLabelValues(string(finished.State)).Inc()
	}
	r.logger.Info("sla job finished",
		"jobId", finished.ID, "state", finished.State,
		"subscriptionId", finished.EnvironmentSubscriptionID)
	r.announce(ctx, finished)
	return true, nil
}

// compute runs the availability calculation for one claimed job.
// Params: claimed job with its request.
// Returns: result or computation error.
func (r *Runner) compute(ctx context.Context, job domain.InternalJob) (Result, error) {
	request := job.Request
	if request.Scope.ElementID == "" && request.Scope.ComponentType == "" {
		return Result{}, fmt.Errorf("sla scope requires elementId or componentType")
	}
	intervals, err := r.store.ReadHistory(ctx, job.EnvironmentSubscriptionID,
		request.Scope, request.StartDate, request.EndDate)
	if err != nil {
		return Result{}, fmt.Errorf("read history: %w", err)
	}
	return Compute(request, intervals, r.clock.Now())
}

// announce publishes one job state change.
// Params: job row after the change.
// Returns: none; publish failures are logged only.
func (r *Runner) announce(ctx context.Context, job domain.InternalJob) {
	if err := r.publisher.InternalJobUpdated(ctx, job); err != nil {
		r.logger.Warn("push publish failed",
			"jobId", job.ID, "event", "internalJobUpdated", "error", err)
	}
}
