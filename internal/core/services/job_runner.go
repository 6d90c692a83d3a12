package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/manthysbr/curunir/internal/core/domain"
	"github.com/manthysbr/curunir/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// LogFunc is the log-emission callback handed to workflow bodies. It
// doubles as the cooperative cancellation checkpoint: when the job's
// cancel flag is set it returns domain.ErrJobCancelled instead of
// logging, and the body is expected to abort with that error.
type LogFunc func(message string) error

// WorkflowFunc is the contract the runner executes: a workflow body
// receives the job record and a log callback and returns a result map.
// Bodies must call the log callback periodically to remain cancellable;
// a tool call already in flight cannot be interrupted.
type WorkflowFunc func(ctx context.Context, job *domain.Job, logf LogFunc) (map[string]any, error)

// RunnerConfig bounds the worker pool. Tool calls are long-latency and
// resource-heavy, so admission is capped and excess submissions queue.
type RunnerConfig struct {
	MaxConcurrent int64
}

// JobRunner executes workflow bodies asynchronously on a semaphore-
// bounded pool of goroutines and drives job record transitions through
// the store.
type JobRunner struct {
	logger *slog.Logger
	store  *JobStore
	sem    *semaphore.Weighted
	met    *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	cancels map[domain.JobID]*atomic.Bool
}

func NewJobRunner(logger *slog.Logger, store *JobStore, met *metrics.Metrics, cfg RunnerConfig) *JobRunner {
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &JobRunner{
		logger:  logger,
		store:   store,
		sem:     semaphore.NewWeighted(limit),
		met:     met,
		ctx:     ctx,
		cancel:  cancel,
		cancels: make(map[domain.JobID]*atomic.Bool),
	}
}

// Submit enqueues the job for execution and returns immediately. The
// worker runs on its own clone of the record, so the caller's snapshot
// stays private after submission. The goroutine parks on the semaphore
// until a worker slot frees up, so at most MaxConcurrent bodies run at
// once.
func (r *JobRunner) Submit(job *domain.Job, body WorkflowFunc) domain.JobID {
	owned := job.Clone()

	flag := &atomic.Bool{}
	r.mu.Lock()
	r.cancels[owned.ID] = flag
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(owned, body, flag)
	}()

	return owned.ID
}

func (r *JobRunner) execute(job *domain.Job, body WorkflowFunc, flag *atomic.Bool) {
	defer r.removeCancel(job.ID)

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		// Runner shut down before the job got a slot.
		job.Cancel()
		r.store.Update(job)
		r.met.JobFinished(string(job.Status))
		return
	}
	defer r.sem.Release(1)

	job.Status = domain.JobStatusRunning
	job.AddLog("Starting workflow: " + job.MiniAppID)
	r.store.Update(job)
	r.met.JobStarted()
	defer r.met.JobRunningDone()

	logf := func(message string) error {
		if flag.Load() {
			return domain.ErrJobCancelled
		}
		job.AddLog(message)
		r.store.Update(job)
		return nil
	}

	result, err := body(r.ctx, job, logf)

	// The cancellation flag is authoritative only if observed before the
	// terminal write commits; a tie between natural completion and a
	// cancellation request resolves in favour of cancelled.
	switch {
	case flag.Load() || errors.Is(err, domain.ErrJobCancelled):
		job.Cancel()
		r.logger.Info("job cancelled", "job_id", job.ID)
	case err != nil:
		// Client-visible error is the operator-safe summary; the wrapped
		// chain with full detail stays in the server log.
		job.Fail(err.Error())
		r.logger.Error("job failed", "job_id", job.ID, "miniapp", job.MiniAppID, "error", err)
	default:
		job.Complete(result)
		job.AddLog("Workflow complete")
	}

	r.store.Update(job)
	r.met.JobFinished(string(job.Status))
}

func (r *JobRunner) removeCancel(id domain.JobID) {
	r.mu.Lock()
	delete(r.cancels, id)
	r.mu.Unlock()
}

// Cancel requests cooperative cancellation of a running job. It fails
// with domain.ErrJobNotFound for unknown IDs and domain.ErrJobNotRunning
// when the job is not currently running.
func (r *JobRunner) Cancel(id domain.JobID) error {
	job, ok := r.store.Get(id)
	if !ok {
		return fmt.Errorf("job '%s': %w", id, domain.ErrJobNotFound)
	}
	if job.Status != domain.JobStatusRunning {
		return fmt.Errorf("job '%s' has status %s: %w", id, job.Status, domain.ErrJobNotRunning)
	}

	r.mu.Lock()
	flag, ok := r.cancels[id]
	r.mu.Unlock()
	if !ok {
		// Finalized between the status check and here.
		return fmt.Errorf("job '%s': %w", id, domain.ErrJobNotRunning)
	}

	flag.Store(true)
	r.logger.Info("cancellation requested", "job_id", id)
	return nil
}

// Shutdown sets every outstanding cancellation flag, then drains the
// pool when wait is true or abandons queued work otherwise.
func (r *JobRunner) Shutdown(wait bool) {
	r.mu.Lock()
	for _, flag := range r.cancels {
		flag.Store(true)
	}
	r.mu.Unlock()

	if wait {
		r.wg.Wait()
		r.cancel()
		return
	}
	r.cancel()
}
