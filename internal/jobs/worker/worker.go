package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Crohnos/dnd-generator/internal/data/repos"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/jobs/runtime"
	"github.com/Crohnos/dnd-generator/internal/observability"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/ctxutil"
	"github.com/Crohnos/dnd-generator/internal/platform/envutil"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

const (
	// Generation failures are recorded on the campaign and retried by the
	// user, so a failed run is never picked up again.
	maxAttempts  = 1
	retryDelay   = 30 * time.Second
	staleRunning = 30 * time.Minute
)

type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   runtime.Notifier

	pollInterval      time.Duration
	heartbeatInterval time.Duration
	wg                sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify runtime.Notifier) *Worker {
	return &Worker{
		log:               baseLog.With("component", "JobWorker"),
		repo:              repo,
		registry:          registry,
		notify:            notify,
		pollInterval:      time.Second,
		heartbeatInterval: 15 * time.Second,
	}
}

// Start launches WORKER_CONCURRENCY poll loops. They stop when ctx is done;
// Wait blocks until every in-flight job has returned.
func (w *Worker) Start(ctx context.Context) {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 2)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("Starting job worker pool", "concurrency", concurrency, "job_types", w.registry.Types())

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, maxAttempts, retryDelay, staleRunning)
			if err != nil {
				w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
				continue
			}
			if job == nil {
				continue
			}
			w.dispatch(ctx, job)
		}
	}
}

// dispatch runs one claimed job to a terminal state.
func (w *Worker) dispatch(ctx context.Context, job *types.JobRun) {
	start := time.Now()
	jc := runtime.NewContext(ctx, job, w.repo, w.notify)
	log := w.log.With(append([]interface{}{"job_id", job.ID, "job_type", job.JobType}, ctxutil.LogFields(jc.Ctx)...)...)

	defer func() {
		observability.Current().ObserveJob(job.JobType, job.Status, time.Since(start))
	}()

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		log.Warn("No handler registered for job_type")
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		return
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.heartbeat(hbCtx, job)

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Job handler panic", "panic", r)
				jc.Fail("panic", errFromRecover(r))
			}
		}()
		if runErr := h.Run(jc); runErr != nil {
			jc.Fail("run", runErr)
		}
	}()

	// A handler that returned without a terminal transition is a bug; never
	// leave the run looking alive.
	if job.Status == types.JobStatusRunning || job.Status == types.JobStatusQueued {
		log.Warn("Job handler returned without a terminal status")
		jc.Fail("run", fmt.Errorf("handler returned without completing"))
	}
	log.Info("Job finished", "status", job.Status, "duration_ms", time.Since(start).Milliseconds())
}

// heartbeat keeps a long run from being reclaimed as stale.
func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) {
	t := time.NewTicker(w.heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.repo.Heartbeat(dbctx.Context{Ctx: ctx}, job.ID); err != nil && ctx.Err() == nil {
				w.log.Warn("Job heartbeat failed", "job_id", job.ID, "error", err)
			}
		}
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
