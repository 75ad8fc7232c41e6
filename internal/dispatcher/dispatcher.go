package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/repository"
)

// ProcessFunc runs the processing pipeline for one job. Supplied by the
// pipeline orchestrator at wiring time.
type ProcessFunc func(ctx context.Context, jobID models.ULID) error

// EnqueueResult describes the outcome of one Submit call.
type EnqueueResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Priority int    `json:"priority"`
}

// Dispatcher accepts job submissions, claims them atomically, and feeds
// a fixed pool of worker goroutines from a priority queue.
type Dispatcher struct {
	cfg     config.DispatcherConfig
	jobs    repository.VideoJobRepository
	queue   *PriorityQueue
	process ProcessFunc
	logger  *slog.Logger

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewDispatcher creates a dispatcher over the given job store and
// processing function.
func NewDispatcher(cfg config.DispatcherConfig, jobs repository.VideoJobRepository, process ProcessFunc, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:     cfg,
		jobs:    jobs,
		queue:   NewPriorityQueue(DefaultQueueCapacity),
		process: process,
		logger:  logger,
	}
}

// QueueLen returns the number of jobs waiting in the in-memory queue.
func (d *Dispatcher) QueueLen() int {
	return d.queue.Len()
}

// Submit claims the job and enqueues it for processing. The job's status
// moves to processing before the queue push so concurrent submitters and
// the sweep cannot double-schedule it; a failed push reverts the job to
// pending.
func (d *Dispatcher) Submit(ctx context.Context, jobID models.ULID, profileIDs []string) (*EnqueueResult, error) {
	job, err := d.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	if !CanEnqueue(job.Status) {
		return &EnqueueResult{Accepted: false, Reason: "job is already processing"}, nil
	}
	if !job.HasSource() {
		return &EnqueueResult{Accepted: false, Reason: "job has no source file"}, nil
	}

	priority := ComputePriority(job.UploaderTier, job.UploaderVideos)
	job.Priority = priority
	if len(profileIDs) > 0 {
		job.SelectedProfiles = profileIDs
	}
	// The new run owns the progress fields from this point; a progress
	// query must not see the previous run's failure.
	job.Progress = 0
	job.LastError = ""
	job.FailedStage = ""
	if err := d.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("updating job before enqueue: %w", err)
	}

	// Atomic claim. Losing the race means someone else scheduled it.
	claimed, err := d.jobs.UpdateStatusIfCurrent(ctx, jobID, job.Status, models.JobStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	if !claimed {
		return &EnqueueResult{Accepted: false, Reason: "job was claimed by another submitter"}, nil
	}

	if err := d.queue.Push(jobID, priority); err != nil {
		// Give the job back so the sweep can retry it later.
		if _, revertErr := d.jobs.UpdateStatusIfCurrent(ctx, jobID, models.JobStatusProcessing, models.JobStatusPending); revertErr != nil {
			d.logger.Error("reverting unenqueued job to pending",
				slog.String("job_id", jobID.String()),
				slog.String("error", revertErr.Error()))
		}
		return &EnqueueResult{Accepted: false, Reason: err.Error(), Priority: priority}, nil
	}

	d.logger.Info("job enqueued",
		slog.String("job_id", jobID.String()),
		slog.Int("priority", priority),
		slog.Int("queue_len", d.queue.Len()))
	return &EnqueueResult{Accepted: true, Priority: priority}, nil
}

// Start launches the worker pool. Safe to call once; Stop shuts it down.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	workers := d.cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.logger.Info("dispatcher started", slog.Int("workers", workers))
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.queue.Close()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	log := d.logger.With(slog.Int("worker", id))

	for {
		jobID, ok := d.queue.Pop()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			// Shutting down: release the claim instead of running. The
			// revert uses a fresh context because ctx is already canceled.
			if _, err := d.jobs.UpdateStatusIfCurrent(context.Background(), jobID, models.JobStatusProcessing, models.JobStatusPending); err != nil {
				log.Warn("releasing job on shutdown", slog.String("job_id", jobID.String()))
			}
			continue
		}

		log.Debug("worker picked up job", slog.String("job_id", jobID.String()))
		if err := d.process(ctx, jobID); err != nil {
			log.Error("processing job",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()))
		}
	}
}
