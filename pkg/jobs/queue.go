package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Enqueue failures. ErrStopped is also passed to the exhaust hook for jobs
// abandoned at shutdown.
var (
	ErrStopped = errors.New("queue stopped")
	ErrFull    = errors.New("queue full")
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// ExhaustedHook is invoked once for every job that will not be retried again,
// either because it used up its retries or because the queue stopped.
type ExhaustedHook func(Job, error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
	Logger       *zap.Logger
	OnExhaust    ExhaustedHook
}

// Queue is an in-memory job dispatcher backed by goroutines. Retries back off
// linearly: attempt n waits n*RetryDelay. Stop drains buffered jobs before
// returning.
type Queue struct {
	name    string
	handler Handler

	workers      int
	maxRetries   int
	retryDelay   time.Duration
	drainTimeout time.Duration
	logger       *zap.Logger
	onExhaust    ExhaustedHook

	jobs     chan Job
	stopping chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	workerWG sync.WaitGroup
	retryWG  sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:         name,
		handler:      handler,
		workers:      cfg.Workers,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		drainTimeout: cfg.DrainTimeout,
		logger:       cfg.Logger,
		onExhaust:    cfg.OnExhaust,
		jobs:         make(chan Job, cfg.BufferSize),
		stopping:     make(chan struct{}),
	}
}

// Start begins worker consumption. Handlers receive a context derived from ctx
// that is cancelled only if draining outlives the drain timeout.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.workerWG.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop rejects new jobs, processes what is already buffered and waits for the
// workers to exit. Pending retries are handed to the exhaust hook.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.stopping)
	q.mu.Unlock()

	q.retryWG.Wait()
	pending := len(q.jobs)
	close(q.jobs)

	done := make(chan struct{})
	go func() {
		q.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(q.drainTimeout):
		q.logger.Sugar().Warnw("queue drain timed out", "queue", q.name, "remaining", len(q.jobs))
		q.cancel()
		<-done
	}
	q.cancel()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name, "drained", pending)
}

// Enqueue pushes a job onto the queue without blocking. It fails when the queue
// is not running or the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if q.stopped {
		return fmt.Errorf("queue %s: %w", q.name, ErrStopped)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", q.name, ErrFull)
	}
}

func (q *Queue) worker() {
	defer q.workerWG.Done()
	for job := range q.jobs {
		if err := q.ctx.Err(); err != nil {
			q.exhaust(job, err)
			continue
		}
		if err := q.handler(q.ctx, job); err != nil {
			q.handleFailure(job, err)
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
		q.exhaust(job, err)
		return
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		q.exhaust(job, fmt.Errorf("%w after attempt %d: %v", ErrStopped, job.Attempt, err))
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

	q.retryWG.Add(1)
	go q.retryLater(job, time.Duration(job.Attempt)*q.retryDelay)
}

func (q *Queue) retryLater(job Job, delay time.Duration) {
	defer q.retryWG.Done()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-q.stopping:
		q.exhaust(job, ErrStopped)
	case <-timer.C:
		if err := q.Enqueue(job); err != nil {
			q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", job.ID, "error", err)
			q.exhaust(job, err)
		}
	}
}

func (q *Queue) exhaust(job Job, err error) {
	if q.onExhaust != nil {
		q.onExhaust(job, err)
	}
}
