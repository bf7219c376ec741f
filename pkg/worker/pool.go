// Package worker provides an asynchronous worker pool used to run session
// compaction off the request path.
//
// Jobs carry only a session id: the handler reloads the session under its
// lock, so a job that runs late still sees the latest state.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/recall/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	SessionID  string
	EnqueuedAt time.Time
}

// Handler processes one job.
type Handler func(ctx context.Context, job Job) error

// Config is the configuration options for the worker pool.
type Config struct {
	// Handler is called for every job.
	Handler Handler

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Pool processes jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed so Enqueue never sends on a closed queue
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Handler == nil {
		return nil, errors.New("worker pool requires a handler")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	l := c.Logger
	if l == nil {
		l = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: l,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns false if the queue is full or the pool is closed; the job is not run.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "session_id", job.SessionID)
		return true
	default:
		p.logger.Warn("job not queued, queue full", "session_id", job.SessionID)
		return false
	}
}

// Close signals workers to stop and waits for queued jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.config.Handler(ctx, job); err != nil {
		p.logger.Error("job failed",
			"session_id", job.SessionID,
			"queued_for", time.Since(job.EnqueuedAt),
			"error", err,
		)
		return
	}

	p.logger.Debug("job done",
		"session_id", job.SessionID,
		"queued_for", time.Since(job.EnqueuedAt),
	)
}
