package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	defaultQueueSize   = 16
	defaultConcurrency = 2
)

var (
	ErrRunnerStopped = errors.New("runner stopped")
	ErrQueueFull     = errors.New("job queue is full")
)

type Config struct {
	QueueSize   int
	Concurrency int
}

// Func is one unit of work. The context is cancelled when the runner closes.
type Func func(ctx context.Context) error

type task struct {
	id string
	fn Func
}

// Runner executes queued jobs on a fixed set of in-process workers.
type Runner struct {
	log   zerolog.Logger
	queue chan task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

func New(cfg Config, log zerolog.Logger) *Runner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		log:    log,
		queue:  make(chan task, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Concurrency; i++ {
		r.wg.Add(1)
		go r.work(i + 1)
	}
	return r
}

// Submit queues fn without blocking.
func (r *Runner) Submit(id string, fn Func) error {
	if r.closed.Load() {
		return ErrRunnerStopped
	}
	select {
	case <-r.ctx.Done():
		return ErrRunnerStopped
	case r.queue <- task{id: id, fn: fn}:
		r.log.Debug().Str("job_id", id).Msg("job queued")
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *Runner) work(workerID int) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case t := <-r.queue:
			r.run(workerID, t)
		}
	}
}

func (r *Runner) run(workerID int, t task) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Int("worker_id", workerID).Str("job_id", t.id).Interface("panic", p).Msg("job panicked")
		}
	}()

	r.log.Info().Int("worker_id", workerID).Str("job_id", t.id).Msg("job started")
	if err := t.fn(r.ctx); err != nil {
		r.log.Error().Err(err).Int("worker_id", workerID).Str("job_id", t.id).Msg("job failed")
		return
	}
	r.log.Info().Int("worker_id", workerID).Str("job_id", t.id).Msg("job finished")
}

// Close cancels running jobs, rejects new ones and waits for workers.
// Jobs still in the queue are dropped.
func (r *Runner) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) Pending() int { return len(r.queue) }
