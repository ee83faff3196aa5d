package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrBusy is returned when the job queue is full.
	ErrBusy = errors.New("worker: job queue full")
	// ErrClosed is returned once the dispatcher is stopping.
	ErrClosed = errors.New("worker: dispatcher stopped")
)

type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
}

// Stats is a point-in-time view of the dispatcher.
type Stats struct {
	Workers int `json:"workers"`
	Idle    int `json:"idle"`
	Queued  int `json:"queued"`
}

// Dispatcher hands jobs from a bounded FIFO queue to an elastic pool of
// workers.
type Dispatcher struct {
	pool     *pool
	queue    chan Job
	log      *zap.Logger

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

func NewDispatcher(cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	log = log.Named("worker")
	d := &Dispatcher{
		pool:     newPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.WorkerIdleTimeout, log),
		queue:    make(chan Job, cfg.QueueSize),
		log:      log,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.warm()
	}

	go d.run()
	return d
}

// Do queues fn and waits for it to finish. It returns ErrBusy without
// waiting when the queue is full. Cancelling ctx withdraws a job that has
// not started; a started job is always waited for so its outcome is never
// lost.
func (d *Dispatcher) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job := newRunJob(ctx, fn)

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	select {
	case d.queue <- job:
	default:
		d.mu.RUnlock()
		return ErrBusy
	}
	d.mu.RUnlock()

	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		if job.abandon() {
			return ctx.Err()
		}
		return <-job.result
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case job := <-d.queue:
			d.dispatch(job)
		case <-d.quit:
			for {
				select {
				case job := <-d.queue:
					job.result <- ErrClosed
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) dispatch(job Job) {
	if err := job.ctx.Err(); err != nil {
		job.result <- err
		return
	}
	inbox, workerID := d.pool.checkout()
	if inbox == nil {
		job.result <- ErrClosed
		return
	}
	d.log.Debug("assign job", zap.Stringer("type", job.Type), zap.Int("worker", workerID))
	inbox <- job
}

// Stats reports the current worker and queue sizes.
func (d *Dispatcher) Stats() Stats {
	running, idle := d.pool.stats()
	return Stats{Workers: running, Idle: idle, Queued: len(d.queue)}
}

// Stop refuses new jobs, fails queued ones with ErrClosed and waits for
// running jobs to finish or ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.quit)
	})

	select {
	case <-d.done:
	case <-ctx.Done():
		d.pool.close()
		return ctx.Err()
	}
	d.pool.close()

	workersDone := make(chan struct{})
	go func() {
		d.pool.exited.Wait()
		close(workersDone)
	}()
	select {
	case <-workersDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
