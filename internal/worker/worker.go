package worker

import (
	"fmt"

	"go.uber.org/zap"
)

// Worker runs jobs from its inbox one at a time.
type Worker struct {
	id    int
	pool  *pool
	inbox chan Job
}

func newWorker(id int, p *pool) *Worker {
	return &Worker{
		id:    id,
		pool:  p,
		inbox: make(chan Job),
	}
}

// Start runs jobs until the worker receives Stop or the pool refuses it back.
func (w *Worker) Start() {
	go func() {
		defer w.pool.exited.Done()
		w.pool.log.Debug("worker started", zap.Int("worker", w.id))
		for job := range w.inbox {
			if job.Type == Stop {
				w.pool.remove(w.inbox)
				w.pool.log.Debug("worker stopped", zap.Int("worker", w.id))
				return
			}
			job.result <- w.run(job)
			if !w.pool.checkin(w.inbox) {
				w.pool.remove(w.inbox)
				return
			}
		}
	}()
}

func (w *Worker) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.pool.log.Error("job panicked", zap.Int("worker", w.id), zap.Any("panic", r))
			err = fmt.Errorf("worker: job panicked: %v", r)
		}
	}()
	if !job.start() {
		return job.ctx.Err()
	}
	return job.fn(job.ctx)
}
