package worker

import (
	"context"
	"sync/atomic"
)

type JobType int

const (
	Run JobType = iota
	Stop
)

func (t JobType) String() string {
	switch t {
	case Run:
		return "run"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

const (
	jobPending int32 = iota
	jobStarted
	jobAbandoned
)

// Job is a unit of work handed to a worker. result is buffered so a worker
// never blocks on a caller that gave up.
type Job struct {
	Type   JobType
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
	state  *atomic.Int32
}

func newRunJob(ctx context.Context, fn func(context.Context) error) Job {
	return Job{Type: Run, ctx: ctx, fn: fn, result: make(chan error, 1), state: new(atomic.Int32)}
}

// start claims the job for a worker. It fails once the caller abandoned it.
func (j Job) start() bool {
	return j.state.CompareAndSwap(jobPending, jobStarted)
}

// abandon withdraws a job no worker has started yet. It fails once a worker
// owns the job, and the caller must then wait for its result.
func (j Job) abandon() bool {
	return j.state.CompareAndSwap(jobPending, jobAbandoned)
}
