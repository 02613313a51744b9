// Package queue runs jobs one at a time against a single interpreter VM on
// a dedicated worker goroutine, the way the teacher VM's hardware devices
// each own one goroutine reading off a channel rather than sharing state
// behind a lock (vm/devices.go's systemTimer/consoleIO pattern).
package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"taskd/internal/interp"
	"taskd/internal/obslog"
	"taskd/internal/regfile"
)

// ErrClosed is returned by Submit once the queue has been shut down.
var ErrClosed = errors.New("queue: closed")

type job struct {
	id     uuid.UUID
	instrs []regfile.Instruction
	sink   interp.ReportSink
	done   chan interp.Outcome
}

// Queue serializes job execution against one VM: exactly one job runs at a
// time, in the order it was submitted (spec.md §5: "one job executes at a
// time, FIFO").
type Queue struct {
	jobs   chan *job
	closed chan struct{}
	log    obslog.Logger
}

// New starts the worker goroutine and returns a Queue accepting up to
// backlog pending jobs before Submit blocks.
func New(vm *interp.VM, log obslog.Logger, backlog int) *Queue {
	q := &Queue{
		jobs:   make(chan *job, backlog),
		closed: make(chan struct{}),
		log:    log,
	}
	go q.run(vm)
	return q
}

func (q *Queue) run(vm *interp.VM) {
	for j := range q.jobs {
		entry := q.log.WithFields(map[string]any{"job_id": j.id.String()})
		entry.Debug("job started")
		outcome := vm.Execute(j.instrs, j.sink)
		entry.Debug("job finished")
		j.done <- outcome
		close(j.done)
	}
}

// Submit enqueues a recipe and blocks until it has run to completion, the
// context is cancelled, or the queue has been closed. sink may be nil.
func (q *Queue) Submit(ctx context.Context, instrs []regfile.Instruction, sink interp.ReportSink) (interp.Outcome, error) {
	j := &job{
		id:     uuid.New(),
		instrs: instrs,
		sink:   sink,
		done:   make(chan interp.Outcome, 1),
	}

	select {
	case <-q.closed:
		return interp.Outcome{}, ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return interp.Outcome{}, err
	}

	select {
	case q.jobs <- j:
	case <-q.closed:
		return interp.Outcome{}, ErrClosed
	case <-ctx.Done():
		return interp.Outcome{}, ctx.Err()
	}

	select {
	case out := <-j.done:
		return out, nil
	case <-ctx.Done():
		return interp.Outcome{}, ctx.Err()
	}
}

// Close stops accepting new jobs immediately; jobs already queued still run
// to completion on the worker, which exits once the backlog has drained. It
// does not cancel an in-flight job.
func (q *Queue) Close() {
	select {
	case <-q.closed:
		return
	default:
		close(q.closed)
		close(q.jobs)
	}
}
