package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by Dequeue once the broker shuts down.
var ErrClosed = errors.New("queue: broker closed")

// Broker moves tasks between producers and the worker pool. Delivery is
// at least once; ordering is only loosely FIFO per queue and never
// guaranteed across queues.
type Broker interface {
	// Enqueue schedules a task. Tasks with RunAt in the future are held
	// back until due. Enqueue failures belong to the caller, not to the
	// task's own retry budget.
	Enqueue(ctx context.Context, t *Task) error

	// Dequeue blocks until a due task is available on one of the queues
	// or ctx is cancelled.
	Dequeue(ctx context.Context, queues []string) (*Task, error)

	// Bury moves a task that exhausted its retries to the dead-letter
	// queue for operator inspection.
	Bury(ctx context.Context, t *Task) error
}
