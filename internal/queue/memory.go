package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryBroker is an in-process Broker used in tests and when no Redis
// address is configured. Semantics mirror the Redis broker: delayed
// tasks are held until due, ready tasks are handed out roughly FIFO.
type MemoryBroker struct {
	mu     sync.Mutex
	tasks  map[string][]*Task
	dead   []*Task
	closed bool
}

// NewMemoryBroker returns an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{tasks: make(map[string][]*Task)}
}

// Enqueue appends the task to its queue.
func (m *MemoryBroker) Enqueue(ctx context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.tasks[t.Queue] = append(m.tasks[t.Queue], t)
	return nil
}

// Dequeue returns the earliest due task across the given queues,
// polling until one becomes due or ctx is cancelled.
func (m *MemoryBroker) Dequeue(ctx context.Context, queues []string) (*Task, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if t, err := m.pop(queues); t != nil || err != nil {
			return t, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *MemoryBroker) pop(queues []string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	now := time.Now()
	var (
		bestQueue string
		bestIdx   = -1
	)
	for _, q := range queues {
		for i, t := range m.tasks[q] {
			if t.RunAt.After(now) {
				continue
			}
			if bestIdx < 0 || t.RunAt.Before(m.tasks[bestQueue][bestIdx].RunAt) {
				bestQueue, bestIdx = q, i
			}
			break
		}
	}
	if bestIdx < 0 {
		return nil, nil
	}

	t := m.tasks[bestQueue][bestIdx]
	m.tasks[bestQueue] = append(m.tasks[bestQueue][:bestIdx], m.tasks[bestQueue][bestIdx+1:]...)
	return t, nil
}

// Bury records the task on the dead-letter list.
func (m *MemoryBroker) Bury(ctx context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = append(m.dead, t)
	return nil
}

// Close stops further enqueues and wakes blocked consumers.
func (m *MemoryBroker) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Pending returns the tasks currently waiting on a queue. Test helper.
func (m *MemoryBroker) Pending(queueName string) []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Task, len(m.tasks[queueName]))
	copy(out, m.tasks[queueName])
	return out
}

// Dead returns the dead-letter list. Test helper.
func (m *MemoryBroker) Dead() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Task, len(m.dead))
	copy(out, m.dead)
	return out
}
