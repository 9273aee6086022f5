package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/example/bazaar/internal/clock"
)

// HandlerFunc processes one task. Returning an error consumes one retry;
// once retries exhaust the task's failure hook runs and the task is
// buried.
type HandlerFunc func(ctx context.Context, t *Task) error

const (
	defaultTimeout = time.Minute
	retryBackoff   = 2 * time.Second
)

// Worker consumes tasks from a set of queues with a fixed-size pool of
// goroutines. Handlers are registered per task type; an optional failure
// hook per type runs exactly once, after the final retry.
type Worker struct {
	broker      Broker
	queues      []string
	concurrency int
	clock       clock.Clock

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	failures map[string]HandlerFunc
}

// NewWorker builds a worker pool over the broker for the given queues.
// Retry backoff is stamped with clk, so tests can pin it.
func NewWorker(broker Broker, queues []string, concurrency int, clk clock.Clock) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Worker{
		broker:      broker,
		queues:      queues,
		concurrency: concurrency,
		clock:       clk,
		handlers:    make(map[string]HandlerFunc),
		failures:    make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for a task type.
func (w *Worker) Handle(taskType string, fn HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[taskType] = fn
}

// OnFailure registers a hook invoked when a task of the given type
// exhausts its retries.
func (w *Worker) OnFailure(taskType string, fn HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[taskType] = fn
}

// Run blocks consuming tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) consume(ctx context.Context) {
	for {
		t, err := w.broker.Dequeue(ctx, w.queues)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
				return
			}
			log.Printf("[Queue] dequeue error: %v", err)
			continue
		}
		w.process(ctx, t)
	}
}

func (w *Worker) process(ctx context.Context, t *Task) {
	w.mu.RLock()
	handler, ok := w.handlers[t.Type]
	failure := w.failures[t.Type]
	w.mu.RUnlock()

	if !ok {
		log.Printf("[Queue] no handler for task type %s, burying %s", t.Type, t.ID)
		if err := w.broker.Bury(ctx, t); err != nil {
			log.Printf("[Queue] bury failed for %s: %v", t.ID, err)
		}
		return
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	err := handler(hctx, t)
	cancel()
	if err == nil {
		return
	}

	t.Retried++
	t.LastError = err.Error()

	if t.Retried <= t.MaxRetries {
		log.Printf("[Queue] task %s (%s) failed, retry %d/%d: %v", t.ID, t.Type, t.Retried, t.MaxRetries, err)
		t.RunAt = w.clock.Now().Add(retryBackoff * time.Duration(t.Retried))
		if enqErr := w.broker.Enqueue(ctx, t); enqErr != nil {
			log.Printf("[Queue] requeue failed for %s: %v", t.ID, enqErr)
		}
		return
	}

	log.Printf("[Queue] task %s (%s) exhausted retries: %v", t.ID, t.Type, err)
	if failure != nil {
		if hookErr := failure(ctx, t); hookErr != nil {
			log.Printf("[Queue] failure hook for %s errored: %v", t.Type, hookErr)
		}
	}
	if buryErr := w.broker.Bury(ctx, t); buryErr != nil {
		log.Printf("[Queue] bury failed for %s: %v", t.ID, buryErr)
	}
}
