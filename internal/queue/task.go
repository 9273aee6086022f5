// Package queue provides the asynchronous task abstraction used by the
// order fulfillment pipeline: typed task payloads addressed to named
// queues, delivered at least once by a worker pool with per-task retry
// budgets, timeouts and a dead-letter queue.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is one retryable unit of work. Payload is the JSON encoding of a
// typed record; handlers decode it with Bind.
type Task struct {
	ID         uuid.UUID       `json:"id"`
	Queue      string          `json:"queue"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	MaxRetries int             `json:"max_retries"`
	Timeout    time.Duration   `json:"timeout"`
	RunAt      time.Time       `json:"run_at"`
	Retried    int             `json:"retried"`
	LastError  string          `json:"last_error,omitempty"`
}

// NewTask builds a task for the given queue and type with payload
// marshalled to JSON. RunAt defaults to immediate delivery; callers set
// it for delayed dispatch.
func NewTask(queueName, taskType string, payload interface{}) (*Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}

	return &Task{
		ID:      uuid.New(),
		Queue:   queueName,
		Type:    taskType,
		Payload: data,
	}, nil
}

// Bind decodes the task payload into v.
func (t *Task) Bind(v interface{}) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Type, err)
	}
	return nil
}
