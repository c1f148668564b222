// Package queue schedules pipeline stages as independent tasks on a worker
// pool. A task is retried while its worker runs, but one held by a worker
// that dies, or still buffered in memory at shutdown, is lost: delivery is
// at-most-once across process restarts. Jobs stranded that way are failed by
// the pipeline's stale-job sweeper. Handlers must still tolerate replays.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("queue: full")
	ErrClosed    = errors.New("queue: closed")
)

// Task is one unit of scheduled work. Payload is the kind-specific argument
// record, kept as raw JSON so tasks survive a round trip through Redis.
type Task struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func NewTask(kind string, payload any) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("queue: encode %s payload: %w", kind, err)
	}
	return Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

func (t Task) Decode(v any) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("queue: decode %s payload: %w", t.Kind, err)
	}
	return nil
}

type Handler func(ctx context.Context, t Task) error

// Queue is implemented by MemoryQueue and RedisQueue.
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	Run(ctx context.Context, h Handler) error
	Close() error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type panicError struct{ val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.val) }
