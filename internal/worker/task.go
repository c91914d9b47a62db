package worker

import (
	"context"
	"errors"

	"reelsync/backend/internal/event"
	"reelsync/backend/internal/middleware"
)

var (
	ErrQueueFull  = errors.New("worker queue full")
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrTaskTooLarge means the encoded task exceeds the transport's limit.
	ErrTaskTooLarge = errors.New("task too large")
)

// Task is one routed event waiting for its handler.
type Task struct {
	Route         string             `json:"route"`
	Event         event.InboundEvent `json:"event"`
	CorrelationID string             `json:"correlation_id,omitempty"`
}

// context tags parent for the task's handler. The correlation id of the
// request that accepted the task carries over; tasks without one fall back to
// the event's external id.
func (t Task) context(parent context.Context) context.Context {
	id := t.CorrelationID
	if id == "" || id == middleware.UnknownCorrelationID {
		id = t.Event.ExternalID
	}
	return middleware.WithEvent(parent, id, t.Event.ExternalID, t.Event.SenderID)
}

// Runner executes a task to completion. Runners report failures through
// their own side effects; the executor only logs panics.
type Runner interface {
	Run(ctx context.Context, t Task)
}

type RunnerFunc func(ctx context.Context, t Task)

func (f RunnerFunc) Run(ctx context.Context, t Task) { f(ctx, t) }

// Executor accepts tasks without waiting for them to run.
type Executor interface {
	Submit(t Task) error
}
