package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/nsqio/go-nsq"
)

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// NSQExecutor hands tasks to nsqd instead of running them in-process.
type NSQExecutor struct {
	publisher TaskPublisher
	topic     string
	maxSize   int64
}

func NewNSQExecutor(p TaskPublisher, topic string) *NSQExecutor {
	return &NSQExecutor{publisher: p, topic: topic}
}

// WithMaxMessageSize rejects task bodies nsqd would refuse (its --max-msg-size).
// Zero disables the check.
func (e *NSQExecutor) WithMaxMessageSize(n int64) *NSQExecutor {
	e.maxSize = n
	return e
}

func (e *NSQExecutor) Submit(t Task) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if e.maxSize > 0 && int64(len(body)) > e.maxSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTaskTooLarge, len(body), e.maxSize)
	}
	if err := e.publisher.Publish(e.topic, body); err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	return nil
}

// TaskConsumer runs tasks delivered on the task topic. Messages are always
// finished: a handler that did not record its event is replayed by the
// platform's own redelivery, not by nsqd.
type TaskConsumer struct {
	runner Runner
}

func NewTaskConsumer(r Runner) *TaskConsumer {
	return &TaskConsumer{runner: r}
}

func (h *TaskConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var t Task
	if err := json.Unmarshal(m.Body, &t); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid task json", "error", err)
		return nil
	}

	ctx := t.context(context.Background())
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "task panicked", "route", t.Route, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	h.runner.Run(ctx, t)
	return nil
}

// NewConsumer wires a TaskConsumer onto topic with workers concurrent handlers.
func NewConsumer(topic, channel string, workers int, r Runner) (*nsq.Consumer, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	cfg := nsq.NewConfig()
	cfg.MaxInFlight = workers

	consumer, err := nsq.NewConsumer(topic, channel, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer for %s: %w", topic, err)
	}
	consumer.AddConcurrentHandlers(NewTaskConsumer(r), workers)
	return consumer, nil
}
