package router

import (
	"context"
	"log/slog"

	"reelsync/backend/internal/event"
	"reelsync/backend/internal/middleware"
	"reelsync/backend/internal/worker"
)

// Dispatcher is the synchronous half of event handling: it classifies an
// event and hands accepted ones to the executor without waiting for them.
type Dispatcher struct {
	classifier *Classifier
	executor   worker.Executor
	expecter   AttachmentExpecter
}

// AttachmentExpecter is told about accepted attachments before they run, so
// annotation handlers know whether waiting for a pending record can pay off.
type AttachmentExpecter interface {
	Expect(senderID string)
}

func NewDispatcher(c *Classifier, exec worker.Executor) *Dispatcher {
	return &Dispatcher{classifier: c, executor: exec}
}

func (d *Dispatcher) WithExpecter(x AttachmentExpecter) *Dispatcher {
	d.expecter = x
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, e event.InboundEvent) Decision {
	dec := d.classifier.Classify(ctx, e)

	switch dec.Outcome {
	case Reject:
		slog.WarnContext(ctx, "event rejected", "external_id", e.ExternalID, "reason", dec.Reason)
		return dec
	case Duplicate:
		slog.InfoContext(ctx, "duplicate event ignored", "external_id", e.ExternalID)
		return dec
	}

	task := worker.Task{
		Route:         string(dec.Route),
		Event:         e,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	if dec.Route == RouteAttachment && d.expecter != nil {
		d.expecter.Expect(e.SenderID)
	}
	if err := d.executor.Submit(task); err != nil {
		// The transport still acknowledges; upstream redelivery replays the event.
		slog.ErrorContext(ctx, "failed to submit task", "external_id", e.ExternalID, "route", dec.Route, "error", err)
		return dec
	}
	slog.InfoContext(ctx, "event dispatched", "external_id", e.ExternalID, "route", dec.Route)
	return dec
}

// Replay submits a previously accepted event again, bypassing classification.
// An event the ledger already holds is not resubmitted and yields
// event.ErrDuplicate.
func (d *Dispatcher) Replay(ctx context.Context, route string, e event.InboundEvent) error {
	done, err := d.classifier.ledger.Exists(ctx, e.ExternalID)
	if err != nil {
		slog.WarnContext(ctx, "ledger check before replay failed, replaying anyway", "external_id", e.ExternalID, "error", err)
	} else if done {
		return event.ErrDuplicate
	}

	return d.executor.Submit(worker.Task{
		Route:         route,
		Event:         e,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
}
