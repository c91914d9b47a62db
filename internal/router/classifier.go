package router

import (
	"context"
	"log/slog"
	"strings"

	"reelsync/backend/internal/event"
)

type Outcome int

const (
	Accept Outcome = iota
	Reject
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

type Route string

const (
	RouteAttachment      Route = "attachment"
	RouteReplyAnnotation Route = "reply_annotation"
	RouteAnnotation      Route = "annotation"
	RouteSearch          Route = "search"
	RouteQuestion        Route = "question"
	RouteUnsupported     Route = "unsupported"
)

const (
	ReasonMalformedPayload = "malformed_payload"
	ReasonSelfMessage      = "self_message"
)

// Decision is the classification of one inbound event. Route is only set for
// Accept; Reason only for Reject.
type Decision struct {
	Outcome Outcome
	Route   Route
	Reason  string
	Query   string
}

type LedgerReader interface {
	Exists(ctx context.Context, externalID string) (bool, error)
}

type Classifier struct {
	ledger LedgerReader
	selfID string
	intent IntentClassifier
}

func NewClassifier(ledger LedgerReader, selfID string, intent IntentClassifier) *Classifier {
	if intent == nil {
		intent = WordCountIntent{}
	}
	return &Classifier{ledger: ledger, selfID: selfID, intent: intent}
}

func (c *Classifier) Classify(ctx context.Context, e event.InboundEvent) Decision {
	if strings.TrimSpace(e.ExternalID) == "" || strings.TrimSpace(e.SenderID) == "" {
		return Decision{Outcome: Reject, Reason: ReasonMalformedPayload}
	}
	if c.selfID != "" && e.SenderID == c.selfID {
		return Decision{Outcome: Reject, Reason: ReasonSelfMessage}
	}

	exists, err := c.ledger.Exists(ctx, e.ExternalID)
	if err != nil {
		// The handler checks the ledger again before any side effect.
		slog.WarnContext(ctx, "ledger lookup failed during classification", "external_id", e.ExternalID, "error", err)
	} else if exists {
		return Decision{Outcome: Duplicate}
	}

	return c.route(e)
}

func (c *Classifier) route(e event.InboundEvent) Decision {
	switch e.Kind() {
	case event.KindText:
		if e.ReplyToID != "" {
			if c.intent.ClassifyIntent(e.Text, true) == IntentQuestion {
				return Decision{Outcome: Accept, Route: RouteQuestion}
			}
			return Decision{Outcome: Accept, Route: RouteReplyAnnotation}
		}
		if q, ok := ParseSearch(e.Text); ok {
			return Decision{Outcome: Accept, Route: RouteSearch, Query: q}
		}
		if c.intent.ClassifyIntent(e.Text, false) == IntentQuestion {
			return Decision{Outcome: Accept, Route: RouteQuestion}
		}
		return Decision{Outcome: Accept, Route: RouteAnnotation}

	case event.KindAttachment:
		if e.Attachment.Kind == event.AttachmentMedia {
			return Decision{Outcome: Accept, Route: RouteAttachment}
		}
		return Decision{Outcome: Accept, Route: RouteUnsupported}

	default:
		return Decision{Outcome: Accept, Route: RouteUnsupported}
	}
}
