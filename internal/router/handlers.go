package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reelsync/backend/internal/embedding"
	"reelsync/backend/internal/event"
	"reelsync/backend/internal/pending"
	"reelsync/backend/internal/worker"
)

type Ledger interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	Record(ctx context.Context, rec event.ProcessedRecord) error
}

type PendingStore interface {
	Put(ctx context.Context, p event.PendingAnnotation) error
	TakeIfFresh(ctx context.Context, senderID string, now time.Time, ttl time.Duration) (*event.PendingAnnotation, error)
}

type PendingSignal interface {
	Expected(senderID string) bool
	Publish(senderID string)
	Reset(senderID string)
	Wait(ctx context.Context, senderID string, timeout time.Duration) bool
}

type EmbeddingWriter interface {
	Upsert(ctx context.Context, senderID string, docs []embedding.Document) error
}

type ReplyResolver interface {
	FindBySourceEventID(ctx context.Context, senderID, sourceEventID string) (embedding.Record, bool)
}

type Searcher interface {
	Top(ctx context.Context, senderID, query string) (embedding.Record, bool, error)
}

type Captioner interface {
	Describe(ctx context.Context, mediaURL string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, senderID, text string) error
	React(ctx context.Context, senderID, externalID, reaction string) error
	SendMedia(ctx context.Context, senderID, link string) error
}

// FailureRecorder keeps tasks that ended without a ledger entry because of a
// fault, so an operator can inspect or retry them.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, t worker.Task, cause error)
}

const reactionLove = "love"

type HandlersConfig struct {
	PendingTTL  time.Duration
	PendingWait time.Duration
}

type Handlers struct {
	ledger   Ledger
	pending  PendingStore
	signal   PendingSignal
	store    EmbeddingWriter
	replies  ReplyResolver
	search   Searcher
	caption  Captioner
	notifier Notifier
	failures FailureRecorder
	cfg      HandlersConfig
	now      func() time.Time
}

type HandlersDeps struct {
	Ledger    Ledger
	Pending   PendingStore
	Signal    PendingSignal
	Store     EmbeddingWriter
	Replies   ReplyResolver
	Search    Searcher
	Captioner Captioner
	Notifier  Notifier
	Failures  FailureRecorder
}

func NewHandlers(d HandlersDeps, cfg HandlersConfig) *Handlers {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = pending.DefaultTTL
	}
	return &Handlers{
		ledger:   d.Ledger,
		pending:  d.Pending,
		signal:   d.Signal,
		store:    d.Store,
		replies:  d.Replies,
		search:   d.Search,
		caption:  d.Captioner,
		notifier: d.Notifier,
		failures: d.Failures,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run executes the handler for t.Route. Every handler checks the ledger first
// because a redelivered copy of the event may already have completed.
func (h *Handlers) Run(ctx context.Context, t worker.Task) {
	e := t.Event
	start := time.Now()

	done, err := h.ledger.Exists(ctx, e.ExternalID)
	if err != nil {
		slog.WarnContext(ctx, "ledger recheck failed, continuing", "error", err)
	} else if done {
		slog.InfoContext(ctx, "skipping already processed event", "route", t.Route)
		return
	}

	switch Route(t.Route) {
	case RouteAttachment:
		err = h.handleAttachment(ctx, e)
	case RouteReplyAnnotation:
		err = h.handleReplyAnnotation(ctx, e)
	case RouteAnnotation:
		err = h.handleAnnotation(ctx, e)
	case RouteSearch:
		query, _ := ParseSearch(e.Text)
		err = h.handleSearch(ctx, e, query)
	case RouteQuestion:
		err = h.handleQuestion(ctx, e)
	case RouteUnsupported:
		err = h.handleUnsupported(ctx, e)
	default:
		err = fmt.Errorf("unknown route %q", t.Route)
	}

	if err != nil {
		slog.ErrorContext(ctx, "event handling failed", "route", t.Route, "duration", time.Since(start), "error", err)
		if h.failures != nil {
			h.failures.RecordFailure(ctx, t, err)
		}
		return
	}
	slog.InfoContext(ctx, "event handled", "route", t.Route, "duration", time.Since(start))
}

func (h *Handlers) handleAttachment(ctx context.Context, e event.InboundEvent) error {
	att := e.Attachment
	if att == nil {
		return fmt.Errorf("%w: attachment route without attachment", event.ErrMalformedPayload)
	}

	createdAt := e.OccurredAt
	if createdAt.IsZero() {
		createdAt = h.now().UTC()
	}
	err := h.pending.Put(ctx, event.PendingAnnotation{
		SenderID:  e.SenderID,
		MediaRef:  att.MediaRef,
		Title:     att.Title,
		Link:      att.Link,
		EventID:   e.ExternalID,
		CreatedAt: createdAt,
	})
	if err != nil {
		h.notify(ctx, e.SenderID, msgInternalReel)
		return fmt.Errorf("store pending annotation: %w", err)
	}
	if h.signal != nil {
		h.signal.Publish(e.SenderID)
	}

	caption, err := h.caption.Describe(ctx, att.Link)
	switch {
	case errors.Is(err, event.ErrQuotaExceeded):
		// Terminal: recorded so redelivery does not hammer the exhausted quota.
		h.record(ctx, e.ExternalID, event.CategoryFailedQuota)
		h.notify(ctx, e.SenderID, msgQuotaExceeded)
		slog.WarnContext(ctx, "caption quota exhausted", "error", err)
		return nil
	case err != nil:
		h.notify(ctx, e.SenderID, msgCaptionFailed)
		return fmt.Errorf("caption media: %w", err)
	}

	if caption != "" {
		doc := embedding.Document{
			Text: caption,
			Payload: embedding.Payload{
				MediaRef:      att.MediaRef,
				Link:          att.Link,
				CreatedAt:     createdAt,
				SourceEventID: e.ExternalID,
			},
		}
		if err := h.store.Upsert(ctx, e.SenderID, []embedding.Document{doc}); err != nil {
			h.notify(ctx, e.SenderID, msgStoreFailed)
			return fmt.Errorf("store caption: %w", err)
		}
	} else {
		slog.WarnContext(ctx, "empty caption, nothing embedded", "link", att.Link)
	}

	h.record(ctx, e.ExternalID, event.CategoryMedia)

	if caption != "" {
		h.notify(ctx, e.SenderID, caption)
	} else {
		h.notify(ctx, e.SenderID, msgReelSaved)
	}
	h.react(ctx, e)
	return nil
}

func (h *Handlers) handleReplyAnnotation(ctx context.Context, e event.InboundEvent) error {
	target, ok := h.replies.FindBySourceEventID(ctx, e.SenderID, e.ReplyToID)
	if !ok {
		// Nothing was mutated, so a replay is harmless and nothing is recorded.
		h.notify(ctx, e.SenderID, msgReplyNotFound)
		slog.InfoContext(ctx, "reply target not found", "reply_to", e.ReplyToID)
		return nil
	}

	doc := embedding.Document{
		Text: e.Text,
		Payload: embedding.Payload{
			MediaRef:      target.Payload.MediaRef,
			Link:          target.Payload.Link,
			CreatedAt:     h.eventTime(e),
			SourceEventID: e.ExternalID,
		},
	}
	if err := h.store.Upsert(ctx, e.SenderID, []embedding.Document{doc}); err != nil {
		h.notify(ctx, e.SenderID, msgDescriptionError)
		return fmt.Errorf("store reply annotation: %w", err)
	}

	h.record(ctx, e.ExternalID, event.CategoryAnnotation)
	h.notify(ctx, e.SenderID, msgDescriptionSaved)
	h.react(ctx, e)
	return nil
}

func (h *Handlers) handleAnnotation(ctx context.Context, e event.InboundEvent) error {
	p, err := h.takePending(ctx, e.SenderID)
	switch {
	case errors.Is(err, pending.ErrExpired):
		h.notify(ctx, e.SenderID, msgPendingExpired)
		h.notify(ctx, e.SenderID, msgSearchHint)
		return nil
	case errors.Is(err, event.ErrNotFound):
		h.notify(ctx, e.SenderID, msgSearchHint)
		return nil
	case err != nil:
		h.notify(ctx, e.SenderID, msgDescriptionError)
		return fmt.Errorf("take pending annotation: %w", err)
	}

	doc := embedding.Document{
		Text: e.Text,
		Payload: embedding.Payload{
			MediaRef:      p.MediaRef,
			Link:          p.Link,
			CreatedAt:     h.eventTime(e),
			SourceEventID: p.EventID,
		},
	}
	if err := h.store.Upsert(ctx, e.SenderID, []embedding.Document{doc}); err != nil {
		// The pending record is already consumed and is not put back: a newer
		// attachment may have replaced it in the meantime.
		h.notify(ctx, e.SenderID, msgDescriptionError)
		return fmt.Errorf("store annotation: %w", err)
	}

	h.record(ctx, e.ExternalID, event.CategoryAnnotation)
	h.notify(ctx, e.SenderID, msgDescriptionSaved)
	h.react(ctx, e)
	return nil
}

// takePending consumes the sender's pending annotation. When the first lookup
// misses while an attachment for the sender is still in flight, it waits
// briefly for that attachment to be stored and retries once.
func (h *Handlers) takePending(ctx context.Context, senderID string) (*event.PendingAnnotation, error) {
	p, err := h.pending.TakeIfFresh(ctx, senderID, h.now(), h.cfg.PendingTTL)
	waited := false
	if errors.Is(err, event.ErrNotFound) && h.signal != nil && h.cfg.PendingWait > 0 && h.signal.Expected(senderID) {
		waited = true
		if h.signal.Wait(ctx, senderID, h.cfg.PendingWait) {
			slog.DebugContext(ctx, "pending annotation signalled, retrying lookup")
			p, err = h.pending.TakeIfFresh(ctx, senderID, h.now(), h.cfg.PendingTTL)
		}
	}
	if h.signal != nil && (waited || err == nil || errors.Is(err, pending.ErrExpired)) {
		h.signal.Reset(senderID)
	}
	return p, err
}

func (h *Handlers) handleSearch(ctx context.Context, e event.InboundEvent, query string) error {
	top, ok, err := h.search.Top(ctx, e.SenderID, query)
	if err != nil {
		h.notify(ctx, e.SenderID, msgSearchFailed)
		return fmt.Errorf("search: %w", err)
	}
	if !ok {
		h.notify(ctx, e.SenderID, msgNoResults)
		return nil
	}

	if err := h.notifier.SendMedia(ctx, e.SenderID, top.Payload.Link); err != nil {
		return fmt.Errorf("deliver search result: %w", err)
	}
	h.record(ctx, e.ExternalID, event.CategorySearch)
	h.react(ctx, e)
	return nil
}

func (h *Handlers) handleQuestion(ctx context.Context, e event.InboundEvent) error {
	h.notify(ctx, e.SenderID, msgQuestion)
	return nil
}

func (h *Handlers) handleUnsupported(ctx context.Context, e event.InboundEvent) error {
	if e.Kind() == event.KindAttachment {
		h.notify(ctx, e.SenderID, msgUnsupported)
		return nil
	}
	slog.WarnContext(ctx, "unhandled message type")
	h.notify(ctx, e.SenderID, msgUnhandled)
	return nil
}

// record writes the ledger entry. A failure here happens after the primary
// mutation, so it is logged rather than surfaced.
func (h *Handlers) record(ctx context.Context, externalID string, cat event.Category) {
	err := h.ledger.Record(ctx, event.ProcessedRecord{
		ExternalID: externalID,
		Category:   cat,
		Timestamp:  h.now().UTC(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record processed event", "category", cat, "error", err)
	}
}

func (h *Handlers) notify(ctx context.Context, senderID, text string) {
	if err := h.notifier.Notify(ctx, senderID, text); err != nil {
		slog.WarnContext(ctx, "notify failed", "error", err)
	}
}

func (h *Handlers) react(ctx context.Context, e event.InboundEvent) {
	if err := h.notifier.React(ctx, e.SenderID, e.ExternalID, reactionLove); err != nil {
		slog.WarnContext(ctx, "react failed", "error", err)
	}
}

func (h *Handlers) eventTime(e event.InboundEvent) time.Time {
	if e.OccurredAt.IsZero() {
		return h.now().UTC()
	}
	return e.OccurredAt
}
