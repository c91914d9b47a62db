package reply

import (
	"context"
	"log/slog"

	"reelsync/backend/internal/embedding"
)

const PageSize = 100

// Scroller is the subset of embedding.Store the resolver pages through.
type Scroller interface {
	Scroll(ctx context.Context, senderID, cursor string, limit int) (embedding.Page, error)
}

type Resolver struct {
	store    Scroller
	pageSize int
}

func NewResolver(store Scroller) *Resolver {
	return &Resolver{store: store, pageSize: PageSize}
}

// FindBySourceEventID scans the sender's collection for the record created
// from sourceEventID. The scan is linear in collection size and stops at the
// first match or when pagination is exhausted. Store faults are logged and
// reported as not found.
func (r *Resolver) FindBySourceEventID(ctx context.Context, senderID, sourceEventID string) (embedding.Record, bool) {
	if sourceEventID == "" {
		return embedding.Record{}, false
	}

	cursor := ""
	pages := 0
	for {
		page, err := r.store.Scroll(ctx, senderID, cursor, r.pageSize)
		if err != nil {
			slog.ErrorContext(ctx, "reply lookup failed", "sender_id", senderID, "source_event_id", sourceEventID, "pages", pages, "error", err)
			return embedding.Record{}, false
		}
		pages++

		for _, rec := range page.Records {
			if rec.Payload.SourceEventID == sourceEventID {
				return rec, true
			}
		}

		// A repeated cursor would never terminate.
		if page.NextCursor == "" || page.NextCursor == cursor {
			break
		}
		cursor = page.NextCursor
	}

	slog.DebugContext(ctx, "reply target not found", "sender_id", senderID, "source_event_id", sourceEventID, "pages", pages)
	return embedding.Record{}, false
}
