package pending

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reelsync/backend/internal/event"
)

// DefaultTTL is how long a pending annotation stays consumable.
const DefaultTTL = time.Hour

var ErrExpired = errors.New("pending annotation expired")

type Repository interface {
	Put(ctx context.Context, p event.PendingAnnotation) error
	TakeIfFresh(ctx context.Context, senderID string, now time.Time, ttl time.Duration) (*event.PendingAnnotation, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Put replaces whatever pending annotation the sender had. Last media wins,
// including when two attachments for one sender are stored concurrently.
func (r *PostgresRepo) Put(ctx context.Context, p event.PendingAnnotation) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO pending_annotations (sender_id, media_ref, title, link, event_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sender_id) DO UPDATE SET
			media_ref = EXCLUDED.media_ref,
			title = EXCLUDED.title,
			link = EXCLUDED.link,
			event_id = EXCLUDED.event_id,
			created_at = EXCLUDED.created_at`
	if _, err := r.db.ExecContext(ctx, query, p.SenderID, p.MediaRef, p.Title, p.Link, p.EventID, p.CreatedAt); err != nil {
		return event.NewStoreError("pending put", err)
	}
	return nil
}

// TakeIfFresh atomically removes the sender's pending annotation and returns it
// when it is within ttl of its creation. A second call before the next Put
// always yields event.ErrNotFound.
func (r *PostgresRepo) TakeIfFresh(ctx context.Context, senderID string, now time.Time, ttl time.Duration) (*event.PendingAnnotation, error) {
	p := &event.PendingAnnotation{SenderID: senderID}
	query := `DELETE FROM pending_annotations WHERE sender_id = $1 RETURNING media_ref, title, link, event_id, created_at`
	err := r.db.QueryRowContext(ctx, query, senderID).Scan(&p.MediaRef, &p.Title, &p.Link, &p.EventID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, event.ErrNotFound
	}
	if err != nil {
		return nil, event.NewStoreError("pending take", err)
	}

	if now.Sub(p.CreatedAt) > ttl {
		return nil, ErrExpired
	}
	return p, nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_annotations`).Scan(&count); err != nil {
		return 0, event.NewStoreError("pending count", err)
	}
	return count, nil
}
