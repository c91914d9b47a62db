package failure

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"reelsync/backend/internal/event"
)

type Repository interface {
	Save(ctx context.Context, f *FailedEvent) error
	List(ctx context.Context) ([]FailedEvent, error)
	Get(ctx context.Context, id string) (*FailedEvent, error)
	Delete(ctx context.Context, id string, retries int) (bool, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Save inserts the failed event, or bumps the retry counter of the row already
// held for the same external id.
func (r *PostgresRepo) Save(ctx context.Context, f *FailedEvent) error {
	query := `INSERT INTO failed_events (external_id, sender_id, route, payload, error) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_id) DO UPDATE SET retries = failed_events.retries + 1, error = EXCLUDED.error
		RETURNING id, retries, created_at`
	err := r.db.QueryRowContext(ctx, query, f.ExternalID, f.SenderID, f.Route, []byte(f.Payload), f.Error).Scan(&f.ID, &f.Retries, &f.CreatedAt)
	if err != nil {
		return event.NewStoreError("failed event save", err)
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]FailedEvent, error) {
	query := `SELECT id, external_id, sender_id, route, payload, error, retries, created_at FROM failed_events ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, event.NewStoreError("failed event list", err)
	}
	defer rows.Close()

	var out []FailedEvent
	for rows.Next() {
		var f FailedEvent
		var payload []byte
		if err := rows.Scan(&f.ID, &f.ExternalID, &f.SenderID, &f.Route, &payload, &f.Error, &f.Retries, &f.CreatedAt); err != nil {
			return nil, event.NewStoreError("failed event list", err)
		}
		f.Payload = json.RawMessage(payload)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, event.NewStoreError("failed event list", err)
	}
	return out, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*FailedEvent, error) {
	f := &FailedEvent{}
	var payload []byte
	query := `SELECT id, external_id, sender_id, route, payload, error, retries, created_at FROM failed_events WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&f.ID, &f.ExternalID, &f.SenderID, &f.Route, &payload, &f.Error, &f.Retries, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, event.ErrNotFound
	}
	if err != nil {
		return nil, event.NewStoreError("failed event get", err)
	}
	f.Payload = json.RawMessage(payload)
	return f, nil
}

// Delete removes the row only while its retry counter still equals retries.
// It reports false when the event failed again in the meantime.
func (r *PostgresRepo) Delete(ctx context.Context, id string, retries int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM failed_events WHERE id = $1 AND retries = $2`, id, retries)
	if err != nil {
		return false, event.NewStoreError("failed event delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, event.NewStoreError("failed event delete", err)
	}
	return n > 0, nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_events`).Scan(&count); err != nil {
		return 0, event.NewStoreError("failed event count", err)
	}
	return count, nil
}
