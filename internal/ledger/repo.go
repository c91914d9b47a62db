package ledger

import (
	"context"
	"database/sql"
	"time"

	"reelsync/backend/internal/event"
)

// Repository is the idempotency ledger. Presence of a record is the only
// signal that an event has been applied.
type Repository interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	Record(ctx context.Context, rec event.ProcessedRecord) error
	CountByCategory(ctx context.Context) (map[event.Category]int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Exists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM processed_events WHERE external_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, externalID).Scan(&exists); err != nil {
		return false, event.NewStoreError("ledger exists", err)
	}
	return exists, nil
}

// Record inserts the ledger entry. A concurrent insert for the same id is a no-op.
func (r *PostgresRepo) Record(ctx context.Context, rec event.ProcessedRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	query := `INSERT INTO processed_events (external_id, category, processed_at) VALUES ($1, $2, $3) ON CONFLICT (external_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, rec.ExternalID, string(rec.Category), rec.Timestamp); err != nil {
		return event.NewStoreError("ledger record", err)
	}
	return nil
}

func (r *PostgresRepo) CountByCategory(ctx context.Context) (map[event.Category]int, error) {
	query := `SELECT category, COUNT(*) FROM processed_events GROUP BY category`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, event.NewStoreError("ledger count by category", err)
	}
	defer rows.Close()

	counts := make(map[event.Category]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, event.NewStoreError("ledger count by category", err)
		}
		counts[event.Category(category)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, event.NewStoreError("ledger count by category", err)
	}
	return counts, nil
}
