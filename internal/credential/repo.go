package credential

import (
	"context"
	"database/sql"
	"errors"

	"reelsync/backend/internal/event"
)

// Source reads the platform credential. The token is owned and refreshed by
// the OAuth flow; this side only reads it.
type Source interface {
	Latest(ctx context.Context) (*event.Credential, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Latest(ctx context.Context) (*event.Credential, error) {
	query := `SELECT access_token, user_id, token_type, created_at, expires_at
		FROM credentials ORDER BY created_at DESC, id DESC LIMIT 1`

	var c event.Credential
	var expires sql.NullTime
	err := r.db.QueryRowContext(ctx, query).Scan(&c.AccessToken, &c.UserID, &c.TokenType, &c.CreatedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, event.ErrNotFound
	}
	if err != nil {
		return nil, event.NewStoreError("credential latest", err)
	}
	if expires.Valid {
		c.ExpiresAt = expires.Time
	}
	return &c, nil
}

// Static serves a fixed token, used when ACCESS_TOKEN is configured directly.
type Static struct {
	Credential event.Credential
}

func (s Static) Latest(ctx context.Context) (*event.Credential, error) {
	if s.Credential.AccessToken == "" {
		return nil, event.ErrNotFound
	}
	c := s.Credential
	return &c, nil
}
