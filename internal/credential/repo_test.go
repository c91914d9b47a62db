package credential_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelsync/backend/internal/credential"
	"reelsync/backend/internal/event"
)

var latestQuery = regexp.QuoteMeta(`SELECT access_token, user_id, token_type, created_at, expires_at
		FROM credentials ORDER BY created_at DESC, id DESC LIMIT 1`)

func TestPostgresRepo_Latest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := credential.NewPostgresRepo(db)
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	expires := created.Add(60 * 24 * time.Hour)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(latestQuery).WillReturnRows(
			sqlmock.NewRows([]string{"access_token", "user_id", "token_type", "created_at", "expires_at"}).
				AddRow("tok", "ig-1", "long_lived", created, expires))

		c, err := repo.Latest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", c.AccessToken)
		assert.Equal(t, "ig-1", c.UserID)
		assert.Equal(t, expires, c.ExpiresAt)
	})

	t.Run("No expiry", func(t *testing.T) {
		mock.ExpectQuery(latestQuery).WillReturnRows(
			sqlmock.NewRows([]string{"access_token", "user_id", "token_type", "created_at", "expires_at"}).
				AddRow("tok", "ig-1", "long_lived", created, nil))

		c, err := repo.Latest(context.Background())
		require.NoError(t, err)
		assert.True(t, c.ExpiresAt.IsZero())
		assert.False(t, c.Expired(time.Now()))
	})

	t.Run("Empty table", func(t *testing.T) {
		mock.ExpectQuery(latestQuery).WillReturnError(sql.ErrNoRows)

		_, err := repo.Latest(context.Background())
		assert.ErrorIs(t, err, event.ErrNotFound)
	})

	t.Run("DB error", func(t *testing.T) {
		mock.ExpectQuery(latestQuery).WillReturnError(sqlmock.ErrCancelled)

		_, err := repo.Latest(context.Background())
		assert.True(t, event.IsStoreError(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatic_Latest(t *testing.T) {
	_, err := credential.Static{}.Latest(context.Background())
	assert.ErrorIs(t, err, event.ErrNotFound)

	c, err := credential.Static{Credential: event.Credential{AccessToken: "tok"}}.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", c.AccessToken)
}
