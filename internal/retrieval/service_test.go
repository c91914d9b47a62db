package retrieval_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reelsync/backend/internal/embedding"
	"reelsync/backend/internal/middleware"
	"reelsync/backend/internal/retrieval"
)

type MockQuerier struct{ mock.Mock }

func (m *MockQuerier) QueryNearest(ctx context.Context, senderID, text string, k int) ([]embedding.Record, error) {
	args := m.Called(ctx, senderID, text, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]embedding.Record), args.Error(1)
}

func TestService_Top(t *testing.T) {
	q := new(MockQuerier)
	q.On("QueryNearest", mock.Anything, "u1", "funny dance", 1).Return([]embedding.Record{
		{Payload: embedding.Payload{Link: "L1"}, Distance: 0.05},
	}, nil)

	var buf bytes.Buffer
	svc := retrieval.NewService(q, retrieval.NewQueryLogger(&buf), 0)

	ctx := middleware.WithCorrelationID(context.Background(), "mid-3")
	rec, ok, err := svc.Top(ctx, "u1", "  funny dance ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "L1", rec.Payload.Link)

	var entry retrieval.QueryLogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "u1", entry.SenderID)
	assert.Equal(t, "funny dance", entry.Query)
	assert.Equal(t, 1, entry.NumResults)
	assert.Equal(t, "mid-3", entry.CorrelationID)
	assert.InDelta(t, 0.05, entry.TopDistance, 1e-6)
}

func TestService_TopNoResults(t *testing.T) {
	q := new(MockQuerier)
	q.On("QueryNearest", mock.Anything, "u1", "cats", 1).Return(nil, nil)

	_, ok, err := retrieval.NewService(q, nil, 1).Top(context.Background(), "u1", "cats")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestService_SearchError(t *testing.T) {
	q := new(MockQuerier)
	q.On("QueryNearest", mock.Anything, "u1", "cats", 3).Return(nil, errors.New("store down"))

	var buf bytes.Buffer
	_, err := retrieval.NewService(q, retrieval.NewQueryLogger(&buf), 3).Search(context.Background(), "u1", "cats")
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}
