package retrieval

import (
	"context"
	"strings"
	"time"

	"reelsync/backend/internal/embedding"
	"reelsync/backend/internal/middleware"
)

const DefaultTopK = 1

type Querier interface {
	QueryNearest(ctx context.Context, senderID, text string, k int) ([]embedding.Record, error)
}

// Service answers search commands against a sender's collection.
type Service struct {
	store  Querier
	logger *QueryLogger
	topK   int
}

func NewService(q Querier, l *QueryLogger, topK int) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{store: q, logger: l, topK: topK}
}

func (s *Service) Search(ctx context.Context, senderID, query string) ([]embedding.Record, error) {
	start := time.Now()
	query = strings.TrimSpace(query)

	records, err := s.store.QueryNearest(ctx, senderID, query, s.topK)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		entry := QueryLogEntry{
			SenderID:      senderID,
			Query:         query,
			NumResults:    len(records),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		}
		if len(records) > 0 {
			entry.TopDistance = records[0].Distance
		}
		s.logger.Log(entry)
	}
	return records, nil
}

// Top returns the best match or false when the collection had nothing to offer.
func (s *Service) Top(ctx context.Context, senderID, query string) (embedding.Record, bool, error) {
	records, err := s.Search(ctx, senderID, query)
	if err != nil {
		return embedding.Record{}, false, err
	}
	if len(records) == 0 {
		return embedding.Record{}, false, nil
	}
	return records[0], true, nil
}
