package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelsync/backend/internal/event"
	"reelsync/backend/internal/vector"
)

var ErrEmptyMessage = errors.New("empty message is not embedded")

// syntheticIDSpace keeps ids to twelve digits.
const syntheticIDSpace = 1_000_000_000_000

type Store struct {
	embedder Embedder
	backend  Backend
	schema   vector.SchemaClient
	dim      int
	distance string

	ensured sync.Map
}

func NewStore(e Embedder, b Backend, schema vector.SchemaClient, dim int) *Store {
	return &Store{
		embedder: e,
		backend:  b,
		schema:   schema,
		dim:      dim,
		distance: vector.DistanceCosine,
	}
}

// NewID returns a collision-improbable synthetic record id and the object uuid
// it was derived from.
func NewID() (int64, string) {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[8:]) % syntheticIDSpace
	return int64(n), u.String()
}

func (s *Store) EnsureCollection(ctx context.Context, senderID string) error {
	if _, ok := s.ensured.Load(senderID); ok {
		return nil
	}
	if err := vector.EnsureCollection(ctx, s.schema, senderID, s.distance); err != nil {
		return event.NewStoreError("ensure collection", err)
	}
	s.ensured.Store(senderID, struct{}{})
	return nil
}

// Upsert embeds and writes each document. Writes are not atomic across
// documents: if any document fails the others stay written and the returned
// StoreError says how many failed.
func (s *Store) Upsert(ctx context.Context, senderID string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.EnsureCollection(ctx, senderID); err != nil {
		return err
	}

	className := vector.ClassName(senderID)
	var errs []error
	for _, doc := range docs {
		if err := s.write(ctx, className, senderID, doc); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return event.NewStoreError("upsert", fmt.Errorf("%d of %d records failed: %w", len(errs), len(docs), errors.Join(errs...)))
	}
	return nil
}

func (s *Store) write(ctx context.Context, className, senderID string, doc Document) error {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return ErrEmptyMessage
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return err
	}

	id, objectID := NewID()
	payload := doc.Payload
	payload.SenderID = senderID
	payload.Message = text
	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now().UTC()
	}

	rec := Record{ID: id, ObjectID: objectID, Vector: vec, Payload: payload}
	if err := s.backend.Insert(ctx, className, rec); err != nil {
		return fmt.Errorf("insert record %d: %w", id, err)
	}
	slog.DebugContext(ctx, "embedding stored", "sender_id", senderID, "record_id", id, "source_event_id", payload.SourceEventID)
	return nil
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vec) == 0 {
		return nil, errors.New("embed: empty vector")
	}
	if s.dim > 0 && len(vec) != s.dim {
		return nil, fmt.Errorf("embed: got %d dimensions, want %d", len(vec), s.dim)
	}
	return vec, nil
}

// QueryNearest returns up to k records closest to text. A missing or empty
// collection yields an empty result, not an error.
func (s *Store) QueryNearest(ctx context.Context, senderID, text string, k int) ([]Record, error) {
	if k <= 0 {
		k = 1
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	className := vector.ClassName(senderID)
	exists, err := s.schema.ClassExists(ctx, className)
	if err != nil {
		return nil, event.NewStoreError("query", err)
	}
	if !exists {
		return nil, nil
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, event.NewStoreError("query", err)
	}

	records, err := s.backend.Nearest(ctx, className, vec, k)
	if err != nil {
		return nil, event.NewStoreError("query", err)
	}
	return records, nil
}

// Scroll returns one page of the sender's collection. An empty NextCursor
// means pagination is exhausted.
func (s *Store) Scroll(ctx context.Context, senderID, cursor string, limit int) (Page, error) {
	className := vector.ClassName(senderID)
	if cursor == "" {
		exists, err := s.schema.ClassExists(ctx, className)
		if err != nil {
			return Page{}, event.NewStoreError("scroll", err)
		}
		if !exists {
			return Page{}, nil
		}
	}

	records, next, err := s.backend.Scroll(ctx, className, cursor, limit)
	if err != nil {
		return Page{}, event.NewStoreError("scroll", err)
	}
	return Page{Records: records, NextCursor: next}, nil
}
