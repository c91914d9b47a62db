package embedding

import (
	"context"
	"time"
)

// Payload is the metadata stored alongside every vector.
type Payload struct {
	SenderID      string    `json:"sender_id"`
	Message       string    `json:"message"`
	MediaRef      string    `json:"media_ref,omitempty"`
	Link          string    `json:"link"`
	CreatedAt     time.Time `json:"created_at"`
	SourceEventID string    `json:"source_event_id,omitempty"`
}

type Record struct {
	ID       int64     `json:"id"`
	ObjectID string    `json:"-"`
	Vector   []float32 `json:"-"`
	Payload  Payload   `json:"payload"`
	// Distance is only set on query results.
	Distance float32 `json:"distance,omitempty"`
}

// Document is an upsert input: Text is embedded, Payload is stored verbatim
// with Message set to Text.
type Document struct {
	Text    string
	Payload Payload
}

type Page struct {
	Records    []Record
	NextCursor string
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Backend is the vector database a Store writes to. Collections are addressed
// by class name.
type Backend interface {
	Insert(ctx context.Context, className string, rec Record) error
	Nearest(ctx context.Context, className string, vector []float32, limit int) ([]Record, error)
	Scroll(ctx context.Context, className, after string, limit int) ([]Record, string, error)
}
