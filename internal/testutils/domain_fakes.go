package testutils

import (
	"context"
	"sync"
	"time"

	"reelsync/backend/internal/event"
	"reelsync/backend/internal/pending"
)

// MemoryLedger is an in-memory idempotency ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]event.ProcessedRecord

	ExistsErr error
	RecordErr error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]event.ProcessedRecord)}
}

func (l *MemoryLedger) Exists(ctx context.Context, externalID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ExistsErr != nil {
		return false, l.ExistsErr
	}
	_, ok := l.records[externalID]
	return ok, nil
}

func (l *MemoryLedger) Record(ctx context.Context, rec event.ProcessedRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.RecordErr != nil {
		return l.RecordErr
	}
	if _, ok := l.records[rec.ExternalID]; !ok {
		l.records[rec.ExternalID] = rec
	}
	return nil
}

func (l *MemoryLedger) Get(externalID string) (event.ProcessedRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[externalID]
	return r, ok
}

func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// MemoryPending mirrors the Postgres pending store: one record per sender,
// consumed on take.
type MemoryPending struct {
	mu      sync.Mutex
	records map[string]event.PendingAnnotation

	PutErr  error
	TakeErr error
	Takes   int
}

func NewMemoryPending() *MemoryPending {
	return &MemoryPending{records: make(map[string]event.PendingAnnotation)}
}

func (m *MemoryPending) Put(ctx context.Context, p event.PendingAnnotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	m.records[p.SenderID] = p
	return nil
}

func (m *MemoryPending) TakeIfFresh(ctx context.Context, senderID string, now time.Time, ttl time.Duration) (*event.PendingAnnotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Takes++
	if m.TakeErr != nil {
		return nil, m.TakeErr
	}
	p, ok := m.records[senderID]
	if !ok {
		return nil, event.ErrNotFound
	}
	delete(m.records, senderID)
	if now.Sub(p.CreatedAt) > ttl {
		return nil, pending.ErrExpired
	}
	return &p, nil
}

func (m *MemoryPending) Get(senderID string) (event.PendingAnnotation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[senderID]
	return p, ok
}

type Sent struct {
	Kind     string // "text", "react" or "media"
	SenderID string
	Body     string
}

// RecordingNotifier captures everything sent to users.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []Sent
	Err  error
}

func (n *RecordingNotifier) add(s Sent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, s)
	return n.Err
}

func (n *RecordingNotifier) Notify(ctx context.Context, senderID, text string) error {
	return n.add(Sent{Kind: "text", SenderID: senderID, Body: text})
}

func (n *RecordingNotifier) React(ctx context.Context, senderID, externalID, reaction string) error {
	return n.add(Sent{Kind: "react", SenderID: senderID, Body: externalID})
}

func (n *RecordingNotifier) SendMedia(ctx context.Context, senderID, link string) error {
	return n.add(Sent{Kind: "media", SenderID: senderID, Body: link})
}

func (n *RecordingNotifier) Of(kind string) []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Sent
	for _, s := range n.Sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// StubCaptioner returns a fixed caption per media URL.
type StubCaptioner struct {
	mu       sync.Mutex
	Captions map[string]string
	Err      error
	Calls    int
}

func (c *StubCaptioner) Describe(ctx context.Context, mediaURL string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return "", c.Err
	}
	return c.Captions[mediaURL], nil
}

func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Sent)
}
