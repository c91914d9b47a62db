package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/weaviate/weaviate/entities/models"

	"reelsync/backend/internal/embedding"
)

// HashEmbedder is a deterministic bag-of-words embedder. Texts sharing words
// land close together under cosine distance.
type HashEmbedder struct {
	Dim int
	Err error

	mu    sync.Mutex
	Calls []string
}

func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h.mu.Lock()
	h.Calls = append(h.Calls, text)
	h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}

	vec := make([]float32, h.Dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		f.Write([]byte(word))
		vec[int(f.Sum32())%h.Dim] += 1
	}
	return vec, nil
}

// MemorySchema is an in-memory vector.SchemaClient.
type MemorySchema struct {
	mu      sync.Mutex
	classes map[string]*models.Class
	Err     error
}

func NewMemorySchema() *MemorySchema {
	return &MemorySchema{classes: make(map[string]*models.Class)}
}

func (m *MemorySchema) ClassExists(ctx context.Context, className string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.classes[className]
	return ok, nil
}

func (m *MemorySchema) CreateClass(ctx context.Context, class *models.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.classes[class.Class] = class
	return nil
}

func (m *MemorySchema) GetClass(ctx context.Context, className string) (*models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[className]
	if !ok {
		return nil, fmt.Errorf("class %s not found", className)
	}
	return c, nil
}

func (m *MemorySchema) AddProperty(ctx context.Context, className string, property *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[className]
	if !ok {
		return fmt.Errorf("class %s not found", className)
	}
	c.Properties = append(c.Properties, property)
	return nil
}

// MemoryBackend is an in-memory embedding.Backend ranking by cosine distance.
// Scroll cursors are object ids, listed in ascending order.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string][]embedding.Record

	InsertErr error
	ScrollErr error
	// FailInsertFor makes Insert fail for documents with this message.
	FailInsertFor string
	ScrollCalls   int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]embedding.Record)}
}

func (m *MemoryBackend) Insert(ctx context.Context, className string, rec embedding.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if m.FailInsertFor != "" && rec.Payload.Message == m.FailInsertFor {
		return fmt.Errorf("insert rejected")
	}
	m.records[className] = append(m.records[className], rec)
	return nil
}

func (m *MemoryBackend) Nearest(ctx context.Context, className string, vec []float32, limit int) ([]embedding.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scored := make([]embedding.Record, 0, len(m.records[className]))
	for _, r := range m.records[className] {
		r.Distance = 1 - cosine(vec, r.Vector)
		scored = append(scored, r)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Distance < scored[j].Distance })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (m *MemoryBackend) Scroll(ctx context.Context, className, after string, limit int) ([]embedding.Record, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScrollCalls++
	if m.ScrollErr != nil {
		return nil, "", m.ScrollErr
	}

	all := append([]embedding.Record(nil), m.records[className]...)
	sort.Slice(all, func(i, j int) bool { return all[i].ObjectID < all[j].ObjectID })

	var page []embedding.Record
	for _, r := range all {
		if after != "" && r.ObjectID <= after {
			continue
		}
		page = append(page, r)
		if len(page) == limit {
			break
		}
	}
	if len(page) < limit || len(page) == 0 {
		return page, "", nil
	}
	return page, page[len(page)-1].ObjectID, nil
}

// Add seeds a record directly, bypassing embedding.
func (m *MemoryBackend) Add(className string, rec embedding.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[className] = append(m.records[className], rec)
}

func (m *MemoryBackend) Records(className string) []embedding.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]embedding.Record(nil), m.records[className]...)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
