package vector

import (
	"context"
	"strings"
	"unicode"

	"github.com/weaviate/weaviate/entities/models"
)

const (
	DistanceCosine = "cosine"

	classPrefix = "Sender_"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// ClassName maps a sender id onto a valid Weaviate class name. Class names
// must start with an upper-case letter and contain only [A-Za-z0-9_].
func ClassName(senderID string) string {
	var b strings.Builder
	b.WriteString(classPrefix)
	for _, r := range senderID {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func properties() []*models.Property {
	return []*models.Property{
		{Name: "message", DataType: []string{"text"}},
		{Name: "senderId", DataType: []string{"string"}},
		{Name: "mediaRef", DataType: []string{"string"}},
		{Name: "link", DataType: []string{"string"}},
		{Name: "sourceEventId", DataType: []string{"string"}},
		{Name: "recordId", DataType: []string{"int"}},
		{Name: "createdAt", DataType: []string{"date"}},
	}
}

// EnsureCollection creates the sender's class when it is absent and adds any
// properties an older class is missing. It is safe to call repeatedly.
func EnsureCollection(ctx context.Context, client SchemaClient, senderID, distance string) error {
	className := ClassName(senderID)
	if distance == "" {
		distance = DistanceCosine
	}

	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	props := properties()
	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "Media captions and annotations for one sender",
			Vectorizer:  "none",
			VectorIndexConfig: map[string]interface{}{
				"distance": distance,
			},
			Properties: props,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(class.Properties))
	for _, p := range class.Properties {
		existing[p.Name] = true
	}

	for _, p := range props {
		if !existing[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}
	return nil
}
