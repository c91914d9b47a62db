package weaviate

import (
	"context"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"reelsync/backend/internal/embedding"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Insert(ctx context.Context, className string, rec embedding.Record) error {
	props := map[string]interface{}{
		"message":       rec.Payload.Message,
		"senderId":      rec.Payload.SenderID,
		"mediaRef":      rec.Payload.MediaRef,
		"link":          rec.Payload.Link,
		"sourceEventId": rec.Payload.SourceEventID,
		"recordId":      rec.ID,
		"createdAt":     rec.Payload.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	creator := s.client.Data().Creator().
		WithClassName(className).
		WithProperties(props).
		WithVector(rec.Vector)
	if rec.ObjectID != "" {
		creator = creator.WithID(rec.ObjectID)
	}

	_, err := creator.Do(ctx)
	return err
}

var recordFields = []graphql.Field{
	{Name: "message"},
	{Name: "senderId"},
	{Name: "mediaRef"},
	{Name: "link"},
	{Name: "sourceEventId"},
	{Name: "recordId"},
	{Name: "createdAt"},
	{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
}

func (s *Store) Nearest(ctx context.Context, className string, vector []float32, limit int) ([]embedding.Record, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(recordFields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var records []embedding.Record
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return records, nil
	}
	items, ok := data[className].([]interface{})
	if !ok {
		return records, nil
	}

	for _, item := range items {
		props, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		rec := recordFromProperties(props)
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				rec.ObjectID = id
			}
			switch d := additional["distance"].(type) {
			case float64:
				rec.Distance = float32(d)
			case string:
				var f float64
				fmt.Sscanf(d, "%f", &f)
				rec.Distance = float32(f)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Scroll lists objects in id order using Weaviate's cursor API. The returned
// cursor is empty once a short page is seen.
func (s *Store) Scroll(ctx context.Context, className, after string, limit int) ([]embedding.Record, string, error) {
	getter := s.client.Data().ObjectsGetter().
		WithClassName(className).
		WithLimit(limit)
	if after != "" {
		getter = getter.WithAfter(after)
	}

	objects, err := getter.Do(ctx)
	if err != nil {
		return nil, "", err
	}

	records := make([]embedding.Record, 0, len(objects))
	var last string
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		last = obj.ID.String()
		rec := recordFromObject(obj)
		records = append(records, rec)
	}

	if len(objects) < limit || last == "" {
		return records, "", nil
	}
	return records, last, nil
}

func recordFromObject(obj *models.Object) embedding.Record {
	props, _ := obj.Properties.(map[string]interface{})
	rec := recordFromProperties(props)
	rec.ObjectID = obj.ID.String()
	return rec
}

func recordFromProperties(props map[string]interface{}) embedding.Record {
	var rec embedding.Record
	if props == nil {
		return rec
	}
	if v, ok := props["message"].(string); ok {
		rec.Payload.Message = v
	}
	if v, ok := props["senderId"].(string); ok {
		rec.Payload.SenderID = v
	}
	if v, ok := props["mediaRef"].(string); ok {
		rec.Payload.MediaRef = v
	}
	if v, ok := props["link"].(string); ok {
		rec.Payload.Link = v
	}
	if v, ok := props["sourceEventId"].(string); ok {
		rec.Payload.SourceEventID = v
	}
	if v, ok := props["recordId"].(float64); ok {
		rec.ID = int64(v)
	}
	if v, ok := props["createdAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.Payload.CreatedAt = ts
		}
	}
	return rec
}
