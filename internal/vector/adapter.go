package vector

import (
	"context"
	"errors"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

var errNotReady = errors.New("weaviate is not ready")

// WeaviateSchemaAdapter exposes the schema calls EnsureCollection needs.
type WeaviateSchemaAdapter struct {
	client *weaviate.Client
}

func NewWeaviateSchemaAdapter(client *weaviate.Client) *WeaviateSchemaAdapter {
	return &WeaviateSchemaAdapter{client: client}
}

func (a *WeaviateSchemaAdapter) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *WeaviateSchemaAdapter) CreateClass(ctx context.Context, class *models.Class) error {
	return a.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *WeaviateSchemaAdapter) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return a.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *WeaviateSchemaAdapter) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return a.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}

func (a *WeaviateSchemaAdapter) DeleteClass(ctx context.Context, className string) error {
	return a.client.Schema().ClassDeleter().WithClassName(className).Do(ctx)
}

// Ready reports an error until Weaviate answers its readiness probe.
func (a *WeaviateSchemaAdapter) Ready(ctx context.Context) error {
	ok, err := a.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errNotReady
	}
	return nil
}
