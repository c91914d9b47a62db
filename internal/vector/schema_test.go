package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

type MockSchemaClient struct {
	CreatedClass    *models.Class
	ExistingClass   *models.Class
	AddedProperties []*models.Property
	ExistsErr       error
	CheckedClass    string
}

func (m *MockSchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	m.CheckedClass = className
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	return m.ExistingClass != nil, nil
}

func (m *MockSchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	m.CreatedClass = class
	return nil
}

func (m *MockSchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return m.ExistingClass, nil
}

func (m *MockSchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	m.AddedProperties = append(m.AddedProperties, property)
	return nil
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "Sender_17841400000000000", ClassName("17841400000000000"))
	assert.Equal(t, "Sender_u_1_x", ClassName("u-1.x"))
	assert.Equal(t, "Sender__", ClassName("é"))
}

func TestEnsureCollection_CreatesClass(t *testing.T) {
	client := &MockSchemaClient{}
	require.NoError(t, EnsureCollection(context.Background(), client, "u1", ""))

	require.NotNil(t, client.CreatedClass)
	assert.Equal(t, "Sender_u1", client.CreatedClass.Class)
	assert.Equal(t, "none", client.CreatedClass.Vectorizer)

	cfg, ok := client.CreatedClass.VectorIndexConfig.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, DistanceCosine, cfg["distance"])

	names := make(map[string]string)
	for _, p := range client.CreatedClass.Properties {
		names[p.Name] = p.DataType[0]
	}
	assert.Equal(t, "string", names["sourceEventId"])
	assert.Equal(t, "text", names["message"])
	assert.Equal(t, "int", names["recordId"])
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	existing := &models.Class{Class: "Sender_u1", Properties: properties()}
	client := &MockSchemaClient{ExistingClass: existing}

	require.NoError(t, EnsureCollection(context.Background(), client, "u1", DistanceCosine))
	assert.Nil(t, client.CreatedClass)
	assert.Empty(t, client.AddedProperties)
}

func TestEnsureCollection_AddsMissingProperties(t *testing.T) {
	existing := &models.Class{
		Class: "Sender_u1",
		Properties: []*models.Property{
			{Name: "message", DataType: []string{"text"}},
			{Name: "link", DataType: []string{"string"}},
		},
	}
	client := &MockSchemaClient{ExistingClass: existing}

	require.NoError(t, EnsureCollection(context.Background(), client, "u1", DistanceCosine))

	added := make(map[string]bool)
	for _, p := range client.AddedProperties {
		added[p.Name] = true
	}
	assert.True(t, added["sourceEventId"])
	assert.True(t, added["createdAt"])
	assert.False(t, added["message"])
}

func TestEnsureCollection_Error(t *testing.T) {
	client := &MockSchemaClient{ExistsErr: errors.New("unreachable")}
	err := EnsureCollection(context.Background(), client, "u1", DistanceCosine)
	assert.EqualError(t, err, "unreachable")
	assert.Equal(t, "Sender_u1", client.CheckedClass)
}
