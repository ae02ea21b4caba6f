package loader

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
	"github.com/yashrajoria/catalog-seeder/hasher"
	"github.com/yashrajoria/catalog-seeder/models"
)

func TestLoadRecords_JSON(t *testing.T) {
	raw := `[{"id":"b1","name":"Acme","imageURL":"https://x/acme.png","isActive":true}]`
	src := NewFSSource(fstest.MapFS{"seed/brands.json": {Data: []byte(raw)}}, "seed")

	loaded, err := LoadRecords[models.Brand](context.Background(), src, "brands", "json")
	require.NoError(t, err)
	require.Len(t, loaded.Records, 1)
	assert.Equal(t, "Acme", loaded.Records[0].Name)
	assert.Equal(t, raw, string(loaded.Raw))
	assert.Equal(t, hasher.Digest([]byte(raw)), loaded.Digest)
}

func TestLoadRecords_YAML(t *testing.T) {
	raw := "- id: p1\n  name: Runner\n  price: 59.9\n  keywords: [run, shoe]\n"
	src := NewFSSource(fstest.MapFS{"products.yaml": {Data: []byte(raw)}}, "")

	loaded, err := LoadRecords[models.Product](context.Background(), src, "products", "yaml")
	require.NoError(t, err)
	require.Len(t, loaded.Records, 1)
	assert.Equal(t, []string{"run", "shoe"}, loaded.Records[0].Keywords)
	assert.InDelta(t, 59.9, loaded.Records[0].Price, 0.0001)
}

func TestLoadRecords_NotFound(t *testing.T) {
	src := NewFSSource(fstest.MapFS{}, "")
	_, err := LoadRecords[models.Brand](context.Background(), src, "brands", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrResourceNotFound))
}

func TestLoadRecords_DecodeFailure(t *testing.T) {
	src := NewFSSource(fstest.MapFS{"brands.json": {Data: []byte(`{"id":`)}}, "")
	_, err := LoadRecords[models.Brand](context.Background(), src, "brands", "json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDecodeFailure))
	assert.Contains(t, err.Error(), "brands.json")
}

func TestLoadRecords_DuplicateIDs(t *testing.T) {
	raw := `[{"id":"b1","name":"A"},{"id":"b2","name":"B"},{"id":"b1","name":"C"}]`
	src := NewFSSource(fstest.MapFS{"brands.json": {Data: []byte(raw)}}, "")

	_, err := LoadRecords[models.Brand](context.Background(), src, "brands", "json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Contains(t, err.Error(), "b1")
}

func TestLoadRecords_InvalidRecord(t *testing.T) {
	raw := `[{"id":"p1","name":"Runner","price":-1}]`
	src := NewFSSource(fstest.MapFS{"products.json": {Data: []byte(raw)}}, "")

	_, err := LoadRecords[models.Product](context.Background(), src, "products", "json")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestLoadRecords_EmptyList(t *testing.T) {
	src := NewFSSource(fstest.MapFS{"brands.json": {Data: []byte(`[]`)}}, "")
	loaded, err := LoadRecords[models.Brand](context.Background(), src, "brands", "json")
	require.NoError(t, err)
	assert.Empty(t, loaded.Records)
}

type mockS3 struct {
	objects map[string]string
	keys    []string
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.keys = append(m.keys, *in.Key)
	body, ok := m.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Source(t *testing.T) {
	client := &mockS3{objects: map[string]string{"seed/v1/brands.json": `[]`}}
	src := NewS3Source(client, "catalog", "seed/v1/")

	data, err := src.Open(context.Background(), "brands", "json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
	assert.Equal(t, []string{"seed/v1/brands.json"}, client.keys)

	_, err = src.Open(context.Background(), "products", "json")
	assert.True(t, errors.Is(err, apperrors.ErrResourceNotFound))
}
