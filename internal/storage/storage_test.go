package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/securebank/backoffice/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memBackend) EnsureBucket(context.Context) error { return nil }

func (m *memBackend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return nil
}

func (m *memBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBackend) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memBackend) Bucket() string { return "ledger-exports" }

func TestStorage_RoundTrip(t *testing.T) {
	backend := newMemBackend()
	s := NewStorage(backend)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "transfers/a.json", strings.NewReader(`{"count":0}`), 11, ""))
	assert.Equal(t, "application/octet-stream", backend.contentTypes["transfers/a.json"])

	rc, err := s.Get(ctx, "transfers/a.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":0}`, string(data))

	require.NoError(t, s.Delete(ctx, "transfers/a.json"))
	_, err = s.Get(ctx, "transfers/a.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.Error(t, s.Put(ctx, " ", strings.NewReader(""), 0, "application/json"))
	assert.Equal(t, "ledger-exports/transfers/a.json", s.Location("/transfers/a.json"))
}

func TestOpen_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, config.Config{Storage: config.StorageConfig{Backend: "s3"}})
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = Open(ctx, config.Config{Storage: config.StorageConfig{Backend: "minio"}})
	assert.ErrorContains(t, err, "minio endpoint is required")

	_, err = Open(ctx, config.Config{
		Storage: config.StorageConfig{Backend: "minio"},
		Minio:   config.MinioConfig{Endpoint: "localhost:9000"},
	})
	assert.ErrorContains(t, err, "access key")

	_, err = Open(ctx, config.Config{Storage: config.StorageConfig{Backend: "gcs"}})
	assert.ErrorContains(t, err, "gcs bucket is required")
}

func TestOpen_Minio(t *testing.T) {
	s, err := Open(context.Background(), config.Config{
		Storage: config.StorageConfig{Backend: "MINIO"},
		Minio: config.MinioConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "access",
			SecretKey: "secret",
			Bucket:    "ledger-exports",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ledger-exports", s.Bucket())
}
