package storage_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locolive/proconnect/internal/config"
	"github.com/locolive/proconnect/internal/storage"
)

// memS3 is an in-process stand-in for the bucket
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func stores(t *testing.T) map[string]storage.Store {
	t.Helper()

	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	mem, err := storage.NewBadgerStore(storage.BadgerConfig{InMemory: true})
	require.NoError(t, err)

	onDisk, err := storage.NewBadgerStore(storage.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)

	bucket := &memS3{objects: make(map[string][]byte)}

	all := map[string]storage.Store{
		"local":         local,
		"badger-memory": mem,
		"badger-disk":   onDisk,
		"s3":            storage.NewS3StoreWithClient(bucket, "bucket", "proconnect/"),
	}
	t.Cleanup(func() {
		for _, s := range all {
			_ = s.Close()
		}
	})
	return all
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(ctx, "graph/1.json")
			require.ErrorIs(t, err, storage.ErrNotFound)

			require.NoError(t, s.Save(ctx, "graph/1.json", []byte(`{"a":1}`)))
			data, err := s.Load(ctx, "graph/1.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":1}`, string(data))

			require.NoError(t, s.Save(ctx, "graph/1.json", []byte(`{"a":2}`)))
			data, err = s.Load(ctx, "graph/1.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(data))

			require.NoError(t, s.Delete(ctx, "graph/1.json"))
			require.NoError(t, s.Delete(ctx, "graph/1.json"), "deleting a missing key is fine")
			_, err = s.Load(ctx, "graph/1.json")
			require.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "/etc/passwd", "../outside", "a/../../b", "a//b"} {
				require.ErrorIs(t, s.Save(ctx, key, []byte("x")), storage.ErrInvalidKey, key)
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	type note struct {
		Text string `json:"text"`
	}
	s, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, storage.SaveJSON(context.Background(), s, "notes/1.json", note{Text: "hello"}))
	got, err := storage.LoadJSON[note](context.Background(), s, "notes/1.json")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)

	require.NoError(t, s.Save(context.Background(), "notes/2.json", []byte("{")))
	_, err = storage.LoadJSON[note](context.Background(), s, "notes/2.json")
	require.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := storage.New(context.Background(), config.StorageConfig{Type: "local", Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStore{}, s)

	_, err = storage.New(context.Background(), config.StorageConfig{Type: "tape"}, nil)
	require.Error(t, err)

	_, err = storage.New(context.Background(), config.StorageConfig{Type: "s3"}, nil)
	require.Error(t, err, "bucket is required")
}
