// Package storage persists small named blobs for the client: the graph snapshot and
// bio notes. Backends are the local filesystem, S3 compatible object storage and badger.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/config"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid storage key")
)

// Store defines the load/save contract every backend implements.
// Keys are slash separated relative paths such as "graph/42.json".
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	// Delete removes key; a missing key is not an error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New opens the backend selected by cfg.Type
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStore(cfg.Dir)
	case "s3":
		return NewS3Store(ctx, cfg)
	case "badger":
		return NewBadgerStore(BadgerConfig{Path: cfg.Dir, SyncWrites: true, Logger: logger})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// LoadJSON reads key and decodes it into a T
func LoadJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	data, err := s.Load(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// SaveJSON encodes v and stores it under key
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Save(ctx, key, data)
}
