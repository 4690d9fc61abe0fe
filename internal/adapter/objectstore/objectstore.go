// Package objectstore stores opaque blobs by key in a local directory,
// Google Cloud Storage or S3.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/energy-forecast/internal/config"
)

// ErrNotExist is returned (wrapped) when a key has no object.
var ErrNotExist = errors.New("object does not exist")

// Store is a flat key-value blob store. Keys use forward slashes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Open builds the store selected by cfg.ObjectStore. The returned store
// implements io.Closer when its backend holds a client.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.ObjectStore {
	case config.ObjectStoreGCS:
		logger.Info("using gcs object store", "project", cfg.GCPProject, "bucket", cfg.GCPBucketName)
		s, err := NewGCS(ctx, cfg.GCPBucketName, cfg.GCPServiceAccountPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ObjectStoreS3:
		logger.Info("using s3 object store", "bucket", cfg.S3Bucket, "region", cfg.S3Region, "endpoint", cfg.S3Endpoint)
		s, err := NewS3(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ObjectStoreLocal:
		logger.Info("using local object store", "dir", cfg.LocalObjectDir)
		s, err := NewLocal(cfg.LocalObjectDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown object store %q", cfg.ObjectStore)
	}
}

// Close closes s if its backend needs closing.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func notExist(key string) error {
	return fmt.Errorf("%w: %s", ErrNotExist, key)
}
