package users

import (
	"context"

	"github.com/goliatone/go-users/storage/afs"
	"github.com/goliatone/go-users/storage/s3fs"
)

var (
	_ FileStorage = (*afs.Storage)(nil)
	_ FileStorage = (*s3fs.Storage)(nil)
)

// NewFileStorage builds the FileStorage backend selected by cfg
func NewFileStorage(ctx context.Context, cfg StorageConfig) (FileStorage, error) {
	switch cfg.Backend {
	case "", "os":
		base := cfg.BasePath
		if base == "" {
			base = DefaultConfig().Storage.BasePath
		}
		return afs.NewOS(base), nil
	case "memory":
		return afs.NewMemory(), nil
	case "s3":
		return s3fs.NewFromConfig(ctx, s3fs.Options{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
	default:
		return nil, NewValidationError("unsupported storage backend", "storage.backend")
	}
}
