package port

import (
	"context"
	"io"

	"github.com/anthanhphan/go-chunk-transfer/internal/storage/domain"
)

// ObjectService defines the object operations a storage node exposes.
type ObjectService interface {
	// PutObject stores an object. It is an idempotent overwrite.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// HeadObject returns the object size or domain.ErrObjectNotFound.
	HeadObject(ctx context.Context, key string) (int64, error)

	// GetObject opens a byte range of an object. A negative length reads to the end.
	GetObject(ctx context.Context, key string, offset, length int64) (io.ReadCloser, domain.ObjectRange, error)

	// DeleteObject removes one object.
	DeleteObject(ctx context.Context, key string) error

	// DeleteObjects removes keys and returns the reason for each key that failed.
	DeleteObjects(ctx context.Context, keys []string) map[string]string

	// Stats reports what the node holds.
	Stats(ctx context.Context) (domain.NodeStats, error)
}
