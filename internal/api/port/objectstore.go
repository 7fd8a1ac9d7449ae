package port

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
)

//go:generate mockgen -destination=../service/mocks/objectstore_mock.go -package=mocks -source=objectstore.go

// ObjectStore is the uniform per-node object API.
type ObjectStore interface {
	// Put writes the object, overwriting any previous value under key.
	Put(ctx context.Context, key string, body io.Reader, size int64) error

	// Head reports whether the object exists without transferring the body.
	Head(ctx context.Context, key string) (bool, error)

	// Get streams the object. A negative length reads to the end. It returns
	// domain.ErrObjectNotFound for missing keys.
	Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, int64, error)

	// Delete removes the object. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// DeleteBatch removes many objects. Per-key failures are reported as *BatchDeleteError.
	DeleteBatch(ctx context.Context, keys []string) error
}

// ObjectStoreProvider resolves the cached ObjectStore for a node.
type ObjectStoreProvider interface {
	Store(node domain.StorageNode) (ObjectStore, error)
}

// BatchDeleteError collects per-key failures of a batch delete.
type BatchDeleteError struct {
	Failed map[string]error
}

func (e *BatchDeleteError) Error() string {
	keys := make([]string, 0, len(e.Failed))
	for k := range e.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, e.Failed[k]))
	}
	return fmt.Sprintf("batch delete failed for %d keys: %s", len(keys), strings.Join(parts, "; "))
}
