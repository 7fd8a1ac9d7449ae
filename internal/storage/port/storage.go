package port

import (
	"io"

	"github.com/anthanhphan/go-chunk-transfer/pkg/diskstore"
)

//go:generate mockgen -destination=../service/mocks/storage_mock.go -package=mocks -source=storage.go

// ObjectRepository is the local object storage the node serves from.
type ObjectRepository interface {
	// Put writes size bytes under key, replacing any previous object.
	Put(key string, r io.Reader, size int64) error

	// Head returns the object size.
	Head(key string) (int64, error)

	// Open streams length bytes starting at offset. A negative length reads to the end.
	Open(key string, offset, length int64) (io.ReadCloser, int64, error)

	// Delete removes key. Missing keys are not an error.
	Delete(key string) error

	// DeleteBatch removes keys and returns the per-key failures.
	DeleteBatch(keys []string) map[string]error

	// Stats counts stored objects.
	Stats() (diskstore.Stats, error)
}
