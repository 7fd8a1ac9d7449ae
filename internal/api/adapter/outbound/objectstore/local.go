package objectstore

import (
	"context"
	"errors"
	"io"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/anthanhphan/go-chunk-transfer/pkg/diskstore"
)

// LocalStore serves a node directly from a directory on the gateway host.
type LocalStore struct {
	disk *diskstore.Store
}

var _ port.ObjectStore = (*LocalStore)(nil)

// NewLocalStore opens the disk store at cfg.DataDir.
func NewLocalStore(cfg diskstore.Config) (*LocalStore, error) {
	disk, err := diskstore.New(cfg)
	if err != nil {
		return nil, err
	}
	return &LocalStore{disk: disk}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.disk.Put(key, body, size)
}

func (s *LocalStore) Head(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := s.disk.Head(key)
	if errors.Is(err, diskstore.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *LocalStore) Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r, n, err := s.disk.Open(key, offset, length)
	if errors.Is(err, diskstore.ErrNotFound) {
		return nil, 0, domain.ErrObjectNotFound
	}
	return r, n, err
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.disk.Delete(key)
}

func (s *LocalStore) DeleteBatch(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed := s.disk.DeleteBatch(keys); len(failed) > 0 {
		return &port.BatchDeleteError{Failed: failed}
	}
	return nil
}
