package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/storage/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/storage/metrics"
	"github.com/anthanhphan/go-chunk-transfer/internal/storage/port"
	"github.com/anthanhphan/go-chunk-transfer/pkg/diskstore"
	"github.com/anthanhphan/gosdk/logger"
)

// ObjectServiceImpl serves objects out of the local repository.
type ObjectServiceImpl struct {
	repo          port.ObjectRepository
	nodeID        string
	region        string
	maxObjectSize int64
}

// Ensure ObjectServiceImpl implements port.ObjectService.
var _ port.ObjectService = (*ObjectServiceImpl)(nil)

// NewObjectService creates the service. maxObjectSize <= 0 disables the size check.
func NewObjectService(repo port.ObjectRepository, nodeID, region string, maxObjectSize int64) *ObjectServiceImpl {
	return &ObjectServiceImpl{repo: repo, nodeID: nodeID, region: region, maxObjectSize: maxObjectSize}
}

func (s *ObjectServiceImpl) PutObject(ctx context.Context, key string, body io.Reader, size int64) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}
	if size < 0 {
		return domain.ErrSizeMismatch
	}
	if s.maxObjectSize > 0 && size > s.maxObjectSize {
		return domain.ErrObjectTooLarge
	}

	err := translate(s.repo.Put(key, body, size))
	metrics.RecordObjectOp("put", status(err), time.Since(start))
	if err != nil {
		logger.Warnw("Object write failed", "key", key, "size", size, "error", err.Error())
		return err
	}
	metrics.RecordObjectBytes("in", size)
	logger.Debugw("Object stored", "key", key, "size", size)
	return nil
}

func (s *ObjectServiceImpl) HeadObject(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size, err := s.repo.Head(key)
	err = translate(err)
	metrics.RecordObjectOp("head", status(err), time.Since(start))
	return size, err
}

func (s *ObjectServiceImpl) GetObject(ctx context.Context, key string, offset, length int64) (io.ReadCloser, domain.ObjectRange, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, domain.ObjectRange{}, err
	}

	total, err := s.repo.Head(key)
	if err != nil {
		err = translate(err)
		metrics.RecordObjectOp("get", status(err), time.Since(start))
		return nil, domain.ObjectRange{}, err
	}
	if offset < 0 || offset > total || (offset == total && total > 0) {
		metrics.RecordObjectOp("get", "error", time.Since(start))
		return nil, domain.ObjectRange{}, domain.ErrBadOffset
	}

	body, n, err := s.repo.Open(key, offset, length)
	err = translate(err)
	metrics.RecordObjectOp("get", status(err), time.Since(start))
	if err != nil {
		return nil, domain.ObjectRange{}, err
	}
	metrics.RecordObjectBytes("out", n)
	return body, domain.ObjectRange{Offset: offset, Length: n, Total: total}, nil
}

func (s *ObjectServiceImpl) DeleteObject(ctx context.Context, key string) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}
	err := translate(s.repo.Delete(key))
	metrics.RecordObjectOp("delete", status(err), time.Since(start))
	return err
}

func (s *ObjectServiceImpl) DeleteObjects(ctx context.Context, keys []string) map[string]string {
	start := time.Now()
	failed := make(map[string]string)
	if err := ctx.Err(); err != nil {
		for _, k := range keys {
			failed[k] = err.Error()
		}
		return failed
	}

	for k, err := range s.repo.DeleteBatch(keys) {
		failed[k] = translate(err).Error()
	}
	st := "success"
	if len(failed) > 0 {
		st = "partial"
		logger.Warnw("Batch delete had failures", "keys", len(keys), "failed", len(failed))
	}
	metrics.RecordObjectOp("delete_batch", st, time.Since(start))
	logger.Infow("Batch delete finished", "keys", len(keys), "failed", len(failed))
	return failed
}

func (s *ObjectServiceImpl) Stats(ctx context.Context) (domain.NodeStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.NodeStats{}, err
	}
	st, err := s.repo.Stats()
	if err != nil {
		return domain.NodeStats{}, err
	}
	metrics.SetStored(st.Objects, st.Bytes)
	return domain.NodeStats{NodeID: s.nodeID, Region: s.region, Objects: st.Objects, Bytes: st.Bytes}, nil
}

// translate maps disk errors onto the node's domain errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, diskstore.ErrNotFound):
		return domain.ErrObjectNotFound
	case errors.Is(err, diskstore.ErrInvalidKey):
		return domain.ErrInvalidKey
	case errors.Is(err, diskstore.ErrSizeMismatch):
		return domain.ErrSizeMismatch
	default:
		return err
	}
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrObjectNotFound):
		return "miss"
	default:
		return "error"
	}
}
