package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/metrics"
	"github.com/anthanhphan/gosdk/logger"
)

// uploadService writes single chunk bodies against upload tokens.
type uploadService struct {
	core   *TransferServiceImpl
	tokens *tokenService
}

// newUploadService creates the upload use-case service.
func newUploadService(core *TransferServiceImpl, tokens *tokenService) *uploadService {
	return &uploadService{core: core, tokens: tokens}
}

// uploadChunk consumes the token, verifies the body hash and writes the object.
// Completion is not tracked here; finalization re-checks the backend.
func (s *uploadService) uploadChunk(ctx context.Context, token, fileID, hash string, body io.Reader) error {
	if err := s.tokens.validate(ctx, token, fileID, hash, domain.TokenActionUpload); err != nil {
		return err
	}

	file, err := s.core.files.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if file.IsDeleted {
		return domain.ErrFileNotFound
	}
	size, ok := file.ChunkSize(hash)
	if !ok {
		return domain.NewValidationError("hash", "is not part of the file manifest")
	}

	node, store, err := s.core.storeFor(file)
	if err != nil {
		return err
	}

	buf := s.core.pool.Get().(*[]byte)
	defer s.core.pool.Put(buf)

	data, err := readChunkBody(body, *buf, size)
	if err != nil {
		metrics.RecordChunkUpload(0, false)
		return err
	}
	if got := sha256Hex(data); got != hash {
		metrics.RecordChunkUpload(0, false)
		logger.Warnw("Chunk hash mismatch", "file_id", fileID, "hash", hash, "actual", got)
		return &domain.ChecksumMismatchError{Expected: hash, Actual: got}
	}

	key := domain.ObjectKey(node.ID, fileID, hash)
	if err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		metrics.RecordChunkUpload(0, false)
		logger.Errorw("Chunk write failed", "file_id", fileID, "hash", hash, "node", node.ID, "error", err.Error())
		return asBackendError(node.ID, "put", key, err)
	}

	metrics.RecordChunkUpload(int64(len(data)), true)
	logger.Debugw("Chunk stored", "file_id", fileID, "hash", hash, "node", node.ID, "size", len(data))
	return nil
}

// readChunkBody reads exactly size bytes into buf. Shorter or longer bodies are rejected.
func readChunkBody(body io.Reader, buf []byte, size int64) ([]byte, error) {
	if body == nil {
		return nil, domain.NewValidationError("body", "is required")
	}
	if size+1 > int64(len(buf)) {
		return nil, domain.NewValidationError("body", fmt.Sprintf("chunk of %d bytes exceeds buffer", size))
	}

	n, err := io.ReadFull(body, buf[:size+1])
	switch {
	case err == nil:
		return nil, domain.NewValidationError("body", fmt.Sprintf("longer than declared chunk size %d", size))
	case errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF):
		if int64(n) != size {
			return nil, domain.NewValidationError("body", fmt.Sprintf("got %d bytes, want %d", n, size))
		}
		return buf[:n], nil
	default:
		return nil, fmt.Errorf("read chunk body: %w", err)
	}
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// asBackendError wraps err as a BackendIOError unless it already is one.
func asBackendError(nodeID, op, key string, err error) error {
	var ioErr *domain.BackendIOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &domain.BackendIOError{NodeID: nodeID, Op: op, Key: key, Err: err}
}
