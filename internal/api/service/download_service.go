package service

import (
	"context"
	"errors"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/metrics"
	"github.com/anthanhphan/gosdk/logger"
)

const defaultContentType = "application/octet-stream"

// downloadService issues download grants and streams chunks back.
type downloadService struct {
	core   *TransferServiceImpl
	tokens *tokenService
}

// newDownloadService creates the download use-case service.
func newDownloadService(core *TransferServiceImpl, tokens *tokenService) *downloadService {
	return &downloadService{core: core, tokens: tokens}
}

// getFileMeta returns one grant per manifest position. Positions sharing a
// hash share a token, so clients fetch repeated chunks once.
func (s *downloadService) getFileMeta(ctx context.Context, userID, fileID string) (*domain.FileMeta, error) {
	file, err := s.core.ownedFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsFolder {
		return nil, domain.NewValidationError("fileId", "folders cannot be downloaded")
	}
	if !file.IsComplete() {
		return nil, domain.ErrFileNotReady
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = defaultContentType
	}

	byHash := make(map[string]string, len(file.ChunkHashes))
	chunks := make([]domain.ChunkGrant, 0, len(file.ChunkHashes))
	for i, h := range file.ChunkHashes {
		token, ok := byHash[h]
		if !ok {
			tok, err := s.tokens.issue(ctx, file.FileID, h, userID, domain.TokenActionDownload, mimeType)
			if err != nil {
				return nil, err
			}
			token = tok.Token
			byHash[h] = token
		}
		var size int64
		if i < len(file.ChunkSizes) {
			size = file.ChunkSizes[i]
		}
		chunks = append(chunks, domain.ChunkGrant{Hash: h, Token: token, Size: size})
	}

	logger.Infow("Download grants issued", "file_id", file.FileID, "user_id", userID, "chunks", len(chunks), "tokens", len(byHash))
	return &domain.FileMeta{Chunks: chunks, File: file, MimeType: mimeType}, nil
}

// getChunk consumes a download token and opens the chunk, optionally a byte range of it.
// A range outside the chunk is rejected before the token is spent.
func (s *downloadService) getChunk(ctx context.Context, token, fileID, hash string, rng *domain.ByteRange) (*domain.ChunkStream, error) {
	if rng != nil {
		if err := s.checkRange(ctx, fileID, hash, rng); err != nil {
			return nil, err
		}
	}
	if err := s.tokens.validate(ctx, token, fileID, hash, domain.TokenActionDownload); err != nil {
		return nil, err
	}

	file, err := s.core.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsDeleted {
		return nil, domain.ErrFileNotFound
	}
	total, ok := file.ChunkSize(hash)
	if !ok {
		return nil, domain.NewValidationError("hash", "is not part of the file manifest")
	}
	offset, length, err := rng.Resolve(total)
	if err != nil {
		return nil, err
	}

	node, store, err := s.core.storeFor(file)
	if err != nil {
		return nil, err
	}

	key := domain.ObjectKey(node.ID, fileID, hash)
	body, n, err := store.Get(ctx, key, offset, length)
	if err != nil {
		metrics.RecordChunkDownload(0, false)
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, &domain.IntegrityError{FileID: fileID, Detail: "chunk " + hash + " missing on node " + node.ID}
		}
		logger.Errorw("Chunk read failed", "file_id", fileID, "hash", hash, "node", node.ID, "error", err.Error())
		return nil, asBackendError(node.ID, "get", key, err)
	}

	contentType := file.MimeType
	if contentType == "" {
		contentType = defaultContentType
	}
	metrics.RecordChunkDownload(n, true)
	return &domain.ChunkStream{
		Body:        body,
		Offset:      offset,
		Length:      n,
		Total:       total,
		Partial:     rng != nil,
		ContentType: contentType,
	}, nil
}

// checkRange resolves rng against the manifest chunk size. Lookup problems are
// left to the checks that run after token validation.
func (s *downloadService) checkRange(ctx context.Context, fileID, hash string, rng *domain.ByteRange) error {
	file, err := s.core.files.GetFile(ctx, fileID)
	if err != nil || file.IsDeleted {
		return nil
	}
	total, ok := file.ChunkSize(hash)
	if !ok {
		return nil
	}
	_, _, err = rng.Resolve(total)
	return err
}
