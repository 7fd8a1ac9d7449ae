package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/metrics"
	"github.com/anthanhphan/go-chunk-transfer/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

// finalizeService confirms chunk presence and flips a file to complete.
type finalizeService struct {
	core *TransferServiceImpl
}

// newFinalizeService creates the finalize use-case service.
func newFinalizeService(core *TransferServiceImpl) *finalizeService {
	return &finalizeService{core: core}
}

// finalizeAttempts bounds re-verification when the manifest is replaced by a
// concurrent re-registration.
const finalizeAttempts = 3

// markComplete probes the backend for every unique chunk. Only when all are
// present does the repository transition the file and charge the owner, once.
func (s *finalizeService) markComplete(ctx context.Context, userID, fileID string) (*domain.CompleteResult, error) {
	for attempt := 1; ; attempt++ {
		res, err := s.verifyAndComplete(ctx, userID, fileID)
		if !errors.Is(err, domain.ErrManifestChanged) || attempt == finalizeAttempts {
			return res, err
		}
		metrics.RecordFinalization("manifest_changed")
		logger.Warnw("Manifest changed during finalize, re-verifying", "file_id", fileID, "attempt", attempt)
	}
}

func (s *finalizeService) verifyAndComplete(ctx context.Context, userID, fileID string) (*domain.CompleteResult, error) {
	file, err := s.core.ownedFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsFolder {
		return nil, domain.NewValidationError("fileId", "folders have no content to finalize")
	}
	if file.IsComplete() {
		return s.alreadyComplete(ctx, file)
	}

	node, store, err := s.core.storeFor(file)
	if err != nil {
		return nil, err
	}

	unique := file.UniqueHashes()
	present := make([]bool, len(unique))
	err = resilience.ForEach(ctx, s.core.verifyParallelism(), len(unique), func(ctx context.Context, i int) error {
		key := domain.ObjectKey(node.ID, file.FileID, unique[i])
		ok, err := store.Head(ctx, key)
		if err != nil {
			return asBackendError(node.ID, "head", key, err)
		}
		present[i] = ok
		return nil
	})
	if err != nil {
		metrics.RecordFinalization("backend_error")
		logger.Errorw("Finalize verification failed", "file_id", fileID, "node", node.ID, "error", err.Error())
		return nil, err
	}

	records := make([]domain.ChunkRecord, 0, len(unique))
	missing := make([]string, 0)
	for i, h := range unique {
		if !present[i] {
			missing = append(missing, h)
			continue
		}
		size, _ := file.ChunkSize(h)
		records = append(records, domain.ChunkRecord{FileID: file.FileID, Hash: h, Size: size})
	}

	if len(records) > 0 {
		if err := s.core.files.RecordChunks(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to record chunks: %w", err)
		}
	}

	if len(missing) > 0 {
		metrics.RecordFinalization("incomplete")
		logger.Infow("Finalize incomplete", "file_id", fileID, "missing", len(missing), "present", len(records))
		return nil, &domain.IncompleteTransferError{FileID: file.FileID, MissingHashes: missing}
	}

	transitioned, used, err := s.core.files.CompleteFile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to complete file: %w", err)
	}
	if !transitioned {
		// A concurrent finalization won the conditional update.
		metrics.RecordFinalization("already_complete")
		return &domain.CompleteResult{FileID: file.FileID, Used: used, AlreadyComplete: true}, nil
	}

	metrics.RecordFinalization("complete")
	logger.Infow("File completed", "file_id", file.FileID, "user_id", userID, "size_bytes", file.FileSize, "used", used)
	return &domain.CompleteResult{FileID: file.FileID, Used: used}, nil
}

func (s *finalizeService) alreadyComplete(ctx context.Context, file *domain.File) (*domain.CompleteResult, error) {
	used, err := s.core.usage.GetUsage(ctx, file.OwnerID)
	if err != nil {
		return nil, err
	}
	metrics.RecordFinalization("already_complete")
	return &domain.CompleteResult{FileID: file.FileID, Used: used, AlreadyComplete: true}, nil
}
