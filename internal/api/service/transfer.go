package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
)

//go:generate mockgen -destination=mocks/dependencies_mock.go -package=mocks -source=transfer.go

// IDGenerator defines ID generation capability.
type IDGenerator interface {
	NextID() (string, error)
}

// Dependencies are the outbound adapters the transfer engine runs on.
type Dependencies struct {
	Files    port.FileRepository
	Usage    port.UsageRepository
	Tokens   port.TokenRepository
	Stores   port.ObjectStoreProvider
	Registry *NodeRegistry
	IDGen    IDGenerator
}

// TransferServiceImpl is the facade that wires use-case services for chunk transfer.
type TransferServiceImpl struct {
	cfg      *config.Config
	files    port.FileRepository
	usage    port.UsageRepository
	stores   port.ObjectStoreProvider
	registry *NodeRegistry
	idGen    IDGenerator
	pool     *sync.Pool
	now      func() time.Time

	tokens       *tokenService
	registration *registrationService
	upload       *uploadService
	finalize     *finalizeService
	download     *downloadService
	deletion     *deleteService
	trash        *trashService
}

// Ensure TransferServiceImpl implements the inbound ports.
var (
	_ port.TransferService = (*TransferServiceImpl)(nil)
	_ port.TrashService    = (*TransferServiceImpl)(nil)
)

// NewTransferService builds the transfer facade and all use-case services.
func NewTransferService(cfg *config.Config, deps Dependencies) *TransferServiceImpl {
	chunkSize := cfg.App.EffectiveChunkSize()
	svc := &TransferServiceImpl{
		cfg:      cfg,
		files:    deps.Files,
		usage:    deps.Usage,
		stores:   deps.Stores,
		registry: deps.Registry,
		idGen:    deps.IDGen,
		now:      time.Now,
		pool: &sync.Pool{
			New: func() interface{} {
				// One extra byte detects bodies longer than the chunk.
				b := make([]byte, chunkSize+1)
				return &b
			},
		},
	}

	svc.tokens = newTokenService(svc, deps.Tokens, cfg.App.TokenTTL())
	svc.registration = newRegistrationService(svc, svc.tokens)
	svc.upload = newUploadService(svc, svc.tokens)
	svc.finalize = newFinalizeService(svc)
	svc.download = newDownloadService(svc, svc.tokens)
	svc.deletion = newDeleteService(svc)
	svc.trash = newTrashService(svc, svc.deletion)

	return svc
}

// Register delegates manifest registration to the registration use-case service.
func (s *TransferServiceImpl) Register(ctx context.Context, userID string, req *domain.RegisterRequest) (*domain.RegisterResult, error) {
	return s.registration.register(ctx, userID, req)
}

// UploadChunk delegates a single chunk write to the upload use-case service.
func (s *TransferServiceImpl) UploadChunk(ctx context.Context, token, fileID, hash string, body io.Reader) error {
	return s.upload.uploadChunk(ctx, token, fileID, hash, body)
}

// MarkComplete delegates finalization to the finalize use-case service.
func (s *TransferServiceImpl) MarkComplete(ctx context.Context, userID, fileID string) (*domain.CompleteResult, error) {
	return s.finalize.markComplete(ctx, userID, fileID)
}

// GetFileMeta delegates download grant issuance to the download use-case service.
func (s *TransferServiceImpl) GetFileMeta(ctx context.Context, userID, fileID string) (*domain.FileMeta, error) {
	return s.download.getFileMeta(ctx, userID, fileID)
}

// GetChunk delegates chunk streaming to the download use-case service.
func (s *TransferServiceImpl) GetChunk(ctx context.Context, token, fileID, hash string, rng *domain.ByteRange) (*domain.ChunkStream, error) {
	return s.download.getChunk(ctx, token, fileID, hash, rng)
}

// DeleteFile removes one file and reports ErrFileNotFound when it does not exist.
func (s *TransferServiceImpl) DeleteFile(ctx context.Context, userID, fileID string) (*domain.DeleteReport, error) {
	report, err := s.deletion.deleteFiles(ctx, userID, []string{fileID})
	if err != nil {
		return nil, err
	}
	if len(report.NotFound) > 0 {
		return report, domain.ErrFileNotFound
	}
	return report, nil
}

// DeleteFiles delegates batched deletion to the delete use-case service.
func (s *TransferServiceImpl) DeleteFiles(ctx context.Context, userID string, fileIDs []string) (*domain.DeleteReport, error) {
	return s.deletion.deleteFiles(ctx, userID, fileIDs)
}

// GetUsage returns the caller's storage usage.
func (s *TransferServiceImpl) GetUsage(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.NewValidationError("userId", "caller identity is required")
	}
	return s.usage.GetUsage(ctx, userID)
}

// ListNodes returns the registry view including runtime load.
func (s *TransferServiceImpl) ListNodes(ctx context.Context) []domain.StorageNode {
	return s.registry.ListNodes(ctx)
}

// CreateFolder delegates to the trash use-case service.
func (s *TransferServiceImpl) CreateFolder(ctx context.Context, userID string, parentID *string, name string) (*domain.File, error) {
	return s.trash.createFolder(ctx, userID, parentID, name)
}

// Trash soft-deletes a file or folder subtree.
func (s *TransferServiceImpl) Trash(ctx context.Context, userID, fileID string) ([]string, error) {
	return s.trash.trash(ctx, userID, fileID)
}

// Restore undoes Trash for a subtree.
func (s *TransferServiceImpl) Restore(ctx context.Context, userID, fileID string) ([]string, error) {
	return s.trash.restore(ctx, userID, fileID)
}

// PurgeTrash physically deletes trashed files older than olderThan.
func (s *TransferServiceImpl) PurgeTrash(ctx context.Context, userID string, olderThan time.Duration) (*domain.DeleteReport, error) {
	return s.trash.purge(ctx, userID, olderThan)
}

// chunkSize returns the fixed chunk size with the codec default as fallback.
func (s *TransferServiceImpl) chunkSize() int64 {
	return s.cfg.App.EffectiveChunkSize()
}

// verifyParallelism bounds concurrent HEAD probes during finalization.
func (s *TransferServiceImpl) verifyParallelism() int {
	if s.cfg.App.VerifyParallelism > 0 {
		return s.cfg.App.VerifyParallelism
	}
	return 8
}

// ownedFile loads a live file and enforces ownership.
func (s *TransferServiceImpl) ownedFile(ctx context.Context, userID, fileID string) (*domain.File, error) {
	if userID == "" {
		return nil, domain.NewValidationError("userId", "caller identity is required")
	}
	if fileID == "" {
		return nil, domain.NewValidationError("fileId", "is required")
	}
	file, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != userID {
		return nil, domain.ErrForbidden
	}
	if file.IsDeleted {
		return nil, domain.ErrFileNotFound
	}
	return file, nil
}

// storeFor resolves the node and object store holding a file's chunks.
// A file pointing at an unknown node is a data integrity violation.
func (s *TransferServiceImpl) storeFor(file *domain.File) (domain.StorageNode, port.ObjectStore, error) {
	node, ok := s.registry.GetStorageNodeByID(file.StorageNode)
	if !ok {
		return domain.StorageNode{}, nil, &domain.IntegrityError{
			FileID: file.FileID,
			Detail: "unknown storage node " + file.StorageNode,
		}
	}
	store, err := s.stores.Store(node)
	if err != nil {
		return node, nil, &domain.BackendIOError{NodeID: node.ID, Op: "connect", Err: err}
	}
	return node, store, nil
}
