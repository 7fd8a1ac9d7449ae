package port

import (
	"context"
	"io"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
)

// TransferService defines the chunked transfer protocol.
type TransferService interface {
	// Register accepts a manifest and returns upload grants for the chunks still missing.
	Register(ctx context.Context, userID string, req *domain.RegisterRequest) (*domain.RegisterResult, error)

	// UploadChunk consumes an upload token and writes one chunk body.
	UploadChunk(ctx context.Context, token, fileID, hash string, body io.Reader) error

	// MarkComplete verifies every chunk is present and finalizes the file.
	MarkComplete(ctx context.Context, userID, fileID string) (*domain.CompleteResult, error)

	// GetFileMeta issues download grants for a complete file.
	GetFileMeta(ctx context.Context, userID, fileID string) (*domain.FileMeta, error)

	// GetChunk consumes a download token and opens the chunk body.
	GetChunk(ctx context.Context, token, fileID, hash string, rng *domain.ByteRange) (*domain.ChunkStream, error)

	// DeleteFile physically removes one file.
	DeleteFile(ctx context.Context, userID, fileID string) (*domain.DeleteReport, error)

	// DeleteFiles physically removes files, batching deletes per storage node.
	DeleteFiles(ctx context.Context, userID string, fileIDs []string) (*domain.DeleteReport, error)

	// GetUsage returns the caller's storage usage in bytes.
	GetUsage(ctx context.Context, userID string) (int64, error)

	// ListNodes returns the registry view of all storage nodes.
	ListNodes(ctx context.Context) []domain.StorageNode
}

// TrashService manages folder hierarchy soft-deletion on top of TransferService.
type TrashService interface {
	CreateFolder(ctx context.Context, userID string, parentID *string, name string) (*domain.File, error)
	Trash(ctx context.Context, userID, fileID string) ([]string, error)
	Restore(ctx context.Context, userID, fileID string) ([]string, error)
	PurgeTrash(ctx context.Context, userID string, olderThan time.Duration) (*domain.DeleteReport, error)
}
