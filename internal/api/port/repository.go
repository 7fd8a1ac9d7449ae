package port

import (
	"context"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
)

//go:generate mockgen -destination=../service/mocks/repository_mock.go -package=mocks -source=repository.go

// FileRepository persists File records and the per-file chunk bookkeeping used for dedup.
type FileRepository interface {
	// CreateFile inserts a new file record.
	CreateFile(ctx context.Context, file *domain.File) error

	// UpdateFile replaces the mutable fields of an existing file record.
	UpdateFile(ctx context.Context, file *domain.File) error

	// GetFile returns domain.ErrFileNotFound when the id is unknown.
	GetFile(ctx context.Context, fileID string) (*domain.File, error)

	// FindByName looks up the caller's non-deleted file with the same parent and name.
	FindByName(ctx context.Context, ownerID string, parentID *string, fileName string) (*domain.File, error)

	// ListChildren returns direct children of parentID, including trashed ones.
	ListChildren(ctx context.Context, ownerID, parentID string) ([]*domain.File, error)

	// ListTrashed returns the caller's trashed files deleted before the cutoff.
	ListTrashed(ctx context.Context, ownerID string, deletedBefore time.Time) ([]*domain.File, error)

	// SetDeleted flips the soft-delete flag of the given files.
	SetDeleted(ctx context.Context, fileIDs []string, deleted bool, at time.Time) error

	// ChunkHashes returns the subset of hashes recorded as present for the file.
	ChunkHashes(ctx context.Context, fileID string, hashes []string) (map[string]struct{}, error)

	// RecordChunks marks chunks as physically present. Re-recording is a no-op.
	RecordChunks(ctx context.Context, records []domain.ChunkRecord) error

	// CompleteFile performs the conditional incomplete to complete transition and
	// adds fileSize to the owner's usage in one atomic step. The stored manifest
	// (chunk hashes and storage node) must still match verified, otherwise
	// domain.ErrManifestChanged is returned. It reports whether the transition
	// happened and the owner's resulting usage.
	CompleteFile(ctx context.Context, verified *domain.File) (bool, int64, error)

	// DeleteFile removes the file record and its chunk records. When the file was
	// complete, the owner's usage is decremented by its size.
	DeleteFile(ctx context.Context, fileID string) error
}

// UsageRepository reads per-user storage accounting.
type UsageRepository interface {
	GetUsage(ctx context.Context, userID string) (int64, error)
}

// TokenRepository stores transfer tokens with atomic single-use consumption.
type TokenRepository interface {
	// FindLive returns a non-expired token for the scope, or nil when there is none.
	FindLive(ctx context.Context, scope domain.TokenScope, now time.Time) (*domain.Token, error)

	// Save persists the token, replacing any token occupying the same scope.
	Save(ctx context.Context, token *domain.Token) error

	// Refresh moves the expiry of an existing token.
	Refresh(ctx context.Context, token string, expiresAt time.Time) error

	// Consume atomically checks and deletes the token. It deletes only when
	// the token matches (fileID, hash, action) and is not expired at now.
	Consume(ctx context.Context, token, fileID, hash string, action domain.TokenAction, now time.Time) (ConsumeResult, error)
}

// ConsumeResult is the outcome of an atomic token consumption.
type ConsumeResult int

const (
	ConsumeInvalid ConsumeResult = iota
	ConsumeExpired
	ConsumeOK
)

// LoadCounter tracks advisory per-node placement load.
type LoadCounter interface {
	Incr(ctx context.Context, nodeID string) (int64, error)
	Loads(ctx context.Context, nodeIDs []string) (map[string]int64, error)
}
