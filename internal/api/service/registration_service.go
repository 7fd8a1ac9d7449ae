package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/metrics"
	"github.com/anthanhphan/gosdk/logger"
)

// registrationService turns a chunk manifest into a File record and upload grants.
type registrationService struct {
	core   *TransferServiceImpl
	tokens *tokenService
}

// manifest is a validated registration request.
type manifest struct {
	hashes []string
	sizes  []int64
	unique []string
	sizeOf map[string]int64
}

// newRegistrationService creates the registration use-case service.
func newRegistrationService(core *TransferServiceImpl, tokens *tokenService) *registrationService {
	return &registrationService{core: core, tokens: tokens}
}

// register partitions the manifest into existing and missing chunks and issues
// upload tokens for the missing ones.
func (s *registrationService) register(ctx context.Context, userID string, req *domain.RegisterRequest) (*domain.RegisterResult, error) {
	if userID == "" {
		return nil, domain.NewValidationError("userId", "caller identity is required")
	}
	if req == nil {
		return nil, domain.NewValidationError("body", "manifest is required")
	}

	m, err := s.validateManifest(req)
	if err != nil {
		metrics.RecordRegistration("invalid", 0)
		return nil, err
	}
	if err := s.checkParent(ctx, userID, req.ParentID); err != nil {
		return nil, err
	}

	file, err := s.resolveContext(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	existing, missing, err := s.partition(ctx, file, m)
	if err != nil {
		return nil, err
	}

	// A complete file whose manifest changed is a new version with nothing to reuse.
	if file != nil && file.IsComplete() && !sameManifest(file, m) {
		file = nil
		existing, missing = []string{}, m.unique
	}

	if file != nil && file.IsComplete() && len(missing) == 0 {
		metrics.RecordRegistration("duplicate", len(existing))
		logger.Infow("Registration duplicate", "file_id", file.FileID, "user_id", userID, "chunks", len(m.unique))
		return &domain.RegisterResult{
			FileID:         file.FileID,
			ExistingChunks: existing,
			MissingChunks:  []string{},
			UploadChunks:   []domain.ChunkGrant{},
			File:           file,
			Duplicate:      true,
			ChunkSize:      s.core.chunkSize(),
		}, nil
	}

	if file == nil {
		file, err = s.createFile(ctx, userID, req, m)
	} else {
		err = s.reuseFile(ctx, file, req, m)
	}
	if err != nil {
		return nil, err
	}

	grants := make([]domain.ChunkGrant, 0, len(missing))
	for _, h := range missing {
		tok, err := s.tokens.issue(ctx, file.FileID, h, userID, domain.TokenActionUpload, req.MimeType)
		if err != nil {
			return nil, err
		}
		grants = append(grants, domain.ChunkGrant{Hash: h, Token: tok.Token, Size: m.sizeOf[h]})
	}

	if file.Status == domain.FileStatusRegistering {
		file.Status = domain.FileStatusIncomplete
		file.UpdatedAt = s.core.now()
		if err := s.core.files.UpdateFile(ctx, file); err != nil {
			return nil, fmt.Errorf("failed to mark file incomplete: %w", err)
		}
	}

	outcome := "partial"
	if len(existing) == 0 {
		outcome = "new"
	}
	metrics.RecordRegistration(outcome, len(existing))
	logger.Infow("Registration accepted",
		"file_id", file.FileID,
		"user_id", userID,
		"node", file.StorageNode,
		"existing", len(existing),
		"missing", len(missing))

	return &domain.RegisterResult{
		FileID:         file.FileID,
		ExistingChunks: existing,
		MissingChunks:  missing,
		UploadChunks:   grants,
		File:           file,
		Duplicate:      len(missing) == 0,
		ChunkSize:      s.core.chunkSize(),
	}, nil
}

// validateManifest checks the request shape. It has no side effects.
func (s *registrationService) validateManifest(req *domain.RegisterRequest) (*manifest, error) {
	name := strings.TrimSpace(req.FileName)
	if name == "" {
		return nil, domain.NewValidationError("fileName", "is required")
	}
	if strings.ContainsAny(name, "/\x00") {
		return nil, domain.NewValidationError("fileName", "must not contain '/' or NUL")
	}
	n := len(req.ChunkHashes)
	if n == 0 {
		return nil, domain.NewValidationError("chunkHashes", "must not be empty")
	}
	if req.FileSize <= 0 {
		return nil, domain.NewValidationError("fileSize", "must be positive")
	}
	if max := s.core.cfg.App.MaxFileSize; max > 0 && req.FileSize > max {
		return nil, domain.NewValidationError("fileSize", fmt.Sprintf("exceeds limit of %d bytes", max))
	}
	for i, h := range req.ChunkHashes {
		if !domain.IsValidHash(h) {
			return nil, domain.NewValidationError("chunkHashes", fmt.Sprintf("entry %d is not a lowercase hex sha-256", i))
		}
	}

	chunkSize := s.core.chunkSize()
	sizes := req.ChunkSizes
	if len(sizes) == 0 {
		last := req.FileSize - int64(n-1)*chunkSize
		if last <= 0 || last > chunkSize {
			return nil, domain.NewValidationError("fileSize", fmt.Sprintf("%d bytes cannot be split into %d chunks of %d", req.FileSize, n, chunkSize))
		}
		sizes = make([]int64, n)
		for i := range sizes {
			sizes[i] = chunkSize
		}
		sizes[n-1] = last
	} else {
		if len(sizes) != n {
			return nil, domain.NewValidationError("chunkSizes", "length must match chunkHashes")
		}
		var total int64
		for i, sz := range sizes {
			if sz <= 0 || sz > chunkSize {
				return nil, domain.NewValidationError("chunkSizes", fmt.Sprintf("entry %d out of range (0, %d]", i, chunkSize))
			}
			if i < n-1 && sz != chunkSize {
				return nil, domain.NewValidationError("chunkSizes", fmt.Sprintf("entry %d must equal chunk size %d", i, chunkSize))
			}
			total += sz
		}
		if total != req.FileSize {
			return nil, domain.NewValidationError("fileSize", fmt.Sprintf("is %d but chunk sizes sum to %d", req.FileSize, total))
		}
	}

	sizeOf := make(map[string]int64, n)
	for i, h := range req.ChunkHashes {
		if prev, ok := sizeOf[h]; ok && prev != sizes[i] {
			return nil, domain.NewValidationError("chunkSizes", "same hash declared with different sizes")
		}
		sizeOf[h] = sizes[i]
	}

	return &manifest{
		hashes: append([]string(nil), req.ChunkHashes...),
		sizes:  append([]int64(nil), sizes...),
		unique: domain.UniqueHashes(req.ChunkHashes),
		sizeOf: sizeOf,
	}, nil
}

// checkParent verifies that a requested parent is a live folder owned by the caller.
func (s *registrationService) checkParent(ctx context.Context, userID string, parentID *string) error {
	if parentID == nil {
		return nil
	}
	parent, err := s.core.ownedFile(ctx, userID, *parentID)
	if err != nil {
		return err
	}
	if !parent.IsFolder {
		return domain.NewValidationError("parentId", "is not a folder")
	}
	return nil
}

// resolveContext finds the file a manifest belongs to, or nil for a new file.
func (s *registrationService) resolveContext(ctx context.Context, userID string, req *domain.RegisterRequest) (*domain.File, error) {
	var (
		file *domain.File
		err  error
	)
	if req.FileID != "" {
		file, err = s.core.ownedFile(ctx, userID, req.FileID)
	} else {
		file, err = s.core.files.FindByName(ctx, userID, req.ParentID, strings.TrimSpace(req.FileName))
		if errors.Is(err, domain.ErrFileNotFound) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if file.IsFolder {
		return nil, domain.NewValidationError("fileName", "is already used by a folder")
	}
	return file, nil
}

// partition splits the unique manifest hashes by whether the file already holds them.
func (s *registrationService) partition(ctx context.Context, file *domain.File, m *manifest) ([]string, []string, error) {
	existing := []string{}
	if file == nil {
		return existing, m.unique, nil
	}

	present, err := s.core.files.ChunkHashes(ctx, file.FileID, m.unique)
	if err != nil {
		return nil, nil, fmt.Errorf("chunk lookup failed: %w", err)
	}
	missing := make([]string, 0, len(m.unique))
	for _, h := range m.unique {
		if _, ok := present[h]; ok {
			existing = append(existing, h)
		} else {
			missing = append(missing, h)
		}
	}
	return existing, missing, nil
}

// createFile selects a node and inserts a new record. Node selection happens
// before any write so an empty node set leaves nothing behind.
func (s *registrationService) createFile(ctx context.Context, userID string, req *domain.RegisterRequest, m *manifest) (*domain.File, error) {
	node, err := s.core.registry.SelectStorageNode(ctx)
	if err != nil {
		metrics.RecordRegistration("no_node", 0)
		logger.Warnw("Registration rejected, no storage node", "user_id", userID, "error", err.Error())
		return nil, err
	}

	fileID, err := s.core.idGen.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate file id: %w", err)
	}

	now := s.core.now()
	file := &domain.File{
		FileID:      fileID,
		ParentID:    req.ParentID,
		OwnerID:     userID,
		FileName:    strings.TrimSpace(req.FileName),
		FileSize:    req.FileSize,
		MimeType:    req.MimeType,
		ChunkHashes: m.hashes,
		ChunkSizes:  m.sizes,
		Status:      domain.FileStatusRegistering,
		StorageNode: node.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.core.files.CreateFile(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}
	return file, nil
}

// reuseFile points an unfinished registration at the new manifest. Its node is kept.
func (s *registrationService) reuseFile(ctx context.Context, file *domain.File, req *domain.RegisterRequest, m *manifest) error {
	if _, ok := s.core.registry.GetStorageNodeByID(file.StorageNode); !ok {
		return &domain.IntegrityError{FileID: file.FileID, Detail: "unknown storage node " + file.StorageNode}
	}
	if sameManifest(file, m) && file.FileSize == req.FileSize && (req.MimeType == "" || req.MimeType == file.MimeType) {
		return nil
	}

	file.ChunkHashes = m.hashes
	file.ChunkSizes = m.sizes
	file.FileSize = req.FileSize
	if req.MimeType != "" {
		file.MimeType = req.MimeType
	}
	file.UpdatedAt = s.core.now()
	if err := s.core.files.UpdateFile(ctx, file); err != nil {
		return fmt.Errorf("failed to update file record: %w", err)
	}
	return nil
}

func sameManifest(file *domain.File, m *manifest) bool {
	if len(file.ChunkHashes) != len(m.hashes) {
		return false
	}
	for i := range m.hashes {
		if file.ChunkHashes[i] != m.hashes[i] {
			return false
		}
	}
	return true
}
