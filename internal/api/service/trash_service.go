package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/gosdk/logger"
)

// trashService walks folder hierarchies on metadata only. Physical deletion is
// delegated to deleteService.
type trashService struct {
	core     *TransferServiceImpl
	deletion *deleteService
}

// newTrashService creates the trash use-case service.
func newTrashService(core *TransferServiceImpl, deletion *deleteService) *trashService {
	return &trashService{core: core, deletion: deletion}
}

// createFolder inserts an empty folder record.
func (s *trashService) createFolder(ctx context.Context, userID string, parentID *string, name string) (*domain.File, error) {
	if userID == "" {
		return nil, domain.NewValidationError("userId", "caller identity is required")
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return nil, domain.NewValidationError("name", "must be a non-empty name without '/'")
	}
	if parentID != nil {
		parent, err := s.core.ownedFile(ctx, userID, *parentID)
		if err != nil {
			return nil, err
		}
		if !parent.IsFolder {
			return nil, domain.NewValidationError("parentId", "is not a folder")
		}
	}

	if _, err := s.core.files.FindByName(ctx, userID, parentID, name); err == nil {
		return nil, domain.NewValidationError("name", "already exists in this folder")
	} else if !errors.Is(err, domain.ErrFileNotFound) {
		return nil, err
	}

	id, err := s.core.idGen.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate folder id: %w", err)
	}
	now := s.core.now()
	folder := &domain.File{
		FileID:      id,
		ParentID:    parentID,
		OwnerID:     userID,
		FileName:    name,
		IsFolder:    true,
		ChunkHashes: []string{},
		ChunkSizes:  []int64{},
		Status:      domain.FileStatusComplete,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.core.files.CreateFile(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	logger.Infow("Folder created", "file_id", id, "user_id", userID, "name", name)
	return folder, nil
}

// trash soft-deletes the file and, for folders, everything below it.
func (s *trashService) trash(ctx context.Context, userID, fileID string) ([]string, error) {
	root, err := s.core.ownedFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	subtree, err := s.collect(ctx, userID, root, func(f *domain.File) bool { return !f.IsDeleted })
	if err != nil {
		return nil, err
	}

	ids := fileIDs(subtree)
	if err := s.core.files.SetDeleted(ctx, ids, true, s.core.now()); err != nil {
		return nil, fmt.Errorf("failed to trash files: %w", err)
	}
	logger.Infow("Trashed", "root", fileID, "user_id", userID, "count", len(ids))
	return ids, nil
}

// restore undoes trash for the subtree. When the original parent is gone or
// still trashed, the root is moved to the top level.
func (s *trashService) restore(ctx context.Context, userID, fileID string) ([]string, error) {
	if userID == "" {
		return nil, domain.NewValidationError("userId", "caller identity is required")
	}
	root, err := s.core.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if root.OwnerID != userID {
		return nil, domain.ErrForbidden
	}
	if !root.IsDeleted {
		return []string{}, nil
	}

	if root.ParentID != nil && !s.parentIsLive(ctx, userID, *root.ParentID) {
		root.ParentID = nil
		root.UpdatedAt = s.core.now()
		if err := s.core.files.UpdateFile(ctx, root); err != nil {
			return nil, fmt.Errorf("failed to detach restored file: %w", err)
		}
	}

	subtree, err := s.collect(ctx, userID, root, func(f *domain.File) bool { return f.IsDeleted })
	if err != nil {
		return nil, err
	}
	ids := fileIDs(subtree)
	if err := s.core.files.SetDeleted(ctx, ids, false, time.Time{}); err != nil {
		return nil, fmt.Errorf("failed to restore files: %w", err)
	}
	logger.Infow("Restored", "root", fileID, "user_id", userID, "count", len(ids))
	return ids, nil
}

// purge physically deletes trashed files whose deletion is older than olderThan.
func (s *trashService) purge(ctx context.Context, userID string, olderThan time.Duration) (*domain.DeleteReport, error) {
	if userID == "" {
		return nil, domain.NewValidationError("userId", "caller identity is required")
	}
	if olderThan < 0 {
		return nil, domain.NewValidationError("olderThan", "must not be negative")
	}
	trashed, err := s.core.files.ListTrashed(ctx, userID, s.core.now().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	if len(trashed) == 0 {
		return &domain.DeleteReport{Deleted: []string{}, Failed: []domain.NodeFailure{}, NotFound: []string{}}, nil
	}
	return s.deletion.deleteFiles(ctx, userID, fileIDs(trashed))
}

// collect walks the subtree below root breadth first, keeping nodes accepted by
// include. Each id is visited once so corrupted parent links cannot loop.
func (s *trashService) collect(ctx context.Context, userID string, root *domain.File, include func(*domain.File) bool) ([]*domain.File, error) {
	visited := map[string]bool{root.FileID: true}
	out := []*domain.File{root}
	queue := []*domain.File{root}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if !current.IsFolder {
			continue
		}
		children, err := s.core.files.ListChildren(ctx, userID, current.FileID)
		if err != nil {
			return nil, fmt.Errorf("failed to list children of %s: %w", current.FileID, err)
		}
		for _, c := range children {
			if visited[c.FileID] {
				continue
			}
			visited[c.FileID] = true
			if !include(c) {
				continue
			}
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out, nil
}

func (s *trashService) parentIsLive(ctx context.Context, userID, parentID string) bool {
	parent, err := s.core.files.GetFile(ctx, parentID)
	if err != nil {
		return false
	}
	return parent.OwnerID == userID && !parent.IsDeleted && parent.IsFolder
}

func fileIDs(files []*domain.File) []string {
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.FileID
	}
	return ids
}
