package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/metrics"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/anthanhphan/go-chunk-transfer/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

// nodeDeleteParallelism bounds concurrent per-node batch deletes.
const nodeDeleteParallelism = 4

// deleteService removes files physically, one batch call per storage node.
type deleteService struct {
	core *TransferServiceImpl
}

// nodeGroup is the set of files whose chunks live on one node.
type nodeGroup struct {
	nodeID string
	files  []*domain.File
}

// newDeleteService creates the delete use-case service.
func newDeleteService(core *TransferServiceImpl) *deleteService {
	return &deleteService{core: core}
}

// deleteFiles authorizes every id first, then deletes objects grouped by node.
// A failing node never aborts the others; its files keep their metadata so the
// delete can be retried.
func (s *deleteService) deleteFiles(ctx context.Context, userID string, fileIDs []string) (*domain.DeleteReport, error) {
	if userID == "" {
		return nil, domain.NewValidationError("userId", "caller identity is required")
	}
	if len(fileIDs) == 0 {
		return nil, domain.NewValidationError("fileIds", "must not be empty")
	}

	report := &domain.DeleteReport{Deleted: []string{}, Failed: []domain.NodeFailure{}, NotFound: []string{}}
	groups := make(map[string]*nodeGroup)
	var folders []*domain.File

	seen := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		file, err := s.core.files.GetFile(ctx, id)
		if errors.Is(err, domain.ErrFileNotFound) {
			report.NotFound = append(report.NotFound, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if file.OwnerID != userID {
			return nil, domain.ErrForbidden
		}
		if file.IsFolder || file.StorageNode == "" {
			folders = append(folders, file)
			continue
		}
		g, ok := groups[file.StorageNode]
		if !ok {
			g = &nodeGroup{nodeID: file.StorageNode}
			groups[file.StorageNode] = g
		}
		g.files = append(g.files, file)
	}

	ordered := make([]*nodeGroup, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].nodeID < ordered[j].nodeID })

	var mu sync.Mutex
	err := resilience.ForEach(ctx, nodeDeleteParallelism, len(ordered), func(ctx context.Context, i int) error {
		deleted, failure := s.deleteGroup(ctx, ordered[i])
		mu.Lock()
		defer mu.Unlock()
		report.Deleted = append(report.Deleted, deleted...)
		if failure != nil {
			report.Failed = append(report.Failed, *failure)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, f := range folders {
		if err := s.core.files.DeleteFile(ctx, f.FileID); err != nil {
			report.Failed = append(report.Failed, domain.NodeFailure{FileIDs: []string{f.FileID}, Error: err.Error()})
			continue
		}
		report.Deleted = append(report.Deleted, f.FileID)
	}

	sort.Strings(report.Deleted)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].NodeID < report.Failed[j].NodeID })

	logger.Infow("Delete finished",
		"user_id", userID,
		"deleted", len(report.Deleted),
		"failed_nodes", len(report.Failed),
		"not_found", len(report.NotFound))
	return report, nil
}

// deleteGroup issues one batch delete for the node and drops metadata of the
// files whose objects are all gone.
func (s *deleteService) deleteGroup(ctx context.Context, g *nodeGroup) ([]string, *domain.NodeFailure) {
	ids := make([]string, len(g.files))
	for i, f := range g.files {
		ids[i] = f.FileID
	}

	node, ok := s.core.registry.GetStorageNodeByID(g.nodeID)
	if !ok {
		return nil, s.nodeFailure(g.nodeID, ids, "unknown storage node")
	}
	store, err := s.core.stores.Store(node)
	if err != nil {
		return nil, s.nodeFailure(g.nodeID, ids, err.Error())
	}

	keyOwner := make(map[string]string)
	keys := make([]string, 0)
	for _, f := range g.files {
		for _, h := range f.UniqueHashes() {
			key := domain.ObjectKey(node.ID, f.FileID, h)
			keyOwner[key] = f.FileID
			keys = append(keys, key)
		}
	}

	failedFiles := make(map[string]bool)
	if err := store.DeleteBatch(ctx, keys); err != nil {
		var batchErr *port.BatchDeleteError
		if !errors.As(err, &batchErr) {
			return nil, s.nodeFailure(g.nodeID, ids, err.Error())
		}
		for key := range batchErr.Failed {
			failedFiles[keyOwner[key]] = true
		}
	}

	var deleted, failed []string
	var lastErr string
	for _, f := range g.files {
		if failedFiles[f.FileID] {
			failed = append(failed, f.FileID)
			lastErr = "object delete failed"
			continue
		}
		if err := s.core.files.DeleteFile(ctx, f.FileID); err != nil {
			failed = append(failed, f.FileID)
			lastErr = err.Error()
			continue
		}
		deleted = append(deleted, f.FileID)
	}

	if len(failed) > 0 {
		return deleted, s.nodeFailure(g.nodeID, failed, lastErr)
	}
	return deleted, nil
}

func (s *deleteService) nodeFailure(nodeID string, fileIDs []string, msg string) *domain.NodeFailure {
	metrics.RecordNodeDeleteFailure(nodeID)
	logger.Warnw("Node batch delete failed", "node", nodeID, "files", len(fileIDs), "error", msg)
	return &domain.NodeFailure{NodeID: nodeID, FileIDs: fileIDs, Error: msg}
}
