package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
)

// FileStore keeps files, chunk records and usage in process memory.
type FileStore struct {
	mu     sync.RWMutex
	files  map[string]*domain.File
	chunks map[string]map[string]int64
	usage  map[string]int64
}

var (
	_ port.FileRepository  = (*FileStore)(nil)
	_ port.UsageRepository = (*FileStore)(nil)
)

// NewFileStore creates an empty store.
func NewFileStore() *FileStore {
	return &FileStore{
		files:  make(map[string]*domain.File),
		chunks: make(map[string]map[string]int64),
		usage:  make(map[string]int64),
	}
}

func (s *FileStore) CreateFile(_ context.Context, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[file.FileID]; ok {
		return fmt.Errorf("file %s already exists", file.FileID)
	}
	s.files[file.FileID] = file.Clone()
	return nil
}

func (s *FileStore) UpdateFile(_ context.Context, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.files[file.FileID]
	if !ok {
		return domain.ErrFileNotFound
	}
	next := file.Clone()
	// Completion only happens through CompleteFile.
	if cur.Status == domain.FileStatusComplete {
		next.Status = domain.FileStatusComplete
	} else if next.Status == domain.FileStatusComplete {
		next.Status = cur.Status
	}
	s.files[file.FileID] = next
	return nil
}

func (s *FileStore) GetFile(_ context.Context, fileID string) (*domain.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[fileID]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	return f.Clone(), nil
}

func (s *FileStore) FindByName(_ context.Context, ownerID string, parentID *string, fileName string) (*domain.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.File
	for _, f := range s.files {
		if f.OwnerID != ownerID || f.IsDeleted || f.FileName != fileName || !sameParent(f.ParentID, parentID) {
			continue
		}
		if best == nil || f.UpdatedAt.After(best.UpdatedAt) || (f.UpdatedAt.Equal(best.UpdatedAt) && f.FileID > best.FileID) {
			best = f
		}
	}
	if best == nil {
		return nil, domain.ErrFileNotFound
	}
	return best.Clone(), nil
}

func (s *FileStore) ListChildren(_ context.Context, ownerID, parentID string) ([]*domain.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.File, 0)
	for _, f := range s.files {
		if f.OwnerID == ownerID && f.ParentID != nil && *f.ParentID == parentID {
			out = append(out, f.Clone())
		}
	}
	sortFiles(out)
	return out, nil
}

func (s *FileStore) ListTrashed(_ context.Context, ownerID string, deletedBefore time.Time) ([]*domain.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.File, 0)
	for _, f := range s.files {
		if f.OwnerID == ownerID && f.IsDeleted && f.DeletedAt != nil && !f.DeletedAt.After(deletedBefore) {
			out = append(out, f.Clone())
		}
	}
	sortFiles(out)
	return out, nil
}

func (s *FileStore) SetDeleted(_ context.Context, fileIDs []string, deleted bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range fileIDs {
		f, ok := s.files[id]
		if !ok {
			continue
		}
		f.IsDeleted = deleted
		if deleted {
			t := at
			f.DeletedAt = &t
		} else {
			f.DeletedAt = nil
		}
	}
	return nil
}

func (s *FileStore) ChunkHashes(_ context.Context, fileID string, hashes []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{})
	recorded := s.chunks[fileID]
	for _, h := range hashes {
		if _, ok := recorded[h]; ok {
			out[h] = struct{}{}
		}
	}
	return out, nil
}

func (s *FileStore) RecordChunks(_ context.Context, records []domain.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		m, ok := s.chunks[r.FileID]
		if !ok {
			m = make(map[string]int64)
			s.chunks[r.FileID] = m
		}
		m[r.Hash] = r.Size
	}
	return nil
}

func (s *FileStore) CompleteFile(_ context.Context, verified *domain.File) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[verified.FileID]
	if !ok {
		return false, 0, domain.ErrFileNotFound
	}
	if f.Status == domain.FileStatusComplete {
		return false, s.usage[f.OwnerID], nil
	}
	if f.StorageNode != verified.StorageNode || !slices.Equal(f.ChunkHashes, verified.ChunkHashes) {
		return false, 0, domain.ErrManifestChanged
	}
	f.Status = domain.FileStatusComplete
	f.UpdatedAt = time.Now()
	s.usage[f.OwnerID] += f.FileSize
	return true, s.usage[f.OwnerID], nil
}

func (s *FileStore) DeleteFile(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[fileID]
	if !ok {
		return nil
	}
	if f.Status == domain.FileStatusComplete && !f.IsFolder {
		s.usage[f.OwnerID] -= f.FileSize
		if s.usage[f.OwnerID] < 0 {
			s.usage[f.OwnerID] = 0
		}
	}
	delete(s.files, fileID)
	delete(s.chunks, fileID)
	return nil
}

func (s *FileStore) GetUsage(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage[userID], nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortFiles(files []*domain.File) {
	sort.Slice(files, func(i, j int) bool { return files[i].FileID < files[j].FileID })
}
