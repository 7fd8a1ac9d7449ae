package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/memory"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
)

const testChunkSize = 8

// fakeObjectStore is an in-memory port.ObjectStore with failure injection.
type fakeObjectStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	putErr     error
	headErr    error
	batchErr   error
	failDelete map[string]bool
	batches    int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte), failDelete: make(map[string]bool)}
}

func (s *fakeObjectStore) Put(_ context.Context, key string, body io.Reader, size int64) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: %d != %d", len(data), size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStore) Head(_ context.Context, key string) (bool, error) {
	if s.headErr != nil {
		return false, s.headErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeObjectStore) Get(_ context.Context, key string, offset, length int64) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, 0, domain.ErrObjectNotFound
	}
	end := int64(len(data))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	part := data[offset:end]
	return io.NopCloser(bytes.NewReader(part)), int64(len(part)), nil
}

func (s *fakeObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeObjectStore) DeleteBatch(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.batchErr != nil {
		return s.batchErr
	}
	failed := make(map[string]error)
	for _, k := range keys {
		if s.failDelete[k] {
			failed[k] = fmt.Errorf("access denied")
			continue
		}
		delete(s.objects, k)
	}
	if len(failed) > 0 {
		return &port.BatchDeleteError{Failed: failed}
	}
	return nil
}

func (s *fakeObjectStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *fakeObjectStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeProvider hands out one fakeObjectStore per node id.
type fakeProvider struct {
	mu     sync.Mutex
	stores map[string]*fakeObjectStore
}

func (p *fakeProvider) Store(node domain.StorageNode) (port.ObjectStore, error) {
	return p.store(node.ID), nil
}

func (p *fakeProvider) store(nodeID string) *fakeObjectStore {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stores[nodeID]
	if !ok {
		s = newFakeObjectStore()
		p.stores[nodeID] = s
	}
	return s
}

// seqIDs generates file-1, file-2, ...
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NextID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("file-%d", g.n), nil
}

type testEnv struct {
	svc    *TransferServiceImpl
	files  *memory.FileStore
	tokens *memory.TokenStore
	stores *fakeProvider
}

func activeNode(id string, load int64) domain.StorageNode {
	return domain.StorageNode{ID: id, Status: domain.NodeStatusActive, Load: load}
}

func newTestEnv(t *testing.T, nodes ...domain.StorageNode) *testEnv {
	t.Helper()
	if len(nodes) == 0 {
		nodes = []domain.StorageNode{activeNode("node-1", 0)}
	}
	files := memory.NewFileStore()
	tokens := memory.NewTokenStore()
	stores := &fakeProvider{stores: make(map[string]*fakeObjectStore)}

	cfg := config.DefaultConfig()
	cfg.App.ChunkSize = testChunkSize
	cfg.App.MaxFileSize = 1024

	svc := NewTransferService(cfg, Dependencies{
		Files:    files,
		Usage:    files,
		Tokens:   tokens,
		Stores:   stores,
		Registry: NewNodeRegistry(nodes, nil),
		IDGen:    &seqIDs{},
	})
	return &testEnv{svc: svc, files: files, tokens: tokens, stores: stores}
}

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// split cuts data into testChunkSize chunks and returns the request for it.
func split(name string, data []byte) (*domain.RegisterRequest, map[string][]byte) {
	req := &domain.RegisterRequest{FileName: name, FileSize: int64(len(data)), MimeType: "text/plain"}
	bodies := make(map[string][]byte)
	for off := 0; off < len(data); off += testChunkSize {
		end := off + testChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		h := sha(chunk)
		req.ChunkHashes = append(req.ChunkHashes, h)
		req.ChunkSizes = append(req.ChunkSizes, int64(len(chunk)))
		bodies[h] = chunk
	}
	return req, bodies
}

// uploadAll registers data and uploads every granted chunk.
func (e *testEnv) uploadAll(t *testing.T, userID, name string, data []byte) *domain.RegisterResult {
	t.Helper()
	req, bodies := split(name, data)
	res, err := e.svc.Register(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	for _, g := range res.UploadChunks {
		if err := e.svc.UploadChunk(context.Background(), g.Token, res.FileID, g.Hash, bytes.NewReader(bodies[g.Hash])); err != nil {
			t.Fatalf("UploadChunk(%s) error = %v", g.Hash, err)
		}
	}
	return res
}

// storeFile uploads and finalizes data.
func (e *testEnv) storeFile(t *testing.T, userID, name string, data []byte) *domain.File {
	t.Helper()
	res := e.uploadAll(t, userID, name, data)
	if _, err := e.svc.MarkComplete(context.Background(), userID, res.FileID); err != nil {
		t.Fatalf("MarkComplete() error = %v", err)
	}
	f, err := e.files.GetFile(context.Background(), res.FileID)
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	return f
}
