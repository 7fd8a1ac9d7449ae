package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/memory"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizeService_ReportsMissingInManifestOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	data := []byte("11111111" + "22222222" + "3333")
	req, bodies := split("three.bin", data)
	h1, h2, h3 := req.ChunkHashes[0], req.ChunkHashes[1], req.ChunkHashes[2]

	res, err := env.svc.Register(ctx, "u1", req)
	require.NoError(t, err)
	grants := make(map[string]string)
	for _, g := range res.UploadChunks {
		grants[g.Hash] = g.Token
	}

	for _, h := range []string{h1, h3} {
		require.NoError(t, env.svc.UploadChunk(ctx, grants[h], res.FileID, h, bytes.NewReader(bodies[h])))
	}

	_, err = env.svc.MarkComplete(ctx, "u1", res.FileID)
	var incomplete *domain.IncompleteTransferError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{h2}, incomplete.MissingHashes)

	f, _ := env.files.GetFile(ctx, res.FileID)
	assert.Equal(t, domain.FileStatusIncomplete, f.Status)
	usage, _ := env.svc.GetUsage(ctx, "u1")
	assert.Zero(t, usage)

	require.NoError(t, env.svc.UploadChunk(ctx, grants[h2], res.FileID, h2, bytes.NewReader(bodies[h2])))

	done, err := env.svc.MarkComplete(ctx, "u1", res.FileID)
	require.NoError(t, err)
	assert.False(t, done.AlreadyComplete)
	assert.Equal(t, int64(len(data)), done.Used)

	again, err := env.svc.MarkComplete(ctx, "u1", res.FileID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyComplete)
	assert.Equal(t, int64(len(data)), again.Used, "usage charged once")
}

func TestFinalizeService_ConcurrentCallsChargeOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	res := env.uploadAll(t, "u1", "race.bin", []byte("abcdefghij"))

	var wg sync.WaitGroup
	results := make([]*domain.CompleteResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := env.svc.MarkComplete(ctx, "u1", res.FileID)
			if err == nil {
				results[i] = r
			}
		}(i)
	}
	wg.Wait()

	fresh := 0
	for _, r := range results {
		require.NotNil(t, r)
		if !r.AlreadyComplete {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	usage, _ := env.svc.GetUsage(ctx, "u1")
	assert.Equal(t, int64(10), usage)
}

func TestFinalizeService_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		prepare func(env *testEnv, fileID string) string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "Forbidden",
			userID:  "u2",
			prepare: func(env *testEnv, fileID string) string { return fileID },
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrForbidden) },
		},
		{
			name:    "Unknown",
			userID:  "u1",
			prepare: func(env *testEnv, fileID string) string { return "missing" },
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrFileNotFound) },
		},
		{
			name:   "HeadFailure",
			userID: "u1",
			prepare: func(env *testEnv, fileID string) string {
				env.stores.store("node-1").headErr = errors.New("timeout")
				return fileID
			},
			check: func(t *testing.T, err error) {
				var ioErr *domain.BackendIOError
				require.True(t, errors.As(err, &ioErr))
				assert.Equal(t, "head", ioErr.Op)
			},
		},
		{
			name:   "Folder",
			userID: "u1",
			prepare: func(env *testEnv, fileID string) string {
				folder, _ := env.svc.CreateFolder(context.Background(), "u1", nil, "dir")
				return folder.FileID
			},
			check: func(t *testing.T, err error) {
				var vErr *domain.ValidationError
				assert.True(t, errors.As(err, &vErr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			res := env.uploadAll(t, "u1", "a.bin", []byte("abc"))
			id := tt.prepare(env, res.FileID)

			_, err := env.svc.MarkComplete(ctx, tt.userID, id)
			tt.check(t, err)

			usage, _ := env.svc.GetUsage(ctx, "u1")
			assert.Zero(t, usage)
		})
	}
}

// reregisteringFiles re-registers the file with another manifest right before
// the first complete transition.
type reregisteringFiles struct {
	*memory.FileStore
	once   sync.Once
	hookFn func()
}

func (r *reregisteringFiles) CompleteFile(ctx context.Context, verified *domain.File) (bool, int64, error) {
	r.once.Do(r.hookFn)
	return r.FileStore.CompleteFile(ctx, verified)
}

func TestFinalizeService_ManifestReplacedDuringVerification(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	res := env.uploadAll(t, "u1", "swap.bin", []byte("aaaaaaaa"+"bbbbbbbb"))

	replacement, _ := split("swap.bin", []byte("aaaaaaaa"+"cccccccc"))
	replacement.FileID = res.FileID

	files := &reregisteringFiles{FileStore: env.files}
	files.hookFn = func() {
		_, err := env.svc.Register(ctx, "u1", replacement)
		require.NoError(t, err)
	}

	cfg := config.DefaultConfig()
	cfg.App.ChunkSize = testChunkSize
	cfg.App.MaxFileSize = 1024
	svc := NewTransferService(cfg, Dependencies{
		Files:    files,
		Usage:    env.files,
		Tokens:   env.tokens,
		Stores:   env.stores,
		Registry: NewNodeRegistry([]domain.StorageNode{activeNode("node-1", 0)}, nil),
		IDGen:    &seqIDs{},
	})

	_, err := svc.MarkComplete(ctx, "u1", res.FileID)
	var incomplete *domain.IncompleteTransferError
	require.True(t, errors.As(err, &incomplete), "got %v", err)
	assert.Equal(t, []string{replacement.ChunkHashes[1]}, incomplete.MissingHashes)

	f, err := env.files.GetFile(ctx, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusIncomplete, f.Status)
	assert.Equal(t, replacement.ChunkHashes, f.ChunkHashes)
	usage, _ := env.svc.GetUsage(ctx, "u1")
	assert.Zero(t, usage)
}
