package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/memory"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeatedData() []byte {
	return []byte("AAAAAAAA" + "BBBBBBBB" + "AAAAAAAA" + "CC")
}

func TestRegistrationService_Validation(t *testing.T) {
	h := sha([]byte("x"))

	tests := []struct {
		name   string
		userID string
		req    *domain.RegisterRequest
		field  string
	}{
		{name: "MissingUser", userID: "", req: &domain.RegisterRequest{FileName: "a", FileSize: 1, ChunkHashes: []string{h}}, field: "userId"},
		{name: "NilRequest", userID: "u1", req: nil, field: "body"},
		{name: "EmptyName", userID: "u1", req: &domain.RegisterRequest{FileName: "  ", FileSize: 1, ChunkHashes: []string{h}}, field: "fileName"},
		{name: "SlashInName", userID: "u1", req: &domain.RegisterRequest{FileName: "a/b", FileSize: 1, ChunkHashes: []string{h}}, field: "fileName"},
		{name: "NoChunks", userID: "u1", req: &domain.RegisterRequest{FileName: "a", FileSize: 1}, field: "chunkHashes"},
		{name: "ZeroSize", userID: "u1", req: &domain.RegisterRequest{FileName: "a", FileSize: 0, ChunkHashes: []string{h}}, field: "fileSize"},
		{name: "TooLarge", userID: "u1", req: &domain.RegisterRequest{FileName: "a", FileSize: 4096, ChunkHashes: []string{h}}, field: "fileSize"},
		{name: "BadHash", userID: "u1", req: &domain.RegisterRequest{FileName: "a", FileSize: 1, ChunkHashes: []string{"xyz"}}, field: "chunkHashes"},
		{name: "UppercaseHash", userID: "u1", req: &domain.RegisterRequest{FileName: "a", FileSize: 1, ChunkHashes: []string{strings.ToUpper(h)}}, field: "chunkHashes"},
		{name: "SizeNotSplittable", userID: "u1", req: &domain.RegisterRequest{FileName: "a", FileSize: 20, ChunkHashes: []string{h, h}}, field: "fileSize"},
		{name: "SizesLengthMismatch", userID: "u1", req: &domain.RegisterRequest{FileName: "a", FileSize: 8, ChunkHashes: []string{h}, ChunkSizes: []int64{4, 4}}, field: "chunkSizes"},
		{name: "SizesSumMismatch", userID: "u1", req: &domain.RegisterRequest{FileName: "a", FileSize: 9, ChunkHashes: []string{h}, ChunkSizes: []int64{8}}, field: "fileSize"},
		{name: "ShortMiddleChunk", userID: "u1", req: &domain.RegisterRequest{FileName: "a", FileSize: 12, ChunkHashes: []string{h, sha([]byte("y"))}, ChunkSizes: []int64{4, 8}}, field: "chunkSizes"},
		{name: "SameHashTwoSizes", userID: "u1", req: &domain.RegisterRequest{FileName: "a", FileSize: 10, ChunkHashes: []string{h, h}, ChunkSizes: []int64{8, 2}}, field: "chunkSizes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			_, err := env.svc.Register(context.Background(), tt.userID, tt.req)

			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr), "want ValidationError, got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Zero(t, env.tokens.Len(), "no tokens on rejected registration")
		})
	}
}

func TestRegistrationService_PartitionsManifest(t *testing.T) {
	env := newTestEnv(t)
	req, _ := split("dup.bin", repeatedData())
	require.Len(t, req.ChunkHashes, 4)

	res, err := env.svc.Register(context.Background(), "u1", req)
	require.NoError(t, err)

	unique := domain.UniqueHashes(req.ChunkHashes)
	assert.Empty(t, res.ExistingChunks)
	assert.ElementsMatch(t, unique, res.MissingChunks)
	assert.Len(t, res.UploadChunks, 3, "one grant per unique missing hash")
	assert.False(t, res.Duplicate)
	assert.Equal(t, int64(testChunkSize), res.ChunkSize)

	for _, g := range res.UploadChunks {
		assert.Len(t, g.Token, 64)
	}

	f, err := env.files.GetFile(context.Background(), res.FileID)
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusIncomplete, f.Status)
	assert.Equal(t, "node-1", f.StorageNode)
	assert.Equal(t, req.ChunkHashes, f.ChunkHashes)
}

func TestRegistrationService_ResumesIncompleteFile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req, bodies := split("resume.bin", repeatedData())
	unique := domain.UniqueHashes(req.ChunkHashes)

	first, err := env.svc.Register(ctx, "u1", req)
	require.NoError(t, err)

	grants := make(map[string]string)
	for _, g := range first.UploadChunks {
		grants[g.Hash] = g.Token
	}
	require.NoError(t, env.svc.UploadChunk(ctx, grants[unique[0]], first.FileID, unique[0], bytes.NewReader(bodies[unique[0]])))

	_, err = env.svc.MarkComplete(ctx, "u1", first.FileID)
	var incomplete *domain.IncompleteTransferError
	require.True(t, errors.As(err, &incomplete))

	second, err := env.svc.Register(ctx, "u1", req)
	require.NoError(t, err)

	assert.Equal(t, first.FileID, second.FileID)
	assert.Equal(t, []string{unique[0]}, second.ExistingChunks)
	assert.ElementsMatch(t, unique[1:], second.MissingChunks)
	for _, g := range second.UploadChunks {
		assert.Equal(t, grants[g.Hash], g.Token, "live token for the same chunk is reused")
	}
	assert.Equal(t, len(unique)-1, env.tokens.Len(), "no duplicate token rows")
}

// consumingTokens consumes every live token it finds before the caller can refresh it.
type consumingTokens struct {
	*memory.TokenStore
}

func (c *consumingTokens) FindLive(ctx context.Context, scope domain.TokenScope, now time.Time) (*domain.Token, error) {
	tok, err := c.TokenStore.FindLive(ctx, scope, now)
	if err != nil || tok == nil {
		return tok, err
	}
	if _, err := c.TokenStore.Consume(ctx, tok.Token, tok.FileID, tok.Hash, tok.Action, now); err != nil {
		return nil, err
	}
	return tok, nil
}

func TestRegistrationService_ReregisterWhileUploadConsumesToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req, _ := split("race.bin", repeatedData())
	unique := domain.UniqueHashes(req.ChunkHashes)

	first, err := env.svc.Register(ctx, "u1", req)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.App.ChunkSize = testChunkSize
	cfg.App.MaxFileSize = 1024
	svc := NewTransferService(cfg, Dependencies{
		Files:    env.files,
		Usage:    env.files,
		Tokens:   &consumingTokens{TokenStore: env.tokens},
		Stores:   env.stores,
		Registry: NewNodeRegistry([]domain.StorageNode{activeNode("node-1", 0)}, nil),
		IDGen:    &seqIDs{},
	})

	second, err := svc.Register(ctx, "u1", req)
	require.NoError(t, err)
	assert.Equal(t, first.FileID, second.FileID)
	require.Len(t, second.UploadChunks, len(unique))
	for i, g := range second.UploadChunks {
		assert.NotEqual(t, first.UploadChunks[i].Token, g.Token)
	}
	assert.Equal(t, len(unique), env.tokens.Len())
}

func TestRegistrationService_Duplicate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	stored := env.storeFile(t, "u1", "same.bin", repeatedData())

	req, _ := split("same.bin", repeatedData())
	res, err := env.svc.Register(ctx, "u1", req)
	require.NoError(t, err)

	assert.True(t, res.Duplicate)
	assert.Equal(t, stored.FileID, res.FileID)
	assert.Empty(t, res.MissingChunks)
	assert.Empty(t, res.UploadChunks)
	assert.ElementsMatch(t, stored.UniqueHashes(), res.ExistingChunks)
}

func TestRegistrationService_NewVersionOfCompleteFile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	stored := env.storeFile(t, "u1", "doc.txt", []byte("version-one"))

	req, _ := split("doc.txt", []byte("version-two!"))
	res, err := env.svc.Register(ctx, "u1", req)
	require.NoError(t, err)

	assert.NotEqual(t, stored.FileID, res.FileID)
	assert.False(t, res.Duplicate)
	assert.Empty(t, res.ExistingChunks)
	assert.Len(t, res.UploadChunks, len(domain.UniqueHashes(req.ChunkHashes)))

	old, err := env.files.GetFile(ctx, stored.FileID)
	require.NoError(t, err)
	assert.True(t, old.IsComplete(), "previous version is untouched")
}

func TestRegistrationService_NoActiveNode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, domain.StorageNode{ID: "node-1", Status: domain.NodeStatusMaintenance})
	req, _ := split("a.bin", []byte("data"))

	_, err := env.svc.Register(ctx, "u1", req)

	var nErr *domain.NodeUnavailableError
	require.True(t, errors.As(err, &nErr))
	_, err = env.files.FindByName(ctx, "u1", nil, "a.bin")
	assert.ErrorIs(t, err, domain.ErrFileNotFound, "nothing persisted")
	assert.Zero(t, env.tokens.Len())
}

func TestRegistrationService_Parent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	folder, err := env.svc.CreateFolder(ctx, "u1", nil, "docs")
	require.NoError(t, err)
	plain := env.storeFile(t, "u1", "plain.txt", []byte("hello"))

	tests := []struct {
		name    string
		userID  string
		parent  string
		check   func(t *testing.T, err error)
		created bool
	}{
		{
			name:    "IntoFolder",
			userID:  "u1",
			parent:  folder.FileID,
			created: true,
			check:   func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name:   "ParentIsFile",
			userID: "u1",
			parent: plain.FileID,
			check: func(t *testing.T, err error) {
				var vErr *domain.ValidationError
				assert.True(t, errors.As(err, &vErr))
			},
		},
		{
			name:   "ForeignParent",
			userID: "u2",
			parent: folder.FileID,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrForbidden) },
		},
		{
			name:   "UnknownParent",
			userID: "u1",
			parent: "nope",
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrFileNotFound) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := split("child-"+tt.name, []byte("child"))
			parent := tt.parent
			req.ParentID = &parent

			res, err := env.svc.Register(ctx, tt.userID, req)
			tt.check(t, err)
			if tt.created {
				require.NotNil(t, res)
				require.NotNil(t, res.File.ParentID)
				assert.Equal(t, folder.FileID, *res.File.ParentID)
			}
		})
	}
}
