package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tree struct {
	root, sub  *domain.File
	rootFile   *domain.File
	nestedFile *domain.File
}

// buildTree creates root/{top.txt, sub/{deep.txt}} for u1.
func buildTree(t *testing.T, env *testEnv) tree {
	t.Helper()
	ctx := context.Background()
	root, err := env.svc.CreateFolder(ctx, "u1", nil, "root")
	require.NoError(t, err)
	sub, err := env.svc.CreateFolder(ctx, "u1", &root.FileID, "sub")
	require.NoError(t, err)

	storeIn := func(parent *domain.File, name string, data []byte) *domain.File {
		req, bodies := split(name, data)
		req.ParentID = &parent.FileID
		res, err := env.svc.Register(ctx, "u1", req)
		require.NoError(t, err)
		for _, g := range res.UploadChunks {
			require.NoError(t, env.svc.UploadChunk(ctx, g.Token, res.FileID, g.Hash, bytes.NewReader(bodies[g.Hash])))
		}
		_, err = env.svc.MarkComplete(ctx, "u1", res.FileID)
		require.NoError(t, err)
		f, _ := env.files.GetFile(ctx, res.FileID)
		return f
	}

	return tree{
		root:       root,
		sub:        sub,
		rootFile:   storeIn(root, "top.txt", []byte("top-level")),
		nestedFile: storeIn(sub, "deep.txt", []byte("deep")),
	}
}

func TestTrashService_CreateFolder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	folder, err := env.svc.CreateFolder(ctx, "u1", nil, "docs")
	require.NoError(t, err)
	assert.True(t, folder.IsFolder)
	assert.Equal(t, domain.FileStatusComplete, folder.Status)
	assert.Empty(t, folder.StorageNode)

	_, err = env.svc.CreateFolder(ctx, "u1", nil, "docs")
	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr), "duplicate name")

	_, err = env.svc.CreateFolder(ctx, "u1", nil, "a/b")
	assert.True(t, errors.As(err, &vErr))

	_, err = env.svc.CreateFolder(ctx, "u2", &folder.FileID, "x")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTrashService_TrashAndRestoreCascade(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tr := buildTree(t, env)

	trashed, err := env.svc.Trash(ctx, "u1", tr.root.FileID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{tr.root.FileID, tr.sub.FileID, tr.rootFile.FileID, tr.nestedFile.FileID}, trashed)

	_, err = env.svc.GetFileMeta(ctx, "u1", tr.nestedFile.FileID)
	assert.ErrorIs(t, err, domain.ErrFileNotFound, "trashed files are hidden")

	restored, err := env.svc.Restore(ctx, "u1", tr.root.FileID)
	require.NoError(t, err)
	assert.ElementsMatch(t, trashed, restored)

	_, err = env.svc.GetFileMeta(ctx, "u1", tr.nestedFile.FileID)
	assert.NoError(t, err)
}

func TestTrashService_RestoreDetachesFromTrashedParent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tr := buildTree(t, env)

	_, err := env.svc.Trash(ctx, "u1", tr.root.FileID)
	require.NoError(t, err)

	restored, err := env.svc.Restore(ctx, "u1", tr.sub.FileID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{tr.sub.FileID, tr.nestedFile.FileID}, restored)

	sub, _ := env.files.GetFile(ctx, tr.sub.FileID)
	assert.Nil(t, sub.ParentID, "parent still trashed, moved to top level")
	assert.False(t, sub.IsDeleted)

	root, _ := env.files.GetFile(ctx, tr.root.FileID)
	assert.True(t, root.IsDeleted)
}

func TestTrashService_RestoreOwnership(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tr := buildTree(t, env)
	_, err := env.svc.Trash(ctx, "u1", tr.rootFile.FileID)
	require.NoError(t, err)

	_, err = env.svc.Restore(ctx, "u2", tr.rootFile.FileID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	ids, err := env.svc.Restore(ctx, "u1", tr.sub.FileID)
	require.NoError(t, err)
	assert.Empty(t, ids, "restoring a live file is a no-op")
}

func TestTrashService_PurgeTrash(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tr := buildTree(t, env)

	past := time.Now().Add(-48 * time.Hour)
	env.svc.now = func() time.Time { return past }
	_, err := env.svc.Trash(ctx, "u1", tr.sub.FileID)
	require.NoError(t, err)
	env.svc.now = time.Now

	none, err := env.svc.PurgeTrash(ctx, "u1", 72*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, none.Deleted)

	report, err := env.svc.PurgeTrash(ctx, "u1", 24*time.Hour)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{tr.sub.FileID, tr.nestedFile.FileID}, report.Deleted)
	assert.False(t, report.HasFailures())

	usage, _ := env.svc.GetUsage(ctx, "u1")
	assert.Equal(t, tr.rootFile.FileSize, usage)
	_, err = env.files.GetFile(ctx, tr.root.FileID)
	assert.NoError(t, err, "live folders are untouched")

	_, err = env.svc.PurgeTrash(ctx, "u1", -time.Second)
	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestTrashService_CollectSurvivesCycles(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, err := env.svc.CreateFolder(ctx, "u1", nil, "a")
	require.NoError(t, err)
	b, err := env.svc.CreateFolder(ctx, "u1", &a.FileID, "b")
	require.NoError(t, err)

	// Corrupt the hierarchy: a becomes a child of b.
	a.ParentID = &b.FileID
	require.NoError(t, env.files.UpdateFile(ctx, a))

	ids, err := env.svc.Trash(ctx, "u1", a.FileID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.FileID, b.FileID}, ids)
}
