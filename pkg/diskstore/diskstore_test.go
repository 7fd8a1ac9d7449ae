package diskstore

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DataDir: t.TempDir(), Fanout: 8})
	require.NoError(t, err)
	return s
}

func TestStore_PutOpen(t *testing.T) {
	s := newTestStore(t)
	key := "node-1/file-1/abc"

	require.NoError(t, s.Put(key, strings.NewReader("hello world"), 11))

	size, err := s.Head(key)
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)

	rc, n, err := s.Open(key, 0, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "hello world", string(data))
}

func TestStore_OpenRange(t *testing.T) {
	s := newTestStore(t)
	key := "n/f/h"
	require.NoError(t, s.Put(key, strings.NewReader("0123456789"), -1))

	tests := []struct {
		name   string
		offset int64
		length int64
		want   string
	}{
		{name: "Middle", offset: 2, length: 3, want: "234"},
		{name: "ToEnd", offset: 7, length: -1, want: "789"},
		{name: "ClampedLength", offset: 8, length: 100, want: "89"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, n, err := s.Open(key, tt.offset, tt.length)
			require.NoError(t, err)
			defer rc.Close()

			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
			assert.Equal(t, int64(len(tt.want)), n)
		})
	}
}

func TestStore_PutOverwrite(t *testing.T) {
	s := newTestStore(t)
	key := "n/f/h"

	require.NoError(t, s.Put(key, strings.NewReader("first"), 5))
	require.NoError(t, s.Put(key, strings.NewReader("second"), 6))

	rc, _, err := s.Open(key, 0, -1)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "second", string(data))
}

func TestStore_PutSizeMismatchLeavesNothing(t *testing.T) {
	s := newTestStore(t)
	key := "n/f/h"

	err := s.Put(key, bytes.NewReader([]byte("abc")), 10)
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	_, err = s.Head(key)
	assert.ErrorIs(t, err, ErrNotFound)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Objects)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("n/f/a", strings.NewReader("a"), 1))
	require.NoError(t, s.Put("n/f/b", strings.NewReader("bb"), 2))

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Objects: 2, Bytes: 3}, st)

	require.NoError(t, s.Delete("n/f/a"))
	require.NoError(t, s.Delete("n/f/a"), "deleting a missing key is not an error")

	failed := s.DeleteBatch([]string{"n/f/b", "n/f/missing", "../escape"})
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed["../escape"], ErrInvalidKey)

	_, _, err = s.Open("n/f/b", 0, -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_InvalidKeys(t *testing.T) {
	s := newTestStore(t)
	for _, key := range []string{"", "/abs", "a/../b", "a//b", "a/b.part", `a\b`} {
		_, err := s.Path(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestStore_PathStaysUnderRoot(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Path("node/file/hash")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, s.Root()+string(os.PathSeparator)))

	p2, err := s.Path("node/file/hash")
	require.NoError(t, err)
	assert.Equal(t, p, p2)
}
