package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUniqueHashes(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, UniqueHashes([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, UniqueHashes(nil))
}

func TestIsValidHash(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	assert.True(t, IsValidHash(valid))
	assert.False(t, IsValidHash(strings.ToUpper(valid)), "uppercase hex is rejected")
	assert.False(t, IsValidHash(valid[:63]))
	assert.False(t, IsValidHash(strings.Repeat("zz", 32)))
}

func TestFile_ChunkSizeAndClone(t *testing.T) {
	parent := "dir"
	deleted := time.Now()
	f := &File{
		FileID:      "f1",
		ParentID:    &parent,
		ChunkHashes: []string{"h1", "h2", "h1"},
		ChunkSizes:  []int64{4, 4, 4},
		DeletedAt:   &deleted,
	}

	size, ok := f.ChunkSize("h2")
	assert.True(t, ok)
	assert.Equal(t, int64(4), size)
	_, ok = f.ChunkSize("h9")
	assert.False(t, ok)
	assert.Equal(t, []string{"h1", "h2"}, f.UniqueHashes())

	c := f.Clone()
	c.ChunkHashes[0] = "x"
	*c.ParentID = "other"
	assert.Equal(t, "h1", f.ChunkHashes[0])
	assert.Equal(t, "dir", *f.ParentID)
	assert.Nil(t, (*File)(nil).Clone())
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "node-1/f1/abc", ObjectKey("node-1", "f1", "abc"))
}
