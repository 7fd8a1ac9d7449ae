package domain

import (
	"encoding/hex"
	"time"
)

const (
	// DefaultChunkSize is the fixed chunk size used by the codec (4 MiB).
	DefaultChunkSize = 4 * 1024 * 1024

	// HashLength is the length of a hex encoded SHA-256 chunk hash.
	HashLength = 64
)

// FileStatus tracks the transfer lifecycle of a file.
type FileStatus string

const (
	FileStatusRegistering FileStatus = "registering"
	FileStatusIncomplete  FileStatus = "incomplete"
	FileStatusComplete    FileStatus = "complete"
)

// File is one logical object (or folder) owned by a user.
type File struct {
	FileID      string     `json:"fileId"`
	ParentID    *string    `json:"parentId,omitempty"`
	OwnerID     string     `json:"ownerId"`
	FileName    string     `json:"fileName"`
	FileSize    int64      `json:"fileSize"`
	MimeType    string     `json:"mimeType,omitempty"`
	IsFolder    bool       `json:"isFolder"`
	ChunkHashes []string   `json:"chunkHashes"`
	ChunkSizes  []int64    `json:"chunkSizes"`
	Status      FileStatus `json:"status"`
	StorageNode string     `json:"storageNode,omitempty"`
	IsDeleted   bool       `json:"isDeleted"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// UniqueHashes returns the manifest hashes with duplicates removed, keeping first-seen order.
func (f *File) UniqueHashes() []string {
	return UniqueHashes(f.ChunkHashes)
}

// ChunkSize returns the recorded byte size of the chunk identified by hash.
func (f *File) ChunkSize(hash string) (int64, bool) {
	for i, h := range f.ChunkHashes {
		if h == hash && i < len(f.ChunkSizes) {
			return f.ChunkSizes[i], true
		}
	}
	return 0, false
}

// IsComplete reports whether every chunk of the file has been confirmed.
func (f *File) IsComplete() bool {
	return f.Status == FileStatusComplete
}

// Clone returns a deep copy so callers can mutate without aliasing repository state.
func (f *File) Clone() *File {
	if f == nil {
		return nil
	}
	c := *f
	c.ChunkHashes = append([]string(nil), f.ChunkHashes...)
	c.ChunkSizes = append([]int64(nil), f.ChunkSizes...)
	if f.ParentID != nil {
		p := *f.ParentID
		c.ParentID = &p
	}
	if f.DeletedAt != nil {
		d := *f.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}

// ChunkRecord marks a chunk hash as physically present for a file.
type ChunkRecord struct {
	FileID string `json:"fileId"`
	Hash   string `json:"hash"`
	Size   int64  `json:"size"`
}

// UniqueHashes de-duplicates hashes, preserving first-seen order.
func UniqueHashes(hashes []string) []string {
	seen := make(map[string]struct{}, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// IsValidHash reports whether s looks like a lowercase hex SHA-256 digest.
func IsValidHash(s string) bool {
	if len(s) != HashLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ObjectKey builds the physical object key for a chunk on a node.
func ObjectKey(nodeID, fileID, hash string) string {
	return nodeID + "/" + fileID + "/" + hash
}
