package client

import "time"

// RegisterRequest announces a file manifest to the gateway.
type RegisterRequest struct {
	FileID      string   `json:"fileId,omitempty"`
	ParentID    *string  `json:"parentId,omitempty"`
	FileName    string   `json:"fileName"`
	FileSize    int64    `json:"fileSize"`
	MimeType    string   `json:"mimeType,omitempty"`
	ChunkHashes []string `json:"chunkHashes"`
	ChunkSizes  []int64  `json:"chunkSizes,omitempty"`
}

// ChunkGrant is a hash with the single-use token that moves it.
type ChunkGrant struct {
	Hash  string `json:"hash"`
	Token string `json:"token"`
	Size  int64  `json:"size"`
}

// File mirrors the gateway's file record.
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
	Status      string     `json:"status"`
	StorageNode string     `json:"storageNode,omitempty"`
	IsDeleted   bool       `json:"isDeleted"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type RegisterResult struct {
	FileID         string       `json:"fileId"`
	ExistingChunks []string     `json:"existingChunks"`
	MissingChunks  []string     `json:"missingChunks"`
	UploadChunks   []ChunkGrant `json:"uploadChunks"`
	File           *File        `json:"file,omitempty"`
	Duplicate      bool         `json:"duplicate"`
	ChunkSize      int64        `json:"chunkSize"`
}

type CompleteResult struct {
	FileID          string `json:"fileId"`
	Used            int64  `json:"used"`
	AlreadyComplete bool   `json:"alreadyComplete"`
}

// FileMeta lists one download grant per manifest position.
type FileMeta struct {
	Chunks   []ChunkGrant `json:"chunks"`
	File     *File        `json:"file"`
	MimeType string       `json:"mimeType"`
}

type NodeFailure struct {
	NodeID  string   `json:"nodeId"`
	FileIDs []string `json:"fileIds"`
	Error   string   `json:"error"`
}

type DeleteReport struct {
	Deleted  []string      `json:"deleted"`
	Failed   []NodeFailure `json:"failed"`
	NotFound []string      `json:"notFound"`
}

// UploadOptions names the file being uploaded.
type UploadOptions struct {
	FileID   string
	ParentID *string
	FileName string
	MimeType string
}

// UploadResult summarises a finished upload.
type UploadResult struct {
	FileID    string
	Size      int64
	Chunks    int
	Uploaded  int
	Reused    int
	Duplicate bool
	Rounds    int
	Used      int64
}
