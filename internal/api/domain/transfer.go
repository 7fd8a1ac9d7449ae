package domain

import (
	"errors"
	"io"
	"strconv"
	"strings"
)

// RegisterRequest is a chunk manifest submitted by an authenticated caller.
type RegisterRequest struct {
	FileID      string   `json:"fileId,omitempty"`
	ParentID    *string  `json:"parentId,omitempty"`
	FileName    string   `json:"fileName"`
	FileSize    int64    `json:"fileSize"`
	MimeType    string   `json:"mimeType,omitempty"`
	ChunkHashes []string `json:"chunkHashes"`
	ChunkSizes  []int64  `json:"chunkSizes,omitempty"`
}

// ChunkGrant pairs a chunk with the token that authorizes its transfer.
type ChunkGrant struct {
	Hash  string `json:"hash"`
	Token string `json:"token"`
	Size  int64  `json:"size"`
}

// RegisterResult tells the client which chunks it still has to send.
type RegisterResult struct {
	FileID         string       `json:"fileId"`
	ExistingChunks []string     `json:"existingChunks"`
	MissingChunks  []string     `json:"missingChunks"`
	UploadChunks   []ChunkGrant `json:"uploadChunks"`
	File           *File        `json:"file,omitempty"`
	Duplicate      bool         `json:"duplicate"`
	ChunkSize      int64        `json:"chunkSize"`
}

// CompleteResult reports the owner's storage usage after finalization.
type CompleteResult struct {
	FileID          string `json:"fileId"`
	Used            int64  `json:"used"`
	AlreadyComplete bool   `json:"alreadyComplete"`
}

// FileMeta lists the download grants of a complete file in manifest order.
type FileMeta struct {
	Chunks   []ChunkGrant `json:"chunks"`
	File     *File        `json:"file"`
	MimeType string       `json:"mimeType"`
}

// ChunkStream is an open chunk body. Callers must close Body.
type ChunkStream struct {
	Body        io.ReadCloser
	Offset      int64
	Length      int64
	Total       int64
	Partial     bool
	ContentType string
}

// NodeFailure reports a storage node whose batch delete did not succeed.
type NodeFailure struct {
	NodeID  string   `json:"nodeId"`
	FileIDs []string `json:"fileIds"`
	Error   string   `json:"error"`
}

// DeleteReport summarizes a multi-node deletion.
type DeleteReport struct {
	Deleted  []string      `json:"deleted"`
	Failed   []NodeFailure `json:"failed"`
	NotFound []string      `json:"notFound"`
}

// HasFailures reports whether any node batch failed.
func (r *DeleteReport) HasFailures() bool {
	return len(r.Failed) > 0
}

// ErrRangeNotSatisfiable is returned when a byte range lies outside the chunk.
var ErrRangeNotSatisfiable = errors.New("requested range not satisfiable")

// ByteRange is a single HTTP style byte range. End is inclusive, -1 means open ended.
// Suffix > 0 selects the last Suffix bytes.
type ByteRange struct {
	Start  int64
	End    int64
	Suffix int64
}

// ParseRange parses a "bytes=a-b", "bytes=a-" or "bytes=-n" header value.
// An empty header yields a nil range.
func ParseRange(header string) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	set, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(set, ",") {
		return nil, NewValidationError("range", "unsupported range "+header)
	}
	startStr, endStr, ok := strings.Cut(set, "-")
	if !ok {
		return nil, NewValidationError("range", "malformed range "+header)
	}

	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return nil, NewValidationError("range", "malformed suffix range "+header)
		}
		return &ByteRange{Suffix: n, End: -1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, NewValidationError("range", "malformed range start "+header)
	}
	end := int64(-1)
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return nil, NewValidationError("range", "malformed range end "+header)
		}
	}
	return &ByteRange{Start: start, End: end}, nil
}

// Resolve clamps the range to an object of total bytes and returns offset and length.
func (r *ByteRange) Resolve(total int64) (int64, int64, error) {
	if r == nil {
		return 0, total, nil
	}
	if r.Suffix > 0 {
		if total == 0 {
			return 0, 0, ErrRangeNotSatisfiable
		}
		n := r.Suffix
		if n > total {
			n = total
		}
		return total - n, n, nil
	}
	if r.Start >= total {
		return 0, 0, ErrRangeNotSatisfiable
	}
	end := r.End
	if end < 0 || end >= total {
		end = total - 1
	}
	return r.Start, end - r.Start + 1, nil
}
