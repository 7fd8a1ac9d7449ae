package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/anthanhphan/go-chunk-transfer/pkg/chunker"
	"github.com/anthanhphan/go-chunk-transfer/pkg/resilience"
)

// Register announces a manifest. Registration is idempotent so it is retried.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	var out RegisterResult
	if err := c.call(ctx, http.MethodPost, "/v1/files/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Complete finalizes a file.
func (c *Client) Complete(ctx context.Context, fileID string) (*CompleteResult, error) {
	var out CompleteResult
	if err := c.call(ctx, http.MethodPost, "/v1/files/"+escape(fileID)+"/complete", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutChunk uploads one chunk with its token. Tokens are single-use so this is never retried here.
func (c *Client) PutChunk(ctx context.Context, fileID string, grant ChunkGrant, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.base+"/v1/chunks/"+escape(fileID)+"/"+escape(grant.Hash), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(headerToken, grant.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload chunk %s: %w", grant.Hash, err)
	}
	defer drain(resp)
	return apiError(resp)
}

// Upload splits the file at path and transfers it.
func (c *Client) Upload(ctx context.Context, path string, opts UploadOptions) (*UploadResult, error) {
	f, err := os.Open(path) // #nosec G304 -- the caller picks the file to upload
	if err != nil {
		return nil, err
	}
	defer f.Close()

	manifest, err := c.chunk.Split(f)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", path, err)
	}
	if opts.FileName == "" {
		opts.FileName = filepath.Base(path)
	}
	return c.UploadManifest(ctx, f, manifest, opts)
}

// UploadManifest registers m, uploads every missing chunk read from src and
// finalizes. Failed chunks are re-registered for fresh tokens, up to Rounds times.
func (c *Client) UploadManifest(ctx context.Context, src io.ReaderAt, m *chunker.Manifest, opts UploadOptions) (*UploadResult, error) {
	if len(m.Chunks) == 0 {
		return nil, errors.New("cannot upload an empty file")
	}

	first := make(map[string]chunker.Chunk, len(m.Chunks))
	for _, ch := range m.Chunks {
		if _, ok := first[ch.Hash]; !ok {
			first[ch.Hash] = ch
		}
	}

	req := RegisterRequest{
		FileID:      opts.FileID,
		ParentID:    opts.ParentID,
		FileName:    opts.FileName,
		FileSize:    m.TotalSize(),
		MimeType:    opts.MimeType,
		ChunkHashes: m.Hashes(),
		ChunkSizes:  m.Sizes(),
	}
	res := &UploadResult{Size: m.TotalSize(), Chunks: len(m.Chunks)}

	var lastErr error
	for round := 1; round <= c.cfg.Rounds; round++ {
		res.Rounds = round
		reg, err := c.Register(ctx, req)
		if err != nil {
			return nil, err
		}
		req.FileID = reg.FileID
		res.FileID = reg.FileID
		if round == 1 {
			res.Reused = len(reg.ExistingChunks)
			res.Duplicate = reg.Duplicate
		}

		uploaded, err := c.uploadGrants(ctx, src, reg.FileID, reg.UploadChunks, first)
		res.Uploaded += uploaded
		if err != nil {
			if !IsRetriable(err) {
				return nil, err
			}
			lastErr = err
			continue
		}

		done, err := c.Complete(ctx, reg.FileID)
		if err == nil {
			res.Used = done.Used
			return res, nil
		}
		if !IsRetriable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("upload of %s unfinished after %d rounds: %w", opts.FileName, c.cfg.Rounds, lastErr)
}

// uploadGrants uploads every granted chunk in parallel. One failed chunk does
// not stop the others; the first failure is returned after all have run.
func (c *Client) uploadGrants(ctx context.Context, src io.ReaderAt, fileID string, grants []ChunkGrant, first map[string]chunker.Chunk) (int, error) {
	var (
		mu       sync.Mutex
		uploaded int
		firstErr error
	)
	err := resilience.ForEach(ctx, c.cfg.Parallelism, len(grants), func(ctx context.Context, i int) error {
		grant := grants[i]
		ch, ok := first[grant.Hash]
		if !ok {
			return resilience.Permanent(fmt.Errorf("gateway granted unknown hash %s", grant.Hash))
		}
		data, err := chunker.ReadChunk(src, ch)
		if err != nil {
			return resilience.Permanent(err)
		}
		if err := chunker.Verify(grant.Hash, data); err != nil {
			return resilience.Permanent(fmt.Errorf("%w: chunk %d", ErrSourceChanged, ch.Index))
		}

		err = c.PutChunk(ctx, fileID, grant, data)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, err
	}
	return uploaded, firstErr
}
