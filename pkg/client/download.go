package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/anthanhphan/go-chunk-transfer/pkg/chunker"
	"github.com/anthanhphan/go-chunk-transfer/pkg/resilience"
)

// Meta fetches the download grants of a complete file.
func (c *Client) Meta(ctx context.Context, fileID string) (*FileMeta, error) {
	var out FileMeta
	if err := c.call(ctx, http.MethodGet, "/v1/files/"+escape(fileID)+"/meta", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChunk downloads and verifies one whole chunk. A hash mismatch returns
// chunker.ErrChunkCorrupted and no data.
func (c *Client) GetChunk(ctx context.Context, fileID string, grant ChunkGrant) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/v1/chunks/"+escape(fileID)+"/"+escape(grant.Hash), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerToken, grant.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download chunk %s: %w", grant.Hash, err)
	}
	defer drain(resp)
	if err := apiError(resp); err != nil {
		return nil, err
	}

	limit := grant.Size
	if limit <= 0 {
		limit = c.chunk.Size()
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("download chunk %s: %w", grant.Hash, err)
	}
	if err := chunker.Verify(grant.Hash, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Download reassembles fileID into dst in manifest order. Chunks are fetched in
// parallel and each is verified before any byte is written. Corrupted or failed
// chunks are fetched again with fresh grants, up to Rounds times.
func (c *Client) Download(ctx context.Context, fileID string, dst io.WriterAt) (*File, error) {
	var (
		done    map[string]bool
		file    *File
		lastErr error
	)
	for round := 1; round <= c.cfg.Rounds; round++ {
		meta, err := c.Meta(ctx, fileID)
		if err != nil {
			return nil, err
		}
		file = meta.File
		if done == nil {
			done = make(map[string]bool, len(meta.Chunks))
		}

		err = c.fetchRound(ctx, fileID, meta.Chunks, done, dst)
		if err == nil {
			return file, nil
		}
		if !IsRetriable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("download of %s unfinished after %d rounds: %w", fileID, c.cfg.Rounds, lastErr)
}

// fetchRound downloads every unique hash not yet in done. Repeated hashes share
// one single-use token, so each hash is fetched once and written to all its positions.
func (c *Client) fetchRound(ctx context.Context, fileID string, grants []ChunkGrant, done map[string]bool, dst io.WriterAt) error {
	offsets := make(map[string][]int64)
	var order []ChunkGrant
	var off int64
	for _, g := range grants {
		if _, seen := offsets[g.Hash]; !seen && !done[g.Hash] {
			order = append(order, g)
		}
		offsets[g.Hash] = append(offsets[g.Hash], off)
		off += g.Size
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	err := resilience.ForEach(ctx, c.cfg.Parallelism, len(order), func(ctx context.Context, i int) error {
		grant := order[i]
		data, err := c.GetChunk(ctx, fileID, grant)
		if err == nil && int64(len(data)) != grant.Size {
			err = fmt.Errorf("%w: chunk %s has %d bytes, manifest says %d", chunker.ErrChunkCorrupted, grant.Hash, len(data), grant.Size)
		}
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return nil
		}

		for _, at := range offsets[grant.Hash] {
			if _, err := dst.WriteAt(data, at); err != nil {
				return resilience.Permanent(fmt.Errorf("write chunk %s at %d: %w", grant.Hash, at, err))
			}
		}
		mu.Lock()
		done[grant.Hash] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	return firstErr
}

// DeleteFiles removes files and reports per-node failures.
func (c *Client) DeleteFiles(ctx context.Context, fileIDs []string) (*DeleteReport, error) {
	var out DeleteReport
	in := struct {
		FileIDs []string `json:"fileIds"`
	}{FileIDs: fileIDs}
	if err := c.call(ctx, http.MethodPost, "/v1/files/delete", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
