package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
)

// ErrRejected marks a 4xx answer from a storage node. Retrying cannot help.
var ErrRejected = errors.New("request rejected by storage node")

// BatchDeleteRequest is the body of the node daemon's batch delete route.
type BatchDeleteRequest struct {
	Keys []string `json:"keys"`
}

// BatchDeleteResponse lists keys the node could not delete with the reason.
type BatchDeleteResponse struct {
	Failed map[string]string `json:"failed"`
}

// RemoteStore talks to a cmd/storage daemon over its object HTTP API.
type RemoteStore struct {
	base   string
	client *http.Client
}

var _ port.ObjectStore = (*RemoteStore)(nil)

// NewRemoteStore targets the daemon at addr, e.g. http://10.0.0.5:8081.
func NewRemoteStore(addr string, client *http.Client) (*RemoteStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("remote store address is required")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if _, err := url.Parse(addr); err != nil {
		return nil, fmt.Errorf("invalid remote store address %q: %w", addr, err)
	}
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 64,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &RemoteStore{base: strings.TrimRight(addr, "/"), client: client}, nil
}

func (s *RemoteStore) objectURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.base + "/v1/objects/" + strings.Join(parts, "/")
}

func (s *RemoteStore) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(key), body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	defer drain(resp)
	return statusError("put", key, resp)
}

func (s *RemoteStore) Head(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.objectURL(key), nil)
	if err != nil {
		return false, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("head object %s: %w", key, err)
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err := statusError("head", key, resp); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RemoteStore) Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(key), nil)
	if err != nil {
		return nil, 0, err
	}
	switch {
	case length >= 0:
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	case offset > 0:
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("get object %s: %w", key, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return nil, 0, domain.ErrObjectNotFound
	}
	if err := statusError("get", key, resp); err != nil {
		drain(resp)
		return nil, 0, err
	}

	n := resp.ContentLength
	if n < 0 {
		n, _ = strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	}
	return resp.Body, n, nil
}

func (s *RemoteStore) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return statusError("delete", key, resp)
}

func (s *RemoteStore) DeleteBatch(ctx context.Context, keys []string) error {
	payload, err := json.Marshal(BatchDeleteRequest{Keys: keys})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/v1/objects/delete", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("batch delete: %w", err)
	}
	defer drain(resp)
	if err := statusError("batch delete", "", resp); err != nil {
		return err
	}

	var out BatchDeleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode batch delete response: %w", err)
	}
	if len(out.Failed) == 0 {
		return nil
	}
	failed := make(map[string]error, len(out.Failed))
	for k, msg := range out.Failed {
		failed[k] = errors.New(msg)
	}
	return &port.BatchDeleteError{Failed: failed}
}

func statusError(op, key string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s %s: node answered %d: %s", op, key, resp.StatusCode, strings.TrimSpace(string(msg)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return err
}

// drain lets the transport reuse the connection.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}
