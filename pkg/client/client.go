// Package client drives chunked transfers against the gateway API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/pkg/chunker"
	"github.com/anthanhphan/go-chunk-transfer/pkg/resilience"
)

const (
	headerUserID = "X-User-ID"
	headerToken  = "X-Transfer-Token"
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	UserID      string
	ChunkSize   int64
	Parallelism int
	// Rounds bounds how often missing chunks are re-registered and retried.
	Rounds     int
	Retry      resilience.RetryPolicy
	HTTPClient *http.Client
}

// Client talks to one gateway on behalf of one user.
type Client struct {
	base  string
	cfg   Config
	http  *http.Client
	chunk *chunker.Chunker
}

// New creates a client with defaults for every unset field.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway base url is required")
	}
	if !strings.Contains(cfg.BaseURL, "://") {
		cfg.BaseURL = "http://" + cfg.BaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.Rounds <= 0 {
		cfg.Rounds = 3
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = resilience.RetryPolicy{
			MaxAttempts:    3,
			AttemptTimeout: time.Minute,
			Budget:         3 * time.Minute,
			BaseBackoff:    200 * time.Millisecond,
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: cfg.Parallelism * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		cfg:   cfg,
		http:  httpClient,
		chunk: chunker.New(cfg.ChunkSize),
	}, nil
}

// ErrSourceChanged means the local file no longer matches the manifest being uploaded.
var ErrSourceChanged = errors.New("source changed since it was split")

// APIError is a non-2xx gateway answer.
type APIError struct {
	Status        int      `json:"-"`
	Code          string   `json:"code"`
	Message       string   `json:"error"`
	Field         string   `json:"field,omitempty"`
	Node          string   `json:"node,omitempty"`
	MissingChunks []string `json:"missingChunks,omitempty"`
	RetryAfterMs  int64    `json:"retryAfterMs,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("gateway answered %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("gateway answered %d %s: %s", e.Status, e.Code, e.Message)
}

// Retriable reports whether another round with fresh tokens may succeed.
func (e *APIError) Retriable() bool {
	switch e.Code {
	case "TOKEN_INVALID", "TOKEN_EXPIRED", "INCOMPLETE", "STORAGE_ERROR", "NODE_UNAVAILABLE":
		return true
	}
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// IsRetriable classifies errors from any client call.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || resilience.IsPermanent(err) || errors.Is(err, ErrSourceChanged) {
		return false
	}
	if errors.Is(err, chunker.ErrChunkCorrupted) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retriable()
	}
	// Transport failures.
	return true
}

// do sends one request and decodes a JSON answer into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerUserID, c.cfg.UserID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer drain(resp)
	if err := apiError(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// call wraps do with the retry policy. Only idempotent calls go through here.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	return c.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		err := c.do(ctx, method, path, in, out)
		if err != nil && !IsRetriable(err) {
			return resilience.Permanent(err)
		}
		return err
	})
}

func apiError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}

func escape(s string) string {
	return url.PathEscape(s)
}
