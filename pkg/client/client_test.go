package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	httpHandler "github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/inbound/http"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/memory"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/objectstore"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/service"
	"github.com/anthanhphan/go-chunk-transfer/pkg/chunker"
	"github.com/anthanhphan/go-chunk-transfer/pkg/idgen"
	"github.com/anthanhphan/go-chunk-transfer/pkg/resilience"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChunkSize = 8

// newGateway runs a real gateway over memory stores and a local disk node.
// wrap may intercept requests before they reach it.
func newGateway(t *testing.T, wrap func(next http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.App.ChunkSize = testChunkSize
	cfg.App.MaxFileSize = 1024

	nodes := []domain.StorageNode{{
		ID:      "node-1",
		Region:  "local",
		Status:  domain.NodeStatusActive,
		Backend: domain.BackendSpec{Type: domain.BackendLocal, DataDir: t.TempDir()},
	}}
	files := memory.NewFileStore()
	ids, err := idgen.New(1, &idgen.SystemClock{})
	require.NoError(t, err)

	svc := service.NewTransferService(cfg, service.Dependencies{
		Files:    files,
		Usage:    files,
		Tokens:   memory.NewTokenStore(),
		Stores:   objectstore.NewPool(objectstore.NewConfig(cfg.App), nil),
		Registry: service.NewNodeRegistry(nodes, nil),
		IDGen:    ids,
	})
	var h http.Handler = adaptor.FiberApp(httpHandler.NewServer(cfg, svc, svc).App())
	if wrap != nil {
		h = wrap(h)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:     srv.URL,
		UserID:      "user-1",
		ChunkSize:   testChunkSize,
		Parallelism: 3,
		HTTPClient:  srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// memFile is an in-memory io.WriterAt.
type memFile struct {
	mu  sync.Mutex
	buf []byte
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if end := int(off) + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[off:], p)
	return len(p), nil
}

// Two identical chunks share one token in both directions.
const sample = "aaaaaaaa" + "0123456789abcdef" + "aaaaaaaa" + "xyz"

func TestClient_UploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, newGateway(t, nil))

	res, err := c.Upload(ctx, writeTemp(t, sample), UploadOptions{MimeType: "text/plain"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.FileID)
	assert.Equal(t, int64(len(sample)), res.Size)
	assert.Equal(t, 5, res.Chunks)
	assert.Equal(t, 4, res.Uploaded, "repeated chunk is sent once")
	assert.Equal(t, int64(len(sample)), res.Used)
	assert.False(t, res.Duplicate)

	var out memFile
	file, err := c.Download(ctx, res.FileID, &out)
	require.NoError(t, err)
	assert.Equal(t, sample, string(out.buf))
	assert.Equal(t, "data.bin", file.FileName)

	again, err := c.Upload(ctx, writeTemp(t, sample), UploadOptions{})
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Zero(t, again.Uploaded)
	assert.Equal(t, res.FileID, again.FileID)
	assert.Equal(t, int64(len(sample)), again.Used, "finalizing twice charges once")
}

func TestClient_UploadRetriesFailedChunks(t *testing.T) {
	var failed atomic.Bool
	srv := newGateway(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut && failed.CompareAndSwap(false, true) {
				http.Error(w, `{"error":"node down","code":"STORAGE_ERROR"}`, http.StatusBadGateway)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	c := newTestClient(t, srv)

	res, err := c.Upload(context.Background(), writeTemp(t, sample), UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rounds)

	var out memFile
	_, err = c.Download(context.Background(), res.FileID, &out)
	require.NoError(t, err)
	assert.Equal(t, sample, string(out.buf))
}

func TestClient_DownloadRefetchesCorruptedChunk(t *testing.T) {
	var corrupted atomic.Bool
	srv := newGateway(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/chunks/") &&
				corrupted.CompareAndSwap(false, true) {
				_, _ = w.Write([]byte("XXXXXXXX"))
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	c := newTestClient(t, srv)

	res, err := c.Upload(context.Background(), writeTemp(t, sample), UploadOptions{})
	require.NoError(t, err)

	var out memFile
	_, err = c.Download(context.Background(), res.FileID, &out)
	require.NoError(t, err)
	assert.Equal(t, sample, string(out.buf))
	assert.NotContains(t, string(out.buf), "XXXXXXXX")
}

func TestClient_PermanentErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newGateway(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			next.ServeHTTP(w, r)
		})
	})
	c := newTestClient(t, srv)

	_, err := c.Download(context.Background(), "does-not-exist", &memFile{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_UploadSourceChanged(t *testing.T) {
	c := newTestClient(t, newGateway(t, nil))

	m, err := chunker.New(testChunkSize).Split(strings.NewReader(sample))
	require.NoError(t, err)
	changed := bytes.NewReader([]byte(strings.Replace(sample, "xyz", "XYZ", 1)))

	_, err = c.UploadManifest(context.Background(), changed, m, UploadOptions{FileName: "f.bin"})
	assert.ErrorIs(t, err, ErrSourceChanged)
}

func TestClient_DeleteFiles(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, newGateway(t, nil))

	res, err := c.Upload(ctx, writeTemp(t, sample), UploadOptions{})
	require.NoError(t, err)

	report, err := c.DeleteFiles(ctx, []string{res.FileID})
	require.NoError(t, err)
	assert.Equal(t, []string{res.FileID}, report.Deleted)
	assert.Empty(t, report.Failed)

	_, err = c.Meta(ctx, res.FileID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "corrupted", err: chunker.ErrChunkCorrupted, want: true},
		{name: "expired token", err: &APIError{Status: 401, Code: "TOKEN_EXPIRED"}, want: true},
		{name: "incomplete", err: &APIError{Status: 409, Code: "INCOMPLETE"}, want: true},
		{name: "storage", err: &APIError{Status: 502, Code: "STORAGE_ERROR"}, want: true},
		{name: "validation", err: &APIError{Status: 400, Code: "VALIDATION_ERROR"}, want: false},
		{name: "forbidden", err: &APIError{Status: 403, Code: "FORBIDDEN"}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "permanent", err: resilience.Permanent(errors.New("disk full")), want: false},
		{name: "transport", err: errors.New("connection reset"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetriable(tt.err))
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "localhost:8090/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8090", c.base)
	assert.Equal(t, 4, c.cfg.Parallelism)
	assert.Equal(t, 3, c.cfg.Rounds)
}
