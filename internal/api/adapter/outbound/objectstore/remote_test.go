package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode imitates the storage daemon object API.
type fakeNode struct {
	mu      sync.Mutex
	objects map[string][]byte
	deny    map[string]bool
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if r.URL.Path == "/v1/objects/delete" && r.Method == http.MethodPost {
		var req BatchDeleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := BatchDeleteResponse{Failed: map[string]string{}}
		for _, k := range req.Keys {
			if n.deny[k] {
				resp.Failed[k] = "permission denied"
				continue
			}
			delete(n.objects, k)
		}
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v1/objects/")
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		if int64(len(b)) != r.ContentLength {
			http.Error(w, "length mismatch", http.StatusBadRequest)
			return
		}
		n.objects[key] = b
		w.WriteHeader(http.StatusCreated)
	case http.MethodHead, http.MethodGet:
		b, ok := n.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		status := http.StatusOK
		var start, end int64 = 0, int64(len(b)) - 1
		if rng := r.Header.Get("Range"); rng != "" {
			if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
				_, _ = fmt.Sscanf(rng, "bytes=%d-", &start)
			}
			status = http.StatusPartialContent
		}
		w.Header().Set("Content-Length", fmt.Sprint(end-start+1))
		w.WriteHeader(status)
		if r.Method == http.MethodGet {
			_, _ = w.Write(b[start : end+1])
		}
	case http.MethodDelete:
		delete(n.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeNode(t *testing.T) (*fakeNode, *RemoteStore) {
	t.Helper()
	node := &fakeNode{objects: make(map[string][]byte), deny: make(map[string]bool)}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	store, err := NewRemoteStore(srv.URL, srv.Client())
	require.NoError(t, err)
	return node, store
}

func TestRemoteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	node, store := newFakeNode(t)
	key := domain.ObjectKey("n1", "f1", "abc")

	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello world"), 11))
	assert.Equal(t, []byte("hello world"), node.objects[key])

	ok, err := store.Head(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	body, n, err := store.Get(ctx, key, 6, 5)
	require.NoError(t, err)
	b, _ := io.ReadAll(body)
	body.Close()
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "world", string(b))

	require.NoError(t, store.Delete(ctx, key))
	ok, err = store.Head(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = store.Get(ctx, key, 0, -1)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestRemoteStore_BatchDelete(t *testing.T) {
	ctx := context.Background()
	node, store := newFakeNode(t)
	node.objects["a"] = []byte("1")
	node.objects["b"] = []byte("2")
	node.deny["b"] = true

	err := store.DeleteBatch(ctx, []string{"a", "b"})

	var batchErr *port.BatchDeleteError
	require.True(t, errors.As(err, &batchErr))
	assert.Len(t, batchErr.Failed, 1)
	assert.NotContains(t, node.objects, "a")
	assert.Contains(t, node.objects, "b")
}

func TestRemoteStore_ClientErrorsAreRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusBadRequest)
	}))
	defer srv.Close()
	bad, err := NewRemoteStore(srv.URL, srv.Client())
	require.NoError(t, err)

	err = bad.Delete(context.Background(), "k")
	assert.ErrorIs(t, err, ErrRejected)
	assert.True(t, isPermanent(err))
}

func TestNewRemoteStore_Address(t *testing.T) {
	_, err := NewRemoteStore("", nil)
	assert.Error(t, err)

	s, err := NewRemoteStore("10.0.0.1:8081/", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:8081/v1/objects/n1/f%201/h", s.objectURL("n1/f 1/h"))
}
