package app

import (
	"context"
	"os"
	"testing"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/objectstore"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reloadedNodes = `
nodes:
  - id: "n2"
    region: "local"
    bucket: "chunks"
    status: "active"
    backend:
      type: "remote"
      addr: "http://127.0.0.1:9002"
  - id: "n3"
    region: "local"
    bucket: "chunks"
    status: "maintenance"
    backend:
      type: "remote"
      addr: "http://127.0.0.1:9003"
`

func remoteNode(id, addr string) domain.StorageNode {
	return domain.StorageNode{
		ID:      id,
		Region:  "local",
		Bucket:  "chunks",
		Status:  domain.NodeStatusActive,
		Backend: domain.BackendSpec{Type: domain.BackendRemote, Addr: addr},
	}
}

func TestNodeReloader(t *testing.T) {
	ctx := context.Background()
	initial := []domain.StorageNode{
		remoteNode("n1", "http://127.0.0.1:9001"),
		remoteNode("n2", "http://127.0.0.1:9002"),
	}
	registry := service.NewNodeRegistry(initial, nil)
	pool := objectstore.NewPool(objectstore.NewConfig(config.DefaultConfig().App), nil)
	for _, n := range initial {
		_, err := pool.Store(n)
		require.NoError(t, err)
	}

	selected, err := registry.SelectStorageNode(ctx)
	require.NoError(t, err)

	// Config files are resolved relative to the working directory.
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("gateway.yaml", []byte(reloadedNodes), 0o600))

	r := newNodeReloader("gateway.yaml", registry, pool)
	require.NoError(t, r.reload())

	assert.Equal(t, 1, pool.Len(), "client of the removed node is dropped")
	_, ok := registry.GetStorageNodeByID("n1")
	assert.False(t, ok)
	n3, ok := registry.GetStorageNodeByID("n3")
	require.True(t, ok)
	assert.Equal(t, domain.NodeStatusMaintenance, n3.Status)

	if selected.ID == "n2" {
		n2, _ := registry.GetStorageNodeByID("n2")
		assert.Equal(t, int64(1), n2.Load, "load of kept nodes survives a reload")
	}
}

func TestNodeReloader_KeepsNodesOnBadConfig(t *testing.T) {
	registry := service.NewNodeRegistry([]domain.StorageNode{remoteNode("n1", "http://127.0.0.1:9001")}, nil)
	pool := objectstore.NewPool(objectstore.NewConfig(config.DefaultConfig().App), nil)

	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("empty.yaml", []byte("nodes: []\n"), 0o600))

	for _, path := range []string{"empty.yaml", "missing.yaml"} {
		assert.Error(t, newNodeReloader(path, registry, pool).reload())
	}
	_, ok := registry.GetStorageNodeByID("n1")
	assert.True(t, ok)
}
