package app

import (
	"context"
	"testing"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/service"
	"github.com/anthanhphan/go-chunk-transfer/pkg/gossip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipObserver(t *testing.T) {
	registry := service.NewNodeRegistry([]domain.StorageNode{
		{ID: "n1", Status: domain.NodeStatusActive},
		{ID: "n2", Status: domain.NodeStatusActive},
	}, nil)
	obs := newMembershipObserver(registry)
	ctx := context.Background()

	obs.MemberLeft(gossip.Member{Name: "gw-2", Role: gossip.RoleGateway, NodeID: "n1"})
	obs.MemberLeft(gossip.Member{Name: "storage-1", Role: gossip.RoleStorage, NodeID: "n1"})

	for i := 0; i < 3; i++ {
		node, err := registry.SelectStorageNode(ctx)
		require.NoError(t, err)
		assert.Equal(t, "n2", node.ID, "departed node is never selected")
	}

	obs.MemberJoined(gossip.Member{Name: "storage-1", Role: gossip.RoleStorage, NodeID: "n1"})
	node, err := registry.SelectStorageNode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "n1", node.ID, "rejoined node has the lowest load")
}
