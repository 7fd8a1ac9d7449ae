package service

import (
	"context"
	"sync"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
)

// NodeRegistry holds the configured storage nodes and picks one per new file.
//
// Without a shared counter, load is tracked per process: two gateways do not see
// each other's placements. A port.LoadCounter backed by Redis makes the counter
// global but still only advisory.
type NodeRegistry struct {
	mu          sync.RWMutex
	selectMu    sync.Mutex
	nodes       []domain.StorageNode
	localLoad   map[string]int64
	unreachable map[string]bool
	shared      port.LoadCounter
}

// NewNodeRegistry creates a registry. shared may be nil for process-local load.
func NewNodeRegistry(nodes []domain.StorageNode, shared port.LoadCounter) *NodeRegistry {
	r := &NodeRegistry{
		localLoad:   make(map[string]int64),
		unreachable: make(map[string]bool),
		shared:      shared,
	}
	r.Reload(nodes)
	return r
}

// SelectStorageNode picks the active node with the lowest load, ties going to
// the earliest configured node, and increments its load.
func (r *NodeRegistry) SelectStorageNode(ctx context.Context) (domain.StorageNode, error) {
	r.selectMu.Lock()
	defer r.selectMu.Unlock()

	candidates := r.activeNodes()
	if len(candidates) == 0 {
		return domain.StorageNode{}, &domain.NodeUnavailableError{}
	}

	loads, err := r.loads(ctx, candidates)
	if err != nil {
		return domain.StorageNode{}, err
	}

	best := -1
	for i, n := range candidates {
		if best < 0 || loads[n.ID] < loads[candidates[best].ID] {
			best = i
		}
	}
	chosen := candidates[best]

	load, err := r.incr(ctx, chosen.ID)
	if err != nil {
		return domain.StorageNode{}, err
	}
	chosen.Load = load

	logger.Debugw("Storage node selected", "node_id", chosen.ID, "load", load)
	return chosen, nil
}

// GetStorageNodeByID returns the node descriptor, or false for unknown ids.
func (r *NodeRegistry) GetStorageNodeByID(id string) (domain.StorageNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.nodes {
		if n.ID == id {
			n.Status = r.effectiveStatusLocked(n)
			n.Load = r.localLoad[n.ID]
			return n, true
		}
	}
	return domain.StorageNode{}, false
}

// ListNodes returns all nodes in configuration order with their current load.
func (r *NodeRegistry) ListNodes(ctx context.Context) []domain.StorageNode {
	r.mu.RLock()
	out := make([]domain.StorageNode, len(r.nodes))
	for i, n := range r.nodes {
		n.Status = r.effectiveStatusLocked(n)
		n.Load = r.localLoad[n.ID]
		out[i] = n
	}
	r.mu.RUnlock()

	if r.shared != nil {
		ids := make([]string, len(out))
		for i, n := range out {
			ids[i] = n.ID
		}
		loads, err := r.shared.Loads(ctx, ids)
		if err != nil {
			logger.Warnw("Shared load lookup failed", "error", err.Error())
			return out
		}
		for i := range out {
			out[i].Load = loads[out[i].ID]
		}
	}
	return out
}

// Reload replaces node descriptors. Load of nodes that are kept is preserved.
func (r *NodeRegistry) Reload(nodes []domain.StorageNode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]domain.StorageNode, 0, len(nodes))
	load := make(map[string]int64, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ID == "" || seen[n.ID] {
			logger.Warnw("Skipping storage node with empty or duplicate id", "node_id", n.ID)
			continue
		}
		seen[n.ID] = true
		if prev, ok := r.localLoad[n.ID]; ok {
			load[n.ID] = prev
		} else {
			load[n.ID] = n.Load
		}
		next = append(next, n)
	}
	for id := range r.unreachable {
		if !seen[id] {
			delete(r.unreachable, id)
		}
	}

	r.nodes = next
	r.localLoad = load
	logger.Infow("Storage node registry loaded", "nodes", len(next))
}

// SetReachable records liveness observed through gossip. An unreachable
// node is reported offline and never selected. Maintenance is never overridden.
func (r *NodeRegistry) SetReachable(id string, reachable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reachable {
		delete(r.unreachable, id)
	} else {
		r.unreachable[id] = true
	}
}

func (r *NodeRegistry) activeNodes() []domain.StorageNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.StorageNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		n.Status = r.effectiveStatusLocked(n)
		if n.IsActive() {
			out = append(out, n)
		}
	}
	return out
}

func (r *NodeRegistry) effectiveStatusLocked(n domain.StorageNode) domain.NodeStatus {
	if n.Status == domain.NodeStatusActive && r.unreachable[n.ID] {
		return domain.NodeStatusOffline
	}
	return n.Status
}

func (r *NodeRegistry) loads(ctx context.Context, nodes []domain.StorageNode) (map[string]int64, error) {
	if r.shared != nil {
		ids := make([]string, len(nodes))
		for i, n := range nodes {
			ids[i] = n.ID
		}
		return r.shared.Loads(ctx, ids)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64, len(nodes))
	for _, n := range nodes {
		out[n.ID] = r.localLoad[n.ID]
	}
	return out, nil
}

func (r *NodeRegistry) incr(ctx context.Context, id string) (int64, error) {
	if r.shared != nil {
		return r.shared.Incr(ctx, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.localLoad[id]++
	return r.localLoad[id], nil
}
