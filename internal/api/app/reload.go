package app

import (
	"errors"
	"fmt"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/objectstore"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/service"
	"github.com/anthanhphan/gosdk/logger"
)

// nodeReloader re-reads the node list from the config file on SIGHUP.
type nodeReloader struct {
	path     string
	registry *service.NodeRegistry
	pool     *objectstore.Pool
}

func newNodeReloader(path string, registry *service.NodeRegistry, pool *objectstore.Pool) *nodeReloader {
	return &nodeReloader{path: path, registry: registry, pool: pool}
}

// reload swaps node descriptors in the registry and drops clients of removed
// nodes. The current set is kept when the file cannot be read or lists no nodes.
func (r *nodeReloader) reload() error {
	cfg, err := config.Load(r.path)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	if len(cfg.Nodes) == 0 {
		return errors.New("reloaded config lists no storage nodes")
	}

	r.registry.Reload(cfg.Nodes)
	r.pool.Prune(cfg.Nodes)
	logger.Infow("Storage nodes reloaded", "nodes", len(cfg.Nodes), "clients", r.pool.Len())
	return nil
}
