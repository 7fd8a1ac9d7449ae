package redis_store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/redis/go-redis/v9"
)

// LoadCounter shares per-node placement counts between gateways.
type LoadCounter struct {
	client redis.Cmdable
	prefix string
}

var _ port.LoadCounter = (*LoadCounter)(nil)

func NewLoadCounter(client redis.Cmdable, prefix string) *LoadCounter {
	return &LoadCounter{client: client, prefix: prefix}
}

func (c *LoadCounter) key(nodeID string) string {
	return c.prefix + "node:load:" + nodeID
}

func (c *LoadCounter) Incr(ctx context.Context, nodeID string) (int64, error) {
	n, err := c.client.Incr(ctx, c.key(nodeID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment load of %s: %w", nodeID, err)
	}
	return n, nil
}

// Loads returns the counters of nodeIDs. Nodes never incremented are absent.
func (c *LoadCounter) Loads(ctx context.Context, nodeIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(nodeIDs))
	if len(nodeIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(nodeIDs))
	for i, id := range nodeIDs {
		keys[i] = c.key(id)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read node loads: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt load counter for %s: %w", nodeIDs[i], err)
		}
		out[nodeIDs[i]] = n
	}
	return out, nil
}
