package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/metrics"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/anthanhphan/go-chunk-transfer/pkg/diskstore"
	"github.com/anthanhphan/go-chunk-transfer/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

// Factory opens the raw backend of a node.
type Factory func(ctx context.Context, node domain.StorageNode) (port.ObjectStore, error)

// Config controls how every node client is guarded.
type Config struct {
	Retry           resilience.RetryPolicy
	BreakerFailures int
	BreakerOpen     time.Duration
	DialTimeout     time.Duration
}

// NewConfig derives pool settings from the gateway app section.
func NewConfig(app config.AppConfig) Config {
	attempts := app.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	return Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    attempts,
			AttemptTimeout: app.WriteTimeout(),
			Budget:         app.WriteTimeout(),
			BaseBackoff:    100 * time.Millisecond,
		},
		BreakerFailures: app.BreakerFailures,
		BreakerOpen:     time.Duration(app.BreakerOpenSec) * time.Second,
		DialTimeout:     10 * time.Second,
	}
}

// Pool memoises one guarded client per node id.
type Pool struct {
	mu      sync.Mutex
	cfg     Config
	factory Factory
	entries map[string]*entry
}

type entry struct {
	fingerprint fingerprint
	store       *guardedStore
}

// fingerprint is the part of a node descriptor that requires a new client when changed.
type fingerprint struct {
	region  string
	bucket  string
	backend domain.BackendSpec
}

var _ port.ObjectStoreProvider = (*Pool)(nil)

// NewPool creates a pool. A nil factory uses DefaultFactory.
func NewPool(cfg Config, factory Factory) *Pool {
	if factory == nil {
		factory = DefaultFactory
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Pool{cfg: cfg, factory: factory, entries: make(map[string]*entry)}
}

// DefaultFactory dispatches on the node backend type.
func DefaultFactory(ctx context.Context, node domain.StorageNode) (port.ObjectStore, error) {
	switch node.Backend.Type {
	case domain.BackendS3:
		return NewS3Store(ctx, node)
	case domain.BackendLocal:
		return NewLocalStore(diskstore.Config{DataDir: node.Backend.DataDir})
	case domain.BackendRemote, "":
		addr := node.Backend.Addr
		if addr == "" {
			addr = node.Backend.Endpoint
		}
		return NewRemoteStore(addr, nil)
	default:
		return nil, fmt.Errorf("unknown backend type %q for node %s", node.Backend.Type, node.ID)
	}
}

// Store returns the cached client for node, rebuilding it when its backend settings changed.
// Backends are dialled without holding the pool lock.
func (p *Pool) Store(node domain.StorageNode) (port.ObjectStore, error) {
	fp := fingerprint{region: node.Region, bucket: node.Bucket, backend: node.Backend}

	p.mu.Lock()
	prev, ok := p.entries[node.ID]
	p.mu.Unlock()
	if ok && prev.fingerprint == fp {
		return prev.store, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.DialTimeout)
	defer cancel()
	raw, err := p.factory(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to open backend for node %s: %w", node.ID, err)
	}
	store := newGuardedStore(node.ID, raw, p.cfg)

	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.entries[node.ID]; ok && cur.fingerprint == fp {
		// Another caller built the same client first.
		return cur.store, nil
	}
	p.entries[node.ID] = &entry{fingerprint: fp, store: store}
	if ok {
		logger.Infow("Storage node client rebuilt", "node", node.ID, "backend", node.Backend.Type)
	} else {
		logger.Infow("Storage node client created", "node", node.ID, "backend", node.Backend.Type)
	}
	return store, nil
}

// Prune drops clients of nodes no longer configured.
func (p *Pool) Prune(nodes []domain.StorageNode) {
	keep := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		keep[n.ID] = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.entries {
		if !keep[id] {
			delete(p.entries, id)
			metrics.SetBreakerOpen(id, false)
		}
	}
}

// Len returns the number of cached clients.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// guardedStore adds retries, a per-node circuit breaker, metrics and error
// classification on top of a raw backend.
type guardedStore struct {
	nodeID  string
	raw     port.ObjectStore
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
}

func newGuardedStore(nodeID string, raw port.ObjectStore, cfg Config) *guardedStore {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             nodeID,
		FailureThreshold: cfg.BreakerFailures,
		OpenTimeout:      cfg.BreakerOpen,
		IsFailure:        countsAgainstNode,
		OnStateChange: func(name string, from, to resilience.CircuitBreakerState) {
			metrics.SetBreakerOpen(name, to == resilience.CircuitOpen)
			logger.Warnw("Storage node breaker state changed", "node", name, "from", string(from), "to", string(to))
		},
	})
	return &guardedStore{nodeID: nodeID, raw: raw, breaker: breaker, retry: cfg.Retry}
}

func (s *guardedStore) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	policy := s.retry
	seeker, canSeek := body.(io.Seeker)
	var start int64
	if canSeek {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			canSeek = false
		}
		start = pos
	}
	if !canSeek {
		policy.MaxAttempts = 1
	}

	attempt := 0
	err := s.call(ctx, policy, "put", func(ctx context.Context) error {
		if attempt > 0 {
			if _, err := seeker.Seek(start, io.SeekStart); err != nil {
				return resilience.Permanent(err)
			}
		}
		attempt++
		return s.raw.Put(ctx, key, body, size)
	})
	return s.wrap("put", key, err)
}

func (s *guardedStore) Head(ctx context.Context, key string) (bool, error) {
	var found bool
	err := s.call(ctx, s.retry, "head", func(ctx context.Context) error {
		ok, err := s.raw.Head(ctx, key)
		found = ok
		return err
	})
	if err != nil {
		return false, s.wrap("head", key, err)
	}
	return found, nil
}

func (s *guardedStore) Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, int64, error) {
	var (
		body io.ReadCloser
		n    int64
	)
	outer := ctx
	err := s.call(ctx, s.retry, "get", func(context.Context) error {
		// The stream outlives the attempt, so it is bound to the caller's context.
		b, size, err := s.raw.Get(outer, key, offset, length)
		if err != nil {
			return err
		}
		body, n = b, size
		return nil
	})
	if err != nil {
		return nil, 0, s.wrap("get", key, err)
	}
	return body, n, nil
}

func (s *guardedStore) Delete(ctx context.Context, key string) error {
	err := s.call(ctx, s.retry, "delete", func(ctx context.Context) error {
		return s.raw.Delete(ctx, key)
	})
	return s.wrap("delete", key, err)
}

// DeleteBatch retries only the keys that failed in the previous attempt.
func (s *guardedStore) DeleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	remaining := keys
	err := s.call(ctx, s.retry, "delete_batch", func(ctx context.Context) error {
		err := s.raw.DeleteBatch(ctx, remaining)
		var batchErr *port.BatchDeleteError
		if errors.As(err, &batchErr) {
			next := make([]string, 0, len(batchErr.Failed))
			for _, k := range remaining {
				if _, failed := batchErr.Failed[k]; failed {
					next = append(next, k)
				}
			}
			remaining = next
		}
		return err
	})
	var batchErr *port.BatchDeleteError
	if errors.As(err, &batchErr) {
		return batchErr
	}
	return s.wrap("delete_batch", "", err)
}

func (s *guardedStore) call(ctx context.Context, policy resilience.RetryPolicy, op string, fn func(context.Context) error) error {
	started := time.Now()
	err := policy.Do(ctx, func(ctx context.Context) error {
		err := s.breaker.Execute(ctx, fn)
		if err != nil && isPermanent(err) {
			return resilience.Permanent(err)
		}
		return err
	})
	metrics.RecordBackendOp(s.nodeID, op, time.Since(started), reportable(err))
	return err
}

func (s *guardedStore) wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrObjectNotFound) {
		return domain.ErrObjectNotFound
	}
	return &domain.BackendIOError{NodeID: s.nodeID, Op: op, Key: key, Err: err}
}

// isPermanent reports errors no retry can fix.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrObjectNotFound) ||
		errors.Is(err, ErrRejected) ||
		errors.Is(err, diskstore.ErrInvalidKey) ||
		errors.Is(err, diskstore.ErrSizeMismatch)
}

// countsAgainstNode keeps caller mistakes from tripping the breaker.
func countsAgainstNode(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !isPermanent(err)
}

func reportable(err error) error {
	if errors.Is(err, domain.ErrObjectNotFound) {
		return nil
	}
	return err
}
