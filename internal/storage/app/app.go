package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpHandler "github.com/anthanhphan/go-chunk-transfer/internal/storage/adapter/inbound/http"
	"github.com/anthanhphan/go-chunk-transfer/internal/storage/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/storage/service"
	"github.com/anthanhphan/go-chunk-transfer/pkg/diskstore"
	"github.com/anthanhphan/go-chunk-transfer/pkg/gossip"
	"github.com/anthanhphan/gosdk/logger"
)

const statsInterval = time.Minute

type App struct {
	cfg     *config.Config
	nodeID  string
	server  *httpHandler.Server
	objects *service.ObjectServiceImpl
	gossip  *gossip.GossipAdapter
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	nodeID := cfg.ResolveNodeID()

	// 3. Disk store
	store, err := diskstore.New(cfg.Disk)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	// 4. Object service + HTTP API
	objects := service.NewObjectService(store, nodeID, cfg.Server.Region, cfg.Server.MaxObjectSize)
	bodyLimit := cfg.Server.BodyLimit
	if min := int(cfg.Server.MaxObjectSize) + 1024; bodyLimit < min {
		bodyLimit = min
	}
	server := httpHandler.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), bodyLimit, objects)

	a := &App{cfg: cfg, nodeID: nodeID, server: server, objects: objects}

	// 5. Gossip announce
	if cfg.Gossip.Enabled {
		a.gossip, err = gossip.NewGossipAdapter(gossip.Config{
			Name:     nodeID,
			BindAddr: cfg.Server.Hostname,
			BindPort: cfg.Gossip.Port,
			Meta: gossip.Meta{
				Role:       gossip.RoleStorage,
				NodeID:     nodeID,
				Region:     cfg.Server.Region,
				ServerPort: cfg.Server.Port,
			},
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to init gossip: %w", err)
		}
	}

	return a, nil
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.gossip != nil {
		go func() {
			if err := a.gossip.JoinWithRetry(a.seeds(), 5, 2*time.Second); err != nil {
				logger.Errorw("Failed to join cluster after retries", "error", err.Error())
			}
		}()
	}
	go a.reportStats(ctx)

	logger.Infow("Storage node starting",
		"id", a.nodeID,
		"port", a.cfg.Server.Port,
		"region", a.cfg.Server.Region,
		"data_dir", a.cfg.Disk.DataDir,
		"gossip", a.cfg.Gossip.Enabled)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = fmt.Errorf("http server failed: %w", err)
		logger.Errorw("Storage server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down storage node")
	cancel()
	// Leave before draining so gateways stop routing here.
	if a.gossip != nil {
		if err := a.gossip.Leave(); err != nil {
			logger.Warnw("Gossip leave failed", "error", err.Error())
		}
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		logger.Errorw("Storage shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}

// seeds drops this node's own gossip address from the seed list.
func (a *App) seeds() []string {
	self := fmt.Sprintf("%s:%d", a.cfg.Server.Hostname, a.cfg.Gossip.Port)
	out := make([]string, 0, len(a.cfg.Gossip.Seeds))
	for _, s := range a.cfg.Gossip.Seeds {
		if s == "" || s == self {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (a *App) reportStats(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		if st, err := a.objects.Stats(ctx); err != nil {
			logger.Warnw("Stats scan failed", "error", err.Error())
		} else {
			logger.Debugw("Stats scan", "objects", st.Objects, "bytes", st.Bytes)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
