package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpHandler "github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/inbound/http"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/memory"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/objectstore"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/postgres"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/adapter/outbound/redis_store"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/service"
	"github.com/anthanhphan/go-chunk-transfer/pkg/gossip"
	"github.com/anthanhphan/go-chunk-transfer/pkg/idgen"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "chunk:"

type App struct {
	cfg      *config.Config
	server   *httpHandler.Server
	registry *service.NodeRegistry
	reloader *nodeReloader
	sweeper  *memory.TokenStore
	gossip   *gossip.GossipAdapter
	redis    *redis.Client
	db       *sql.DB
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	a := &App{cfg: cfg}
	if err := a.wire(context.Background(), configPath); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, configPath string) error {
	cfg := a.cfg

	// 3. Redis is only dialled when a component is configured to share state through it
	if cfg.Tokens.Driver == config.StoreRedis || cfg.App.LoadScope == config.LoadScopeShared {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	// 4. Snowflake IDGen
	var clock idgen.Clock = &idgen.SystemClock{}
	if a.redis != nil {
		clock = idgen.NewRedisClock(a.redis)
	}
	idGen, err := idgen.New(cfg.App.NodeID, clock)
	if err != nil {
		return fmt.Errorf("failed to init snowflake: %w", err)
	}

	// 5. Metadata
	files, usage, err := a.metadataStore(ctx)
	if err != nil {
		return err
	}

	// 6. Tokens and node load
	tokens, err := a.tokenStore()
	if err != nil {
		return err
	}
	var loads port.LoadCounter
	switch cfg.App.LoadScope {
	case config.LoadScopeShared:
		loads = redis_store.NewLoadCounter(a.redis, redisKeyPrefix)
	case config.LoadScopeLocal, "":
	default:
		return fmt.Errorf("unknown load scope %q", cfg.App.LoadScope)
	}
	a.registry = service.NewNodeRegistry(cfg.Nodes, loads)
	stores := objectstore.NewPool(objectstore.NewConfig(cfg.App), nil)
	a.reloader = newNodeReloader(configPath, a.registry, stores)

	// 7. Services
	svc := service.NewTransferService(cfg, service.Dependencies{
		Files:    files,
		Usage:    usage,
		Tokens:   tokens,
		Stores:   stores,
		Registry: a.registry,
		IDGen:    idGen,
	})

	// 8. Gossip observer (gateway does not own data, it only watches node liveness)
	if cfg.Gossip.Enabled {
		a.gossip, err = gossip.NewGossipAdapter(gossip.Config{
			Name:     cfg.Gossip.Name,
			BindAddr: cfg.Gossip.BindAddr,
			BindPort: cfg.Gossip.Port,
			Meta:     gossip.Meta{Role: gossip.RoleGateway},
		}, newMembershipObserver(a.registry))
		if err != nil {
			return fmt.Errorf("failed to start gossip: %w", err)
		}
	}

	// 9. HTTP Server
	a.server = httpHandler.NewServer(cfg, svc, svc)
	return nil
}

func (a *App) metadataStore(ctx context.Context) (port.FileRepository, port.UsageRepository, error) {
	switch a.cfg.Metadata.Driver {
	case config.StoreMemory, "":
		store := memory.NewFileStore()
		return store, store, nil
	case config.StorePostgres:
		m := a.cfg.Metadata
		db, err := postgres.Open(ctx, postgres.Config{
			DSN:             m.DSN,
			MaxOpenConns:    m.MaxOpenConns,
			MaxIdleConns:    m.MaxIdleConns,
			ConnMaxLifetime: time.Duration(m.ConnMaxLifetime) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		a.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, nil, err
		}
		store := postgres.NewFileStore(db)
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown metadata driver %q", a.cfg.Metadata.Driver)
	}
}

func (a *App) tokenStore() (port.TokenRepository, error) {
	switch a.cfg.Tokens.Driver {
	case config.StoreMemory, "":
		a.sweeper = memory.NewTokenStore()
		return a.sweeper, nil
	case config.StoreRedis:
		return redis_store.NewTokenStore(a.redis, redisKeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown token driver %q", a.cfg.Tokens.Driver)
	}
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// In-memory tokens need an explicit sweep; Redis expires them itself
	if a.sweeper != nil {
		a.sweeper.StartSweeper(ctx, a.cfg.App.TokenSweepInterval())
	}

	if a.gossip != nil {
		go func() {
			if err := a.gossip.JoinWithRetry(a.cfg.Gossip.Seeds, 5, 2*time.Second); err != nil {
				logger.Warnw("Gossip join failed, node liveness comes from config only", "error", err.Error())
			}
		}()
	}

	// Start HTTP
	logger.Infow("Transfer gateway starting",
		"addr", a.cfg.Server.Addr,
		"metadata", a.cfg.Metadata.Driver,
		"tokens", a.cfg.Tokens.Driver,
		"load_scope", a.cfg.App.LoadScope,
		"nodes", len(a.cfg.Nodes))
	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal; SIGHUP reloads the storage node list
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var runErr error
wait:
	for {
		select {
		case <-hup:
			if err := a.reloader.reload(); err != nil {
				logger.Warnw("Storage node reload rejected", "error", err.Error())
			}
		case sig := <-stop:
			logger.Infow("Shutdown signal received", "signal", sig.String())
			break wait
		case err := <-serverErrCh:
			runErr = fmt.Errorf("http server failed: %w", err)
			logger.Errorw("Gateway server exited unexpectedly", "error", err.Error())
			break wait
		}
	}

	logger.Info("Shutting down gateway")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		logger.Errorw("Gateway shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}
	a.close()

	return runErr
}

func (a *App) close() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.gossip != nil {
		if err := a.gossip.Leave(); err != nil {
			logger.Warnw("Gossip leave failed", "error", err.Error())
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
