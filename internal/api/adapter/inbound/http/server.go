package http_handler

import (
	"context"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/config"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/metrics"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	headerUserID = "X-User-ID"
	headerToken  = "X-Transfer-Token"
)

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	transfer port.TransferService
	trash    port.TrashService
}

func NewServer(cfg *config.Config, transfer port.TransferService, trash port.TrashService) *Server {
	bodyLimit := cfg.Server.BodyLimit
	if min := int(cfg.App.EffectiveChunkSize()) + 1024; bodyLimit < min {
		bodyLimit = min
	}
	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		StreamRequestBody:     true,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(requestMetrics)

	s := &Server{
		app:      app,
		cfg:      cfg,
		transfer: transfer,
		trash:    trash,
	}

	// Routes
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if s.cfg.Server.EnableMetrics {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	v1 := s.app.Group("/v1")

	files := v1.Group("/files")
	files.Post("/register", s.handleRegister)
	files.Post("/delete", s.handleDeleteFiles)
	files.Post("/:fileId/complete", s.handleComplete)
	files.Get("/:fileId/meta", s.handleMeta)
	files.Delete("/:fileId", s.handleDeleteFile)
	files.Post("/:fileId/trash", s.handleTrash)
	files.Post("/:fileId/restore", s.handleRestore)

	chunks := v1.Group("/chunks")
	chunks.Put("/:fileId/:hash", s.handleUploadChunk)
	chunks.Get("/:fileId/:hash", s.handleGetChunk)

	v1.Post("/folders", s.handleCreateFolder)
	v1.Post("/trash/purge", s.handlePurge)
	v1.Get("/usage", s.handleUsage)
	v1.Get("/nodes", s.handleNodes)
}

// App exposes the fiber app for in-process tests and adaptors.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// requestMetrics records every request against its route pattern, not the raw path.
func requestMetrics(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusOf(err)
	}
	metrics.RecordHTTPRequest(c.Method(), c.Route().Path, status, time.Since(start))
	return err
}
