package http_handler

import (
	"context"
	"errors"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/storage/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/storage/metrics"
	"github.com/anthanhphan/go-chunk-transfer/internal/storage/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the node's object API to gateways.
type Server struct {
	app     *fiber.App
	addr    string
	objects port.ObjectService
}

func NewServer(addr string, bodyLimit int, objects port.ObjectService) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		StreamRequestBody:     true,
		UnescapePath:          true,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(requestMetrics)

	s := &Server{app: app, addr: addr, objects: objects}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	v1.Get("/stats", s.handleStats)

	v1.Post("/objects/delete", s.handleDeleteBatch)
	v1.Put("/objects/*", s.handlePut)
	v1.Get("/objects/*", s.handleGet) // also answers HEAD
	v1.Delete("/objects/*", s.handleDelete)
}

// App exposes the fiber app for in-process tests and adaptors.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	return s.app.Listen(s.addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.Is(err, domain.ErrObjectNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrSizeMismatch):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrBadOffset):
		return fiber.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, domain.ErrObjectTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.As(err, &fe):
		return fe.Code
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	if status >= fiber.StatusInternalServerError {
		logger.Errorw("Object request failed", "method", c.Method(), "path", c.Path(), "error", err.Error())
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

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
