// Package web serves the check-in kiosk: a REST API driving the capture
// session, websocket status and preview feeds, and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-attend/internal/log"
	"github.com/teslashibe/go-attend/pkg/history"
	"github.com/teslashibe/go-attend/pkg/hub"
	"github.com/teslashibe/go-attend/pkg/session"
)

// Config holds kiosk server settings.
type Config struct {
	Listen          string        // Address, e.g. :8090
	StaticDir       string        // Optional UI assets served at /
	PreviewInterval time.Duration // Cadence of /ws/camera frames
	StartTimeout    time.Duration // Bound on opening camera and model
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the stock kiosk settings.
func DefaultConfig() Config {
	return Config{
		Listen:          ":8090",
		PreviewInterval: 100 * time.Millisecond,
		StartTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server is the kiosk HTTP server.
type Server struct {
	cfg     Config
	app     *fiber.App
	ctrl    *session.Controller
	history history.Lister
	watcher *history.Watcher
	logger  *slog.Logger

	statusHub *hub.Hub
	cameraHub *hub.Hub
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables /api/history.
func WithHistory(l history.Lister) Option {
	return func(s *Server) { s.history = l }
}

// WithWatcher serves today's records from w and keeps it running.
func WithWatcher(w *history.Watcher) Option {
	return func(s *Server) { s.watcher = w }
}

// NewServer creates a kiosk server for ctrl. Metrics are served from gatherer,
// or the default registry when nil.
func NewServer(cfg Config, ctrl *session.Controller, gatherer prometheus.Gatherer, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.PreviewInterval <= 0 {
		cfg.PreviewInterval = def.PreviewInterval
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = def.StartTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:       cfg,
		ctrl:      ctrl,
		logger:    log.Component("web"),
		statusHub: hub.New("status"),
		cameraHub: hub.New("camera"),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Attendance Kiosk",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/capture", s.handleCapture)
	api.Post("/session/cancel", s.handleCancel)
	api.Get("/history", s.handleHistory)
	api.Get("/preview", s.handlePreview)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	unsubscribe := s.ctrl.Subscribe(func(st session.Status) {
		if err := s.statusHub.BroadcastJSON(st); err != nil {
			s.logger.Warn("status encode failed", "error", err)
		}
	})
	defer unsubscribe()

	go s.pumpPreview(ctx)
	if s.watcher != nil {
		go s.watcher.Run(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("kiosk listening", "addr", s.cfg.Listen)
		errc <- s.app.Listen(s.cfg.Listen)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer done()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// pumpPreview streams live frames while anyone is watching.
func (s *Server) pumpPreview(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PreviewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.cameraHub.ClientCount() == 0 || s.ctrl.State() != session.Live {
				continue
			}
			frame, err := s.ctrl.Preview(ctx)
			if err != nil || frame.Empty() {
				continue
			}
			s.cameraHub.BroadcastBinary(frame.Data)
		}
	}
}
