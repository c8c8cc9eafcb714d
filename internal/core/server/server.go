package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waste-insights/internal/core/config"
	"waste-insights/internal/core/logger"

	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"

	_ "waste-insights/docs/swagger"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// Server holds the Fiber application and configuration.
type Server struct {
	// App is the main Fiber application instance.
	App *fiber.App
	// cfg holds the application configuration.
	cfg *config.AppConfig
	// checks are the dependency probes exposed on /health.
	checks map[string]HealthCheck
}

// New creates a new Server instance with configured middleware. The checks
// map keys dependency names (mongo, redis) to their probes; it may be nil.
func New(cfg *config.AppConfig, checks map[string]HealthCheck) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "waste-insights",
	})

	app.Use(recover.New())

	app.Use(requestid.New(requestid.Config{
		Header: "X-Ray-ID",
	}))

	app.Use(fiberzap.New(fiberzap.Config{
		Logger: logger.Get(),
	}))

	app.Get("/swagger/*", swagger.HandlerDefault)

	srv := &Server{
		App:    app,
		cfg:    cfg,
		checks: checks,
	}
	app.Get("/health", srv.health)

	return srv
}

// health reports per-dependency status. Any failing probe makes the whole
// endpoint 503 so load balancers stop routing here.
func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	deps := make(fiber.Map, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = fiber.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":       statusWord(status),
		"dependencies": deps,
	})
}

func statusWord(status int) string {
	if status == fiber.StatusOK {
		return "up"
	}
	return "degraded"
}

// Run starts the HTTP server and blocks until the listener fails or the
// process receives SIGINT/SIGTERM, at which point open requests are drained
// before returning.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.ServerPort)
	logger.Get().Info("Starting server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.App.Listen(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Get().Info("Shutting down", zap.String("signal", sig.String()))
		return s.App.ShutdownWithTimeout(10 * time.Second)
	}
}
