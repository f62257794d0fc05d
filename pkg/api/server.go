// Package api serves the bridge status over HTTP and streams step results
// over a WebSocket.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/services"
)

// Deps are the sources behind the HTTP routes. Nil fields leave their
// routes unregistered.
type Deps struct {
	Model       ModelSource
	Topics      TopicSource
	Diagnostics fiber.Handler
	Config      services.SimConfigService
	Hub         *StateHub
}

// Server is the status HTTP server.
type Server struct {
	app    *fiber.App
	logger customlog.Logger
}

// NewServer builds the fiber app with every route deps can serve.
func NewServer(deps Deps, log customlog.Logger, accessLog bool) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "mujoco-bridge",
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})

	if accessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "mujoco-bridge",
		})
	})

	RegisterStatusRoutes(app, deps.Model, deps.Topics, deps.Diagnostics)
	if deps.Config != nil {
		RegisterConfigRoutes(app, deps.Config, log)
	}
	if deps.Hub != nil {
		RegisterStateWebSocket(app, deps.Hub)
	}

	return &Server{app: app, logger: log}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Start listens on port in a goroutine. Listen errors are sent on the
// returned channel.
func (s *Server) Start(port int) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("HTTP server starting on port %d", port)
		if err := s.app.Listen(fmt.Sprintf(":%d", port)); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops the server, waiting at most timeout for open requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.logger.Infof("HTTP server exited properly")
	return nil
}

// Custom error handler
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
