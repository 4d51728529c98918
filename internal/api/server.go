// Package api serves the operational HTTP endpoints next to the host
// engine: liveness, readiness and version. The container operations
// themselves are not exposed here; transports for them live outside the
// host.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"evalgo.org/foundry/internal/config"
	"evalgo.org/foundry/internal/engine"
	"evalgo.org/foundry/internal/version"
)

// Server wraps the echo instance serving the operational endpoints.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	cfg    *config.Config
}

// New wires the routes.
func New(cfg *config.Config, eng *engine.Engine) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, engine: eng, cfg: cfg}

	e.GET("/health", s.health)
	e.GET("/readyz", s.ready)
	e.GET("/version", s.version)

	return s
}

// Start blocks serving until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.API.Host, s.cfg.API.Port)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.API.ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ready answers 503 until the engine has resolved a container set: either
// the controller handshake finished or no controllers are configured.
func (s *Server) ready(c echo.Context) error {
	if !s.engine.Ready() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "waiting for controller"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) version(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}
