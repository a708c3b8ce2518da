// Package diag is the local-only diagnostics listener: buffer health
// for the operator, prometheus metrics for scraping. It is read-only
// and never affects the sync pipeline.
package diag

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/restosync/pos-agent/internal/buffer"
)

type Server struct {
	e            *echo.Echo
	queue        *buffer.Queue
	retryCeiling int
}

func NewServer(queue *buffer.Queue, retryCeiling int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMid.Recover())

	s := &Server{e: e, queue: queue, retryCeiling: retryCeiling}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", s.healthz)

	return s
}

func (s *Server) healthz(c echo.Context) error {
	snap, err := s.queue.Stats(c.Request().Context(), s.retryCeiling)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
