package gateway

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// healthHandler handles GET /health. Public; leaks no secrets.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":          "ok",
		"paired":          s.deps.Guard.IsPaired(),
		"require_pairing": s.deps.Guard.RequirePairing(),
	})
}

// metricsHandler handles GET /metrics in Prometheus text exposition format.
func (s *Server) metricsHandler(c *echo.Context) error {
	if s.deps.MetricsHandler == nil {
		return c.String(http.StatusOK,
			"# Prometheus backend not enabled. Set [observability] backend = \"prometheus\" in config.\n")
	}
	s.deps.MetricsHandler.ServeHTTP(c.Response(), c.Request())
	return nil
}
