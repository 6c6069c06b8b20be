package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"mythforge/pkg/auth"
)

func (s *Server) handleGetRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "MythForge API",
		"status":  "ok",
	})
}

func (s *Server) handleGetPing(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// GET /api/vocabulary
func (s *Server) handleGetVocabulary(c echo.Context) error {
	reg := s.Oracle.Registry
	return c.JSON(http.StatusOK, map[string]any{
		"deities":  reg.Labels(),
		"fallback": reg.Fallback(),
	})
}

// GET /api/auth/me
func (s *Server) handleGetMe(c echo.Context) error {
	id, _ := auth.FromContext(c)
	return c.JSON(http.StatusOK, map[string]any{"user": id})
}

// GET /api/admin/stats
func (s *Server) handleGetStats(c echo.Context) error {
	st, err := s.Store.Stats(c.Request().Context())
	if err != nil {
		log.Error("stats query failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	return c.JSON(http.StatusOK, st)
}
