package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"mythforge/pkg/auth"
	"mythforge/pkg/oracle"
	"mythforge/pkg/schema"
	"mythforge/pkg/store"
	"mythforge/pkg/utils"
)

// POST /api/myths
func (s *Server) handlePostMyth(c echo.Context) error {
	owner, err := ownerOf(c)
	if err != nil {
		return err
	}

	var req schema.CreateMythRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	ctx := c.Request().Context()

	fr := oracle.ForgeRequest{OwnerID: owner, Event: req.Event, Title: req.Title}
	if req.EventID != "" {
		ev, err := s.Store.GetLifeEvent(ctx, owner, req.EventID)
		if err != nil {
			return mythError(c, err)
		}
		if strings.TrimSpace(fr.Event) == "" {
			fr.Event = ev.Text()
		}
		fr.SourceEventID = ev.ID
	}

	log.Debug("forging myth", "owner", owner, "event", utils.LimitStr(strings.TrimSpace(fr.Event), 80), "source", fr.SourceEventID)
	myth, err := s.Oracle.Forge(ctx, fr)
	if err != nil {
		return mythError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message": "Myth created successfully",
		"myth":    myth,
	})
}

// GET /api/myths
func (s *Server) handleGetMyths(c echo.Context) error {
	owner, err := ownerOf(c)
	if err != nil {
		return err
	}

	myths, err := s.Store.ListMyths(c.Request().Context(), owner)
	if err != nil {
		log.Error("list myths failed", "owner", owner, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Myths retrieved successfully",
		"myths":   myths,
	})
}

// GET /api/myths/:id
func (s *Server) handleGetMyth(c echo.Context) error {
	owner, err := ownerOf(c)
	if err != nil {
		return err
	}

	myth, err := s.Store.GetMyth(c.Request().Context(), owner, c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Myth not found")
	case err != nil:
		log.Error("get myth failed", "owner", owner, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Myth retrieved successfully",
		"myth":    myth,
	})
}

// mythError maps forge and lookup failures to HTTP statuses.
func mythError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, oracle.ErrEmptyEvent):
		return echo.NewHTTPError(http.StatusBadRequest, "Life event description is required")
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Life event not found")
	case errors.Is(err, store.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Life event belongs to another user")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.Logger().Warnf("myth request ended before saving: %v", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Request cancelled or timed out")
	}
	log.Error("create myth failed", "request_id", c.Response().Header().Get(echo.HeaderXRequestID), "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create myth")
}

func ownerOf(c echo.Context) (string, error) {
	id, ok := auth.FromContext(c)
	if !ok || id.UserID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return id.UserID, nil
}
