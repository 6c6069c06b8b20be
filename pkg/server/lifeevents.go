package server

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"mythforge/pkg/schema"
)

// POST /api/life-events
func (s *Server) handlePostLifeEvent(c echo.Context) error {
	owner, err := ownerOf(c)
	if err != nil {
		return err
	}

	var req schema.CreateLifeEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	ev, err := req.Normalize(owner, s.now())
	switch {
	case errors.Is(err, schema.ErrBlankTitle):
		return echo.NewHTTPError(http.StatusBadRequest, "Title is required.")
	case errors.Is(err, schema.ErrInvalidDate):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid event_date format.")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ev, err = s.Store.CreateLifeEvent(c.Request().Context(), ev)
	if err != nil {
		log.Error("insert life event failed", "owner", owner, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save life event.")
	}
	log.Info("life event saved", "id", ev.ID, "owner", owner, "date", ev.OccurredOn)
	return c.JSON(http.StatusCreated, ev)
}

// GET /api/life-events
func (s *Server) handleGetLifeEvents(c echo.Context) error {
	owner, err := ownerOf(c)
	if err != nil {
		return err
	}

	events, err := s.Store.ListLifeEvents(c.Request().Context(), owner)
	if err != nil {
		log.Error("list life events failed", "owner", owner, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch life events.")
	}
	return c.JSON(http.StatusOK, events)
}
