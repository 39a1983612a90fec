package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fanoutlabs/graph-broker/internal/repository"
)

// defaultEventLimit caps listings when the caller supplies none.
const defaultEventLimit = 50

// EventHandler serves the admin event-listing endpoint over the
// retained webhook events.
type EventHandler struct {
	Events *repository.EventRepo
}

func NewEventHandler(events *repository.EventRepo) *EventHandler {
	return &EventHandler{Events: events}
}

// List returns recent events, optionally filtered by ?type= prefix
// and capped by ?limit=. Events older than the retention horizon have
// already aged out of the store.
func (h *EventHandler) List(c echo.Context) error {
	limit := defaultEventLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	events, err := h.Events.List(ctx, c.QueryParam("type"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "listing events failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events, "count": len(events)})
}
