package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fanoutlabs/graph-broker/internal/repository"
)

// TenantHandler serves the admin tenant-management endpoints.
type TenantHandler struct {
	Registry *repository.TenantRegistryRepo
}

func NewTenantHandler(reg *repository.TenantRegistryRepo) *TenantHandler {
	return &TenantHandler{Registry: reg}
}

type setDefaultReq struct {
	Identifier string `json:"identifier"` // alias or external id
}

// List returns the full tenant registry.
func (h *TenantHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	reg, err := h.Registry.Get(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reading registry failed"})
	}
	return c.JSON(http.StatusOK, reg)
}

// SetDefault moves the default-tenant pointer. The tenant must exist;
// unmatched identifiers are a 404 so callers never silently operate
// on the wrong tenant.
func (h *TenantHandler) SetDefault(c echo.Context) error {
	var req setDefaultReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Identifier) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "identifier required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Registry.SetDefault(ctx, strings.TrimSpace(req.Identifier))
	switch {
	case errors.Is(err, repository.ErrRegistryEmpty):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no tenants registered"})
	case errors.Is(err, repository.ErrTenantNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "updating registry failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
