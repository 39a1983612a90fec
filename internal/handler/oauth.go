package handler

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fanoutlabs/graph-broker/internal/oauth"
)

// OAuthHandler exposes the authorization flow over HTTP: kicking off
// a run and taking the upstream's redirect back.
type OAuthHandler struct {
	Flow *oauth.Orchestrator
}

func NewOAuthHandler(flow *oauth.Orchestrator) *OAuthHandler {
	return &OAuthHandler{Flow: flow}
}

// Authorize starts an authorization run and redirects the browser to
// the upstream consent dialog. The optional ?business= parameter
// names the tenant; empty resolves through the registry.
func (h *OAuthHandler) Authorize(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Flow.AuthorizeURL(ctx, c.QueryParam("business"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not start authorization"})
	}
	return c.Redirect(http.StatusFound, u)
}

// Callback takes the upstream redirect. The orchestrator never lets a
// failure escape; whatever happens, the user gets a small diagnostic
// page describing the outcome.
func (h *OAuthHandler) Callback(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	res := h.Flow.HandleCallback(ctx,
		c.QueryParam("code"),
		c.QueryParam("state"),
		c.QueryParam("error"),
		c.QueryParam("error_description"),
	)
	if !res.OK {
		return c.HTML(http.StatusBadGateway, resultPage("Authorization failed", res.Message))
	}
	return c.HTML(http.StatusOK, resultPage("Connected",
		fmt.Sprintf("Tenant %q connected: %d page(s), %d linked account(s).",
			res.TenantAlias, res.Pages, res.LinkedAccounts)))
}

// resultPage renders the minimal diagnostic page shown at the end of
// a browser-driven authorization run.
func resultPage(title, detail string) string {
	return fmt.Sprintf(
		"<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>",
		title, title, html.EscapeString(detail))
}
