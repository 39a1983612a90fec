package router // package router defines how HTTP routes are registered for the broker

import (
	"github.com/labstack/echo/v4"

	"github.com/fanoutlabs/graph-broker/internal/handler"
	"github.com/fanoutlabs/graph-broker/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance. Currently it exposes only a health
// check; the limiter middleware is applied globally by the caller.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterWebhook maps the inbound webhook endpoints: the unsigned
// subscription handshake on GET and signed deliveries on POST. Both
// sit behind the rate limiter but outside any bearer auth; the
// signature check is the authentication.
func RegisterWebhook(e *echo.Echo, w *handler.WebhookHandler) {
	e.GET("/webhook", w.Verify)
	e.POST("/webhook", w.Receive)
}

// RegisterOAuth maps the authorization flow endpoints. These are
// browser-facing and unauthenticated; CSRF protection rides on the
// state token inside the flow itself.
func RegisterOAuth(e *echo.Echo, o *handler.OAuthHandler) {
	e.GET("/oauth/authorize", o.Authorize)
	e.GET("/oauth/callback", o.Callback)
}

// RegisterAdmin maps the management surface under /v1 behind bearer
// authentication: tenant listing, default switching and event
// retrieval.
func RegisterAdmin(e *echo.Echo, t *handler.TenantHandler, ev *handler.EventHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.AdminAuth(jwtSecret))
	g.GET("/tenants", t.List)
	g.POST("/tenants/default", t.SetDefault)
	g.GET("/events", ev.List)
}
