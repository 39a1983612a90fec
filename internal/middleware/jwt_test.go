package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/fanoutlabs/graph-broker/internal/utils"
)

func adminRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/tenants", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	require.NoError(t, handler(c))
	return rec
}

func TestAdminAuthAcceptsValidToken(t *testing.T) {
	mw := AdminAuth("admin-secret")
	tok, err := utils.NewAdminToken("admin-secret", "ops", time.Hour)
	require.NoError(t, err)

	rec := adminRequest(t, mw, "Bearer "+tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuthRejects(t *testing.T) {
	mw := AdminAuth("admin-secret")

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := adminRequest(t, mw, tc.header)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAdminAuthRejectsWrongSecret(t *testing.T) {
	mw := AdminAuth("admin-secret")
	tok, err := utils.NewAdminToken("other-secret", "ops", time.Hour)
	require.NoError(t, err)

	rec := adminRequest(t, mw, "Bearer "+tok.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuthRejectsExpiredToken(t *testing.T) {
	mw := AdminAuth("admin-secret")
	tok, err := utils.NewAdminToken("admin-secret", "ops", -time.Minute)
	require.NoError(t, err)

	rec := adminRequest(t, mw, "Bearer "+tok.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
