package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/annotations/internal/config"
)

func TestNewHealthHandlerHonorsConfig(t *testing.T) {
	s := testServer()
	s.Config.Observability = config.DefaultObservabilityConfig()
	s.Config.Observability.HealthChecks.Checks = []string{"database"}

	h := NewHealthHandler(s)

	// No pool is configured, so the database check is skipped as well.
	assert.Empty(t, h.checks)
	assert.Equal(t, s.Config.Observability.HealthChecks.Timeout, h.timeout)
}

func TestCheckHealth(t *testing.T) {
	h := &HealthHandler{
		Handler: NewHandler(testServer()),
		checks: map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		},
		timeout: time.Second,
	}

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/status", nil), rec)

	require.NoError(t, h.CheckHealth(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["environment"])
}

func TestCheckHealthFailure(t *testing.T) {
	h := &HealthHandler{
		Handler: NewHandler(testServer()),
		checks: map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
		timeout: time.Second,
	}

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/status", nil), rec)

	require.NoError(t, h.CheckHealth(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"].(map[string]any)["status"])
	assert.Equal(t, "connection refused", checks["redis"].(map[string]any)["error"])
}

func TestEmailPreview(t *testing.T) {
	h := NewEmailPreviewHandler(testServer())
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/dev/emails/annotation", nil), rec)
	c.SetParamNames("template")
	c.SetParamValues("annotation")

	require.NoError(t, h.Preview(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>rating</strong>")

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/dev/emails/welcome", nil), httptest.NewRecorder())
	c.SetParamNames("template")
	c.SetParamValues("welcome")
	assert.Error(t, h.Preview(c))
}
