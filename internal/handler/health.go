package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/annotations/internal/middleware"
	"github.com/deppfellow/annotations/internal/server"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves /status. Only the checks enabled in the
// observability config are run.
type HealthHandler struct {
	Handler
	checks  map[string]HealthCheck
	timeout time.Duration
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	h := &HealthHandler{
		Handler: NewHandler(s),
		checks:  make(map[string]HealthCheck),
		timeout: 5 * time.Second,
	}

	obs := s.Config.Observability
	if obs == nil {
		return h
	}
	if obs.HealthChecks.Timeout > 0 {
		h.timeout = obs.HealthChecks.Timeout
	}

	if obs.HasCheck("database") && s.DB != nil {
		h.checks["database"] = func(ctx context.Context) error {
			return s.DB.Pool.Ping(ctx)
		}
	}
	if obs.HasCheck("redis") && s.Redis != nil {
		h.checks["redis"] = func(ctx context.Context) error {
			return s.Redis.Ping(ctx).Err()
		}
	}

	return h
}

// CheckHealth returns 200 when every enabled check passes and 503
// otherwise.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	logger := middleware.GetLogger(c).With().Str("operation", "health_check").Logger()

	checks := make(map[string]any, len(h.checks))
	healthy := true

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
		checkStart := time.Now()
		err := h.checks[name](ctx)
		cancel()

		if err != nil {
			healthy = false
			checks[name] = map[string]any{
				"status":        "unhealthy",
				"response_time": time.Since(checkStart).String(),
				"error":         err.Error(),
			}

			logger.Error().Err(err).Str("check", name).Dur("response_time", time.Since(checkStart)).Msg("health check failed")
			h.recordFailure(name, err, time.Since(checkStart))
			continue
		}

		checks[name] = map[string]any{
			"status":        "healthy",
			"response_time": time.Since(checkStart).String(),
		}
	}

	response := map[string]any{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"checks":      checks,
	}

	if !healthy {
		response["status"] = "unhealthy"
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("service unhealthy")
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	return c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) recordFailure(check string, err error, elapsed time.Duration) {
	if h.server.LoggerService == nil || h.server.LoggerService.GetApplication() == nil {
		return
	}
	h.server.LoggerService.GetApplication().RecordCustomEvent("HealthCheckError", map[string]any{
		"check_type":       check,
		"operation":        "health_check",
		"error_type":       check + "_unhealthy",
		"response_time_ms": elapsed.Milliseconds(),
		"error_message":    err.Error(),
	})
}
