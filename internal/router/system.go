package router

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/annotations/internal/handler"
	"github.com/deppfellow/annotations/internal/server"
)

// registerSystemRoutes mounts the routes outside the versioned API. Email
// previews are only served in the local environment.
func registerSystemRoutes(r *echo.Echo, s *server.Server, h *handler.Handlers) {
	r.GET("/status", h.Health.CheckHealth)

	r.Static("/static", "static")

	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)

	if s.Config.Primary.Env == "local" {
		r.GET("/dev/emails/:template", h.EmailPreview.Preview)
	}
}
