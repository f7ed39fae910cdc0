// Package router builds the Echo instance: global middleware, the error
// handler, system routes and the versioned API routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/annotations/internal/handler"
	"github.com/deppfellow/annotations/internal/middleware"
	"github.com/deppfellow/annotations/internal/server"
	"github.com/deppfellow/annotations/internal/service"
)

func NewRouter(s *server.Server, h *handler.Handlers, services *service.Services) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s, services.Auth)

	router := echo.New()
	router.HideBanner = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Use(
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
		middlewares.Global.Recover(),
		middlewares.RateLimit.RateLimiter(),
	)

	registerSystemRoutes(router, s, h)

	v1 := router.Group("/api/v1")
	registerAnnotationRoutes(v1, h, middlewares.Auth)

	return router
}
