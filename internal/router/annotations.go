package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/annotations/internal/handler"
	"github.com/deppfellow/annotations/internal/middleware"
)

// registerAnnotationRoutes mounts the annotation API. Reads accept
// anonymous callers and see public rows only; writes need a signed-in user.
func registerAnnotationRoutes(r *echo.Group, h *handler.Handlers, auth *middleware.AuthMiddleware) {
	ah := h.Annotation

	reads := r.Group("/annotations", auth.OptionalAuth)
	reads.GET("", handler.Handle(ah.Handler, ah.List, http.StatusOK, &handler.ListAnnotationsRequest{}))
	reads.GET("/count", handler.Handle(ah.Handler, ah.Count, http.StatusOK, &handler.CountRequest{}))
	reads.GET("/aggregate/:op", handler.Handle(ah.Handler, ah.Aggregate, http.StatusOK, &handler.AggregateRequest{}))
	reads.GET("/:id", handler.Handle(ah.Handler, ah.Get, http.StatusOK, &handler.GetAnnotationRequest{}))
	reads.GET("/:id/owner", handler.Handle(ah.Handler, ah.Owner, http.StatusOK, &handler.OwnerRequest{}))

	writes := r.Group("/annotations", auth.RequireAuth)
	writes.PUT("/:id", handler.Handle(ah.Handler, ah.Update, http.StatusOK, &handler.UpdateAnnotationRequest{}))
	writes.DELETE("/:id", handler.Handle(ah.Handler, ah.Delete, http.StatusOK, &handler.DeleteAnnotationRequest{}))

	entities := r.Group("/entities/:guid/annotations", auth.RequireAuth)
	entities.POST("", handler.Handle(ah.Handler, ah.Create, http.StatusCreated, &handler.CreateAnnotationRequest{}))
	entities.DELETE("", handler.Handle(ah.Handler, ah.Clear, http.StatusOK, &handler.ClearAnnotationsRequest{}))
}
