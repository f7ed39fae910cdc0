package handler

import (
	"github.com/deppfellow/annotations/internal/server"
	"github.com/deppfellow/annotations/internal/service"
)

// Handlers groups every HTTP handler for the router.
type Handlers struct {
	Health       *HealthHandler
	OpenAPI      *OpenAPIHandler
	Annotation   *AnnotationHandler
	EmailPreview *EmailPreviewHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(s),
		OpenAPI:      NewOpenAPIHandler(s),
		Annotation:   NewAnnotationHandler(s, services.Annotations),
		EmailPreview: NewEmailPreviewHandler(s),
	}
}
