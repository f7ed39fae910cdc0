package handler

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/annotations/internal/access"
	"github.com/deppfellow/annotations/internal/middleware"
	"github.com/deppfellow/annotations/internal/model"
	"github.com/deppfellow/annotations/internal/server"
)

// AnnotationService is what the annotation endpoints need from the
// service layer.
type AnnotationService interface {
	Get(ctx context.Context, scope access.Scope, id int64) (*model.Annotation, error)
	Create(ctx context.Context, scope access.Scope, p model.CreateParams) (int64, error)
	Update(ctx context.Context, scope access.Scope, p model.UpdateParams) (bool, error)
	List(ctx context.Context, scope access.Scope, filter model.Filter) ([]model.Annotation, error)
	Aggregate(ctx context.Context, scope access.Scope, op string, filter model.AggregateFilter) (float64, error)
	Count(ctx context.Context, scope access.Scope, filter model.AggregateFilter) (int64, error)
	Delete(ctx context.Context, scope access.Scope, id int64) (bool, error)
	Clear(ctx context.Context, scope access.Scope, entityGUID int64, name string) (int64, error)
	ClearAsync(ctx context.Context, scope access.Scope, entityGUID int64, name string) (string, error)
	Owner(ctx context.Context, a *model.Annotation) (*model.Entity, error)
}

type AnnotationHandler struct {
	Handler
	annotations AnnotationService
}

func NewAnnotationHandler(s *server.Server, annotations AnnotationService) *AnnotationHandler {
	return &AnnotationHandler{
		Handler:     NewHandler(s),
		annotations: annotations,
	}
}

func (h *AnnotationHandler) List(c echo.Context, req *ListAnnotationsRequest) (*ListAnnotationsResponse, error) {
	items, err := h.annotations.List(c.Request().Context(), middleware.GetScope(c), req.Filter())
	if err != nil {
		return nil, err
	}

	res := &ListAnnotationsResponse{Items: make([]AnnotationResponse, 0, len(items))}
	for i := range items {
		item, err := newAnnotationResponse(&items[i])
		if err != nil {
			return nil, err
		}
		res.Items = append(res.Items, item)
	}
	res.Count = len(res.Items)

	return res, nil
}

func (h *AnnotationHandler) Get(c echo.Context, req *GetAnnotationRequest) (*AnnotationResponse, error) {
	a, err := h.annotations.Get(c.Request().Context(), middleware.GetScope(c), req.ID)
	if err != nil {
		return nil, err
	}

	res, err := newAnnotationResponse(a)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (h *AnnotationHandler) Create(c echo.Context, req *CreateAnnotationRequest) (*CreateAnnotationResponse, error) {
	id, err := h.annotations.Create(c.Request().Context(), middleware.GetScope(c), req.Params())
	if err != nil {
		return nil, err
	}
	return &CreateAnnotationResponse{ID: id}, nil
}

func (h *AnnotationHandler) Update(c echo.Context, req *UpdateAnnotationRequest) (*UpdateAnnotationResponse, error) {
	updated, err := h.annotations.Update(c.Request().Context(), middleware.GetScope(c), req.Params())
	if err != nil {
		return nil, err
	}
	return &UpdateAnnotationResponse{Updated: updated}, nil
}

func (h *AnnotationHandler) Delete(c echo.Context, req *DeleteAnnotationRequest) (*DeleteAnnotationResponse, error) {
	deleted, err := h.annotations.Delete(c.Request().Context(), middleware.GetScope(c), req.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteAnnotationResponse{Deleted: deleted}, nil
}

func (h *AnnotationHandler) Aggregate(c echo.Context, req *AggregateRequest) (*AggregateResponse, error) {
	value, err := h.annotations.Aggregate(c.Request().Context(), middleware.GetScope(c), req.Op, req.Filter())
	if err != nil {
		return nil, err
	}
	return &AggregateResponse{Op: strings.ToLower(req.Op), Value: value}, nil
}

func (h *AnnotationHandler) Count(c echo.Context, req *CountRequest) (*CountResponse, error) {
	count, err := h.annotations.Count(c.Request().Context(), middleware.GetScope(c), req.Filter())
	if err != nil {
		return nil, err
	}
	return &CountResponse{Count: count}, nil
}

// Clear removes the caller's visible annotations of an entity, or queues
// the removal when async is set.
func (h *AnnotationHandler) Clear(c echo.Context, req *ClearAnnotationsRequest) (*ClearAnnotationsResponse, error) {
	ctx := c.Request().Context()
	scope := middleware.GetScope(c)

	if req.Async {
		taskID, err := h.annotations.ClearAsync(ctx, scope, req.EntityGUID, req.Name)
		if err != nil {
			return nil, err
		}
		return &ClearAnnotationsResponse{TaskID: taskID}, nil
	}

	removed, err := h.annotations.Clear(ctx, scope, req.EntityGUID, req.Name)
	if err != nil {
		return nil, err
	}
	return &ClearAnnotationsResponse{Removed: &removed}, nil
}

// Owner returns the entity owning a visible annotation.
func (h *AnnotationHandler) Owner(c echo.Context, req *OwnerRequest) (*model.Entity, error) {
	ctx := c.Request().Context()

	a, err := h.annotations.Get(ctx, middleware.GetScope(c), req.ID)
	if err != nil {
		return nil, err
	}
	return h.annotations.Owner(ctx, a)
}
