package handler

import (
	"net/http"

	"github.com/deppfellow/annotations/internal/model"
)

// AnnotationResponse is an annotation with its value converted according
// to its value type.
type AnnotationResponse struct {
	model.Annotation
	TypedValue any `json:"typed_value"`
}

func newAnnotationResponse(a *model.Annotation) (AnnotationResponse, error) {
	typed, err := a.ReadTypedValue()
	if err != nil {
		return AnnotationResponse{}, err
	}
	return AnnotationResponse{Annotation: *a, TypedValue: typed}, nil
}

type ListAnnotationsResponse struct {
	Items []AnnotationResponse `json:"items"`
	Count int                  `json:"count"`
}

type CreateAnnotationResponse struct {
	ID int64 `json:"id"`
}

type UpdateAnnotationResponse struct {
	Updated bool `json:"updated"`
}

type DeleteAnnotationResponse struct {
	Deleted bool `json:"deleted"`
}

type AggregateResponse struct {
	Op    string  `json:"op"`
	Value float64 `json:"value"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

// ClearAnnotationsResponse carries the removed count of a synchronous
// clear, or the task id of a queued one.
type ClearAnnotationsResponse struct {
	Removed *int64 `json:"removed,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

func (r *ClearAnnotationsResponse) StatusCode() int {
	if r.TaskID != "" {
		return http.StatusAccepted
	}
	return 0
}
