package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/annotations/internal/access"
	"github.com/deppfellow/annotations/internal/config"
	"github.com/deppfellow/annotations/internal/errs"
	"github.com/deppfellow/annotations/internal/middleware"
	"github.com/deppfellow/annotations/internal/model"
	"github.com/deppfellow/annotations/internal/server"
)

type fakeAnnotations struct {
	annotations map[int64]model.Annotation
	owner       *model.Entity

	created  []model.CreateParams
	updated  []model.UpdateParams
	lastList model.Filter
	lastAgg  model.AggregateFilter
	lastOp   string
	cleared  []int64
	queued   []int64
	scopes   []access.Scope
}

func newFakeAnnotations() *fakeAnnotations {
	return &fakeAnnotations{annotations: map[int64]model.Annotation{}}
}

func (f *fakeAnnotations) Get(_ context.Context, scope access.Scope, id int64) (*model.Annotation, error) {
	f.scopes = append(f.scopes, scope)
	a, ok := f.annotations[id]
	if !ok || !scope.Visible(a.AccessID, a.OwnerGUID) {
		return nil, fmt.Errorf("annotation %d: %w", id, errs.ErrNotFound)
	}
	return &a, nil
}

func (f *fakeAnnotations) Create(_ context.Context, scope access.Scope, p model.CreateParams) (int64, error) {
	f.scopes = append(f.scopes, scope)
	if p.EntityGUID <= 0 {
		return 0, errs.Invalid("entity guid must be positive")
	}
	f.created = append(f.created, p)
	return int64(len(f.created)), nil
}

func (f *fakeAnnotations) Update(_ context.Context, _ access.Scope, p model.UpdateParams) (bool, error) {
	f.updated = append(f.updated, p)
	_, ok := f.annotations[p.ID]
	return ok, nil
}

func (f *fakeAnnotations) List(_ context.Context, _ access.Scope, filter model.Filter) ([]model.Annotation, error) {
	f.lastList = filter
	out := make([]model.Annotation, 0, len(f.annotations))
	for id := int64(1); id <= int64(len(f.annotations)); id++ {
		if a, ok := f.annotations[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAnnotations) Aggregate(_ context.Context, _ access.Scope, op string, filter model.AggregateFilter) (float64, error) {
	f.lastOp = op
	f.lastAgg = filter
	if _, err := model.ParseAggregateOp(op); err != nil {
		return 0, err
	}
	return 12.5, nil
}

func (f *fakeAnnotations) Count(_ context.Context, _ access.Scope, filter model.AggregateFilter) (int64, error) {
	f.lastAgg = filter
	return 3, nil
}

func (f *fakeAnnotations) Delete(_ context.Context, _ access.Scope, id int64) (bool, error) {
	_, ok := f.annotations[id]
	delete(f.annotations, id)
	return ok, nil
}

func (f *fakeAnnotations) Clear(_ context.Context, _ access.Scope, entityGUID int64, _ string) (int64, error) {
	f.cleared = append(f.cleared, entityGUID)
	return 2, nil
}

func (f *fakeAnnotations) ClearAsync(_ context.Context, _ access.Scope, entityGUID int64, _ string) (string, error) {
	f.queued = append(f.queued, entityGUID)
	return "task-1", nil
}

func (f *fakeAnnotations) Owner(context.Context, *model.Annotation) (*model.Entity, error) {
	if f.owner == nil {
		return nil, fmt.Errorf("table:entities: guid 7: %w", errs.ErrNotFound)
	}
	return f.owner, nil
}

func testServer() *server.Server {
	logger := zerolog.Nop()
	return &server.Server{
		Config: &config.Config{Primary: config.Primary{Env: "test"}},
		Logger: &logger,
	}
}

// newTestEcho routes the annotation endpoints with every request running
// under scope.
func newTestEcho(svc AnnotationService, scope access.Scope) *echo.Echo {
	s := testServer()
	h := NewAnnotationHandler(s, svc)

	e := echo.New()
	e.HTTPErrorHandler = middleware.NewGlobalMiddlewares(s).GlobalErrorHandler
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.ScopeKey, scope)
			return next(c)
		}
	})

	e.GET("/annotations", Handle(h.Handler, h.List, http.StatusOK, &ListAnnotationsRequest{}))
	e.GET("/annotations/count", Handle(h.Handler, h.Count, http.StatusOK, &CountRequest{}))
	e.GET("/annotations/aggregate/:op", Handle(h.Handler, h.Aggregate, http.StatusOK, &AggregateRequest{}))
	e.GET("/annotations/:id", Handle(h.Handler, h.Get, http.StatusOK, &GetAnnotationRequest{}))
	e.GET("/annotations/:id/owner", Handle(h.Handler, h.Owner, http.StatusOK, &OwnerRequest{}))
	e.PUT("/annotations/:id", Handle(h.Handler, h.Update, http.StatusOK, &UpdateAnnotationRequest{}))
	e.DELETE("/annotations/:id", Handle(h.Handler, h.Delete, http.StatusOK, &DeleteAnnotationRequest{}))
	e.POST("/entities/:guid/annotations", Handle(h.Handler, h.Create, http.StatusCreated, &CreateAnnotationRequest{}))
	e.DELETE("/entities/:guid/annotations", Handle(h.Handler, h.Clear, http.StatusOK, &ClearAnnotationsRequest{}))

	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

var user = access.Scope{UserID: 7, AccessIDs: []int64{model.AccessLoggedIn, model.AccessPublic}}

func TestCreateAnnotation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		value any
	}{
		{name: "integer", body: `{"name":"rating","value":5,"access_id":2}`, value: int64(5)},
		{name: "numeric string", body: `{"name":"rating","value":"5","access_id":2}`, value: "5"},
		{name: "float", body: `{"name":"rating","value":4.5}`, value: "4.5"},
		{name: "boolean", body: `{"name":"liked","value":true}`, value: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeAnnotations()
			e := newTestEcho(svc, user)

			rec := do(e, http.MethodPost, "/entities/42/annotations", tt.body)

			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			assert.Equal(t, int64(1), decode[CreateAnnotationResponse](t, rec).ID)
			require.Len(t, svc.created, 1)
			assert.Equal(t, int64(42), svc.created[0].EntityGUID)
			assert.Equal(t, tt.value, svc.created[0].Value)
			assert.Equal(t, user, svc.scopes[0])
		})
	}
}

func TestCreateAnnotationValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		field  string
	}{
		{name: "missing name", target: "/entities/42/annotations", body: `{"value":5}`, field: "name"},
		{name: "missing value", target: "/entities/42/annotations", body: `{"name":"rating"}`, field: "value"},
		{name: "null value", target: "/entities/42/annotations", body: `{"name":"rating","value":null}`, field: "value"},
		{name: "object value", target: "/entities/42/annotations", body: `{"name":"rating","value":{"a":1}}`, field: "value"},
		{name: "zero guid", target: "/entities/0/annotations", body: `{"name":"rating","value":5}`, field: "entity_guid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeAnnotations()
			e := newTestEcho(svc, user)

			rec := do(e, http.MethodPost, tt.target, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[errs.HTTPError](t, rec)
			require.NotEmpty(t, body.Errors)
			assert.Equal(t, tt.field, body.Errors[0].Field)
			assert.Empty(t, svc.created)
		})
	}
}

func TestGetAnnotation(t *testing.T) {
	svc := newFakeAnnotations()
	svc.annotations[1] = model.Annotation{
		ID: 1, EntityGUID: 42, Name: "rating", Value: "5",
		ValueType: model.ValueTypeInteger, OwnerGUID: 7, AccessID: model.AccessPublic,
		TimeCreated: time.Unix(1700000000, 0).UTC(),
	}
	e := newTestEcho(svc, access.Anonymous())

	rec := do(e, http.MethodGet, "/annotations/1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "rating", body["name"])
	assert.Equal(t, "5", body["value"])
	assert.Equal(t, float64(5), body["typed_value"])
	assert.Equal(t, "integer", body["value_type"])
}

func TestGetAnnotationNotVisible(t *testing.T) {
	svc := newFakeAnnotations()
	svc.annotations[1] = model.Annotation{ID: 1, Name: "note", Value: "x", ValueType: model.ValueTypeText, OwnerGUID: 9, AccessID: model.AccessPrivate}
	e := newTestEcho(svc, user)

	rec := do(e, http.MethodGet, "/annotations/1", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ANNOTATION_NOT_FOUND", decode[errs.HTTPError](t, rec).Code)
}

func TestGetAnnotationUnsupportedType(t *testing.T) {
	svc := newFakeAnnotations()
	svc.annotations[1] = model.Annotation{ID: 1, Name: "blob", Value: "x", ValueType: "binary", AccessID: model.AccessPublic}
	e := newTestEcho(svc, user)

	rec := do(e, http.MethodGet, "/annotations/1", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "UNSUPPORTED_VALUE_TYPE", decode[errs.HTTPError](t, rec).Code)
}

func TestGetAnnotationInvalidID(t *testing.T) {
	e := newTestEcho(newFakeAnnotations(), user)

	rec := do(e, http.MethodGet, "/annotations/abc", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAnnotations(t *testing.T) {
	svc := newFakeAnnotations()
	svc.annotations[1] = model.Annotation{ID: 1, EntityGUID: 42, Name: "rating", Value: "5", ValueType: model.ValueTypeInteger, AccessID: model.AccessPublic}
	svc.annotations[2] = model.Annotation{ID: 2, EntityGUID: 42, Name: "tag", Value: "go", ValueType: model.ValueTypeTag, AccessID: model.AccessPublic}
	e := newTestEcho(svc, user)

	rec := do(e, http.MethodGet, "/annotations?entity_guid=42&entity_subtype=blog&limit=5&offset=10&order_by=name+asc", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[ListAnnotationsResponse](t, rec)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "go", body.Items[1].TypedValue)
	assert.Equal(t, model.Filter{
		EntityGUID:    42,
		EntitySubtype: "blog",
		Limit:         5,
		Offset:        10,
		OrderBy:       "name asc",
	}, svc.lastList)
}

func TestListAnnotationsEmpty(t *testing.T) {
	e := newTestEcho(newFakeAnnotations(), user)

	rec := do(e, http.MethodGet, "/annotations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"count":0}`, rec.Body.String())
}

func TestListAnnotationsNegativeLimit(t *testing.T) {
	e := newTestEcho(newFakeAnnotations(), user)

	rec := do(e, http.MethodGet, "/annotations?limit=-1", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAnnotation(t *testing.T) {
	svc := newFakeAnnotations()
	svc.annotations[3] = model.Annotation{ID: 3}
	e := newTestEcho(svc, user)

	rec := do(e, http.MethodPut, "/annotations/3", `{"name":"rating","value":4}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[UpdateAnnotationResponse](t, rec).Updated)
	require.Len(t, svc.updated, 1)
	assert.Equal(t, model.UpdateParams{ID: 3, Name: "rating", Value: int64(4)}, svc.updated[0])

	rec = do(e, http.MethodPut, "/annotations/9", `{"name":"rating","value":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[UpdateAnnotationResponse](t, rec).Updated)
}

func TestDeleteAnnotation(t *testing.T) {
	svc := newFakeAnnotations()
	svc.annotations[3] = model.Annotation{ID: 3}
	e := newTestEcho(svc, user)

	rec := do(e, http.MethodDelete, "/annotations/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[DeleteAnnotationResponse](t, rec).Deleted)

	rec = do(e, http.MethodDelete, "/annotations/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[DeleteAnnotationResponse](t, rec).Deleted)
}

func TestAggregate(t *testing.T) {
	svc := newFakeAnnotations()
	e := newTestEcho(svc, user)

	rec := do(e, http.MethodGet, "/annotations/aggregate/AVG?entity_guid=42&name=rating", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, AggregateResponse{Op: "avg", Value: 12.5}, decode[AggregateResponse](t, rec))
	assert.Equal(t, model.AggregateFilter{EntityGUID: 42, Name: "rating"}, svc.lastAgg)

	rec = do(e, http.MethodGet, "/annotations/aggregate/median", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCount(t *testing.T) {
	svc := newFakeAnnotations()
	e := newTestEcho(svc, user)

	rec := do(e, http.MethodGet, "/annotations/count?entity_type=object", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), decode[CountResponse](t, rec).Count)
	assert.Equal(t, "object", svc.lastAgg.EntityType)
}

func TestClearAnnotations(t *testing.T) {
	svc := newFakeAnnotations()
	e := newTestEcho(svc, user)

	rec := do(e, http.MethodDelete, "/entities/42/annotations?name=rating", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":2}`, rec.Body.String())
	assert.Equal(t, []int64{42}, svc.cleared)

	rec = do(e, http.MethodDelete, "/entities/42/annotations?async=true", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"task_id":"task-1"}`, rec.Body.String())
	assert.Equal(t, []int64{42}, svc.queued)
}

func TestOwner(t *testing.T) {
	svc := newFakeAnnotations()
	svc.annotations[1] = model.Annotation{ID: 1, OwnerGUID: 7, AccessID: model.AccessPublic}
	e := newTestEcho(svc, user)

	rec := do(e, http.MethodGet, "/annotations/1/owner", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.owner = &model.Entity{GUID: 7, Type: "user", DisplayName: "Ana", Email: "ana@example.com"}
	rec = do(e, http.MethodGet, "/annotations/1/owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Ana", body["display_name"])
	assert.NotContains(t, body, "email")
}

func TestHandleUsesFreshRequest(t *testing.T) {
	svc := newFakeAnnotations()
	e := newTestEcho(svc, user)

	do(e, http.MethodGet, "/annotations?name=first&limit=3", "")
	do(e, http.MethodGet, "/annotations", "")

	assert.Equal(t, model.Filter{}, svc.lastList)
}
