package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/annotations/internal/errs"
)

var validate = validator.New()

type sampleRequest struct {
	EntityGUID int64  `param:"guid" validate:"gt=0"`
	Name       string `json:"name" validate:"required,max=5"`
	Limit      int    `query:"limit" validate:"gte=0"`
}

func (r *sampleRequest) Validate() error {
	return validate.Struct(r)
}

type customRequest struct{}

func (r *customRequest) Validate() error {
	return CustomValidationErrors{{Field: "value", Message: "must be a string or a number"}}
}

func newContext(method, body string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestBindAndValidate(t *testing.T) {
	c := newContext(http.MethodPost, `{"name":"rating"}`)
	c.SetParamNames("guid")
	c.SetParamValues("0")

	err := BindAndValidate(c, &sampleRequest{})

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.ElementsMatch(t, []errs.FieldError{
		{Field: "entity_guid", Error: "must be greater than 0"},
		{Field: "name", Error: "must not exceed 5 characters"},
	}, httpErr.Errors)
}

func TestBindAndValidateSuccess(t *testing.T) {
	c := newContext(http.MethodPost, `{"name":"like"}`)
	c.SetParamNames("guid")
	c.SetParamValues("42")

	req := &sampleRequest{}
	require.NoError(t, BindAndValidate(c, req))
	assert.Equal(t, int64(42), req.EntityGUID)
	assert.Equal(t, "like", req.Name)
}

func TestBindAndValidateMalformedBody(t *testing.T) {
	c := newContext(http.MethodPost, `{"name":`)

	err := BindAndValidate(c, &sampleRequest{})

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Empty(t, httpErr.Errors)
}

func TestCustomValidationErrors(t *testing.T) {
	err := BindAndValidate(newContext(http.MethodPost, `{}`), &customRequest{})

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, []errs.FieldError{{Field: "value", Error: "must be a string or a number"}}, httpErr.Errors)
}
