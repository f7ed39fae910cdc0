package sqlerr

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/annotations/internal/errs"
)

func asHTTP(t *testing.T, err error) *errs.HTTPError {
	t.Helper()
	httpErr, ok := err.(*errs.HTTPError)
	require.True(t, ok, "expected *errs.HTTPError, got %T", err)
	return httpErr
}

func TestMapCode(t *testing.T) {
	assert.Equal(t, ForeignKeyViolation, MapCode("23503"))
	assert.Equal(t, UniqueViolation, MapCode("23505"))
	assert.Equal(t, NotNullViolation, MapCode("23502"))
	assert.Equal(t, CheckViolation, MapCode("23514"))
	assert.Equal(t, InvalidTextRepresentation, MapCode("22P02"))
	assert.Equal(t, Other, MapCode("XX000"))
}

func TestMapSeverity(t *testing.T) {
	assert.Equal(t, SeverityFatal, MapSeverity("FATAL"))
	assert.Equal(t, SeverityError, MapSeverity("ERROR"))
	assert.Equal(t, SeverityError, MapSeverity("whatever"))
}

func TestConvertPgErrorKeepsDriverError(t *testing.T) {
	src := &pgconn.PgError{Code: "23505", Severity: "ERROR", Message: "duplicate key", TableName: "metastrings"}

	converted := ConvertPgError(src)

	assert.Equal(t, UniqueViolation, converted.Code)
	assert.Equal(t, "metastrings", converted.TableName)
	assert.Same(t, src, converted.Unwrap())
	assert.Equal(t, "ERROR 23505: duplicate key", converted.Error())
}

func TestErrCode(t *testing.T) {
	wrapped := errs.Storage("create annotation", &pgconn.PgError{Code: "23503"})
	assert.Equal(t, ForeignKeyViolation, ErrCode(wrapped))
	assert.Equal(t, Other, ErrCode(fmt.Errorf("plain")))
}

func TestHandleErrorDomainKinds(t *testing.T) {
	t.Run("invalid input", func(t *testing.T) {
		httpErr := asHTTP(t, HandleError(errs.Invalid("entity guid must be positive")))
		assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	})

	t.Run("not found", func(t *testing.T) {
		httpErr := asHTTP(t, HandleError(fmt.Errorf("get 7: %w", errs.ErrNotFound)))
		assert.Equal(t, http.StatusNotFound, httpErr.Status)
		assert.Equal(t, "ANNOTATION_NOT_FOUND", httpErr.Code)
	})

	t.Run("unsupported value type", func(t *testing.T) {
		httpErr := asHTTP(t, HandleError(fmt.Errorf("read: %w", errs.ErrUnsupportedValueType)))
		assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
		assert.Equal(t, "UNSUPPORTED_VALUE_TYPE", httpErr.Code)
	})

	t.Run("http error passes through", func(t *testing.T) {
		in := errs.NewForbiddenError("nope", false)
		assert.Same(t, in, HandleError(in))
	})
}

func TestHandleErrorStorageUnwrapsDriverError(t *testing.T) {
	err := errs.Storage("create annotation", &pgconn.PgError{
		Code:           "23503",
		TableName:      "annotations",
		ColumnName:     "entity_guid",
		ConstraintName: "annotations_entity_guid_fkey",
	})

	httpErr := asHTTP(t, HandleError(err))

	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "ANNOTATION_NOT_FOUND", httpErr.Code)
	assert.Equal(t, "The referenced Entity does not exist", httpErr.Message)
}

func TestHandleErrorPostgres(t *testing.T) {
	t.Run("unique violation names the column", func(t *testing.T) {
		httpErr := asHTTP(t, HandleError(&pgconn.PgError{
			Code:           "23505",
			TableName:      "entities",
			ConstraintName: "entities_external_id_key",
		}))
		assert.Equal(t, http.StatusBadRequest, httpErr.Status)
		assert.Equal(t, "ENTITY_ALREADY_EXISTS", httpErr.Code)
		assert.Contains(t, httpErr.Message, "Id")
	})

	t.Run("not null reports the field", func(t *testing.T) {
		httpErr := asHTTP(t, HandleError(&pgconn.PgError{
			Code:       "23502",
			TableName:  "annotations",
			ColumnName: "name",
		}))
		require.Len(t, httpErr.Errors, 1)
		assert.Equal(t, "name", httpErr.Errors[0].Field)
		assert.Equal(t, "The Name is required", httpErr.Message)
	})

	t.Run("non numeric value during aggregate", func(t *testing.T) {
		httpErr := asHTTP(t, HandleError(&pgconn.PgError{Code: "22P02"}))
		assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
		assert.Equal(t, "RECORD_INVALID", httpErr.Code)
	})

	t.Run("busy database", func(t *testing.T) {
		httpErr := asHTTP(t, HandleError(&pgconn.PgError{Code: "53300"}))
		assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
	})
}

func TestHandleErrorFallbacks(t *testing.T) {
	httpErr := asHTTP(t, HandleError(fmt.Errorf("table:entities: %w", pgx.ErrNoRows)))
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, "Entity not found", httpErr.Message)

	httpErr = asHTTP(t, HandleError(context.DeadlineExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)

	httpErr = asHTTP(t, HandleError(fmt.Errorf("boom")))
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
}

func TestGetEntityName(t *testing.T) {
	assert.Equal(t, "Owner", getEntityName("annotations", "owner_guid"))
	assert.Equal(t, "Entity Subtype", getEntityName("entity_subtypes", ""))
	assert.Equal(t, "Entity", getEntityName("entities", ""))
	assert.Equal(t, "record", getEntityName("", ""))
}
