package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/deppfellow/annotations/internal/model"
	"github.com/deppfellow/annotations/internal/validation"
)

var validate = validator.New()

type ListAnnotationsRequest struct {
	EntityGUID    int64  `query:"entity_guid" validate:"gte=0"`
	EntityType    string `query:"entity_type" validate:"max=64"`
	EntitySubtype string `query:"entity_subtype" validate:"max=64"`
	Name          string `query:"name" validate:"max=255"`
	Value         string `query:"value"`
	OwnerGUID     int64  `query:"owner_guid" validate:"gte=0"`
	Limit         int    `query:"limit" validate:"gte=0"`
	Offset        int    `query:"offset" validate:"gte=0"`
	OrderBy       string `query:"order_by" validate:"max=128"`
}

func (r *ListAnnotationsRequest) Validate() error {
	return validate.Struct(r)
}

func (r *ListAnnotationsRequest) Filter() model.Filter {
	return model.Filter{
		EntityGUID:    r.EntityGUID,
		EntityType:    r.EntityType,
		EntitySubtype: r.EntitySubtype,
		Name:          r.Name,
		Value:         r.Value,
		OwnerGUID:     r.OwnerGUID,
		Limit:         r.Limit,
		Offset:        r.Offset,
		OrderBy:       r.OrderBy,
	}
}

type GetAnnotationRequest struct {
	ID int64 `param:"id" validate:"gt=0"`
}

func (r *GetAnnotationRequest) Validate() error {
	return validate.Struct(r)
}

type OwnerRequest struct {
	ID int64 `param:"id" validate:"gt=0"`
}

func (r *OwnerRequest) Validate() error {
	return validate.Struct(r)
}

type DeleteAnnotationRequest struct {
	ID int64 `param:"id" validate:"gt=0"`
}

func (r *DeleteAnnotationRequest) Validate() error {
	return validate.Struct(r)
}

// CreateAnnotationRequest attaches an annotation to the entity in the path.
// Value is kept raw so an integer can be told apart from a numeric string.
type CreateAnnotationRequest struct {
	EntityGUID int64           `param:"guid" json:"-" validate:"gt=0"`
	Name       string          `json:"name" validate:"required,max=255"`
	Value      json.RawMessage `json:"value"`
	ValueType  string          `json:"value_type" validate:"omitempty,max=32"`
	OwnerGUID  int64           `json:"owner_guid" validate:"gte=0"`
	AccessID   int64           `json:"access_id"`

	value any
}

func (r *CreateAnnotationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}

	value, err := decodeValue(r.Value)
	if err != nil {
		return validation.CustomValidationErrors{{Field: "value", Message: err.Error()}}
	}
	r.value = value

	return nil
}

func (r *CreateAnnotationRequest) Params() model.CreateParams {
	return model.CreateParams{
		EntityGUID: r.EntityGUID,
		Name:       r.Name,
		Value:      r.value,
		ValueType:  r.ValueType,
		OwnerGUID:  r.OwnerGUID,
		AccessID:   r.AccessID,
	}
}

type UpdateAnnotationRequest struct {
	ID        int64           `param:"id" json:"-" validate:"gt=0"`
	Name      string          `json:"name" validate:"required,max=255"`
	Value     json.RawMessage `json:"value"`
	ValueType string          `json:"value_type" validate:"omitempty,max=32"`
	OwnerGUID int64           `json:"owner_guid" validate:"gte=0"`
	AccessID  int64           `json:"access_id"`

	value any
}

func (r *UpdateAnnotationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}

	value, err := decodeValue(r.Value)
	if err != nil {
		return validation.CustomValidationErrors{{Field: "value", Message: err.Error()}}
	}
	r.value = value

	return nil
}

func (r *UpdateAnnotationRequest) Params() model.UpdateParams {
	return model.UpdateParams{
		ID:        r.ID,
		Name:      r.Name,
		Value:     r.value,
		ValueType: r.ValueType,
		OwnerGUID: r.OwnerGUID,
		AccessID:  r.AccessID,
	}
}

type AggregateRequest struct {
	Op            string `param:"op" validate:"required,max=16"`
	EntityGUID    int64  `query:"entity_guid" validate:"gte=0"`
	EntityType    string `query:"entity_type" validate:"max=64"`
	EntitySubtype string `query:"entity_subtype" validate:"max=64"`
	Name          string `query:"name" validate:"max=255"`
}

func (r *AggregateRequest) Validate() error {
	return validate.Struct(r)
}

func (r *AggregateRequest) Filter() model.AggregateFilter {
	return model.AggregateFilter{
		EntityGUID:    r.EntityGUID,
		EntityType:    r.EntityType,
		EntitySubtype: r.EntitySubtype,
		Name:          r.Name,
	}
}

type CountRequest struct {
	EntityGUID    int64  `query:"entity_guid" validate:"gte=0"`
	EntityType    string `query:"entity_type" validate:"max=64"`
	EntitySubtype string `query:"entity_subtype" validate:"max=64"`
	Name          string `query:"name" validate:"max=255"`
}

func (r *CountRequest) Validate() error {
	return validate.Struct(r)
}

func (r *CountRequest) Filter() model.AggregateFilter {
	return model.AggregateFilter{
		EntityGUID:    r.EntityGUID,
		EntityType:    r.EntityType,
		EntitySubtype: r.EntitySubtype,
		Name:          r.Name,
	}
}

type ClearAnnotationsRequest struct {
	EntityGUID int64  `param:"guid" validate:"gt=0"`
	Name       string `query:"name" validate:"max=255"`
	Async      bool   `query:"async"`
}

func (r *ClearAnnotationsRequest) Validate() error {
	return validate.Struct(r)
}

// decodeValue turns the JSON value of a write into the Go value the store
// expects. Integers become int64 so they are stored as integer
// annotations; other numbers and booleans are kept as their text.
func decodeValue(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("is required")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.New("is not valid JSON")
	}

	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	}

	return nil, errors.New("must be a string, a number or a boolean")
}
