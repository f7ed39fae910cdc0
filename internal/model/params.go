package model

import (
	"fmt"
	"strings"

	"github.com/deppfellow/annotations/internal/errs"
	"github.com/go-playground/validator/v10"
)

// validate is shared; validator caches struct metadata and is safe for
// concurrent use.
var validate = validator.New()

// CreateParams are the inputs of a new annotation.
//
// Value keeps its native Go type until the value type has been detected,
// so an int stays distinguishable from the string "5".
type CreateParams struct {
	EntityGUID int64  `validate:"gt=0"`
	Name       string `validate:"required,max=255"`
	Value      any
	ValueType  string `validate:"max=32"`
	OwnerGUID  int64  `validate:"gte=0"`
	AccessID   int64
}

// Normalize returns a copy with name, value and value type trimmed and
// sanitized. String values are sanitized; other kinds are left as they are
// so DetectValueType can still see them.
func (p CreateParams) Normalize() CreateParams {
	p.Name = Sanitize(p.Name)
	p.ValueType = Sanitize(p.ValueType)
	if s, ok := p.Value.(string); ok {
		p.Value = Sanitize(s)
	}
	return p
}

// Validate checks the struct tags and reports failures as errs.ErrInvalidInput.
func (p CreateParams) Validate() error {
	return validateStruct(p)
}

// UpdateParams are the inputs of an annotation update.
//
// Name is not changed by an update: it is part of the match condition,
// together with the id and the caller's visibility.
type UpdateParams struct {
	ID        int64  `validate:"gt=0"`
	Name      string `validate:"required,max=255"`
	Value     any
	ValueType string `validate:"max=32"`
	OwnerGUID int64  `validate:"gte=0"`
	AccessID  int64
}

func (p UpdateParams) Normalize() UpdateParams {
	p.Name = Sanitize(p.Name)
	p.ValueType = Sanitize(p.ValueType)
	if s, ok := p.Value.(string); ok {
		p.Value = Sanitize(s)
	}
	return p
}

func (p UpdateParams) Validate() error {
	return validateStruct(p)
}

// Filter narrows a list query. Zero values mean "no restriction" except for
// Limit and OrderBy, which fall back to the store defaults.
type Filter struct {
	EntityGUID    int64
	EntityType    string
	EntitySubtype string
	Name          string
	Value         string
	OwnerGUID     int64
	Limit         int
	Offset        int
	OrderBy       string
}

// Normalize returns a copy with the string fields sanitized like stored
// names and values, so a filter matches what a write with the same input
// stored.
func (f Filter) Normalize() Filter {
	f.EntityType = Sanitize(f.EntityType)
	f.EntitySubtype = Sanitize(f.EntitySubtype)
	f.Name = Sanitize(f.Name)
	f.Value = Sanitize(f.Value)
	return f
}

// AggregateFilter narrows an aggregate query.
type AggregateFilter struct {
	EntityGUID    int64
	EntityType    string
	EntitySubtype string
	Name          string
}

// AggregateOp is the SQL aggregate applied to integer annotations.
type AggregateOp string

const (
	AggregateSum   AggregateOp = "sum"
	AggregateMax   AggregateOp = "max"
	AggregateMin   AggregateOp = "min"
	AggregateAvg   AggregateOp = "avg"
	AggregateCount AggregateOp = "count"
)

// ParseAggregateOp accepts an operation name in any case.
func ParseAggregateOp(s string) (AggregateOp, error) {
	op := AggregateOp(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case AggregateSum, AggregateMax, AggregateMin, AggregateAvg, AggregateCount:
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown aggregate %q", errs.ErrInvalidInput, s)
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}
	return nil
}
