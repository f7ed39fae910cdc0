package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deppfellow/annotations/internal/errs"
)

// ValueType names how the raw stored value of an annotation is interpreted.
type ValueType string

const (
	ValueTypeInteger ValueType = "integer"
	ValueTypeTag     ValueType = "tag"
	ValueTypeText    ValueType = "text"
	ValueTypeFile    ValueType = "file"
)

// Known reports whether t is one of the recognized value kinds.
func (t ValueType) Known() bool {
	switch t {
	case ValueTypeInteger, ValueTypeTag, ValueTypeText, ValueTypeFile:
		return true
	}
	return false
}

// Access ids understood by the host framework.
const (
	// AccessPrivate restricts a row to its owner.
	AccessPrivate int64 = 0
	// AccessLoggedIn is visible to any authenticated caller.
	AccessLoggedIn int64 = 1
	// AccessPublic is visible to everybody, including anonymous callers.
	AccessPublic int64 = 2
)

// Annotation is one typed, named fact attached to an entity.
//
// Value holds the raw string exactly as it is stored in the metastrings
// table. Use ReadTypedValue to get it converted according to ValueType.
type Annotation struct {
	ID          int64     `json:"id"`
	EntityGUID  int64     `json:"entity_guid"`
	Name        string    `json:"name"`
	Value       string    `json:"value"`
	ValueType   ValueType `json:"value_type"`
	OwnerGUID   int64     `json:"owner_guid"`
	AccessID    int64     `json:"access_id"`
	TimeCreated time.Time `json:"time_created"`
}

// IsSaved reports whether the annotation has been persisted.
// A zero id denotes a transient instance that was never stored.
func (a *Annotation) IsSaved() bool {
	return a.ID > 0
}

// ReadTypedValue converts the raw value according to ValueType.
//
// Integer annotations come back as int64, every textual kind as string.
// A value type outside the recognized set means the row was written by
// something this code does not understand (typically an unfinished
// migration), and the read fails with errs.ErrUnsupportedValueType.
func (a *Annotation) ReadTypedValue() (any, error) {
	switch a.ValueType {
	case ValueTypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(a.Value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("annotation %d: integer value %q: %w", a.ID, a.Value, err)
		}
		return n, nil
	case ValueTypeTag, ValueTypeText, ValueTypeFile:
		return a.Value, nil
	default:
		return nil, fmt.Errorf("annotation %d: type %q: %w", a.ID, a.ValueType, errs.ErrUnsupportedValueType)
	}
}

// DetectValueType picks the value type for a new or updated annotation.
//
// An explicit type always wins and is returned unchanged, even when it is
// not a recognized kind; unknown kinds are only rejected when the value is
// read back. Without an explicit type, native Go integers become "integer"
// and everything else becomes "tag". This is a heuristic: a numeric string
// such as "5" is still a tag.
func DetectValueType(value any, explicit string) ValueType {
	if explicit != "" {
		return ValueType(explicit)
	}

	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return ValueTypeInteger
	}

	return ValueTypeTag
}

// FormatValue renders a raw value into the string that gets interned.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Sanitize trims surrounding whitespace and strips bytes PostgreSQL refuses
// to store in text columns (NUL and invalid UTF-8).
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.ReplaceAll(s, "\x00", "")
}
