package config

import (
	"fmt"
	"regexp"
)

// AnnotationsConfig tunes the annotation store and its side effects.
type AnnotationsConfig struct {
	// DefaultLimit applies to list queries that do not ask for a limit.
	DefaultLimit int `koanf:"default_limit"`

	// MaxLimit caps the limit a caller may ask for.
	MaxLimit int `koanf:"max_limit"`

	// DefaultOrderBy is used when a list query has no order.
	DefaultOrderBy string `koanf:"default_order_by"`

	// NotifyOwner enqueues an email to the entity owner when somebody else
	// annotates one of their entities.
	NotifyOwner bool `koanf:"notify_owner"`

	// SubtypeCacheTTL is how long resolved subtype ids stay in Redis, in
	// seconds. Negative disables the cache.
	SubtypeCacheTTL int `koanf:"subtype_cache_ttl"`
}

var orderByPattern = regexp.MustCompile(`^[a-z_]+( (asc|desc))?(, ?[a-z_]+( (asc|desc))?)*$`)

// DefaultAnnotationsConfig mirrors the behavior of the original list
// helper: ten rows, newest first.
func DefaultAnnotationsConfig() *AnnotationsConfig {
	return &AnnotationsConfig{
		DefaultLimit:    10,
		MaxLimit:        100,
		DefaultOrderBy:  "time_created desc",
		SubtypeCacheTTL: 3600,
	}
}

// ApplyDefaults fills zero fields that were left out of the environment.
func (c *AnnotationsConfig) ApplyDefaults() {
	defaults := DefaultAnnotationsConfig()
	if c.DefaultLimit == 0 {
		c.DefaultLimit = defaults.DefaultLimit
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = defaults.MaxLimit
	}
	if c.DefaultOrderBy == "" {
		c.DefaultOrderBy = defaults.DefaultOrderBy
	}
	if c.SubtypeCacheTTL == 0 {
		c.SubtypeCacheTTL = defaults.SubtypeCacheTTL
	}
}

func (c *AnnotationsConfig) Validate() error {
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default_limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit (%d) must not be below default_limit (%d)", c.MaxLimit, c.DefaultLimit)
	}
	if !orderByPattern.MatchString(c.DefaultOrderBy) {
		return fmt.Errorf("default_order_by %q is not a column list", c.DefaultOrderBy)
	}
	return nil
}
