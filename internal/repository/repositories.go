// Package repository holds the PostgreSQL data access of the service.
//
// Queries are built with squirrel using dollar placeholders, so every
// caller-provided value is a bound parameter. Repositories depend on
// database.Querier rather than the pool, which lets tests run them
// against pgxmock.
package repository

import (
	"time"

	"github.com/deppfellow/annotations/internal/server"
)

// Repositories groups the repository instances handed to the services.
type Repositories struct {
	Annotations *AnnotationRepository
	Entities    *EntityRepository
	Metastrings *MetastringRepository
}

func NewRepositories(s *server.Server) *Repositories {
	pool := s.DB.Pool

	// Subtype ids are cached in Redis, or per instance when Redis is down.
	var cache SubtypeCache
	ttl := time.Duration(s.Config.Annotations.SubtypeCacheTTL) * time.Second
	switch {
	case ttl <= 0:
	case s.Redis != nil:
		cache = s.Redis
	default:
		cache = NewMemoryCache(ttl)
	}

	entities := NewEntityRepository(pool, cache, ttl)
	metastrings := NewMetastringRepository(pool)

	return &Repositories{
		Annotations: NewAnnotationRepository(pool, entities, metastrings, *s.Config.Annotations),
		Entities:    entities,
		Metastrings: metastrings,
	}
}
