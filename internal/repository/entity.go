package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/deppfellow/annotations/internal/database"
	"github.com/deppfellow/annotations/internal/model"
)

const (
	subtypeIDQuery = `SELECT id FROM entity_subtypes WHERE subtype = $1 ORDER BY id LIMIT 1`

	entityQuery = `SELECT e.guid, e.type, COALESCE(st.subtype, ''), e.owner_guid, e.access_id,
	COALESCE(e.external_id, ''), COALESCE(e.email, ''), e.display_name, e.time_created
FROM entities e
LEFT JOIN entity_subtypes st ON st.id = e.subtype
WHERE e.guid = $1`

	externalIDQuery = `SELECT guid FROM entities WHERE external_id = $1`

	subtypeCachePrefix = "annotations:subtype:"
)

// SubtypeCache is the part of a Redis client used to cache subtype ids.
type SubtypeCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// EntityRepository reads the entities and entity_subtypes tables.
//
// Subtype ids never change once assigned, so resolved ids are cached in
// Redis when a cache is configured. Cache failures fall back to the
// database.
type EntityRepository struct {
	db       database.Querier
	cache    SubtypeCache
	cacheTTL time.Duration
}

// NewEntityRepository builds the repository. cache may be nil.
func NewEntityRepository(db database.Querier, cache SubtypeCache, cacheTTL time.Duration) *EntityRepository {
	return &EntityRepository{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func (r *EntityRepository) ResolveSubtypeID(ctx context.Context, subtype string) (int64, bool, error) {
	key := subtypeCachePrefix + subtype

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key).Result()
		if err == nil {
			if id, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
				return id, true, nil
			}
		}
	}

	var id int64
	err := r.db.QueryRow(ctx, subtypeIDQuery, subtype).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve subtype %q: %w", subtype, err)
	}

	if r.cache != nil {
		// Best effort; the next lookup reads the database again.
		_ = r.cache.Set(ctx, key, strconv.FormatInt(id, 10), r.cacheTTL).Err()
	}

	return id, true, nil
}

// Entity loads one entity by guid.
func (r *EntityRepository) Entity(ctx context.Context, guid int64) (*model.Entity, error) {
	var e model.Entity

	err := r.db.QueryRow(ctx, entityQuery, guid).Scan(
		&e.GUID,
		&e.Type,
		&e.Subtype,
		&e.OwnerGUID,
		&e.AccessID,
		&e.ExternalID,
		&e.Email,
		&e.DisplayName,
		&e.TimeCreated,
	)
	if err != nil {
		return nil, fmt.Errorf("table:entities: guid %d: %w", guid, err)
	}

	return &e, nil
}

// GUIDForExternalID maps an identity provider subject to a user entity.
func (r *EntityRepository) GUIDForExternalID(ctx context.Context, externalID string) (int64, bool, error) {
	var guid int64
	err := r.db.QueryRow(ctx, externalIDQuery, externalID).Scan(&guid)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up external id: %w", err)
	}
	return guid, true, nil
}
