package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	values map[string]string
	sets   int
}

func (c *memoryCache) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := c.values[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (c *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	c.sets++
	c.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func TestResolveSubtypeID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cache := &memoryCache{values: map[string]string{}}
	repo := NewEntityRepository(mock, cache, time.Hour)

	mock.ExpectQuery(sqlLike("SELECT id FROM entity_subtypes WHERE subtype = $1")).
		WithArgs("blog").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)))

	id, ok, err := repo.ResolveSubtypeID(context.Background(), "blog")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)
	assert.Equal(t, "4", cache.values["annotations:subtype:blog"])

	// Second lookup is served from the cache.
	id, ok, err = repo.ResolveSubtypeID(context.Background(), "blog")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)
	assert.Equal(t, 1, cache.sets)

	mock.ExpectQuery(sqlLike("FROM entity_subtypes")).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, ok, err = repo.ResolveSubtypeID(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotContains(t, cache.values, "annotations:subtype:nope")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveSubtypeIDWithoutCache(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntityRepository(mock, nil, 0)

	mock.ExpectQuery(sqlLike("FROM entity_subtypes")).
		WithArgs("blog").
		WillReturnError(errors.New("boom"))

	_, _, err = repo.ResolveSubtypeID(context.Background(), "blog")
	assert.ErrorContains(t, err, "boom")
}

func TestEntity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntityRepository(mock, nil, 0)
	created := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(sqlLike("FROM entities e", "LEFT JOIN entity_subtypes st", "WHERE e.guid = $1")).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"guid", "type", "subtype", "owner_guid", "access_id", "external_id", "email", "display_name", "time_created"}).
			AddRow(int64(7), "user", "", int64(0), int64(2), "user_2abc", "ana@example.com", "Ana", created))

	e, err := repo.Entity(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "user", e.Type)
	assert.Equal(t, "ana@example.com", e.Email)
	assert.Equal(t, created, e.TimeCreated)

	mock.ExpectQuery(sqlLike("FROM entities e")).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"guid"}))

	_, err = repo.Entity(context.Background(), 9)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.Contains(t, err.Error(), "table:entities")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGUIDForExternalID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntityRepository(mock, nil, 0)

	mock.ExpectQuery(sqlLike("SELECT guid FROM entities WHERE external_id = $1")).
		WithArgs("user_2abc").
		WillReturnRows(pgxmock.NewRows([]string{"guid"}).AddRow(int64(7)))
	mock.ExpectQuery(sqlLike("SELECT guid FROM entities")).
		WithArgs("user_missing").
		WillReturnRows(pgxmock.NewRows([]string{"guid"}))

	guid, ok, err := repo.GUIDForExternalID(context.Background(), "user_2abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), guid)

	_, ok, err = repo.GUIDForExternalID(context.Background(), "user_missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMetastrings(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMetastringRepository(mock)

	mock.ExpectQuery(sqlLike("INSERT INTO metastrings (string) VALUES ($1)", "ON CONFLICT (string_hash)", "RETURNING id")).
		WithArgs("5").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(55)))
	mock.ExpectQuery(sqlLike("SELECT id FROM metastrings", "WHERE string_hash = sha256(convert_to($1::text, 'UTF8')) AND string = $1")).
		WithArgs("5").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(55)))
	mock.ExpectQuery(sqlLike("SELECT id FROM metastrings")).
		WithArgs("6").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	id, err := repo.Intern(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, int64(55), id)

	id, ok, err := repo.IDFor(context.Background(), "5")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(55), id)

	_, ok, err = repo.IDFor(context.Background(), "6")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetastringsLongValue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMetastringRepository(mock)
	long := strings.Repeat("x", 4000)

	mock.ExpectQuery(sqlLike("INSERT INTO metastrings", "ON CONFLICT (string_hash)")).
		WithArgs(long).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(56)))
	mock.ExpectQuery(sqlLike("WHERE string_hash = sha256(")).
		WithArgs(long).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(56)))

	id, err := repo.Intern(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, int64(56), id)

	id, ok, err := repo.IDFor(context.Background(), long)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(56), id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsKeyMetastringsOnHash(t *testing.T) {
	sql, err := fs.ReadFile(os.DirFS("../database/migrations"), "002_metastrings_hash.sql")
	require.NoError(t, err)

	up, _, found := strings.Cut(string(sql), "---- create above / drop below ----")
	require.True(t, found)
	assert.Contains(t, up, "sha256(convert_to(string, 'UTF8'))")
	assert.Contains(t, up, "DROP CONSTRAINT metastrings_string_key")
	assert.Contains(t, up, "UNIQUE (string_hash)")
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	_, err := c.Get(ctx, "annotations:subtype:blog").Result()
	assert.ErrorIs(t, err, redis.Nil)

	require.NoError(t, c.Set(ctx, "annotations:subtype:blog", "4", time.Minute).Err())

	v, err := c.Get(ctx, "annotations:subtype:blog").Result()
	require.NoError(t, err)
	assert.Equal(t, "4", v)
}

func TestResolveSubtypeIDWithMemoryCache(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntityRepository(mock, NewMemoryCache(time.Hour), time.Hour)

	mock.ExpectQuery(sqlLike("FROM entity_subtypes")).
		WithArgs("blog").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)))

	for range 2 {
		id, ok, err := repo.ResolveSubtypeID(context.Background(), "blog")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(4), id)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}
