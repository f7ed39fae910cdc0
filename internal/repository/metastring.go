package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/annotations/internal/database"
)

const (
	// Uniqueness is on string_hash, a generated sha256 of string, so values
	// of any length can be interned.
	internMetastringQuery = `INSERT INTO metastrings (string) VALUES ($1)
ON CONFLICT (string_hash) DO UPDATE SET string = EXCLUDED.string
RETURNING id`

	metastringIDQuery = `SELECT id FROM metastrings
WHERE string_hash = sha256(convert_to($1::text, 'UTF8')) AND string = $1`
)

// MetastringRepository interns strings in the metastrings table.
type MetastringRepository struct {
	db database.Querier
}

func NewMetastringRepository(db database.Querier) *MetastringRepository {
	return &MetastringRepository{db: db}
}

// Intern upserts s and returns its id. Concurrent callers interning the
// same string get the same id.
func (r *MetastringRepository) Intern(ctx context.Context, s string) (int64, error) {
	var id int64
	if err := r.db.QueryRow(ctx, internMetastringQuery, s).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to intern metastring: %w", err)
	}
	return id, nil
}

func (r *MetastringRepository) IDFor(ctx context.Context, s string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRow(ctx, metastringIDQuery, s).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up metastring: %w", err)
	}
	return id, true, nil
}
