package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/annotations/internal/model"
)

type fakeDirectory struct {
	subtypes map[string]int64
	entities map[int64]*model.Entity
	err      error
}

func (f *fakeDirectory) ResolveSubtypeID(_ context.Context, subtype string) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	id, ok := f.subtypes[subtype]
	return id, ok, nil
}

func (f *fakeDirectory) Entity(_ context.Context, guid int64) (*model.Entity, error) {
	if e, ok := f.entities[guid]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("table:entities: guid %d: %w", guid, pgx.ErrNoRows)
}

type fakeInterner struct {
	ids  map[string]int64
	next int64
	err  error
}

func newFakeInterner() *fakeInterner {
	return &fakeInterner{ids: map[string]int64{}, next: 100}
}

func (f *fakeInterner) Intern(_ context.Context, s string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if id, ok := f.ids[s]; ok {
		return id, nil
	}
	f.next++
	f.ids[s] = f.next
	return f.next, nil
}

func (f *fakeInterner) IDFor(_ context.Context, s string) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	id, ok := f.ids[s]
	return id, ok, nil
}

// sqlLike builds a pgxmock regexp matching the fragments in order.
func sqlLike(fragments ...string) string {
	quoted := make([]string, len(fragments))
	for i, f := range fragments {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return "(?s)" + strings.Join(quoted, ".*")
}
