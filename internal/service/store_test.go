package service

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"time"

	"github.com/deppfellow/annotations/internal/access"
	"github.com/deppfellow/annotations/internal/errs"
	"github.com/deppfellow/annotations/internal/lib/email"
	"github.com/deppfellow/annotations/internal/model"
)

// memStore is an in-memory AnnotationStore with the same visibility rule
// as the SQL repository.
type memStore struct {
	rows   map[int64]model.Annotation
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{rows: map[int64]model.Annotation{}}
}

func (m *memStore) Get(_ context.Context, scope access.Scope, id int64) (*model.Annotation, error) {
	a, ok := m.rows[id]
	if !ok || !scope.Visible(a.AccessID, a.OwnerGUID) {
		return nil, fmt.Errorf("annotation %d: %w", id, errs.ErrNotFound)
	}
	return &a, nil
}

func (m *memStore) Create(_ context.Context, scope access.Scope, p model.CreateParams) (int64, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return 0, err
	}
	owner := p.OwnerGUID
	if owner == 0 {
		owner = scope.UserID
	}
	m.nextID++
	m.rows[m.nextID] = model.Annotation{
		ID:          m.nextID,
		EntityGUID:  p.EntityGUID,
		Name:        p.Name,
		Value:       model.FormatValue(p.Value),
		ValueType:   model.DetectValueType(p.Value, p.ValueType),
		OwnerGUID:   owner,
		AccessID:    p.AccessID,
		TimeCreated: time.Now(),
	}
	return m.nextID, nil
}

func (m *memStore) Update(_ context.Context, scope access.Scope, p model.UpdateParams) (bool, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return false, err
	}
	a, ok := m.rows[p.ID]
	if !ok || a.Name != p.Name || !scope.Visible(a.AccessID, a.OwnerGUID) {
		return false, nil
	}
	owner := p.OwnerGUID
	if owner == 0 {
		owner = scope.UserID
	}
	a.Value = model.FormatValue(p.Value)
	a.ValueType = model.DetectValueType(p.Value, p.ValueType)
	a.OwnerGUID = owner
	a.AccessID = p.AccessID
	m.rows[p.ID] = a
	return true, nil
}

func (m *memStore) matching(scope access.Scope, f model.Filter) []model.Annotation {
	var out []model.Annotation
	for _, a := range m.rows {
		switch {
		case !scope.Visible(a.AccessID, a.OwnerGUID):
		case f.EntityGUID > 0 && a.EntityGUID != f.EntityGUID:
		case f.Name != "" && a.Name != f.Name:
		case f.Value != "" && a.Value != f.Value:
		case f.OwnerGUID > 0 && a.OwnerGUID != f.OwnerGUID:
		default:
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(x, y model.Annotation) int { return int(y.ID - x.ID) })
	return out
}

func (m *memStore) List(_ context.Context, scope access.Scope, f model.Filter) iter.Seq2[model.Annotation, error] {
	return func(yield func(model.Annotation, error) bool) {
		for _, a := range m.matching(scope, f) {
			if !yield(a, nil) {
				return
			}
		}
	}
}

func (m *memStore) Aggregate(_ context.Context, scope access.Scope, op model.AggregateOp, f model.AggregateFilter) (float64, error) {
	var values []float64
	for _, a := range m.matching(scope, model.Filter{EntityGUID: f.EntityGUID, Name: f.Name}) {
		if a.ValueType != model.ValueTypeInteger {
			continue
		}
		n, err := strconv.ParseInt(a.Value, 10, 64)
		if err != nil {
			return 0, errs.Storage("aggregate", err)
		}
		values = append(values, float64(n))
	}
	if len(values) == 0 {
		return 0, errs.ErrNotFound
	}

	switch op {
	case model.AggregateCount:
		return float64(len(values)), nil
	case model.AggregateMax:
		return slices.Max(values), nil
	case model.AggregateMin:
		return slices.Min(values), nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	if op == model.AggregateAvg {
		return sum / float64(len(values)), nil
	}
	return sum, nil
}

func (m *memStore) Count(ctx context.Context, scope access.Scope, f model.AggregateFilter) (int64, error) {
	n, err := m.Aggregate(ctx, scope, model.AggregateCount, f)
	if err != nil {
		return 0, nil
	}
	return int64(n), nil
}

func (m *memStore) Delete(_ context.Context, scope access.Scope, id int64) (bool, error) {
	a, ok := m.rows[id]
	if !ok || !scope.Visible(a.AccessID, a.OwnerGUID) {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memStore) Clear(_ context.Context, scope access.Scope, entityGUID int64, name string) (int64, error) {
	if entityGUID <= 0 {
		return 0, errs.Invalid("entity guid must be positive, got %d", entityGUID)
	}
	var n int64
	for id, a := range m.rows {
		if a.EntityGUID != entityGUID || (name != "" && a.Name != name) || !scope.Visible(a.AccessID, a.OwnerGUID) {
			continue
		}
		delete(m.rows, id)
		n++
	}
	return n, nil
}

type memEntities map[int64]*model.Entity

func (m memEntities) Entity(_ context.Context, guid int64) (*model.Entity, error) {
	if e, ok := m[guid]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("entity %d: %w", guid, errs.ErrNotFound)
}

type sentNotice struct {
	to     string
	notice email.AnnotationNotice
}

type memQueue struct {
	enabled bool
	notices []sentNotice
	clears  []access.Scope
	err     error
}

func (q *memQueue) EnqueueClear(_ context.Context, scope access.Scope, _ int64, _ string) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.clears = append(q.clears, scope)
	return fmt.Sprintf("task-%d", len(q.clears)), nil
}

func (q *memQueue) EnqueueAnnotationNotice(_ context.Context, to string, n email.AnnotationNotice) error {
	if q.err != nil {
		return q.err
	}
	q.notices = append(q.notices, sentNotice{to: to, notice: n})
	return nil
}

func (q *memQueue) NotificationsEnabled() bool { return q.enabled }
