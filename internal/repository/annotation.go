package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/annotations/internal/access"
	"github.com/deppfellow/annotations/internal/config"
	"github.com/deppfellow/annotations/internal/database"
	"github.com/deppfellow/annotations/internal/errs"
	"github.com/deppfellow/annotations/internal/model"
)

// ErrSequenceConsumed is yielded when a list sequence is ranged over a
// second time. Sequences read straight from a database cursor and cannot
// be restarted.
var ErrSequenceConsumed = errors.New("annotation sequence already consumed")

// EntityDirectory resolves entity metadata needed by annotation queries.
type EntityDirectory interface {
	// ResolveSubtypeID maps a subtype name to its id. ok is false when the
	// subtype is unknown.
	ResolveSubtypeID(ctx context.Context, subtype string) (id int64, ok bool, err error)
	Entity(ctx context.Context, guid int64) (*model.Entity, error)
}

// MetastringInterner maps free text to deduplicated string ids.
type MetastringInterner interface {
	// Intern returns the id of s, storing it first if needed.
	Intern(ctx context.Context, s string) (int64, error)
	// IDFor returns the id of s without storing it. ok is false when s was
	// never interned.
	IDFor(ctx context.Context, s string) (id int64, ok bool, err error)
}

var annotationColumns = []string{
	"a.id",
	"a.entity_guid",
	"a.name",
	"ms.string",
	"a.value_type",
	"a.owner_guid",
	"a.access_id",
	"a.time_created",
}

// orderColumns is the set of columns a caller may sort by.
var orderColumns = map[string]string{
	"id":           "a.id",
	"entity_guid":  "a.entity_guid",
	"name":         "a.name",
	"value":        "ms.string",
	"value_type":   "a.value_type",
	"owner_guid":   "a.owner_guid",
	"access_id":    "a.access_id",
	"time_created": "a.time_created",
}

// AnnotationRepository stores annotations in PostgreSQL.
//
// Every statement carries the caller's visibility predicate in its WHERE
// clause, so rows outside the scope are never returned, counted, changed
// or deleted.
type AnnotationRepository struct {
	db       database.Querier
	entities EntityDirectory
	strings  MetastringInterner
	cfg      config.AnnotationsConfig
	sb       sq.StatementBuilderType
	now      func() time.Time
}

func NewAnnotationRepository(
	db database.Querier,
	entities EntityDirectory,
	strs MetastringInterner,
	cfg config.AnnotationsConfig,
) *AnnotationRepository {
	cfg.ApplyDefaults()

	return &AnnotationRepository{
		db:       db,
		entities: entities,
		strings:  strs,
		cfg:      cfg,
		sb:       sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:      time.Now,
	}
}

func (r *AnnotationRepository) Get(ctx context.Context, scope access.Scope, id int64) (*model.Annotation, error) {
	query, args, err := r.sb.Select(annotationColumns...).
		From("annotations a").
		Join("metastrings ms ON ms.id = a.value").
		Where(sq.Eq{"a.id": id}).
		Where(scope.Predicate("a")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get query: %w", err)
	}

	a, err := scanAnnotation(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("annotation %d: %w", id, errs.ErrNotFound)
		}
		return nil, errs.Storage(fmt.Sprintf("get annotation %d", id), err)
	}

	return &a, nil
}

// Create stores a new annotation and returns its id.
//
// An empty value type is inferred from the value, and a zero owner falls
// back to the caller.
func (r *AnnotationRepository) Create(ctx context.Context, scope access.Scope, p model.CreateParams) (int64, error) {
	a, err := r.insert(ctx, scope, p)
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

// insert stores p and returns the row exactly as it was written.
func (r *AnnotationRepository) insert(ctx context.Context, scope access.Scope, p model.CreateParams) (model.Annotation, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return model.Annotation{}, err
	}

	a := model.Annotation{
		EntityGUID:  p.EntityGUID,
		Name:        p.Name,
		Value:       model.FormatValue(p.Value),
		ValueType:   model.DetectValueType(p.Value, p.ValueType),
		OwnerGUID:   p.OwnerGUID,
		AccessID:    p.AccessID,
		TimeCreated: r.now().UTC(),
	}
	if a.OwnerGUID == 0 {
		a.OwnerGUID = scope.UserID
	}

	valueID, err := r.strings.Intern(ctx, a.Value)
	if err != nil {
		return model.Annotation{}, errs.Storage("intern annotation value", err)
	}

	query, args, err := r.sb.Insert("annotations").
		Columns("entity_guid", "name", "value", "value_type", "owner_guid", "access_id", "time_created").
		Values(a.EntityGUID, a.Name, valueID, string(a.ValueType), a.OwnerGUID, a.AccessID, a.TimeCreated).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return model.Annotation{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&a.ID); err != nil {
		return model.Annotation{}, errs.Storage(fmt.Sprintf("create annotation on entity %d", p.EntityGUID), err)
	}

	return a, nil
}

// Update rewrites value, value type, owner and access of the annotation
// matching id and name that the caller can see. It reports whether a row
// changed; a mismatched name or an invisible row is false, not an error.
func (r *AnnotationRepository) Update(ctx context.Context, scope access.Scope, p model.UpdateParams) (bool, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return false, err
	}

	valueType := model.DetectValueType(p.Value, p.ValueType)
	owner := p.OwnerGUID
	if owner == 0 {
		owner = scope.UserID
	}

	valueID, err := r.strings.Intern(ctx, model.FormatValue(p.Value))
	if err != nil {
		return false, errs.Storage("intern annotation value", err)
	}

	query, args, err := r.sb.Update("annotations").
		Set("value", valueID).
		Set("value_type", string(valueType)).
		Set("owner_guid", owner).
		Set("access_id", p.AccessID).
		Where(sq.Eq{"id": p.ID}).
		Where(sq.Eq{"name": p.Name}).
		Where(scope.Predicate("")).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, errs.Storage(fmt.Sprintf("update annotation %d", p.ID), err)
	}

	return tag.RowsAffected() > 0, nil
}

// Save creates a transient annotation or updates a stored one. Afterwards a
// holds what was written: the sanitized name and value, the resolved type
// and owner, and on create the new id and timestamp.
func (r *AnnotationRepository) Save(ctx context.Context, scope access.Scope, a *model.Annotation) (bool, error) {
	if !a.IsSaved() {
		stored, err := r.insert(ctx, scope, model.CreateParams{
			EntityGUID: a.EntityGUID,
			Name:       a.Name,
			Value:      a.Value,
			ValueType:  string(a.ValueType),
			OwnerGUID:  a.OwnerGUID,
			AccessID:   a.AccessID,
		})
		if err != nil {
			return false, err
		}
		*a = stored
		return true, nil
	}

	p := model.UpdateParams{
		ID:        a.ID,
		Name:      a.Name,
		Value:     a.Value,
		ValueType: string(a.ValueType),
		OwnerGUID: a.OwnerGUID,
		AccessID:  a.AccessID,
	}.Normalize()

	ok, err := r.Update(ctx, scope, p)
	if err != nil || !ok {
		return ok, err
	}

	a.Name = p.Name
	a.Value = model.FormatValue(p.Value)
	a.ValueType = model.DetectValueType(p.Value, p.ValueType)
	if a.OwnerGUID == 0 {
		a.OwnerGUID = scope.UserID
	}

	return true, nil
}

// List returns the visible annotations matching filter.
//
// The sequence is lazy: nothing is queried until it is ranged over, and
// rows are read from the cursor as they are yielded. It can be consumed
// once; a second range yields ErrSequenceConsumed. Stopping early closes
// the cursor.
func (r *AnnotationRepository) List(ctx context.Context, scope access.Scope, filter model.Filter) iter.Seq2[model.Annotation, error] {
	var consumed atomic.Bool

	return func(yield func(model.Annotation, error) bool) {
		if consumed.Swap(true) {
			yield(model.Annotation{}, ErrSequenceConsumed)
			return
		}

		query, args, ok, err := r.listQuery(ctx, scope, filter)
		if err != nil {
			yield(model.Annotation{}, err)
			return
		}
		if !ok {
			return
		}

		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			yield(model.Annotation{}, errs.Storage("list annotations", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAnnotation(rows)
			if err != nil {
				yield(model.Annotation{}, errs.Storage("scan annotation", err))
				return
			}
			if !yield(a, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(model.Annotation{}, errs.Storage("list annotations", err))
		}
	}
}

// listQuery renders the list statement. ok is false when a filter refers to
// a subtype or value that does not exist, so no row can match.
func (r *AnnotationRepository) listQuery(ctx context.Context, scope access.Scope, filter model.Filter) (string, []any, bool, error) {
	if filter.Limit < 0 {
		return "", nil, false, errs.Invalid("limit must not be negative, got %d", filter.Limit)
	}
	if filter.Offset < 0 {
		return "", nil, false, errs.Invalid("offset must not be negative, got %d", filter.Offset)
	}

	orderBy := filter.OrderBy
	if strings.TrimSpace(orderBy) == "" {
		orderBy = r.cfg.DefaultOrderBy
	}
	order, err := ParseOrderBy(orderBy)
	if err != nil {
		return "", nil, false, err
	}

	limit := filter.Limit
	if limit == 0 {
		limit = r.cfg.DefaultLimit
	}
	limit = min(limit, r.cfg.MaxLimit)

	b := r.sb.Select(annotationColumns...).
		From("annotations a").
		Join("entities e ON e.guid = a.entity_guid").
		Join("metastrings ms ON ms.id = a.value")

	b, ok, err := r.applyFilter(ctx, b, scope, filter)
	if err != nil || !ok {
		return "", nil, ok, err
	}

	b = b.OrderBy(order...).Limit(uint64(limit))
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, false, fmt.Errorf("failed to build list query: %w", err)
	}

	return query, args, true, nil
}

// applyFilter ANDs every present filter field and the visibility predicate
// into b. Strings are sanitized the way writes sanitize them. The select must join entities as e and metastrings as ms.
func (r *AnnotationRepository) applyFilter(ctx context.Context, b sq.SelectBuilder, scope access.Scope, f model.Filter) (sq.SelectBuilder, bool, error) {
	f = f.Normalize()

	if f.EntityGUID > 0 {
		b = b.Where(sq.Eq{"a.entity_guid": f.EntityGUID})
	}

	if f.EntityType != "" {
		b = b.Where(sq.Eq{"e.type": f.EntityType})
	}

	if f.EntitySubtype != "" {
		subtypeID, ok, err := r.entities.ResolveSubtypeID(ctx, f.EntitySubtype)
		if err != nil {
			return b, false, errs.Storage(fmt.Sprintf("resolve subtype %q", f.EntitySubtype), err)
		}
		if !ok {
			return b, false, nil
		}
		b = b.Where(sq.Eq{"e.subtype": subtypeID})
	}

	if f.Name != "" {
		b = b.Where(sq.Eq{"a.name": f.Name})
	}

	if f.Value != "" {
		valueID, ok, err := r.strings.IDFor(ctx, f.Value)
		if err != nil {
			return b, false, errs.Storage("resolve annotation value", err)
		}
		if !ok {
			return b, false, nil
		}
		b = b.Where(sq.Eq{"a.value": valueID})
	}

	if f.OwnerGUID > 0 {
		b = b.Where(sq.Eq{"a.owner_guid": f.OwnerGUID})
	}

	return b.Where(scope.Predicate("a")), true, nil
}

// Aggregate applies op to the visible integer annotations matching filter.
// It fails with errs.ErrNotFound when no row matches; zero rows never
// aggregate to zero.
func (r *AnnotationRepository) Aggregate(ctx context.Context, scope access.Scope, op model.AggregateOp, filter model.AggregateFilter) (float64, error) {
	op, err := model.ParseAggregateOp(string(op))
	if err != nil {
		return 0, err
	}

	b := r.sb.Select("COUNT(*)", aggregateExpr(op)).
		From("annotations a").
		Join("entities e ON e.guid = a.entity_guid").
		Join("metastrings ms ON ms.id = a.value").
		Where(sq.Eq{"a.value_type": string(model.ValueTypeInteger)})

	b, ok, err := r.applyFilter(ctx, b, scope, model.Filter{
		EntityGUID:    filter.EntityGUID,
		EntityType:    filter.EntityType,
		EntitySubtype: filter.EntitySubtype,
		Name:          filter.Name,
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%s of annotations: %w", op, errs.ErrNotFound)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build aggregate query: %w", err)
	}

	var (
		count  int64
		result float64
	)
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count, &result); err != nil {
		return 0, errs.Storage(fmt.Sprintf("%s of annotations", op), err)
	}

	if count == 0 {
		return 0, fmt.Errorf("%s of annotations: %w", op, errs.ErrNotFound)
	}

	return result, nil
}

// Count is the number of visible integer annotations matching filter.
// Unlike Aggregate it reports zero rows as 0.
func (r *AnnotationRepository) Count(ctx context.Context, scope access.Scope, filter model.AggregateFilter) (int64, error) {
	n, err := r.Aggregate(ctx, scope, model.AggregateCount, filter)
	if errors.Is(err, errs.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// integerValue reads ms.string as a number, or NULL when the stored text is
// not an integer. An explicit "integer" type does not guarantee numeric text,
// and the aggregates skip such rows instead of failing the cast. The pattern
// avoids "?" since squirrel rewrites it into a placeholder.
const (
	integerPattern = `^\s*[-+]{0,1}[0-9]+\s*$`
	integerValue   = `CASE WHEN ms.string ~ '` + integerPattern + `' THEN CAST(ms.string AS NUMERIC) END`
)

func aggregateExpr(op model.AggregateOp) string {
	if op == model.AggregateCount {
		return "CAST(COUNT(*) AS DOUBLE PRECISION)"
	}
	return fmt.Sprintf("COALESCE(CAST(%s(%s) AS DOUBLE PRECISION), 0)", strings.ToUpper(string(op)), integerValue)
}

func (r *AnnotationRepository) Delete(ctx context.Context, scope access.Scope, id int64) (bool, error) {
	query, args, err := r.sb.Delete("annotations").
		Where(sq.Eq{"id": id}).
		Where(scope.Predicate("")).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, errs.Storage(fmt.Sprintf("delete annotation %d", id), err)
	}

	return tag.RowsAffected() > 0, nil
}

// Clear deletes the visible annotations of an entity, optionally only those
// called name, and returns how many rows went away.
func (r *AnnotationRepository) Clear(ctx context.Context, scope access.Scope, entityGUID int64, name string) (int64, error) {
	if entityGUID <= 0 {
		return 0, errs.Invalid("entity guid must be positive, got %d", entityGUID)
	}

	b := r.sb.Delete("annotations").Where(sq.Eq{"entity_guid": entityGUID})
	if name = model.Sanitize(name); name != "" {
		b = b.Where(sq.Eq{"name": name})
	}

	query, args, err := b.Where(scope.Predicate("")).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build clear query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, errs.Storage(fmt.Sprintf("clear annotations of entity %d", entityGUID), err)
	}

	return tag.RowsAffected(), nil
}

// ParseOrderBy checks a comma separated "column [asc|desc]" list against the
// sortable columns and returns the qualified ORDER BY terms.
func ParseOrderBy(s string) ([]string, error) {
	var terms []string

	for part := range strings.SplitSeq(s, ",") {
		fields := strings.Fields(strings.ToLower(part))
		if len(fields) == 0 || len(fields) > 2 {
			return nil, errs.Invalid("order by %q", s)
		}

		col, ok := orderColumns[strings.TrimPrefix(fields[0], "a.")]
		if !ok {
			return nil, errs.Invalid("cannot order by %q", fields[0])
		}

		dir := "ASC"
		if len(fields) == 2 {
			switch fields[1] {
			case "asc":
			case "desc":
				dir = "DESC"
			default:
				return nil, errs.Invalid("order direction %q", fields[1])
			}
		}

		terms = append(terms, col+" "+dir)
	}

	return terms, nil
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[model.Annotation, error]) ([]model.Annotation, error) {
	out := []model.Annotation{}
	for a, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func scanAnnotation(row pgx.Row) (model.Annotation, error) {
	var (
		a         model.Annotation
		valueType string
	)

	err := row.Scan(
		&a.ID,
		&a.EntityGUID,
		&a.Name,
		&a.Value,
		&valueType,
		&a.OwnerGUID,
		&a.AccessID,
		&a.TimeCreated,
	)
	if err != nil {
		return model.Annotation{}, err
	}

	a.ValueType = model.ValueType(valueType)

	return a, nil
}
