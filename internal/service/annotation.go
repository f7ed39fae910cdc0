package service

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/rs/zerolog"

	"github.com/deppfellow/annotations/internal/access"
	"github.com/deppfellow/annotations/internal/config"
	"github.com/deppfellow/annotations/internal/errs"
	"github.com/deppfellow/annotations/internal/lib/email"
	"github.com/deppfellow/annotations/internal/model"
	"github.com/deppfellow/annotations/internal/repository"
)

// AnnotationStore is the persistence contract of AnnotationService.
type AnnotationStore interface {
	Get(ctx context.Context, scope access.Scope, id int64) (*model.Annotation, error)
	Create(ctx context.Context, scope access.Scope, p model.CreateParams) (int64, error)
	Update(ctx context.Context, scope access.Scope, p model.UpdateParams) (bool, error)
	List(ctx context.Context, scope access.Scope, filter model.Filter) iter.Seq2[model.Annotation, error]
	Aggregate(ctx context.Context, scope access.Scope, op model.AggregateOp, filter model.AggregateFilter) (float64, error)
	Count(ctx context.Context, scope access.Scope, filter model.AggregateFilter) (int64, error)
	Delete(ctx context.Context, scope access.Scope, id int64) (bool, error)
	Clear(ctx context.Context, scope access.Scope, entityGUID int64, name string) (int64, error)
}

// EntityLookup loads entities for owner lookups and notifications.
type EntityLookup interface {
	Entity(ctx context.Context, guid int64) (*model.Entity, error)
}

// TaskQueue enqueues the background work of the service.
type TaskQueue interface {
	EnqueueClear(ctx context.Context, scope access.Scope, entityGUID int64, name string) (string, error)
	EnqueueAnnotationNotice(ctx context.Context, to string, n email.AnnotationNotice) error
	NotificationsEnabled() bool
}

// AnnotationService exposes the annotation store to the HTTP layer and
// triggers the side effects of writes.
type AnnotationService struct {
	store    AnnotationStore
	entities EntityLookup
	jobs     TaskQueue
	cfg      config.AnnotationsConfig
	logger   *zerolog.Logger
}

func NewAnnotationService(
	store AnnotationStore,
	entities EntityLookup,
	jobs TaskQueue,
	cfg config.AnnotationsConfig,
	logger *zerolog.Logger,
) *AnnotationService {
	return &AnnotationService{
		store:    store,
		entities: entities,
		jobs:     jobs,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *AnnotationService) Get(ctx context.Context, scope access.Scope, id int64) (*model.Annotation, error) {
	return s.store.Get(ctx, scope, id)
}

// Create stores the annotation and, when enabled, queues a notice to the
// owner of the annotated entity. Notification failures are logged only.
func (s *AnnotationService) Create(ctx context.Context, scope access.Scope, p model.CreateParams) (int64, error) {
	id, err := s.store.Create(ctx, scope, p)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("annotation_id", id).
		Int64("entity_guid", p.EntityGUID).
		Int64("user_id", scope.UserID).
		Msg("annotation created")

	if s.cfg.NotifyOwner && s.jobs != nil && s.jobs.NotificationsEnabled() {
		if err := s.notifyOwner(ctx, scope, id, p.Normalize()); err != nil {
			s.logger.Warn().
				Err(err).
				Int64("annotation_id", id).
				Msg("failed to queue annotation notice")
		}
	}

	return id, nil
}

func (s *AnnotationService) notifyOwner(ctx context.Context, scope access.Scope, id int64, p model.CreateParams) error {
	entity, err := s.entities.Entity(ctx, p.EntityGUID)
	if err != nil {
		return fmt.Errorf("loading entity %d: %w", p.EntityGUID, err)
	}

	if entity.OwnerGUID == 0 || entity.OwnerGUID == scope.UserID {
		return nil
	}

	owner, err := s.entities.Entity(ctx, entity.OwnerGUID)
	if err != nil {
		return fmt.Errorf("loading owner %d: %w", entity.OwnerGUID, err)
	}
	if owner.Email == "" {
		return nil
	}

	notice := email.AnnotationNotice{
		OwnerName:       owner.DisplayName,
		EntityGUID:      p.EntityGUID,
		AnnotationID:    id,
		AnnotationName:  p.Name,
		AnnotationValue: model.FormatValue(p.Value),
	}

	if !scope.IsAnonymous() {
		if author, err := s.entities.Entity(ctx, scope.UserID); err == nil {
			notice.AuthorName = author.DisplayName
		}
	}

	return s.jobs.EnqueueAnnotationNotice(ctx, owner.Email, notice)
}

func (s *AnnotationService) Update(ctx context.Context, scope access.Scope, p model.UpdateParams) (bool, error) {
	updated, err := s.store.Update(ctx, scope, p)
	if err != nil {
		return false, err
	}

	s.logger.Info().
		Int64("annotation_id", p.ID).
		Bool("updated", updated).
		Int64("user_id", scope.UserID).
		Msg("annotation update")

	return updated, nil
}

// List returns the matching annotations as a slice.
func (s *AnnotationService) List(ctx context.Context, scope access.Scope, filter model.Filter) ([]model.Annotation, error) {
	return repository.Collect(s.store.List(ctx, scope, filter))
}

// Aggregate runs op, given by name, over the matching integer annotations.
func (s *AnnotationService) Aggregate(ctx context.Context, scope access.Scope, op string, filter model.AggregateFilter) (float64, error) {
	parsed, err := model.ParseAggregateOp(op)
	if err != nil {
		return 0, err
	}
	return s.store.Aggregate(ctx, scope, parsed, filter)
}

func (s *AnnotationService) Count(ctx context.Context, scope access.Scope, filter model.AggregateFilter) (int64, error) {
	return s.store.Count(ctx, scope, filter)
}

func (s *AnnotationService) Delete(ctx context.Context, scope access.Scope, id int64) (bool, error) {
	deleted, err := s.store.Delete(ctx, scope, id)
	if err != nil {
		return false, err
	}

	s.logger.Info().
		Int64("annotation_id", id).
		Bool("deleted", deleted).
		Int64("user_id", scope.UserID).
		Msg("annotation delete")

	return deleted, nil
}

func (s *AnnotationService) Clear(ctx context.Context, scope access.Scope, entityGUID int64, name string) (int64, error) {
	removed, err := s.store.Clear(ctx, scope, entityGUID, name)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("entity_guid", entityGUID).
		Str("name", name).
		Int64("removed", removed).
		Int64("user_id", scope.UserID).
		Msg("annotations cleared")

	return removed, nil
}

// ClearAsync queues a clear with the caller's scope and returns the task id.
func (s *AnnotationService) ClearAsync(ctx context.Context, scope access.Scope, entityGUID int64, name string) (string, error) {
	if entityGUID <= 0 {
		return "", errs.Invalid("entity guid must be positive, got %d", entityGUID)
	}
	if s.jobs == nil {
		return "", errs.NewServiceUnavailableError("Background jobs are not available")
	}

	taskID, err := s.jobs.EnqueueClear(ctx, scope, entityGUID, name)
	if err != nil {
		s.logger.Error().Err(err).Int64("entity_guid", entityGUID).Msg("failed to queue clear")
		return "", errs.NewServiceUnavailableError("Could not queue the request, please retry")
	}

	return taskID, nil
}

// Owner resolves the entity that owns an annotation.
func (s *AnnotationService) Owner(ctx context.Context, a *model.Annotation) (*model.Entity, error) {
	if a.OwnerGUID <= 0 {
		return nil, errors.New("annotation has no owner")
	}
	return s.entities.Entity(ctx, a.OwnerGUID)
}
