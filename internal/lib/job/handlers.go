package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/deppfellow/annotations/internal/errs"
)

func (j *JobService) handleClearAnnotationsTask(ctx context.Context, t *asynq.Task) error {
	var p ClearAnnotationsPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal clear payload: %w: %w", err, asynq.SkipRetry)
	}

	if j.clearer == nil {
		return errors.New("no annotation store registered for clear tasks")
	}

	j.logger.Info().
		Str("type", TaskClearAnnotations).
		Int64("entity_guid", p.EntityGUID).
		Str("name", p.Name).
		Int64("user_id", p.UserID).
		Msg("processing clear annotations task")

	removed, err := j.clearer.Clear(ctx, p.Scope(), p.EntityGUID, p.Name)
	if err != nil {
		j.logger.Error().
			Str("type", TaskClearAnnotations).
			Int64("entity_guid", p.EntityGUID).
			Err(err).
			Msg("failed to clear annotations")
		if errors.Is(err, errs.ErrInvalidInput) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	j.logger.Info().
		Str("type", TaskClearAnnotations).
		Int64("entity_guid", p.EntityGUID).
		Int64("removed", removed).
		Msg("cleared annotations")

	return nil
}

func (j *JobService) handleAnnotationNoticeTask(ctx context.Context, t *asynq.Task) error {
	var p AnnotationNoticePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal notice payload: %w: %w", err, asynq.SkipRetry)
	}

	if j.notifier == nil {
		j.logger.Warn().
			Str("type", TaskAnnotationNotice).
			Msg("email client not configured, dropping notice")
		return nil
	}

	j.logger.Info().
		Str("type", TaskAnnotationNotice).
		Str("to", p.To).
		Int64("annotation_id", p.Notice.AnnotationID).
		Msg("processing annotation notice task")

	if err := j.notifier.SendAnnotationNotice(p.To, p.Notice); err != nil {
		j.logger.Error().
			Str("type", TaskAnnotationNotice).
			Str("to", p.To).
			Err(err).
			Msg("failed to send annotation notice")
		return err
	}

	j.logger.Info().
		Str("type", TaskAnnotationNotice).
		Str("to", p.To).
		Msg("sent annotation notice")

	return nil
}
