package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/deppfellow/annotations/internal/access"
	"github.com/deppfellow/annotations/internal/lib/email"
)

const (
	// TaskClearAnnotations bulk deletes annotations of one entity.
	TaskClearAnnotations = "annotations:clear"

	// TaskAnnotationNotice emails an entity owner about a new annotation.
	TaskAnnotationNotice = "email:annotation"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// ClearAnnotationsPayload carries the caller's scope so the worker deletes
// exactly what the caller could have deleted synchronously.
type ClearAnnotationsPayload struct {
	EntityGUID int64   `json:"entity_guid"`
	Name       string  `json:"name,omitempty"`
	UserID     int64   `json:"user_id"`
	AccessIDs  []int64 `json:"access_ids"`
}

func (p ClearAnnotationsPayload) Scope() access.Scope {
	return access.Scope{UserID: p.UserID, AccessIDs: p.AccessIDs}
}

func NewClearAnnotationsTask(scope access.Scope, entityGUID int64, name string) (*asynq.Task, error) {
	payload, err := json.Marshal(ClearAnnotationsPayload{
		EntityGUID: entityGUID,
		Name:       name,
		UserID:     scope.UserID,
		AccessIDs:  scope.AccessIDs,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskClearAnnotations,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue(QueueDefault),
		asynq.Timeout(2*time.Minute),
	), nil
}

// AnnotationNoticePayload is the body of a TaskAnnotationNotice task.
type AnnotationNoticePayload struct {
	To     string                 `json:"to"`
	Notice email.AnnotationNotice `json:"notice"`
}

func NewAnnotationNoticeTask(to string, n email.AnnotationNotice) (*asynq.Task, error) {
	payload, err := json.Marshal(AnnotationNoticePayload{To: to, Notice: n})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskAnnotationNotice,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue(QueueLow),
		asynq.Timeout(30*time.Second),
	), nil
}

// EnqueueClear schedules an asynchronous clear and returns the task id.
func (j *JobService) EnqueueClear(ctx context.Context, scope access.Scope, entityGUID int64, name string) (string, error) {
	task, err := NewClearAnnotationsTask(scope, entityGUID, name)
	if err != nil {
		return "", fmt.Errorf("failed to build clear task: %w", err)
	}

	info, err := j.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue clear task: %w", err)
	}

	return info.ID, nil
}

// EnqueueAnnotationNotice schedules an owner notification.
func (j *JobService) EnqueueAnnotationNotice(ctx context.Context, to string, n email.AnnotationNotice) error {
	task, err := NewAnnotationNoticeTask(to, n)
	if err != nil {
		return fmt.Errorf("failed to build notice task: %w", err)
	}

	if _, err := j.enqueuer.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue notice task: %w", err)
	}

	return nil
}
