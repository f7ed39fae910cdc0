// Package job runs background work on Asynq.
//
// The API enqueues tasks through JobService; the same process runs the
// Asynq server that executes them. Handlers get their dependencies from
// JobService fields, which are wired before Start is called.
package job

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/deppfellow/annotations/internal/access"
	"github.com/deppfellow/annotations/internal/config"
	"github.com/deppfellow/annotations/internal/lib/email"
)

// Clearer removes the visible annotations of an entity.
type Clearer interface {
	Clear(ctx context.Context, scope access.Scope, entityGUID int64, name string) (int64, error)
}

// Notifier delivers an annotation notice by email.
type Notifier interface {
	SendAnnotationNotice(to string, n email.AnnotationNotice) error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobService holds the Asynq client used to enqueue tasks and the server
// that processes them.
type JobService struct {
	Client *asynq.Client

	enqueuer enqueuer
	server   *asynq.Server
	logger   *zerolog.Logger

	clearer  Clearer
	notifier Notifier
}

func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	redisAddr := cfg.Redis.Address

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr: redisAddr,
	})

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			Logger:   newAsynqLogger(logger),
			LogLevel: asynq.WarnLevel,
		},
	)

	return &JobService{
		Client:   client,
		enqueuer: client,
		server:   server,
		logger:   logger,
	}
}

// InitHandlers wires the dependencies the task handlers need.
func (j *JobService) InitHandlers(cfg *config.Config, logger *zerolog.Logger) {
	if cfg.Integration.ResendAPIKey == "" {
		logger.Warn().Msg("resend api key not set, annotation notices are disabled")
		return
	}
	j.notifier = email.NewClient(cfg, logger)
}

// SetClearer registers the store used by asynchronous clear tasks.
func (j *JobService) SetClearer(c Clearer) {
	j.clearer = c
}

// NotificationsEnabled reports whether an email client is configured.
func (j *JobService) NotificationsEnabled() bool {
	return j.notifier != nil
}

func (j *JobService) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskClearAnnotations, j.handleClearAnnotationsTask)
	mux.HandleFunc(TaskAnnotationNotice, j.handleAnnotationNoticeTask)
	return mux
}

// Start launches the workers. It returns once they are running.
func (j *JobService) Start() error {
	j.logger.Info().Msg("starting background job server")

	if err := j.server.Start(j.mux()); err != nil {
		return fmt.Errorf("failed to start job server: %w", err)
	}

	return nil
}

// Stop waits for running tasks, stops the workers and closes the client.
func (j *JobService) Stop() {
	j.logger.Info().Msg("stopping background job server")
	j.server.Shutdown()
	if err := j.Client.Close(); err != nil {
		j.logger.Error().Err(err).Msg("failed to close job client")
	}
}
