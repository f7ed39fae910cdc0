package service

import (
	"github.com/deppfellow/annotations/internal/access"
	"github.com/deppfellow/annotations/internal/lib/job"
	"github.com/deppfellow/annotations/internal/repository"
	"github.com/deppfellow/annotations/internal/server"
)

type Services struct {
	Auth        *AuthService
	Annotations *AnnotationService
	Job         *job.JobService
}

// NewService builds the services and registers the annotation store with
// the background workers. Workers must be started afterwards.
func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	controller := access.NewDirectoryController(s.DB.Pool)
	authService := NewAuthService(s, repos.Entities, controller)

	var jobs TaskQueue
	if s.Job != nil {
		s.Job.SetClearer(repos.Annotations)
		jobs = s.Job
	}

	logger := s.Logger.With().Str("service", "annotations").Logger()

	return &Services{
		Auth:        authService,
		Annotations: NewAnnotationService(repos.Annotations, repos.Entities, jobs, *s.Config.Annotations, &logger),
		Job:         s.Job,
	}, nil
}
