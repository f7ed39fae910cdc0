package service

import (
	"context"
	"fmt"

	"github.com/clerk/clerk-sdk-go/v2"

	"github.com/deppfellow/annotations/internal/access"
	"github.com/deppfellow/annotations/internal/server"
)

// UserDirectory maps identity provider subjects to user entities.
type UserDirectory interface {
	GUIDForExternalID(ctx context.Context, externalID string) (int64, bool, error)
}

// AuthService turns an authenticated Clerk subject into an access scope.
type AuthService struct {
	users      UserDirectory
	controller access.Controller
}

func NewAuthService(s *server.Server, users UserDirectory, controller access.Controller) *AuthService {
	clerk.SetKey(s.Config.Auth.SecretKey)
	return &AuthService{
		users:      users,
		controller: controller,
	}
}

// ScopeForSubject resolves the scope of a Clerk subject. known is false
// when no user entity is linked to the subject; the scope is then
// anonymous.
func (a *AuthService) ScopeForSubject(ctx context.Context, subject string) (scope access.Scope, known bool, err error) {
	if subject == "" {
		return access.Anonymous(), false, nil
	}

	guid, ok, err := a.users.GUIDForExternalID(ctx, subject)
	if err != nil {
		return access.Scope{}, false, fmt.Errorf("resolving subject: %w", err)
	}
	if !ok {
		return access.Anonymous(), false, nil
	}

	scope, err = a.controller.Scope(ctx, guid)
	if err != nil {
		return access.Scope{}, false, fmt.Errorf("resolving scope of user %d: %w", guid, err)
	}

	return scope, true, nil
}
