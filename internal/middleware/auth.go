package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/annotations/internal/access"
	"github.com/deppfellow/annotations/internal/errs"
	"github.com/deppfellow/annotations/internal/server"
)

// ScopeResolver maps a verified Clerk subject to the caller's scope.
type ScopeResolver interface {
	ScopeForSubject(ctx context.Context, subject string) (access.Scope, bool, error)
}

type AuthMiddleware struct {
	server *server.Server
	scopes ScopeResolver
}

func NewAuthMiddleware(s *server.Server, scopes ScopeResolver) *AuthMiddleware {
	return &AuthMiddleware{
		server: s,
		scopes: scopes,
	}
}

// RequireAuth rejects requests without a valid Clerk session token and
// requests whose subject has no user entity. The resolved scope is stored
// in the Echo context.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return auth.withClerk(func(c echo.Context) error {
		start := time.Now()

		claims, ok := clerk.SessionClaimsFromContext(c.Request().Context())
		if !ok {
			auth.server.Logger.Error().
				Str("function", "RequireAuth").
				Str("request_id", GetRequestID(c)).
				Dur("duration", time.Since(start)).
				Msg("could not get session claims from context")

			return errs.NewUnauthorizedError("Unauthorized", false)
		}

		scope, known, err := auth.scopes.ScopeForSubject(c.Request().Context(), claims.Subject)
		if err != nil {
			return err
		}
		if !known {
			return errs.NewForbiddenError("No user is linked to this account", true)
		}

		auth.setIdentity(c, claims, scope)

		auth.server.Logger.Debug().
			Str("function", "RequireAuth").
			Str("user_id", claims.Subject).
			Int64("user_guid", scope.UserID).
			Str("request_id", GetRequestID(c)).
			Dur("duration", time.Since(start)).
			Msg("user authenticated successfully")

		return next(c)
	})
}

// OptionalAuth lets anonymous requests through with the anonymous scope.
// A token that is present but invalid is still rejected.
func (auth *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return auth.withClerk(func(c echo.Context) error {
		claims, ok := clerk.SessionClaimsFromContext(c.Request().Context())
		if !ok {
			c.Set(ScopeKey, access.Anonymous())
			return next(c)
		}

		scope, _, err := auth.scopes.ScopeForSubject(c.Request().Context(), claims.Subject)
		if err != nil {
			return err
		}

		auth.setIdentity(c, claims, scope)

		return next(c)
	})
}

func (auth *AuthMiddleware) setIdentity(c echo.Context, claims *clerk.SessionClaims, scope access.Scope) {
	c.Set(UserIDKey, claims.Subject)
	c.Set(UserRoleKey, claims.ActiveOrganizationRole)
	c.Set(ScopeKey, scope)

	// The request logger was built before the route's auth ran.
	scoped := GetLogger(c).With().
		Str("user_id", claims.Subject).
		Int64("user_guid", scope.UserID).
		Logger()
	c.Set(LoggerKey, &scoped)
}

// withClerk verifies the bearer token with Clerk. Invalid tokens get a
// JSON 401 in the same shape as every other error.
func (auth *AuthMiddleware) withClerk(next echo.HandlerFunc) echo.HandlerFunc {
	return echo.WrapMiddleware(
		clerkhttp.WithHeaderAuthorization(
			clerkhttp.AuthorizationFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)

				if err := json.NewEncoder(w).Encode(errs.NewUnauthorizedError("Unauthorized", false)); err != nil {
					auth.server.Logger.Error().
						Err(err).
						Str("function", "withClerk").
						Msg("failed to write JSON response")
					return
				}

				auth.server.Logger.Warn().
					Str("function", "withClerk").
					Str("path", r.URL.Path).
					Msg("rejected invalid session token")
			}))))(next)
}
