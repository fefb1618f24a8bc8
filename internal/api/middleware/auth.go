package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/api/shared"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
)

// ProjectIDParam is the route parameter holding the project ID.
const ProjectIDParam = "projectID"

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*shared.Claims, error)
}

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Authenticate validates JWT tokens from the Authorization header and adds
// the verified claims to the request context. Browsers cannot set headers on
// EventSource requests, so GET requests may pass the token in the
// access_token query parameter instead.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		claims, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, ErrInvalidToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				shared.RespondWithErrorAndLog(
					w,
					r,
					http.StatusInternalServerError,
					"Authentication error",
					err,
				)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithClaims(r.Context(), claims)))
	})
}

// RequireProject rejects requests whose token does not grant access to the
// project named by the route. It must run after Authenticate, inside a route
// carrying the projectID parameter.
func RequireProject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID, err := uuid.Parse(chi.URLParam(r, ProjectIDParam))
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid project ID")
			return
		}

		claims, ok := shared.GetClaims(r.Context())
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}
		if !claims.HasProject(projectID) {
			shared.RespondWithError(w, r, http.StatusForbidden, "Access to this project is not allowed")
			return
		}

		log := logger.FromContextOrDefault(r.Context(), slog.Default()).
			With(slog.String("project_id", projectID.String()))
		next.ServeHTTP(w, r.WithContext(logger.WithLogger(r.Context(), log)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if r.Method == http.MethodGet {
			if token := r.URL.Query().Get("access_token"); token != "" {
				return token, true
			}
		}
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
