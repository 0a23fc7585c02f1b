package middleware

import (
	"context"
	"errors"
	"net/http"

	logpkg "github.com/benvon/restaurant-finder/internal/logger"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/benvon/restaurant-finder/internal/request"
	"go.uber.org/zap"
)

// Authenticator resolves an Authorization header to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) (*models.User, error)
}

// UserFromContext extracts the user from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}

// Auth rejects requests without a valid bearer session and attaches the user
// to the request context otherwise.
func Auth(authn Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authn.Authenticate(r.Context(), r.Header.Get("Authorization"))
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
			case errors.Is(err, models.ErrUnauthorized):
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Authentication required", logger)
			default:
				logger.Error("authentication_failed",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("error", logpkg.SanitizeError(err)),
				)
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to authenticate request", logger)
			}
		})
	}
}
