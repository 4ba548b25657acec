package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/aslanbek/account-service/internal/auth"
	"github.com/aslanbek/account-service/internal/entity"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "token"

// One generic message for every failure path so responses never reveal
// whether the token or the account was the problem.
const unauthorizedMessage = "Unauthorized, please login to continue"

// UserResolver resolves the user referenced by a verified token.
type UserResolver interface {
	GetProfile(ctx context.Context, userID string) (*entity.User, error)
}

// Auth reads the session token from the cookie, verifies it, resolves
// the referenced user and attaches it to the request context. Any
// failure short-circuits with a 401 envelope.
func Auth(tokens *auth.TokenManager, users UserResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	log := logger.Named("AuthMiddleware")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				log.Debug("No session cookie on request", zap.String("path", r.URL.Path))
				writeUnauthorized(w)
				return
			}

			userID, err := tokens.Verify(cookie.Value)
			if err != nil {
				log.Warn("Session token verification failed", zap.String("path", r.URL.Path), zap.Error(err))
				writeUnauthorized(w)
				return
			}

			user, err := users.GetProfile(r.Context(), userID)
			if err != nil {
				log.Warn("Failed to resolve session user", zap.String("userID", userID), zap.Error(err))
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": unauthorizedMessage,
	})
}
