package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tradefin-io/tradefingo/internal/models"
	"github.com/tradefin-io/tradefingo/internal/utils"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Auth verifies the Bearer token and stores the actor identity in the
// request context. Handlers read it with ActorFrom and hand it explicitly to
// the core; nothing below this layer touches the request.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			actor, err := utils.ParseActor(parts[1], secret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFrom returns the authenticated actor stored by Auth.
func ActorFrom(r *http.Request) (*models.Actor, bool) {
	actor, ok := r.Context().Value(actorContextKey).(*models.Actor)
	return actor, ok
}
