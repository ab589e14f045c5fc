package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-token-exchange/identity"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyUser stores the identity claims of the authenticated user
const ContextKeyUser ContextKey = "user"

// RequireAuth is middleware that validates a Bearer access token and
// injects the embedded identity claims into the request context. A
// refresh token presented here fails the type check and is rejected.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawToken, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
				return
			}

			user, err := s.issuer.VerifyAccess(rawToken)
			if err != nil {
				log.Debug().Err(err).Msg("access token rejected")
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next(w, r.WithContext(ctx))
		}
	}
}

// UserFromContext returns the identity claims injected by RequireAuth
func UserFromContext(ctx context.Context) (*identity.User, bool) {
	user, ok := ctx.Value(ContextKeyUser).(*identity.User)
	return user, ok
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
