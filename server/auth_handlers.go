package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-token-exchange/identity"
)

const contentTypeJSON = "application/json; charset=utf-8"

// exchangeRequest carries the provider callback artifacts from the
// client. The state the client asserts is accepted but not
// re-validated here; the client checked it against its own pending
// state before calling.
type exchangeRequest struct {
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier,omitempty"`
	State        string `json:"state,omitempty"`
}

type exchangeResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *identity.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ExchangeHandler trades a provider authorization code for an
// application-issued token pair. All upstream failures collapse into
// a generic authentication error; detail goes to the log only.
func (s *Server) ExchangeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := r.PathValue("provider")
		provider, err := s.providers.Get(providerName)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown provider")
			return
		}

		var req exchangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
			writeError(w, http.StatusBadRequest, "missing authorization code")
			return
		}

		user, err := provider.Exchange(r.Context(), req.Code, req.CodeVerifier)
		if err != nil {
			log.Warn().Err(err).Str("provider", providerName).Msg("code exchange failed")
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}

		pair, err := s.issuer.IssuePair(user)
		if err != nil {
			log.Error().Err(err).Str("provider", providerName).Msg("token issuance failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		log.Info().Str("provider", providerName).Str("sub", user.Subject).Msg("user authenticated")
		writeJSON(w, http.StatusOK, exchangeResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			User:         user,
		})
	}
}

// RefreshHandler trades a refresh token for a fresh pair bound to the
// same subject. Access tokens presented here fail the type check.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "missing refresh token")
			return
		}

		pair, err := s.issuer.Refresh(req.RefreshToken)
		if err != nil {
			log.Debug().Err(err).Msg("refresh rejected")
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}

		writeJSON(w, http.StatusOK, pair)
	}
}

// CurrentUserHandler returns the claims RequireAuth extracted from
// the bearer token
func (s *Server) CurrentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]*identity.User{"user": user})
	}
}

// PreflightHandler exists so OPTIONS requests route through
// CorsMiddleware; the middleware writes the response
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
