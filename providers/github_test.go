package providers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/providers"
)

type fakeGitHub struct {
	*httptest.Server
	profileEmail  string
	primaryEmail  string
	rejectCode    bool
	lastTokenForm map[string]string
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()

	f := &fakeGitHub{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.lastTokenForm = map[string]string{}
		for k := range r.Form {
			f.lastTokenForm[k] = r.Form.Get(k)
		}

		if f.rejectCode {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "gho_testtoken",
			"token_type":   "bearer",
		})
	})

	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer gho_testtoken", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         583231,
			"login":      "octocat",
			"name":       "The Octocat",
			"email":      f.profileEmail,
			"avatar_url": "https://avatars.example.com/u/583231",
		})
	})

	mux.HandleFunc("GET /user/emails", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer gho_testtoken", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"email": "secondary@example.com", "primary": false},
			{"email": f.primaryEmail, "primary": true},
		})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGitHub) provider() *providers.GitHub {
	return providers.NewGitHub("client-id", "client-secret",
		providers.WithGitHubEndpoint(oauth2.Endpoint{
			AuthURL:  f.URL + "/login/oauth/authorize",
			TokenURL: f.URL + "/login/oauth/access_token",
		}),
		providers.WithGitHubAPIBaseURL(f.URL),
	)
}

func TestGitHub_Exchange(t *testing.T) {
	fake := newFakeGitHub(t)
	fake.profileEmail = "octocat@example.com"

	user, err := fake.provider().Exchange(context.Background(), "abc123", "")
	require.NoError(t, err)

	require.Equal(t, "583231", user.Subject)
	require.Equal(t, "octocat", user.Username)
	require.Equal(t, "The Octocat", user.Name)
	require.Equal(t, "octocat@example.com", user.Email)
	require.Equal(t, "https://avatars.example.com/u/583231", user.Avatar)

	require.Equal(t, "abc123", fake.lastTokenForm["code"])
}

func TestGitHub_EmailFallback(t *testing.T) {
	fake := newFakeGitHub(t)
	fake.profileEmail = "" // private email on the profile
	fake.primaryEmail = "primary@example.com"

	user, err := fake.provider().Exchange(context.Background(), "abc123", "")
	require.NoError(t, err)
	require.Equal(t, "primary@example.com", user.Email)
}

func TestGitHub_RejectedCode(t *testing.T) {
	fake := newFakeGitHub(t)
	fake.rejectCode = true

	_, err := fake.provider().Exchange(context.Background(), "bad-code", "")
	require.ErrorIs(t, err, apperrors.ErrExchangeFailed)
}

func TestGitHub_Capabilities(t *testing.T) {
	g := providers.NewGitHub("client-id", "client-secret")
	require.Equal(t, "github", g.Name())
	require.False(t, g.SupportsPKCE())
	require.False(t, g.SupportsOIDC())
}
