package providers_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/providers"
)

const (
	googleClientID    = "google-client-id"
	googleAccessToken = "google-provider-access-token"
	testKeyID         = "test-key"
)

// fakeGoogle serves just enough of an OIDC issuer for the adapter:
// discovery document, JWKS, and a token endpoint returning a signed
// ID token.
type fakeGoogle struct {
	*httptest.Server
	key           *rsa.PrivateKey
	idTokenClaims jwt.MapClaims
	omitIDToken   bool
	lastTokenForm map[string]string
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeGoogle{key: key}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                f.URL,
			"authorization_endpoint":                f.URL + "/auth",
			"token_endpoint":                        f.URL + "/token",
			"jwks_uri":                              f.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})

	mux.HandleFunc("GET /keys", func(w http.ResponseWriter, r *http.Request) {
		pub := &f.key.PublicKey
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": testKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	})

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.lastTokenForm = map[string]string{}
		for k := range r.Form {
			f.lastTokenForm[k] = r.Form.Get(k)
		}

		response := map[string]any{
			"access_token": googleAccessToken,
			"token_type":   "bearer",
			"expires_in":   3600,
		}
		if !f.omitIDToken {
			response["id_token"] = f.signIDToken(t)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// defaultClaims returns a valid ID-token claim set for the fake issuer
func (f *fakeGoogle) defaultClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":     f.URL,
		"aud":     googleClientID,
		"sub":     "109876543210",
		"email":   "jane.doe@example.com",
		"name":    "Jane Doe",
		"picture": "https://lh3.example.com/photo.jpg",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
		"at_hash": atHash(googleAccessToken),
	}
}

func (f *fakeGoogle) signIDToken(t *testing.T) string {
	t.Helper()

	claims := f.idTokenClaims
	if claims == nil {
		claims = f.defaultClaims()
	}

	idToken := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	idToken.Header["kid"] = testKeyID
	signed, err := idToken.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func (f *fakeGoogle) provider() *providers.Google {
	return providers.NewGoogle(googleClientID, "google-client-secret",
		"http://localhost:5173/auth/google/callback",
		providers.WithGoogleIssuer(f.URL),
	)
}

// atHash is base64url of the left half of SHA-256 over the access token
func atHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}

func TestGoogle_Exchange(t *testing.T) {
	fake := newFakeGoogle(t)

	user, err := fake.provider().Exchange(context.Background(), "abc123", "test-code-verifier-test-code-verifier-test-1")
	require.NoError(t, err)

	require.Equal(t, "109876543210", user.Subject)
	require.Equal(t, "jane.doe", user.Username)
	require.Equal(t, "Jane Doe", user.Name)
	require.Equal(t, "jane.doe@example.com", user.Email)
	require.Equal(t, "https://lh3.example.com/photo.jpg", user.Avatar)

	// The PKCE verifier travels to the provider's token endpoint
	require.Equal(t, "abc123", fake.lastTokenForm["code"])
	require.Equal(t, "test-code-verifier-test-code-verifier-test-1", fake.lastTokenForm["code_verifier"])
}

func TestGoogle_WrongAudience(t *testing.T) {
	fake := newFakeGoogle(t)
	claims := fake.defaultClaims()
	claims["aud"] = "some-other-client"
	fake.idTokenClaims = claims

	_, err := fake.provider().Exchange(context.Background(), "abc123", "")
	require.ErrorIs(t, err, apperrors.ErrVerificationFailed)
}

func TestGoogle_ExpiredIDToken(t *testing.T) {
	fake := newFakeGoogle(t)
	claims := fake.defaultClaims()
	claims["iat"] = time.Now().Add(-2 * time.Hour).Unix()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	fake.idTokenClaims = claims

	_, err := fake.provider().Exchange(context.Background(), "abc123", "")
	require.ErrorIs(t, err, apperrors.ErrVerificationFailed)
}

func TestGoogle_AccessTokenHashMismatch(t *testing.T) {
	fake := newFakeGoogle(t)
	claims := fake.defaultClaims()
	claims["at_hash"] = atHash("a-different-access-token")
	fake.idTokenClaims = claims

	_, err := fake.provider().Exchange(context.Background(), "abc123", "")
	require.ErrorIs(t, err, apperrors.ErrVerificationFailed)
}

func TestGoogle_MissingIDToken(t *testing.T) {
	fake := newFakeGoogle(t)
	fake.omitIDToken = true

	_, err := fake.provider().Exchange(context.Background(), "abc123", "")
	require.ErrorIs(t, err, apperrors.ErrVerificationFailed)
}

func TestGoogle_MissingSubject(t *testing.T) {
	fake := newFakeGoogle(t)
	claims := fake.defaultClaims()
	delete(claims, "sub")
	fake.idTokenClaims = claims

	_, err := fake.provider().Exchange(context.Background(), "abc123", "")
	require.ErrorIs(t, err, apperrors.ErrMissingClaims)
}

func TestGoogle_Capabilities(t *testing.T) {
	g := providers.NewGoogle(googleClientID, "secret", "http://localhost/callback")
	require.Equal(t, "google", g.Name())
	require.True(t, g.SupportsPKCE())
	require.True(t, g.SupportsOIDC())
}

func TestRegistry(t *testing.T) {
	github := providers.NewGitHub("id", "secret")
	registry := providers.NewRegistry(github)

	p, err := registry.Get("github")
	require.NoError(t, err)
	require.Equal(t, github, p)

	_, err = registry.Get("gitlab")
	require.ErrorIs(t, err, apperrors.ErrUnknownProvider)

	require.ElementsMatch(t, []string{"github"}, registry.Names())
}
