package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/jrsteele09/go-token-exchange/identity"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
)

const defaultGitHubAPIBaseURL = "https://api.github.com"

// GitHub is a plain OAuth2 provider: no ID token, no PKCE support at
// the token endpoint. Identity comes from the profile API, with a
// second call to the emails API when the profile email is private.
type GitHub struct {
	oauthConfig *oauth2.Config
	apiBaseURL  string
	httpClient  *http.Client
}

type GitHubOption func(*GitHub)

// WithGitHubEndpoint overrides the token endpoint, used by tests.
func WithGitHubEndpoint(endpoint oauth2.Endpoint) GitHubOption {
	return func(g *GitHub) {
		g.oauthConfig.Endpoint = endpoint
	}
}

// WithGitHubAPIBaseURL overrides the profile API base URL, used by tests.
func WithGitHubAPIBaseURL(baseURL string) GitHubOption {
	return func(g *GitHub) {
		g.apiBaseURL = baseURL
	}
}

func WithGitHubHTTPClient(client *http.Client) GitHubOption {
	return func(g *GitHub) {
		g.httpClient = client
	}
}

func NewGitHub(clientID, clientSecret string, options ...GitHubOption) *GitHub {
	g := &GitHub{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoints.GitHub,
		},
		apiBaseURL: defaultGitHubAPIBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *GitHub) Name() string       { return "github" }
func (g *GitHub) SupportsPKCE() bool { return false }
func (g *GitHub) SupportsOIDC() bool { return false }

type githubProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email   string `json:"email"`
	Primary bool   `json:"primary"`
}

func (g *GitHub) Exchange(ctx context.Context, code, codeVerifier string) (*identity.User, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	providerToken, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrExchangeFailed, "github: %s", err)
	}

	var profile githubProfile
	if err := g.apiGet(ctx, "/user", providerToken.AccessToken, &profile); err != nil {
		return nil, err
	}
	if profile.ID == 0 || profile.Login == "" {
		return nil, apperrors.ErrMissingClaims
	}

	// Profile email is empty when the user keeps it private; the
	// emails API still lists it for the token's owner.
	if profile.Email == "" {
		var emails []githubEmail
		if err := g.apiGet(ctx, "/user/emails", providerToken.AccessToken, &emails); err == nil {
			for _, e := range emails {
				if e.Primary {
					profile.Email = e.Email
					break
				}
			}
		}
	}

	name := profile.Name
	if name == "" {
		name = profile.Login
	}

	return &identity.User{
		Subject:  strconv.FormatInt(profile.ID, 10),
		Username: profile.Login,
		Name:     name,
		Email:    profile.Email,
		Avatar:   profile.AvatarURL,
	}, nil
}

func (g *GitHub) apiGet(ctx context.Context, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBaseURL+path, nil)
	if err != nil {
		return apperrors.Wrapf(err, "github apiGet %s", path)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrProfileFetchFailed, "github %s: %s", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.Wrapf(apperrors.ErrProfileFetchFailed, "github %s: status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrapf(apperrors.ErrProfileFetchFailed, "github %s decode: %v", path, err)
	}
	return nil
}
