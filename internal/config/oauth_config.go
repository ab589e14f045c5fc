package config

type OAuthConfig interface {
	GetGitHubClientID() string
	GetGitHubClientSecret() string
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleRedirectURI() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetGitHubClientID() string {
	return GetEnv("GITHUB_CLIENT_ID", "")
}

func (OAuth) GetGitHubClientSecret() string {
	return GetEnv("GITHUB_CLIENT_SECRET", "")
}

func (OAuth) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (OAuth) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

// GetGoogleRedirectURI must match the redirect URI the frontend used
// when it requested the authorization code, or Google rejects the
// exchange.
func (OAuth) GetGoogleRedirectURI() string {
	return GetEnv("GOOGLE_REDIRECT_URI", EnvVars{}.GetFrontendURL()+"/auth/google/callback")
}
