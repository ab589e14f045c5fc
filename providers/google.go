package providers

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-token-exchange/identity"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
)

const defaultGoogleIssuer = "https://accounts.google.com"

// Google is an OIDC provider with PKCE support. Identity comes from
// the ID token returned by the token endpoint, verified against
// Google's published keys; no profile API call is needed.
type Google struct {
	clientID     string
	clientSecret string
	redirectURI  string
	issuer       string
	httpClient   *http.Client

	// Discovery runs once on first exchange and the result is cached
	mu          sync.RWMutex
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

type GoogleOption func(*Google)

// WithGoogleIssuer overrides the OIDC issuer URL, used by tests.
func WithGoogleIssuer(issuer string) GoogleOption {
	return func(g *Google) {
		g.issuer = issuer
	}
}

func WithGoogleHTTPClient(client *http.Client) GoogleOption {
	return func(g *Google) {
		g.httpClient = client
	}
}

func NewGoogle(clientID, clientSecret, redirectURI string, options ...GoogleOption) *Google {
	g := &Google{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		issuer:       defaultGoogleIssuer,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *Google) Name() string       { return "google" }
func (g *Google) SupportsPKCE() bool { return true }
func (g *Google) SupportsOIDC() bool { return true }

func (g *Google) Exchange(ctx context.Context, code, codeVerifier string) (*identity.User, error) {
	oauthConfig, verifier, err := g.discover(ctx)
	if err != nil {
		return nil, err
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	var exchangeOpts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		exchangeOpts = append(exchangeOpts, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	}

	providerToken, err := oauthConfig.Exchange(exchangeCtx, code, exchangeOpts...)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrExchangeFailed, "google: %s", err)
	}

	rawIDToken, ok := providerToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrVerificationFailed, "google: no id_token in response")
	}

	// Checks signature, issuer, audience and expiry
	idToken, err := verifier.Verify(oidc.ClientContext(ctx, g.httpClient), rawIDToken)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrVerificationFailed, "google: %s", err)
	}

	// The at_hash claim binds the ID token to the access token issued
	// in the same response, so a valid ID token cannot be paired with
	// a substituted access token.
	if idToken.AccessTokenHash != "" {
		if err := idToken.VerifyAccessToken(providerToken.AccessToken); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrVerificationFailed, "google at_hash: %s", err)
		}
	}

	var claims struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrVerificationFailed, "google claims: %s", err)
	}
	if claims.Sub == "" {
		return nil, apperrors.ErrMissingClaims
	}

	// Google accounts have no username of their own; use the local
	// part of the email address
	username := claims.Email
	if at := strings.Index(username, "@"); at != -1 {
		username = username[:at]
	}

	return &identity.User{
		Subject:  claims.Sub,
		Username: username,
		Name:     claims.Name,
		Email:    claims.Email,
		Avatar:   claims.Picture,
	}, nil
}

func (g *Google) discover(ctx context.Context) (*oauth2.Config, *oidc.IDTokenVerifier, error) {
	g.mu.RLock()
	oauthConfig, verifier := g.oauthConfig, g.verifier
	g.mu.RUnlock()
	if oauthConfig != nil {
		return oauthConfig, verifier, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.oauthConfig != nil {
		return g.oauthConfig, g.verifier, nil
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, g.httpClient), g.issuer)
	if err != nil {
		return nil, nil, apperrors.Wrapf(apperrors.ErrExchangeFailed, "google discovery: %s", err)
	}

	g.oauthConfig = &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  g.redirectURI,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	g.verifier = provider.Verifier(&oidc.Config{ClientID: g.clientID})

	return g.oauthConfig, g.verifier, nil
}
