// Package authflow is the client half of the login flow: it builds
// provider authorization URLs with PKCE parameters, keeps the
// transient verifier/state in a session-scoped store, validates
// provider callbacks, and drives token exchange and refresh against
// the backend token service.
package authflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-token-exchange/identity"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
)

// Status is the client-observed authentication state
type Status string

const (
	StatusLoading         Status = "loading"
	StatusUnauthenticated Status = "unauthenticated"
	StatusPendingCallback Status = "pending-callback"
	StatusAuthenticated   Status = "authenticated"
	StatusRefreshing      Status = "refreshing"
)

// Session-scoped keys: one pending login attempt at a time
const (
	keyCodeVerifier = "pkce_code_verifier"
	keyState        = "oauth_state"
	keyProvider     = "oauth_provider"
)

// Persisted keys: the issued token pair
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// ProviderConfig describes one provider as seen from the client side.
// Only public values live here; the client secret stays on the backend.
type ProviderConfig struct {
	Name         string
	ClientID     string
	AuthURL      string
	RedirectURI  string
	Scopes       []string
	SupportsPKCE bool
}

// LoginResult is the backend's response to a code exchange
type LoginResult struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         identity.User `json:"user"`
}

// Controller drives the login state machine:
//
//	loading → unauthenticated → pending-callback → authenticated
//	        → (refreshing → authenticated | unauthenticated)
//
// Concurrent manual refresh triggers are not deduplicated; the last
// completed refresh wins.
type Controller struct {
	backendURL string
	providers  map[string]ProviderConfig
	session    Store
	tokens     Store
	httpClient *http.Client

	mu       sync.RWMutex
	status   Status
	onChange func(Status)
}

type ControllerOption func(*Controller)

func WithHTTPClient(client *http.Client) ControllerOption {
	return func(c *Controller) {
		c.httpClient = client
	}
}

// WithSessionStore sets the session-scoped store holding the pending
// PKCE verifier and state
func WithSessionStore(store Store) ControllerOption {
	return func(c *Controller) {
		c.session = store
	}
}

// WithTokenStore sets the persisted store holding the token pair
func WithTokenStore(store Store) ControllerOption {
	return func(c *Controller) {
		c.tokens = store
	}
}

// WithStatusListener registers a callback invoked on every state
// transition
func WithStatusListener(onChange func(Status)) ControllerOption {
	return func(c *Controller) {
		c.onChange = onChange
	}
}

func NewController(backendURL string, providerConfigs []ProviderConfig, options ...ControllerOption) *Controller {
	c := &Controller{
		backendURL: backendURL,
		providers:  make(map[string]ProviderConfig),
		httpClient: http.DefaultClient,
		status:     StatusLoading,
	}
	for _, pc := range providerConfigs {
		c.providers[pc.Name] = pc
	}
	for _, opt := range options {
		opt(c)
	}
	if c.session == nil {
		c.session = NewMemoryStore()
	}
	if c.tokens == nil {
		c.tokens = NewMemoryStore()
	}

	// Restore from the persisted store: a stored access token means a
	// previous session may still be live; /auth/me decides for real
	if _, ok := c.tokens.Get(keyAccessToken); ok {
		c.setStatus(StatusAuthenticated)
	} else {
		c.setStatus(StatusUnauthenticated)
	}
	return c
}

// Status returns the current state of the login state machine
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// AccessToken returns the stored access token, if any
func (c *Controller) AccessToken() (string, bool) {
	return c.tokens.Get(keyAccessToken)
}

// BeginLogin builds the provider authorization URL for a new login
// attempt. For PKCE-capable providers a fresh verifier/challenge pair
// is generated and the verifier is kept in the session store. Any
// prior pending verifier/state is overwritten.
func (c *Controller) BeginLogin(providerName string) (string, error) {
	pc, ok := c.providers[providerName]
	if !ok {
		return "", apperrors.ErrUnknownProvider
	}

	oauthConfig := &oauth2.Config{
		ClientID:    pc.ClientID,
		Endpoint:    oauth2.Endpoint{AuthURL: pc.AuthURL},
		RedirectURL: pc.RedirectURI,
		Scopes:      pc.Scopes,
	}

	var authOpts []oauth2.AuthCodeOption
	if pc.SupportsPKCE {
		pkce, err := NewPKCE()
		if err != nil {
			return "", err
		}
		c.session.Set(keyCodeVerifier, pkce.Verifier)
		authOpts = append(authOpts,
			oauth2.SetAuthURLParam("code_challenge", pkce.Challenge),
			oauth2.SetAuthURLParam("code_challenge_method", pkce.Method),
		)
	} else {
		c.session.Delete(keyCodeVerifier)
	}

	state, err := NewState()
	if err != nil {
		return "", err
	}
	c.session.Set(keyState, state)
	c.session.Set(keyProvider, pc.Name)

	c.setStatus(StatusPendingCallback)
	return oauthConfig.AuthCodeURL(state, authOpts...), nil
}

// HandleCallback processes the provider redirect. The returned state
// must exactly match the pending one before anything is sent to the
// backend; a mismatch is fatal to the attempt and clears the pending
// artifacts.
func (c *Controller) HandleCallback(ctx context.Context, query url.Values) (*identity.User, error) {
	if errParam := query.Get("error"); errParam != "" {
		c.abandonLogin()
		return nil, apperrors.Wrapf(apperrors.ErrExchangeFailed, "provider returned %q", errParam)
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		c.abandonLogin()
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "callback missing code or state")
	}

	pendingState, ok := c.session.Get(keyState)
	if !ok {
		c.abandonLogin()
		return nil, apperrors.ErrNoPendingLogin
	}
	if state != pendingState {
		c.abandonLogin()
		return nil, apperrors.ErrStateMismatch
	}

	providerName, ok := c.session.Get(keyProvider)
	if !ok {
		c.abandonLogin()
		return nil, apperrors.ErrNoPendingLogin
	}
	verifier, _ := c.session.Get(keyCodeVerifier)

	request := map[string]string{"code": code, "state": state}
	if verifier != "" {
		request["code_verifier"] = verifier
	}

	var result LoginResult
	status, err := c.postJSON(ctx, "/auth/"+providerName, request, &result)
	c.clearPending() // verifier and state are single-use
	if err != nil {
		c.setStatus(StatusUnauthenticated)
		return nil, err
	}
	if status != http.StatusOK {
		c.setStatus(StatusUnauthenticated)
		return nil, apperrors.Wrapf(apperrors.ErrExchangeFailed, "exchange returned status %d", status)
	}

	c.tokens.Set(keyAccessToken, result.AccessToken)
	c.tokens.Set(keyRefreshToken, result.RefreshToken)
	c.setStatus(StatusAuthenticated)
	return &result.User, nil
}

// Refresh trades the stored refresh token for a new pair. Any failure
// clears local state and forces a re-login.
func (c *Controller) Refresh(ctx context.Context) error {
	refreshToken, ok := c.tokens.Get(keyRefreshToken)
	if !ok {
		c.setStatus(StatusUnauthenticated)
		return apperrors.ErrNotLoggedIn
	}

	c.setStatus(StatusRefreshing)

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	status, err := c.postJSON(ctx, "/auth/refresh", map[string]string{"refresh_token": refreshToken}, &pair)
	if err != nil {
		c.clearTokens()
		c.setStatus(StatusUnauthenticated)
		return err
	}
	if status != http.StatusOK {
		c.clearTokens()
		c.setStatus(StatusUnauthenticated)
		return apperrors.ErrInvalidRefreshToken
	}

	c.tokens.Set(keyAccessToken, pair.AccessToken)
	c.tokens.Set(keyRefreshToken, pair.RefreshToken)
	c.setStatus(StatusAuthenticated)
	return nil
}

// CurrentUser asks the backend who the stored access token belongs
// to. On a 401 it runs exactly one refresh cycle and retries once
// before giving up.
func (c *Controller) CurrentUser(ctx context.Context) (*identity.User, error) {
	user, status, err := c.fetchCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		return user, nil
	}
	if status != http.StatusUnauthorized {
		return nil, apperrors.Wrapf(apperrors.ErrInternal, "current-user returned status %d", status)
	}

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	user, status, err = c.fetchCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.clearTokens()
		c.setStatus(StatusUnauthenticated)
		return nil, apperrors.ErrInvalidToken
	}
	return user, nil
}

// Logout clears all local auth state
func (c *Controller) Logout() {
	c.clearPending()
	c.clearTokens()
	c.setStatus(StatusUnauthenticated)
}

func (c *Controller) fetchCurrentUser(ctx context.Context) (*identity.User, int, error) {
	accessToken, ok := c.tokens.Get(keyAccessToken)
	if !ok {
		return nil, 0, apperrors.ErrNotLoggedIn
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.backendURL+"/auth/me", nil)
	if err != nil {
		return nil, 0, apperrors.Wrapf(err, "Controller.fetchCurrentUser")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, apperrors.Wrapf(err, "Controller.fetchCurrentUser")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var body struct {
		User identity.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resp.StatusCode, apperrors.Wrapf(err, "Controller.fetchCurrentUser decode")
	}
	return &body.User, resp.StatusCode, nil
}

func (c *Controller) postJSON(ctx context.Context, path string, request any, response any) (int, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return 0, apperrors.Wrapf(err, "Controller.postJSON marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backendURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, apperrors.Wrapf(err, "Controller.postJSON")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.Wrapf(err, "Controller.postJSON %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return resp.StatusCode, fmt.Errorf("Controller.postJSON decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

// abandonLogin clears the pending attempt and routes back to the
// unauthenticated entry point
func (c *Controller) abandonLogin() {
	c.clearPending()
	c.setStatus(StatusUnauthenticated)
}

func (c *Controller) clearPending() {
	c.session.Delete(keyCodeVerifier)
	c.session.Delete(keyState)
	c.session.Delete(keyProvider)
}

func (c *Controller) clearTokens() {
	c.tokens.Delete(keyAccessToken)
	c.tokens.Delete(keyRefreshToken)
}

func (c *Controller) setStatus(status Status) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	onChange := c.onChange
	c.mu.Unlock()

	if changed && onChange != nil {
		onChange(status)
	}
}
