package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jrsteele09/go-token-exchange/identity"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
)

// RefreshTokenType is the value of the "type" claim that marks a
// refresh token. Access tokens carry no "type" claim; the claim is the
// only thing that discriminates the two, so both verification paths
// check it.
const RefreshTokenType = "refresh"

// Pair is an application-issued access/refresh token pair. The tokens
// are the only record of the session; nothing is stored server-side.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Issuer mints and verifies the application's own JWTs. Provider
// tokens never pass through here; the exchange layer reduces them to
// identity claims first.
type Issuer struct {
	signer             Signer
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type IssuerOption func(*Issuer)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessTokenExpiry = accessTokenExpiry
		i.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = issuer
	}
}

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func New(signer Signer, options ...IssuerOption) *Issuer {
	i := &Issuer{
		signer: signer,
	}

	for _, opt := range options {
		opt(i)
	}

	if i.accessTokenExpiry == 0 {
		i.accessTokenExpiry = time.Hour
	}
	if i.refreshTokenExpiry == 0 {
		i.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if i.nowFunc == nil {
		i.nowFunc = time.Now
	}
	return i
}

// IssuePair creates an access token carrying the user's identity
// claims and a refresh token carrying only the subject.
func (i *Issuer) IssuePair(user *identity.User) (*Pair, error) {
	if user == nil || user.Subject == "" {
		return nil, apperrors.ErrMissingClaims
	}

	now := i.nowFunc()

	accessClaims := jwt.MapClaims{
		"sub":      user.Subject,
		"username": user.Username,
		"name":     user.Name,
		"iat":      now.Unix(),
		"exp":      now.Add(i.accessTokenExpiry).Unix(),
		"jti":      uuid.New().String(),
	}
	if i.issuer != "" {
		accessClaims["iss"] = i.issuer
	}
	if user.Email != "" {
		accessClaims["email"] = user.Email
	}
	if user.Avatar != "" {
		accessClaims["avatar"] = user.Avatar
	}

	refreshClaims := jwt.MapClaims{
		"sub":  user.Subject,
		"type": RefreshTokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(i.refreshTokenExpiry).Unix(),
		"jti":  uuid.New().String(),
	}
	if i.issuer != "" {
		refreshClaims["iss"] = i.issuer
	}

	accessToken, err := i.signer.Sign(accessClaims)
	if err != nil {
		return nil, apperrors.Wrapf(err, "Issuer.IssuePair access token")
	}

	refreshToken, err := i.signer.Sign(refreshClaims)
	if err != nil {
		return nil, apperrors.Wrapf(err, "Issuer.IssuePair refresh token")
	}

	return &Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyAccess validates an access token and returns the identity
// claims embedded in it. A refresh token presented here is rejected
// even though its signature is valid.
func (i *Issuer) VerifyAccess(rawToken string) (*identity.User, error) {
	claims, err := i.parse(rawToken)
	if err != nil {
		return nil, err
	}

	if tokenType, _ := claims["type"].(string); tokenType == RefreshTokenType {
		return nil, apperrors.ErrWrongTokenType
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, apperrors.ErrInvalidToken
	}

	username, _ := claims["username"].(string)
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	avatar, _ := claims["avatar"].(string)

	return &identity.User{
		Subject:  sub,
		Username: username,
		Name:     name,
		Email:    email,
		Avatar:   avatar,
	}, nil
}

// VerifyRefresh validates a refresh token and returns its subject.
// Access tokens are rejected by the type check.
func (i *Issuer) VerifyRefresh(rawToken string) (string, error) {
	claims, err := i.parse(rawToken)
	if err != nil {
		return "", err
	}

	if tokenType, _ := claims["type"].(string); tokenType != RefreshTokenType {
		return "", apperrors.ErrWrongTokenType
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", apperrors.ErrInvalidRefreshToken
	}
	return sub, nil
}

// Refresh verifies a refresh token and mints a fresh pair bound to the
// same subject. The refresh token carries only the subject, so the new
// access token has no profile claims until the next full login.
func (i *Issuer) Refresh(rawToken string) (*Pair, error) {
	sub, err := i.VerifyRefresh(rawToken)
	if err != nil {
		return nil, err
	}
	return i.IssuePair(&identity.User{Subject: sub})
}

func (i *Issuer) parse(rawToken string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, i.signer.GetVerificationKey,
		jwt.WithTimeFunc(i.nowFunc),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
	)
	if err != nil {
		if apperrors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}
