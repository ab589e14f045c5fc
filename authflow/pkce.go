package authflow

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// https://datatracker.ietf.org/doc/html/rfc7636#section-4.1
	verifierLength  = 128
	verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

	stateLength = 32 // bytes of entropy before base64url encoding
)

// PKCE is one verifier/challenge pair. The verifier stays in the
// session store; only the challenge is sent to the provider.
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// NewPKCE generates a fresh PKCE pair with an S256 challenge.
func NewPKCE() (PKCE, error) {
	verifier, err := randomString(verifierLength, verifierCharset)
	if err != nil {
		return PKCE{}, fmt.Errorf("NewPKCE: %w", err)
	}
	return PKCE{
		Verifier:  verifier,
		Challenge: ChallengeFrom(verifier),
		Method:    "S256",
	}, nil
}

// ChallengeFrom derives the S256 code challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func ChallengeFrom(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// NewState generates the anti-CSRF state nonce bound to one login
// attempt.
func NewState() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("NewState: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func randomString(length int, charset string) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b), nil
}
