package errors

import (
	"errors"
	"fmt"
)

// Common error types for the token exchange service
var (
	// Application token errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrWrongTokenType      = errors.New("wrong token type")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Provider exchange errors
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrExchangeFailed     = errors.New("provider exchange failed")
	ErrVerificationFailed = errors.New("identity token verification failed")
	ErrMissingClaims      = errors.New("missing required identity claims")
	ErrProfileFetchFailed = errors.New("provider profile request failed")

	// Client flow errors
	ErrStateMismatch  = errors.New("state mismatch")
	ErrNoPendingLogin = errors.New("no pending login attempt")
	ErrNotLoggedIn    = errors.New("not logged in")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
