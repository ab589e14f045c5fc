package authflow_test

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-token-exchange/authflow"
)

const unreservedCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

func TestNewPKCE(t *testing.T) {
	pkce, err := authflow.NewPKCE()
	require.NoError(t, err)

	t.Run("verifier length and alphabet", func(t *testing.T) {
		require.Len(t, pkce.Verifier, 128)
		for _, r := range pkce.Verifier {
			require.True(t, strings.ContainsRune(unreservedCharset, r), "unexpected verifier character %q", r)
		}
	})

	t.Run("challenge is base64url sha256 of verifier", func(t *testing.T) {
		hash := sha256.Sum256([]byte(pkce.Verifier))
		require.Equal(t, base64.RawURLEncoding.EncodeToString(hash[:]), pkce.Challenge)
		require.Equal(t, pkce.Challenge, authflow.ChallengeFrom(pkce.Verifier))
		require.NotContains(t, pkce.Challenge, "=")
	})

	t.Run("method is S256", func(t *testing.T) {
		require.Equal(t, "S256", pkce.Method)
	})
}

func TestNewPKCE_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		pkce, err := authflow.NewPKCE()
		require.NoError(t, err)
		require.False(t, seen[pkce.Verifier], "verifier generated twice")
		seen[pkce.Verifier] = true
	}
}

func TestChallengeFrom_RFCExample(t *testing.T) {
	// Appendix B of RFC 7636
	challenge := authflow.ChallengeFrom("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	require.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", challenge)
}

func TestNewState(t *testing.T) {
	state, err := authflow.NewState()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(state), 32)

	other, err := authflow.NewState()
	require.NoError(t, err)
	require.NotEqual(t, state, other)
}
