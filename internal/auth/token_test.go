package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seersec/seer/internal/identity"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	user := identity.User{ID: 42, Email: "alice@example.com"}

	raw, err := issuer.Issue(user, "ADMIN")
	require.NoError(t, err)

	claims, err := issuer.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "ADMIN", claims.Role)
	require.NotEmpty(t, claims.ID)
}

func TestTokenIssuerExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	raw, err := issuer.Issue(identity.User{ID: 1, Email: "a@example.com"}, "USER")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(raw)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuerWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	raw, err := issuer.Issue(identity.User{ID: 1, Email: "a@example.com"}, "USER")
	require.NoError(t, err)

	other := NewTokenIssuer("other-secret", time.Hour)
	_, err = other.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuerGarbage(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	_, err := issuer.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
