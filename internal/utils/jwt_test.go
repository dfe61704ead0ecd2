package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, "GUEST", time.Minute)
	require.NoError(t, err)

	c, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	require.Equal(t, Claims{UserID: 42, Role: "GUEST"}, c)

	_, err = ParseAccessToken("other", tok.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejects(t *testing.T) {
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name string
		raw  string
	}{
		{"garbage", "not.a.token"},
		{"expired", sign(jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-time.Minute).Unix()})},
		{"no subject", sign(jwt.MapClaims{"role": "ADMIN", "exp": exp})},
		{"bad subject", sign(jwt.MapClaims{"sub": "abc", "exp": exp})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAccessToken("secret", tc.raw)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestParseNumericSubject(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 7, "role": "ADMIN"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	c, err := ParseAccessToken("secret", raw)
	require.NoError(t, err)
	require.Equal(t, uint64(7), c.UserID)
	require.Equal(t, "ADMIN", c.Role)
}
