package githubauth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestSignAppJWTClaims(t *testing.T) {
	key := generateKey(t)
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	signed, err := signAppJWT(key, "12345", now)
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (any, error) {
		require.Equal(t, "RS256", token.Method.Alg())
		return &key.PublicKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	require.Equal(t, "12345", claims.Issuer)
	// iat is back-dated a minute to absorb clock skew; exp is the ten
	// minute maximum GitHub accepts for app JWTs.
	require.Equal(t, now.Add(-time.Minute).Unix(), claims.IssuedAt.Unix())
	require.Equal(t, now.Add(10*time.Minute).Unix(), claims.ExpiresAt.Unix())
}
