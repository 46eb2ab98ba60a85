package githubauth

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// appJWTBackdate absorbs clock skew between this process and the
	// verifying server.
	appJWTBackdate = 60 * time.Second

	// appJWTLifetime is the longest lifetime GitHub accepts for an app JWT.
	appJWTLifetime = 10 * time.Minute
)

// signAppJWT builds the RS256 application-identity assertion exchanged for
// an installation token.
func signAppJWT(key *rsa.PrivateKey, appID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-appJWTBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
		Issuer:    appID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing app JWT: %w", err)
	}
	return signed, nil
}
