package githubauth

import (
	"context"

	discussioncache "github.com/wolfeidau/discussion-cache"
)

// TokenResolver picks the best available read credential. It is stateless:
// an ordered-fallback composition over a configured long-lived token, the
// installation token source, and whatever token the caller supplied.
type TokenResolver struct {
	serverToken string
	app         *AppTokenSource
}

// NewTokenResolver creates a resolver. serverToken is the optional
// long-lived credential that bypasses app-token issuance entirely; app may
// be unconfigured.
func NewTokenResolver(serverToken string, app *AppTokenSource) *TokenResolver {
	return &TokenResolver{serverToken: serverToken, app: app}
}

// ReadToken returns the current read token, trying in order: the configured
// server token, an app installation token, then the caller-supplied user
// token. Returns ErrNoCredentials when every source comes up empty.
func (r *TokenResolver) ReadToken(ctx context.Context, userToken string) (string, error) {
	if r.serverToken != "" {
		return r.serverToken, nil
	}

	if token, err := r.app.Token(ctx, false); err == nil {
		return token, nil
	}

	if userToken != "" {
		return userToken, nil
	}

	return "", discussioncache.ErrNoCredentials
}

// HasServerCredentials reports whether the process can read without a
// user-supplied token. The presentation layer uses this to decide whether
// to operate in anonymous mode.
func (r *TokenResolver) HasServerCredentials(ctx context.Context) bool {
	if r.serverToken != "" {
		return true
	}
	_, err := r.app.Token(ctx, false)
	return err == nil
}

// App exposes the underlying installation token source, used by the query
// executor to force rotation after a rate-limit failure.
func (r *TokenResolver) App() *AppTokenSource {
	return r.app
}
