package githubauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	discussioncache "github.com/wolfeidau/discussion-cache"
	"github.com/wolfeidau/discussion-cache/telemetry"
)

const (
	// DefaultAPIBaseURL is the GitHub REST API root used for the token
	// exchange endpoint.
	DefaultAPIBaseURL = "https://api.github.com"

	// DefaultTimeout is the default timeout for token exchange requests.
	DefaultTimeout = 30 * time.Second

	// tokenSafetyMargin is how long before expiry a cached installation
	// token stops being reused.
	tokenSafetyMargin = 60 * time.Second
)

// AppConfig holds the three settings that gate app-token issuance. All are
// optional; any one being empty simply disables this credential source.
type AppConfig struct {
	AppID          string
	PrivateKey     string // PEM, PKCS#1 or PKCS#8, literal or escaped newlines
	InstallationID string
}

// Configured reports whether all settings required for issuance are present.
func (c AppConfig) Configured() bool {
	return c.AppID != "" && c.PrivateKey != "" && c.InstallationID != ""
}

// AppTokenSource exchanges signed app JWTs for installation tokens and
// owns the single-slot token cache. Safe for concurrent use; overlapping
// refreshes are collapsed into one upstream exchange.
type AppTokenSource struct {
	cfg     AppConfig
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// AppTokenOption configures an AppTokenSource.
type AppTokenOption func(*AppTokenSource)

// WithBaseURL overrides the API root, for tests.
func WithBaseURL(url string) AppTokenOption {
	return func(s *AppTokenSource) {
		s.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) AppTokenOption {
	return func(s *AppTokenSource) {
		s.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AppTokenOption {
	return func(s *AppTokenSource) {
		s.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) AppTokenOption {
	return func(s *AppTokenSource) {
		s.now = now
	}
}

// NewAppTokenSource creates a token source for the given app configuration.
func NewAppTokenSource(cfg AppConfig, opts ...AppTokenOption) *AppTokenSource {
	s := &AppTokenSource{
		cfg:     cfg,
		baseURL: DefaultAPIBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether app-token issuance is possible at all.
func (s *AppTokenSource) Configured() bool {
	return s.cfg.Configured()
}

// Token returns a valid installation token, reusing the cached one while it
// is at least tokenSafetyMargin from expiry. force always performs a fresh
// exchange, clearing the cached slot first so a crash mid-refresh cannot
// leave a stale valid-looking entry. Every failure mode reports
// ErrNoCredentials: callers fall through to the next credential source.
func (s *AppTokenSource) Token(ctx context.Context, force bool) (string, error) {
	if !s.Configured() {
		return "", discussioncache.ErrNoCredentials
	}

	if force {
		s.mu.Lock()
		s.token = ""
		s.expiresAt = time.Time{}
		s.mu.Unlock()
	} else {
		s.mu.Lock()
		if s.token != "" && s.now().Before(s.expiresAt.Add(-tokenSafetyMargin)) {
			token := s.token
			s.mu.Unlock()
			return token, nil
		}
		s.mu.Unlock()
	}

	reason := "expiry"
	if force {
		reason = "forced"
	}

	v, err, _ := s.group.Do("installation-token", func() (any, error) {
		return s.exchange(ctx)
	})
	if err != nil {
		telemetry.RecordTokenRefresh(ctx, reason, "failure")
		return "", err
	}
	telemetry.RecordTokenRefresh(ctx, reason, "success")
	return v.(string), nil
}

// Invalidate drops the cached token so the next Token call must exchange.
func (s *AppTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

// exchange signs a fresh app JWT and swaps it for an installation token.
func (s *AppTokenSource) exchange(ctx context.Context) (string, error) {
	key, err := ParsePrivateKey(s.cfg.PrivateKey)
	if err != nil {
		s.logger.Error("app private key unusable", "error", err)
		return "", discussioncache.ErrNoCredentials
	}

	appJWT, err := signAppJWT(key, s.cfg.AppID, s.now())
	if err != nil {
		s.logger.Error("signing app JWT failed", "error", err)
		return "", discussioncache.ErrNoCredentials
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", s.baseURL, s.cfg.InstallationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", discussioncache.ErrNoCredentials
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "discussion-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("installation token exchange failed", "error", err)
		return "", discussioncache.ErrNoCredentials
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Error("installation token exchange rejected",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return "", discussioncache.ErrNoCredentials
	}

	var payload struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		s.logger.Error("decoding installation token response failed", "error", err)
		return "", discussioncache.ErrNoCredentials
	}

	s.mu.Lock()
	s.token = payload.Token
	s.expiresAt = payload.ExpiresAt
	s.mu.Unlock()

	s.logger.Debug("installation token refreshed", "expires_at", payload.ExpiresAt)
	return payload.Token, nil
}
