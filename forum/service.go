// Package forum composes the response cache, the credential resolver, and
// the two upstream data paths into the read/write surface the presentation
// layer calls. Reads are cached with per-query TTLs and survive upstream
// rate limiting through a one-shot token rotation; reads without any
// credential fall back to the anonymous REST path where one exists.
package forum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	discussioncache "github.com/wolfeidau/discussion-cache"
	"github.com/wolfeidau/discussion-cache/cache"
	"github.com/wolfeidau/discussion-cache/githubauth"
	"github.com/wolfeidau/discussion-cache/telemetry"
	"github.com/wolfeidau/discussion-cache/upstream/gql"
	"github.com/wolfeidau/discussion-cache/upstream/rest"
)

// TTLs by query class. Categories change rarely; listings tolerate a minute
// of staleness; the repository node id is near-immutable.
const (
	categoriesTTL = 2 * time.Minute
	threadsTTL    = time.Minute
	threadTTL     = time.Minute
	searchTTL     = time.Minute
	repoIDTTL     = time.Hour
)

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 20

// Service is the read/write surface over the discussion API.
type Service struct {
	owner    string
	repo     string
	store    *cache.Cache
	resolver *githubauth.TokenResolver
	gql      *gql.Client
	rest     *rest.Client
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithGraphQLClient sets the GraphQL client.
func WithGraphQLClient(c *gql.Client) Option {
	return func(s *Service) {
		s.gql = c
	}
}

// WithRESTClient sets the REST fallback client.
func WithRESTClient(c *rest.Client) Option {
	return func(s *Service) {
		s.rest = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a Service for one repository. owner and repo are required;
// store and resolver are owned by the caller so one cache serves the whole
// process.
func New(owner, repo string, store *cache.Cache, resolver *githubauth.TokenResolver, opts ...Option) (*Service, error) {
	if owner == "" {
		return nil, &discussioncache.MissingConfigError{Setting: "repository owner"}
	}
	if repo == "" {
		return nil, &discussioncache.MissingConfigError{Setting: "repository name"}
	}

	s := &Service{
		owner:    owner,
		repo:     repo,
		store:    store,
		resolver: resolver,
		gql:      gql.NewClient(),
		rest:     rest.NewClient(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HasServerCredentials reports whether reads work without a user token.
func (s *Service) HasServerCredentials(ctx context.Context) bool {
	return s.resolver.HasServerCredentials(ctx)
}

// CacheSize reports the number of live response cache entries, for the
// stats endpoint.
func (s *Service) CacheSize() int {
	return s.store.Len()
}

// executeRead runs one read against the GraphQL path with the rate-limit
// recovery policy: on a rate-limit failure with app credentials configured,
// rotate the installation token and retry exactly once. Rotating rather
// than waiting can yield a token with fresh quota; when it does not, the
// rate-limit error surfaces to the caller. Non-rate-limit failures are
// never retried.
func (s *Service) executeRead(ctx context.Context, token string, fn func(token string) error) error {
	err := fn(token)
	if err == nil || !errors.Is(err, discussioncache.ErrRateLimited) {
		return err
	}

	app := s.resolver.App()
	if !app.Configured() {
		return err
	}

	s.logger.Warn("rate limited, rotating installation token")
	fresh, tokenErr := app.Token(ctx, true)
	if tokenErr != nil {
		telemetry.RecordRateLimitRetry(ctx, "exhausted")
		return err
	}

	retryErr := fn(fresh)
	if retryErr == nil {
		telemetry.RecordRateLimitRetry(ctx, "recovered")
		return nil
	}
	if errors.Is(retryErr, discussioncache.ErrRateLimited) {
		telemetry.RecordRateLimitRetry(ctx, "exhausted")
	}
	return retryErr
}

// lookup is the common cache-read step: it records the hit/miss metric and
// returns the typed value.
func lookup[T any](ctx context.Context, s *Service, key, queryClass string) (T, bool) {
	v, ok := cache.Lookup[T](s.store, key)
	if ok {
		telemetry.RecordCacheLookup(ctx, queryClass, telemetry.CacheHit)
	} else {
		telemetry.RecordCacheLookup(ctx, queryClass, telemetry.CacheMiss)
	}
	return v, ok
}

// FetchCategories returns the repository's discussion categories.
func (s *Service) FetchCategories(ctx context.Context, userToken string) ([]discussioncache.Category, error) {
	const key = "categories"
	if cats, ok := lookup[[]discussioncache.Category](ctx, s, key, "categories"); ok {
		return cats, nil
	}

	var cats []discussioncache.Category

	token, err := s.resolver.ReadToken(ctx, userToken)
	switch {
	case errors.Is(err, discussioncache.ErrNoCredentials):
		cats, err = s.rest.Categories(ctx, s.owner, s.repo)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		err = s.executeRead(ctx, token, func(tok string) error {
			var fetchErr error
			cats, fetchErr = s.gql.Categories(ctx, tok, s.owner, s.repo)
			return fetchErr
		})
		if err != nil {
			return nil, err
		}
	}

	s.store.Set(key, cats, categoriesTTL)
	return cats, nil
}

// FetchCategoryBySlug returns a single category, resolved through the
// cached category list.
func (s *Service) FetchCategoryBySlug(ctx context.Context, slug, userToken string) (discussioncache.Category, error) {
	cats, err := s.FetchCategories(ctx, userToken)
	if err != nil {
		return discussioncache.Category{}, err
	}
	for _, c := range cats {
		if c.Slug == slug {
			return c, nil
		}
	}
	return discussioncache.Category{}, discussioncache.ErrNotFound
}

// FetchThreadsByCategory returns one page of threads in a category,
// newest-activity first.
func (s *Service) FetchThreadsByCategory(ctx context.Context, categoryID string, first int, after, orderBy, userToken string) (*discussioncache.ThreadPage, error) {
	if first <= 0 {
		first = DefaultPageSize
	}
	if orderBy != "CREATED_AT" {
		orderBy = "UPDATED_AT"
	}

	key := fmt.Sprintf("threads:%s:%d:%s:%s", categoryID, first, after, orderBy)
	if page, ok := lookup[*discussioncache.ThreadPage](ctx, s, key, "threads"); ok {
		return page, nil
	}

	var page *discussioncache.ThreadPage

	token, err := s.resolver.ReadToken(ctx, userToken)
	switch {
	case errors.Is(err, discussioncache.ErrNoCredentials):
		page, err = s.rest.Threads(ctx, s.owner, s.repo, categoryID, first, after)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		err = s.executeRead(ctx, token, func(tok string) error {
			var fetchErr error
			page, fetchErr = s.gql.Threads(ctx, tok, s.owner, s.repo, categoryID, first, after, orderBy)
			return fetchErr
		})
		if err != nil {
			return nil, err
		}
	}

	s.store.Set(key, page, threadsTTL)
	return page, nil
}

// FetchThread returns a full discussion with comments and replies.
func (s *Service) FetchThread(ctx context.Context, number int, userToken string) (*discussioncache.ThreadDetail, error) {
	key := fmt.Sprintf("thread:%d", number)
	if thread, ok := lookup[*discussioncache.ThreadDetail](ctx, s, key, "thread"); ok {
		return thread, nil
	}

	var thread *discussioncache.ThreadDetail

	token, err := s.resolver.ReadToken(ctx, userToken)
	switch {
	case errors.Is(err, discussioncache.ErrNoCredentials):
		thread, err = s.rest.Thread(ctx, s.owner, s.repo, number)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		err = s.executeRead(ctx, token, func(tok string) error {
			var fetchErr error
			thread, fetchErr = s.gql.Thread(ctx, tok, s.owner, s.repo, number)
			return fetchErr
		})
		if err != nil {
			return nil, err
		}
	}

	s.store.Set(key, thread, threadTTL)
	return thread, nil
}

// FetchRepoID returns the repository node id required by the create-thread
// mutation.
func (s *Service) FetchRepoID(ctx context.Context, userToken string) (string, error) {
	const key = "repo_id"
	if id, ok := lookup[string](ctx, s, key, "repo_id"); ok {
		return id, nil
	}

	var id string

	token, err := s.resolver.ReadToken(ctx, userToken)
	switch {
	case errors.Is(err, discussioncache.ErrNoCredentials):
		id, err = s.rest.RepoID(ctx, s.owner, s.repo)
		if err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	default:
		err = s.executeRead(ctx, token, func(tok string) error {
			var fetchErr error
			id, fetchErr = s.gql.RepoID(ctx, tok, s.owner, s.repo)
			return fetchErr
		})
		if err != nil {
			return "", err
		}
	}

	s.store.Set(key, id, repoIDTTL)
	return id, nil
}

// SearchDiscussions searches threads in the repository. The search API has
// no anonymous fallback, so a credential from some source is required.
func (s *Service) SearchDiscussions(ctx context.Context, query string, first int, after, userToken string) (*discussioncache.SearchPage, error) {
	if first <= 0 {
		first = DefaultPageSize
	}

	key := fmt.Sprintf("search:%s:%d:%s", query, first, after)
	if page, ok := lookup[*discussioncache.SearchPage](ctx, s, key, "search"); ok {
		return page, nil
	}

	token, err := s.resolver.ReadToken(ctx, userToken)
	if err != nil {
		return nil, err
	}

	var page *discussioncache.SearchPage
	err = s.executeRead(ctx, token, func(tok string) error {
		var fetchErr error
		page, fetchErr = s.gql.Search(ctx, tok, s.owner, s.repo, query, first, after)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	s.store.Set(key, page, searchTTL)
	return page, nil
}

// CreateDiscussion opens a new thread. Writes always act as the end user:
// an explicit user token is required and nothing is cached. The next
// listing refetch picks the new thread up when its cache entry expires.
func (s *Service) CreateDiscussion(ctx context.Context, userToken, repoID, categoryID, title, body string) (*discussioncache.NewThread, error) {
	if userToken == "" {
		return nil, discussioncache.ErrNoCredentials
	}
	return s.gql.CreateDiscussion(ctx, userToken, repoID, categoryID, title, body)
}

// AddComment adds a comment to a thread as the end user.
func (s *Service) AddComment(ctx context.Context, userToken, discussionID, body string) (*discussioncache.NewComment, error) {
	if userToken == "" {
		return nil, discussioncache.ErrNoCredentials
	}
	return s.gql.AddComment(ctx, userToken, discussionID, body)
}
