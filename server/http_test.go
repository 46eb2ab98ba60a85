package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/discussion-cache/cache"
	"github.com/wolfeidau/discussion-cache/forum"
	"github.com/wolfeidau/discussion-cache/githubauth"
	"github.com/wolfeidau/discussion-cache/upstream/gql"
	"github.com/wolfeidau/discussion-cache/upstream/rest"
)

const discussionsListing = `[
	{
		"node_id": "D_1", "number": 1, "title": "Welcome", "created_at": "2026-01-01T00:00:00Z",
		"user": {"login": "alice", "avatar_url": "", "html_url": ""},
		"category": {"id": 11, "node_id": "DIC_general", "name": "General", "emoji": ":speech_balloon:", "slug": "general"},
		"comments": 2,
		"reactions": {"total_count": 1, "+1": 1}
	}
]`

// newAnonymousServer builds a server whose forum service has no server-side
// credentials and reads through the REST fallback.
func newAnonymousServer(t *testing.T, upstream http.Handler) *httptest.Server {
	t.Helper()

	rs := httptest.NewServer(upstream)
	t.Cleanup(rs.Close)

	resolver := githubauth.NewTokenResolver("", githubauth.NewAppTokenSource(githubauth.AppConfig{}))
	svc, err := forum.New("acme", "forum", cache.New(), resolver,
		forum.WithRESTClient(rest.NewClient(rest.WithBaseURL(rs.URL))))
	require.NoError(t, err)

	srv, err := New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, svc)
	require.NoError(t, err)

	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)
	return api
}

// newTokenServer builds a server with a configured server token and a
// scripted GraphQL upstream.
func newTokenServer(t *testing.T, upstream http.Handler) *httptest.Server {
	t.Helper()

	gs := httptest.NewServer(upstream)
	t.Cleanup(gs.Close)

	resolver := githubauth.NewTokenResolver("pat-token", githubauth.NewAppTokenSource(githubauth.AppConfig{}))
	svc, err := forum.New("acme", "forum", cache.New(), resolver,
		forum.WithGraphQLClient(gql.NewClient(gql.WithEndpoint(gs.URL))))
	require.NoError(t, err)

	srv, err := New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, svc)
	require.NoError(t, err)

	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)
	return api
}

func serveListing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, discussionsListing)
}

func TestHealthAndStats(t *testing.T) {
	api := newAnonymousServer(t, http.HandlerFunc(serveListing))

	resp, err := http.Get(api.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, err = http.Get(api.URL + "/stats")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		CacheEntries int `json:"cache_entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, 0, stats.CacheEntries)
}

func TestCategoriesWithETagRevalidation(t *testing.T) {
	api := newAnonymousServer(t, http.HandlerFunc(serveListing))

	resp, err := http.Get(api.URL + "/api/categories")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	var cats []struct {
		Name  string `json:"name"`
		Emoji string `json:"emoji"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cats))
	require.Len(t, cats, 1)
	require.Equal(t, "General", cats[0].Name)
	require.Equal(t, "💬", cats[0].Emoji)

	req, err := http.NewRequest(http.MethodGet, api.URL+"/api/categories", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusNotModified, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Empty(t, body)
}

func TestCategoryBySlugNotFound(t *testing.T) {
	api := newAnonymousServer(t, http.HandlerFunc(serveListing))

	resp, err := http.Get(api.URL + "/api/categories/missing")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestThreadInvalidNumber(t *testing.T) {
	api := newAnonymousServer(t, http.HandlerFunc(serveListing))

	resp, err := http.Get(api.URL + "/api/threads/abc")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchValidation(t *testing.T) {
	api := newAnonymousServer(t, http.HandlerFunc(serveListing))

	// Missing q parameter.
	resp, err := http.Get(api.URL + "/api/search")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// No credentials anywhere: search has no anonymous path.
	resp, err = http.Get(api.URL + "/api/search?q=deploy")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
}

func TestRateLimitedUpstreamMapsTo503(t *testing.T) {
	api := newTokenServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	resp, err := http.Get(api.URL + "/api/categories")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestWritesRequireAuthorization(t *testing.T) {
	api := newAnonymousServer(t, http.HandlerFunc(serveListing))

	resp, err := http.Post(api.URL+"/api/threads", "application/json",
		strings.NewReader(`{"categorySlug":"general","title":"T","body":"B"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post(api.URL+"/api/comments", "application/json",
		strings.NewReader(`{"discussionId":"D_1","body":"B"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// scriptedGraphQL dispatches on the operation inside the query text.
func scriptedGraphQL(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(req.Query, "discussionCategories"):
			fmt.Fprint(w, `{"data":{"repository":{"discussionCategories":{"nodes":[
				{"id": "DIC_general", "name": "General", "description": "", "emoji": "💬", "slug": "general"}
			]}}}}`)
		case strings.Contains(req.Query, "createDiscussion"):
			fmt.Fprint(w, `{"data":{"createDiscussion":{"discussion":{"number":99,"title":"New thread"}}}}`)
		case strings.Contains(req.Query, "addDiscussionComment"):
			fmt.Fprint(w, `{"data":{"addDiscussionComment":{"comment":{"id":"DC_1","createdAt":"2026-03-01T00:00:00Z"}}}}`)
		default:
			// Repository id lookup.
			fmt.Fprint(w, `{"data":{"repository":{"id":"R_acme"}}}`)
		}
	})
}

func TestCreateThread(t *testing.T) {
	api := newTokenServer(t, scriptedGraphQL(t))

	req, err := http.NewRequest(http.MethodPost, api.URL+"/api/threads",
		strings.NewReader(`{"categorySlug":"general","title":"New thread","body":"Hello"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer user-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var thread struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&thread))
	require.Equal(t, 99, thread.Number)
	require.Equal(t, "New thread", thread.Title)
}

func TestCreateThreadValidation(t *testing.T) {
	api := newTokenServer(t, scriptedGraphQL(t))

	req, err := http.NewRequest(http.MethodPost, api.URL+"/api/threads",
		strings.NewReader(`{"title":"No category"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer user-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddComment(t *testing.T) {
	api := newTokenServer(t, scriptedGraphQL(t))

	req, err := http.NewRequest(http.MethodPost, api.URL+"/api/comments",
		strings.NewReader(`{"discussionId":"D_1","body":"Nice"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer user-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var comment struct {
		ID        string `json:"id"`
		CreatedAt string `json:"createdAt"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&comment))
	require.Equal(t, "DC_1", comment.ID)
}

func TestMetaReportsServerCredentials(t *testing.T) {
	anon := newAnonymousServer(t, http.HandlerFunc(serveListing))

	resp, err := http.Get(anon.URL + "/api/meta")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var meta struct {
		ServerCredentials bool `json:"serverCredentials"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	require.False(t, meta.ServerCredentials)

	withToken := newTokenServer(t, scriptedGraphQL(t))

	resp, err = http.Get(withToken.URL + "/api/meta")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	require.True(t, meta.ServerCredentials)
}
