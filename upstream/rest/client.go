// Package rest is the unauthenticated fallback data path. It re-derives the
// read operations against the REST surface when no credential exists and
// normalizes the differently-shaped responses (field names, page-number
// cursors, reaction counters, emoji shortcodes) into the canonical shapes
// produced by the GraphQL path.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	discussioncache "github.com/wolfeidau/discussion-cache"
)

const (
	// DefaultBaseURL is the GitHub REST API root.
	DefaultBaseURL = "https://api.github.com"

	// DefaultTimeout is the default timeout for upstream requests.
	DefaultTimeout = 30 * time.Second

	// listPageSize is the page size used for bulk discussion listings that
	// back category derivation and client-side category filtering.
	listPageSize = 100
)

// Client reads the discussion REST surface anonymously. The anonymous
// quota is strict, which is why this path is only taken when the resolver
// yields no token at all.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	// categoryIDs memoizes canonical node id -> numeric REST id, since the
	// two identifier schemes are not natively interoperable.
	mu          sync.Mutex
	categoryIDs map[string]int64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an anonymous REST client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		categoryIDs: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs an anonymous GET and decodes the JSON response into out.
// The full media type is requested so bodies arrive with rendered HTML.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.full+json")
	req.Header.Set("User-Agent", "discussion-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return discussioncache.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upstream returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// IsPageCursor reports whether a cursor string came from this adapter:
// REST cursors are stringified page numbers, GraphQL cursors are opaque
// and never purely numeric.
func IsPageCursor(cursor string) bool {
	if cursor == "" {
		return false
	}
	for _, r := range cursor {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// pageFromCursor resolves an "after" cursor to a page number. Opaque
// cursors from the GraphQL path restart at page one rather than failing
// the read.
func pageFromCursor(cursor string) int {
	if !IsPageCursor(cursor) {
		return 1
	}
	page, err := strconv.Atoi(cursor)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Categories derives the category list from a bulk discussion listing;
// the REST surface has no standalone category-list endpoint. The result is
// the union of categories seen, name-sorted for determinism.
func (c *Client) Categories(ctx context.Context, owner, repo string) ([]discussioncache.Category, error) {
	var listing []restDiscussion
	path := fmt.Sprintf("/repos/%s/%s/discussions?per_page=%d", owner, repo, listPageSize)
	if err := c.get(ctx, path, &listing); err != nil {
		return nil, fmt.Errorf("listing discussions: %w", err)
	}

	seen := make(map[string]discussioncache.Category)
	for _, d := range listing {
		if d.Category.NodeID == "" {
			continue
		}
		c.rememberCategory(d.Category)
		if _, ok := seen[d.Category.NodeID]; !ok {
			seen[d.Category.NodeID] = mapCategory(d.Category)
		}
	}

	categories := make([]discussioncache.Category, 0, len(seen))
	for _, cat := range seen {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// Threads lists one page of discussions in a category. Filtering happens
// client-side: the listing endpoint cannot filter by the canonical node id,
// so a full page is fetched and narrowed.
func (c *Client) Threads(ctx context.Context, owner, repo, categoryID string, first int, after string) (*discussioncache.ThreadPage, error) {
	page := pageFromCursor(after)

	var listing []restDiscussion
	path := fmt.Sprintf("/repos/%s/%s/discussions?per_page=%d&page=%d", owner, repo, listPageSize, page)
	if err := c.get(ctx, path, &listing); err != nil {
		return nil, fmt.Errorf("listing discussions: %w", err)
	}

	nodes := make([]discussioncache.ThreadSummary, 0, first)
	for _, d := range listing {
		c.rememberCategory(d.Category)
		if categoryID != "" && d.Category.NodeID != categoryID {
			continue
		}
		nodes = append(nodes, mapSummary(d))
		if len(nodes) == first {
			break
		}
	}

	return &discussioncache.ThreadPage{
		PageInfo: discussioncache.PageInfo{
			HasNextPage: len(listing) == listPageSize,
			EndCursor:   strconv.Itoa(page + 1),
		},
		Nodes: nodes,
	}, nil
}

// Thread fetches a single discussion and its comments. A failed comment
// fetch degrades to an empty comment list rather than failing the read.
func (c *Client) Thread(ctx context.Context, owner, repo string, number int) (*discussioncache.ThreadDetail, error) {
	var d restDiscussion
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/discussions/%d", owner, repo, number), &d); err != nil {
		return nil, fmt.Errorf("fetching discussion %d: %w", number, err)
	}
	c.rememberCategory(d.Category)

	detail := mapDetail(d)

	var comments []restComment
	commentsPath := fmt.Sprintf("/repos/%s/%s/discussions/%d/comments?per_page=%d", owner, repo, number, listPageSize)
	if err := c.get(ctx, commentsPath, &comments); err != nil {
		c.logger.Warn("comment fetch failed, returning thread without comments",
			"number", number,
			"error", err,
		)
		return detail, nil
	}

	detail.Comments = nestComments(comments)
	return detail, nil
}

// RepoID fetches the repository's node id, the identifier the GraphQL
// mutations require.
func (c *Client) RepoID(ctx context.Context, owner, repo string) (string, error) {
	var repoPayload struct {
		NodeID string `json:"node_id"`
	}
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &repoPayload); err != nil {
		return "", fmt.Errorf("fetching repository: %w", err)
	}
	return repoPayload.NodeID, nil
}

// rememberCategory records the node id -> numeric id mapping.
func (c *Client) rememberCategory(cat restCategory) {
	if cat.NodeID == "" {
		return
	}
	c.mu.Lock()
	c.categoryIDs[cat.NodeID] = cat.ID
	c.mu.Unlock()
}

// NumericCategoryID returns the memoized REST id for a canonical category
// node id, if one has been observed.
func (c *Client) NumericCategoryID(nodeID string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.categoryIDs[nodeID]
	return id, ok
}
