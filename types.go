// Package discussioncache defines the canonical result shapes shared by the
// GraphQL and REST data paths, and the closed error set consumed by callers.
//
// Both upstream adapters normalize into these structs before anything is
// cached or returned, so the presentation layer never sees backend-specific
// field names, cursors, or reaction encodings.
package discussioncache

// PageInfo is a cursor-based pagination marker. On the GraphQL path the
// cursor is opaque; on the REST fallback path it is a stringified page
// number (distinguishable by a pure-digit test).
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// Author identifies the user who created a thread, comment, or reply.
type Author struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatarUrl"`
	URL       string `json:"url"`
}

// Category is a discussion category within the configured repository.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	Slug        string `json:"slug"`
}

// Reaction is a single reaction node. Content uses the GraphQL enum
// spelling (THUMBS_UP, HEART, ...) regardless of which backend produced it.
type Reaction struct {
	Content string `json:"content"`
}

// ReactionGroup is the canonical reaction payload. The REST fallback
// expands per-type counters into one synthetic node per unit of count,
// preserving the total and the per-type breakdown but not identities.
type ReactionGroup struct {
	Nodes      []Reaction `json:"nodes"`
	TotalCount int        `json:"totalCount"`
}

// Count holds a bare total, used where only an aggregate is fetched.
type Count struct {
	TotalCount int `json:"totalCount"`
}

// ThreadSummary is a single discussion as it appears in listings.
type ThreadSummary struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	Author    Author `json:"author"`
	Comments  Count  `json:"comments"`
	Reactions Count  `json:"reactions"`
	// Category is populated by search results only.
	Category *CategoryRef `json:"category,omitempty"`
}

// CategoryRef is the abbreviated category reference carried on threads.
type CategoryRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ThreadPage is one page of thread summaries.
type ThreadPage struct {
	PageInfo PageInfo        `json:"pageInfo"`
	Nodes    []ThreadSummary `json:"nodes"`
}

// Reply is a nested reply to a comment.
type Reply struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	BodyHTML  string `json:"bodyHTML"`
	CreatedAt string `json:"createdAt"`
	Author    Author `json:"author"`
}

// ReplyGroup holds the replies nested under a comment.
type ReplyGroup struct {
	Nodes []Reply `json:"nodes"`
}

// Comment is a top-level comment on a thread.
type Comment struct {
	ID        string        `json:"id"`
	Body      string        `json:"body"`
	BodyHTML  string        `json:"bodyHTML"`
	CreatedAt string        `json:"createdAt"`
	Author    Author        `json:"author"`
	Reactions ReactionGroup `json:"reactions"`
	Replies   ReplyGroup    `json:"replies"`
}

// CommentPage is the comment listing attached to a thread detail.
type CommentPage struct {
	TotalCount int       `json:"totalCount"`
	PageInfo   PageInfo  `json:"pageInfo"`
	Nodes      []Comment `json:"nodes"`
}

// ThreadDetail is a full discussion including body and comments.
type ThreadDetail struct {
	ID        string        `json:"id"`
	Number    int           `json:"number"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	BodyHTML  string        `json:"bodyHTML"`
	CreatedAt string        `json:"createdAt"`
	Author    Author        `json:"author"`
	Category  CategoryRef   `json:"category"`
	Reactions ReactionGroup `json:"reactions"`
	Comments  CommentPage   `json:"comments"`
}

// SearchPage is one page of search results.
type SearchPage struct {
	DiscussionCount int             `json:"discussionCount"`
	PageInfo        PageInfo        `json:"pageInfo"`
	Nodes           []ThreadSummary `json:"nodes"`
}

// NewThread is the result of creating a discussion.
type NewThread struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// NewComment is the result of adding a comment.
type NewComment struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}
