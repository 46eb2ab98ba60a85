package rest

import (
	discussioncache "github.com/wolfeidau/discussion-cache"
)

// Wire shapes of the REST surface. Field names differ from the canonical
// shapes throughout (snake_case, user instead of author, flat reaction
// counters), so the mapping here is explicit rather than tag-shared.

type restUser struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

type restCategory struct {
	ID          int64  `json:"id"`
	NodeID      string `json:"node_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	Slug        string `json:"slug"`
}

// restReactions carries per-type counters instead of reaction nodes.
type restReactions struct {
	TotalCount int `json:"total_count"`
	PlusOne    int `json:"+1"`
	MinusOne   int `json:"-1"`
	Laugh      int `json:"laugh"`
	Hooray     int `json:"hooray"`
	Confused   int `json:"confused"`
	Heart      int `json:"heart"`
	Rocket     int `json:"rocket"`
	Eyes       int `json:"eyes"`
}

type restDiscussion struct {
	NodeID       string        `json:"node_id"`
	Number       int           `json:"number"`
	Title        string        `json:"title"`
	Body         string        `json:"body"`
	BodyHTML     string        `json:"body_html"`
	CreatedAt    string        `json:"created_at"`
	User         restUser      `json:"user"`
	Category     restCategory  `json:"category"`
	CommentCount int           `json:"comments"`
	Reactions    restReactions `json:"reactions"`
}

type restComment struct {
	ID        int64         `json:"id"`
	NodeID    string        `json:"node_id"`
	ParentID  *int64        `json:"parent_id"`
	Body      string        `json:"body"`
	BodyHTML  string        `json:"body_html"`
	CreatedAt string        `json:"created_at"`
	User      restUser      `json:"user"`
	Reactions restReactions `json:"reactions"`
}

func mapAuthor(u restUser) discussioncache.Author {
	return discussioncache.Author{
		Login:     u.Login,
		AvatarURL: u.AvatarURL,
		URL:       u.HTMLURL,
	}
}

// mapCategory normalizes a REST category. The canonical id is the node id,
// and the emoji shortcode is translated to its glyph; unknown shortcodes
// map to empty rather than leaking raw codes.
func mapCategory(c restCategory) discussioncache.Category {
	return discussioncache.Category{
		ID:          c.NodeID,
		Name:        c.Name,
		Description: c.Description,
		Emoji:       discussioncache.EmojiFromShortcode(c.Emoji),
		Slug:        c.Slug,
	}
}

// expandReactions converts per-type counters into the node-list shape the
// GraphQL path produces: one synthetic node per unit of count, preserving
// the total and the per-type breakdown but not individual identities.
func expandReactions(r restReactions) discussioncache.ReactionGroup {
	counts := []struct {
		content string
		n       int
	}{
		{"THUMBS_UP", r.PlusOne},
		{"THUMBS_DOWN", r.MinusOne},
		{"LAUGH", r.Laugh},
		{"HOORAY", r.Hooray},
		{"CONFUSED", r.Confused},
		{"HEART", r.Heart},
		{"ROCKET", r.Rocket},
		{"EYES", r.Eyes},
	}

	group := discussioncache.ReactionGroup{
		Nodes:      []discussioncache.Reaction{},
		TotalCount: r.TotalCount,
	}
	for _, c := range counts {
		for i := 0; i < c.n; i++ {
			group.Nodes = append(group.Nodes, discussioncache.Reaction{Content: c.content})
		}
	}
	return group
}

func mapSummary(d restDiscussion) discussioncache.ThreadSummary {
	return discussioncache.ThreadSummary{
		ID:        d.NodeID,
		Number:    d.Number,
		Title:     d.Title,
		CreatedAt: d.CreatedAt,
		Author:    mapAuthor(d.User),
		Comments:  discussioncache.Count{TotalCount: d.CommentCount},
		Reactions: discussioncache.Count{TotalCount: d.Reactions.TotalCount},
	}
}

func mapDetail(d restDiscussion) *discussioncache.ThreadDetail {
	return &discussioncache.ThreadDetail{
		ID:        d.NodeID,
		Number:    d.Number,
		Title:     d.Title,
		Body:      d.Body,
		BodyHTML:  d.BodyHTML,
		CreatedAt: d.CreatedAt,
		Author:    mapAuthor(d.User),
		Category: discussioncache.CategoryRef{
			Name: d.Category.Name,
			Slug: d.Category.Slug,
		},
		Reactions: expandReactions(d.Reactions),
		Comments: discussioncache.CommentPage{
			Nodes: []discussioncache.Comment{},
		},
	}
}

// nestComments rebuilds the two-level comment tree from the flat REST
// listing: entries without a parent are top-level, entries with a parent
// attach as replies by numeric id.
func nestComments(flat []restComment) discussioncache.CommentPage {
	byID := make(map[int64]int) // numeric id -> index in nodes
	nodes := []discussioncache.Comment{}

	for _, rc := range flat {
		if rc.ParentID != nil {
			continue
		}
		nodes = append(nodes, discussioncache.Comment{
			ID:        rc.NodeID,
			Body:      rc.Body,
			BodyHTML:  rc.BodyHTML,
			CreatedAt: rc.CreatedAt,
			Author:    mapAuthor(rc.User),
			Reactions: expandReactions(rc.Reactions),
			Replies:   discussioncache.ReplyGroup{Nodes: []discussioncache.Reply{}},
		})
		byID[rc.ID] = len(nodes) - 1
	}

	for _, rc := range flat {
		if rc.ParentID == nil {
			continue
		}
		idx, ok := byID[*rc.ParentID]
		if !ok {
			// Orphaned reply (parent beyond the fetched page); drop it.
			continue
		}
		nodes[idx].Replies.Nodes = append(nodes[idx].Replies.Nodes, discussioncache.Reply{
			ID:        rc.NodeID,
			Body:      rc.Body,
			BodyHTML:  rc.BodyHTML,
			CreatedAt: rc.CreatedAt,
			Author:    mapAuthor(rc.User),
		})
	}

	return discussioncache.CommentPage{
		TotalCount: len(flat),
		PageInfo:   discussioncache.PageInfo{},
		Nodes:      nodes,
	}
}
