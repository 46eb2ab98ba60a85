package gql

import (
	"context"
	"fmt"

	discussioncache "github.com/wolfeidau/discussion-cache"
)

// The wire field names of the Discussions GraphQL schema are the canonical
// field names, so query results decode directly into the canonical structs.
// The REST fallback carries the explicit mapping for its divergent shape.

const categoriesQuery = `query($owner: String!, $repo: String!) {
	repository(owner: $owner, name: $repo) {
		discussionCategories(first: 20) {
			nodes { id name description emoji slug }
		}
	}
}`

// Categories fetches the discussion categories of a repository.
func (c *Client) Categories(ctx context.Context, token, owner, repo string) ([]discussioncache.Category, error) {
	var result struct {
		Repository struct {
			DiscussionCategories struct {
				Nodes []discussioncache.Category `json:"nodes"`
			} `json:"discussionCategories"`
		} `json:"repository"`
	}

	vars := map[string]any{"owner": owner, "repo": repo}
	if err := c.Do(ctx, token, categoriesQuery, vars, &result); err != nil {
		return nil, fmt.Errorf("fetching categories: %w", err)
	}
	return result.Repository.DiscussionCategories.Nodes, nil
}

const threadsQuery = `query($owner: String!, $repo: String!, $categoryId: ID!, $first: Int!, $after: String, $orderBy: DiscussionOrderField!) {
	repository(owner: $owner, name: $repo) {
		discussions(first: $first, categoryId: $categoryId, after: $after, orderBy: { field: $orderBy, direction: DESC }) {
			pageInfo { hasNextPage endCursor }
			nodes {
				id number title createdAt
				author { login avatarUrl url }
				comments { totalCount }
				reactions { totalCount }
			}
		}
	}
}`

// Threads fetches one page of discussions in a category.
func (c *Client) Threads(ctx context.Context, token, owner, repo, categoryID string, first int, after, orderBy string) (*discussioncache.ThreadPage, error) {
	var result struct {
		Repository struct {
			Discussions discussioncache.ThreadPage `json:"discussions"`
		} `json:"repository"`
	}

	vars := map[string]any{
		"owner":      owner,
		"repo":       repo,
		"categoryId": categoryID,
		"first":      first,
		"orderBy":    orderBy,
	}
	if after != "" {
		vars["after"] = after
	}
	if err := c.Do(ctx, token, threadsQuery, vars, &result); err != nil {
		return nil, fmt.Errorf("fetching threads: %w", err)
	}
	return &result.Repository.Discussions, nil
}

const threadQuery = `query($owner: String!, $repo: String!, $number: Int!) {
	repository(owner: $owner, name: $repo) {
		discussion(number: $number) {
			id number title body bodyHTML createdAt
			author { login avatarUrl url }
			category { name slug }
			reactions(first: 10) { nodes { content } totalCount }
			comments(first: 50) {
				totalCount
				pageInfo { hasNextPage endCursor }
				nodes {
					id body bodyHTML createdAt
					author { login avatarUrl url }
					reactions(first: 10) { nodes { content } totalCount }
					replies(first: 20) {
						nodes {
							id body bodyHTML createdAt
							author { login avatarUrl url }
						}
					}
				}
			}
		}
	}
}`

// Thread fetches a single discussion with its comments and replies.
func (c *Client) Thread(ctx context.Context, token, owner, repo string, number int) (*discussioncache.ThreadDetail, error) {
	var result struct {
		Repository struct {
			Discussion *discussioncache.ThreadDetail `json:"discussion"`
		} `json:"repository"`
	}

	vars := map[string]any{"owner": owner, "repo": repo, "number": number}
	if err := c.Do(ctx, token, threadQuery, vars, &result); err != nil {
		return nil, fmt.Errorf("fetching thread %d: %w", number, err)
	}
	if result.Repository.Discussion == nil {
		return nil, discussioncache.ErrNotFound
	}
	return result.Repository.Discussion, nil
}

const repoIDQuery = `query($owner: String!, $repo: String!) {
	repository(owner: $owner, name: $repo) { id }
}`

// RepoID fetches the node id of the repository, needed to create threads.
func (c *Client) RepoID(ctx context.Context, token, owner, repo string) (string, error) {
	var result struct {
		Repository struct {
			ID string `json:"id"`
		} `json:"repository"`
	}

	vars := map[string]any{"owner": owner, "repo": repo}
	if err := c.Do(ctx, token, repoIDQuery, vars, &result); err != nil {
		return "", fmt.Errorf("fetching repository id: %w", err)
	}
	return result.Repository.ID, nil
}

const searchQuery = `query($searchQuery: String!, $first: Int!, $after: String) {
	search(query: $searchQuery, type: DISCUSSION, first: $first, after: $after) {
		discussionCount
		pageInfo { hasNextPage endCursor }
		nodes {
			... on Discussion {
				id number title createdAt
				author { login avatarUrl url }
				comments { totalCount }
				reactions { totalCount }
				category { name slug }
			}
		}
	}
}`

// Search runs a discussion search scoped to the repository.
func (c *Client) Search(ctx context.Context, token, owner, repo, query string, first int, after string) (*discussioncache.SearchPage, error) {
	var result struct {
		Search discussioncache.SearchPage `json:"search"`
	}

	vars := map[string]any{
		"searchQuery": fmt.Sprintf("%s repo:%s/%s type:discussion", query, owner, repo),
		"first":       first,
	}
	if after != "" {
		vars["after"] = after
	}
	if err := c.Do(ctx, token, searchQuery, vars, &result); err != nil {
		return nil, fmt.Errorf("searching discussions: %w", err)
	}
	return &result.Search, nil
}

const createDiscussionMutation = `mutation($repoId: ID!, $categoryId: ID!, $title: String!, $body: String!) {
	createDiscussion(input: {
		repositoryId: $repoId
		categoryId: $categoryId
		title: $title
		body: $body
	}) {
		discussion { number title }
	}
}`

// CreateDiscussion opens a new thread on behalf of the token's user.
func (c *Client) CreateDiscussion(ctx context.Context, token, repoID, categoryID, title, body string) (*discussioncache.NewThread, error) {
	var result struct {
		CreateDiscussion struct {
			Discussion discussioncache.NewThread `json:"discussion"`
		} `json:"createDiscussion"`
	}

	vars := map[string]any{
		"repoId":     repoID,
		"categoryId": categoryID,
		"title":      title,
		"body":       body,
	}
	if err := c.Do(ctx, token, createDiscussionMutation, vars, &result); err != nil {
		return nil, fmt.Errorf("creating discussion: %w", err)
	}
	return &result.CreateDiscussion.Discussion, nil
}

const addCommentMutation = `mutation($discussionId: ID!, $body: String!) {
	addDiscussionComment(input: {
		discussionId: $discussionId
		body: $body
	}) {
		comment { id createdAt }
	}
}`

// AddComment adds a comment to a thread on behalf of the token's user.
func (c *Client) AddComment(ctx context.Context, token, discussionID, body string) (*discussioncache.NewComment, error) {
	var result struct {
		AddDiscussionComment struct {
			Comment discussioncache.NewComment `json:"comment"`
		} `json:"addDiscussionComment"`
	}

	vars := map[string]any{"discussionId": discussionID, "body": body}
	if err := c.Do(ctx, token, addCommentMutation, vars, &result); err != nil {
		return nil, fmt.Errorf("adding comment: %w", err)
	}
	return &result.AddDiscussionComment.Comment, nil
}
