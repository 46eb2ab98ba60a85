package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	discussioncache "github.com/wolfeidau/discussion-cache"
	"github.com/wolfeidau/discussion-cache/telemetry"
)

// userToken extracts the caller's GitHub token from the Authorization
// header. Reads work without one; writes do not.
func userToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// writeJSON writes v as a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}

// writeCacheable writes a read response with an ETag over the body, replying
// 304 when the client already holds the current representation. The ETag is
// content-derived, so two requests that hit the same cache entry produce the
// same tag.
func (s *Server) writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encoding response failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	tag := discussioncache.ETag(body)
	w.Header().Set("ETag", tag)
	if r.Header.Get("If-None-Match") == tag {
		telemetry.SetCacheResult(r, telemetry.CacheHit)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		s.logger.Error("writing response failed", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, discussioncache.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, discussioncache.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rate limited"})
	case errors.Is(err, discussioncache.ErrNoCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream error"})
	}
}

// handleMeta reports whether the server can read without a user token, so a
// frontend can decide whether to demand sign-in before rendering.
func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "meta")
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"serverCredentials": s.forum.HasServerCredentials(r.Context()),
	})
}

func (s *Server) handleRepo(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "repo")

	id, err := s.forum.FetchRepoID(r.Context(), userToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCacheable(w, r, map[string]string{"id": id})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "categories")

	cats, err := s.forum.FetchCategories(r.Context(), userToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCacheable(w, r, cats)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "category")

	cat, err := s.forum.FetchCategoryBySlug(r.Context(), r.PathValue("slug"), userToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCacheable(w, r, cat)
}

func (s *Server) handleCategoryThreads(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "threads")
	token := userToken(r)

	cat, err := s.forum.FetchCategoryBySlug(r.Context(), r.PathValue("slug"), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	first, _ := strconv.Atoi(q.Get("first"))

	page, err := s.forum.FetchThreadsByCategory(r.Context(), cat.ID, first, q.Get("after"), q.Get("orderBy"), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCacheable(w, r, page)
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "thread")

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid thread number"})
		return
	}

	thread, err := s.forum.FetchThread(r.Context(), number, userToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCacheable(w, r, thread)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "search")

	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter q"})
		return
	}
	first, _ := strconv.Atoi(q.Get("first"))

	page, err := s.forum.SearchDiscussions(r.Context(), query, first, q.Get("after"), userToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCacheable(w, r, page)
}

type createThreadRequest struct {
	CategorySlug string `json:"categorySlug"`
	Title        string `json:"title"`
	Body         string `json:"body"`
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "create_thread")

	token := userToken(r)
	if token == "" {
		s.writeError(w, r, discussioncache.ErrNoCredentials)
		return
	}

	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CategorySlug == "" || req.Title == "" || req.Body == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "categorySlug, title and body are required"})
		return
	}

	cat, err := s.forum.FetchCategoryBySlug(r.Context(), req.CategorySlug, token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	repoID, err := s.forum.FetchRepoID(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	thread, err := s.forum.CreateDiscussion(r.Context(), token, repoID, cat.ID, req.Title, req.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, thread)
}

type addCommentRequest struct {
	DiscussionID string `json:"discussionId"`
	Body         string `json:"body"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "add_comment")

	token := userToken(r)
	if token == "" {
		s.writeError(w, r, discussioncache.ErrNoCredentials)
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.DiscussionID == "" || req.Body == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "discussionId and body are required"})
		return
	}

	comment, err := s.forum.AddComment(r.Context(), token, req.DiscussionID, req.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, comment)
}
