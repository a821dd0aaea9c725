package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vaadforum/vaad/internal/events"
	"github.com/vaadforum/vaad/internal/forum"
	"github.com/vaadforum/vaad/internal/session"
	"github.com/vaadforum/vaad/internal/store"
)

const (
	maxSuggestions   = 8
	maxSearchResults = 50
	maxContentLength = 20000
	maxTitleLength   = 200
)

type renderRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(req.Content) > maxContentLength {
		s.respondError(w, r, invalid("post is too long"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"html": string(s.renderer.RenderPost(r.Context(), req.Content)),
	})
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	if s.pages == nil {
		respondJSON(w, http.StatusOK, map[string]any{"pages": []any{}})
		return
	}
	list, err := s.pages.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list pages failed", slog.Any("err", err))
		respondJSON(w, http.StatusInternalServerError, errorResponse("failed to list pages"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"pages": list})
}

type searchResult struct {
	PostID   int    `json:"postId"`
	ThreadID int    `json:"threadId"`
	Author   string `json:"author"`
	HTML     string `json:"html"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.respondError(w, r, invalid("query parameter q is required"))
		return
	}

	posts, err := s.store.SearchPosts(ctx, query)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	results := make([]searchResult, 0, min(len(posts), maxSearchResults))
	for _, p := range posts {
		if p.Deleted() {
			continue
		}
		if len(results) == maxSearchResults {
			break
		}
		results = append(results, searchResult{
			PostID:   p.ID,
			ThreadID: p.ThreadID,
			Author:   p.AuthorUsername,
			HTML:     string(s.renderer.RenderPost(ctx, p.Content)),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleSuggestUsers(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.Usernames(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	prefix := strings.TrimSpace(r.URL.Query().Get("q"))
	suggestions := forum.SuggestMentions(prefix, names, maxSuggestions)
	if suggestions == nil {
		suggestions = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

type createThreadRequest struct {
	ForumID int    `json:"forumId"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessions.Current(w, r)

	var req createThreadRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	switch {
	case title == "":
		s.respondError(w, r, invalid("thread title is required"))
		return
	case len(title) > maxTitleLength:
		s.respondError(w, r, invalid("thread title is too long"))
		return
	case len(content) > maxContentLength:
		s.respondError(w, r, invalid("post is too long"))
		return
	}
	if !forum.CanCreateThread(id, req.ForumID) {
		respondJSON(w, http.StatusForbidden, errorResponse("Only moderators and admins can create announcements. You may reply inside threads."))
		return
	}
	if _, err := s.store.Forum(ctx, req.ForumID); err != nil {
		s.respondError(w, r, err)
		return
	}

	now := s.now()
	thread, err := s.store.CreateThread(ctx, forum.Thread{
		ForumID:   req.ForumID,
		Title:     title,
		AuthorID:  id.ID,
		CreatedAt: now,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.publish(events.Event{Type: events.TypeThreadCreated, ThreadID: thread.ID})

	resp := map[string]any{"thread": thread}
	if content != "" {
		post, err := s.store.CreatePost(ctx, forum.Post{
			ThreadID:       thread.ID,
			AuthorID:       id.ID,
			AuthorUsername: id.Username,
			CreatedAt:      now,
			Content:        content,
		})
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		s.publish(events.Event{Type: events.TypePostCreated, ThreadID: thread.ID, PostID: post.ID})
		resp["post"] = post
	}
	respondJSON(w, http.StatusCreated, resp)
}

type createPostRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessions.Current(w, r)

	threadID, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req createPostRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		s.respondError(w, r, invalid("Post cannot be empty."))
		return
	}
	if len(content) > maxContentLength {
		s.respondError(w, r, invalid("post is too long"))
		return
	}
	if _, err := s.store.Thread(ctx, threadID); err != nil {
		s.respondError(w, r, err)
		return
	}

	post, err := s.store.CreatePost(ctx, forum.Post{
		ThreadID:       threadID,
		AuthorID:       id.ID,
		AuthorUsername: id.Username,
		CreatedAt:      s.now(),
		Content:        content,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.publish(events.Event{Type: events.TypePostCreated, ThreadID: threadID, PostID: post.ID})
	respondJSON(w, http.StatusCreated, map[string]any{
		"post": post,
		"html": string(s.renderer.RenderPost(ctx, post.Content)),
	})
}

type deletePostRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessions.Current(w, r)

	postID, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req deletePostRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	post, err := s.store.Post(ctx, postID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	deleted, err := forum.DeletePost(post, id, req.Reason, s.now())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	stored, err := s.store.PatchPost(ctx, postID, store.PostPatch{Content: deleted.Content, DeletionLog: deleted.DeletionLog})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.InfoContext(ctx, "post deleted",
		slog.Int("post", postID),
		slog.String("by", id.Username),
		slog.String("as", string(deleted.DeletionLog.Log[0].DeletedBy)),
	)
	s.publish(events.Event{Type: events.TypePostDeleted, ThreadID: stored.ThreadID, PostID: postID})
	respondJSON(w, http.StatusOK, map[string]any{"post": stored})
}

func (s *Server) handleUndoDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessions.Current(w, r)

	postID, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	post, err := s.store.Post(ctx, postID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	restored, err := forum.UndoDelete(post, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	stored, err := s.store.PatchPost(ctx, postID, store.PostPatch{Content: restored.Content, DeletionLog: restored.DeletionLog})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.publish(events.Event{Type: events.TypePostRestored, ThreadID: stored.ThreadID, PostID: postID})
	respondJSON(w, http.StatusOK, map[string]any{
		"post": stored,
		"html": string(s.renderer.RenderPost(ctx, stored.Content)),
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type identityResponse struct {
	ID       int        `json:"id"`
	Username string     `json:"username"`
	Role     forum.Role `json:"role"`
}

func toIdentityResponse(id forum.Identity) identityResponse {
	return identityResponse{ID: id.ID, Username: id.Username, Role: id.Role}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := s.sessions.Login(r.Context(), w, req.Username, req.Password, req.Remember)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponse(id))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req session.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := s.sessions.Signup(r.Context(), w, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toIdentityResponse(id))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Current(w, r)
	if err := s.sessions.Logout(r.Context(), w, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Current(w, r)
	var update forum.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		s.respondError(w, r, err)
		return
	}
	profile, err := s.sessions.UpdateProfile(r.Context(), id, update)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

type passwordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Current(w, r)
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	err := s.sessions.ResetPassword(r.Context(), w, id, req.OldPassword, req.NewPassword)
	if errors.Is(err, session.ErrInvalidPassword) {
		respondJSON(w, http.StatusBadRequest, errorResponse("Old password is incorrect."))
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
