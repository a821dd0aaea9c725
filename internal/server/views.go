package server

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vaadforum/vaad/internal/forum"
	"github.com/vaadforum/vaad/internal/pages"
	"github.com/vaadforum/vaad/internal/renderer"
	"github.com/vaadforum/vaad/internal/session"
)

// titleWidth bounds thread titles in lists, in terminal cells.
const titleWidth = 72

func (s *Server) layout(ctx context.Context, id forum.Identity, title string) layoutData {
	data := layoutData{Title: title, User: id}
	if s.pages != nil {
		list, err := s.pages.List(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "list site pages failed", slog.Any("err", err))
		}
		data.Pages = list
	}
	return data
}

func (s *Server) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.render(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "render template failed", slog.String("template", name), slog.Any("err", err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessions.Current(w, r)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	forums, err := s.store.Forums(ctx, page)
	if err != nil {
		s.failPage(w, r, err)
		return
	}

	data := homeViewData{
		layoutData: s.layout(ctx, id, "Forums"),
		Forums:     forums.Forums,
		Page:       forums.Page,
		PageCount:  forums.Pages,
	}
	if forums.Page > 1 {
		data.PrevPage = forums.Page - 1
	}
	if forums.Page < forums.Pages {
		data.NextPage = forums.Page + 1
	}
	s.renderTemplate(w, r, "home", data)
}

func (s *Server) handleForum(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessions.Current(w, r)

	forumID, err := pathID(r, "id")
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	f, err := s.store.Forum(ctx, forumID)
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	threads, err := s.store.Threads(ctx, forumID)
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	rows, err := s.threadRows(ctx, threads)
	if err != nil {
		s.failPage(w, r, err)
		return
	}

	s.renderTemplate(w, r, "forum", forumViewData{
		layoutData: s.layout(ctx, id, f.Name),
		Forum:      f,
		Threads:    rows,
		CanCreate:  forum.CanCreateThread(id, forumID),
	})
}

func (s *Server) threadRows(ctx context.Context, threads []forum.Thread) ([]threadRow, error) {
	ids := make([]int, 0, len(threads))
	for _, t := range threads {
		ids = append(ids, t.AuthorID)
	}
	users, err := s.store.Users(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rows := make([]threadRow, 0, len(threads))
	for _, t := range threads {
		rows = append(rows, threadRow{
			ID:     t.ID,
			Title:  forum.Truncate(t.Title, titleWidth),
			Author: authorName(users, t.AuthorID, ""),
			Ago:    forum.TimeAgo(t.CreatedAt, now),
		})
	}
	return rows, nil
}

func authorName(users map[int]forum.User, authorID int, fallback string) string {
	if u, ok := users[authorID]; ok {
		return u.Username
	}
	if fallback != "" {
		return fallback
	}
	return "unknown"
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessions.Current(w, r)

	threadID, err := pathID(r, "id")
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	thread, err := s.store.Thread(ctx, threadID)
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	f, err := s.store.Forum(ctx, thread.ForumID)
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	posts, err := s.store.Posts(ctx, threadID)
	if err != nil {
		s.failPage(w, r, err)
		return
	}

	ids := []int{thread.AuthorID}
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
		if last, ok := p.LastDeletion(); ok {
			ids = append(ids, last.DeleterID)
		}
	}
	users, err := s.store.Users(ctx, ids)
	if err != nil {
		s.failPage(w, r, err)
		return
	}

	now := s.now()
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, s.postView(ctx, id, p, users, now))
	}

	s.renderTemplate(w, r, "thread", threadViewData{
		layoutData: s.layout(ctx, id, thread.Title),
		Forum:      f,
		Thread:     thread,
		Author:     authorName(users, thread.AuthorID, ""),
		Ago:        forum.TimeAgo(thread.CreatedAt, now),
		Posts:      views,
	})
}

func (s *Server) postView(ctx context.Context, id forum.Identity, p forum.Post, users map[int]forum.User, now time.Time) postView {
	author := authorName(users, p.AuthorID, p.AuthorUsername)
	v := postView{
		ID:             p.ID,
		Author:         author,
		AuthorIsGuest:  p.AuthorID == forum.GuestID,
		Ago:            forum.TimeAgo(p.CreatedAt, now),
		HTML:           s.renderer.RenderPost(ctx, p.Content),
		Deleted:        p.Deleted(),
		CanDelete:      !p.Deleted() && forum.CanDeletePost(id, p),
		CanUndo:        forum.CanUndo(id, p),
		RequiresReason: forum.RequiresReason(id, author),
		ReplyPrefix:    forum.ReplyPrefix(author, p.ID),
	}
	if u, ok := users[p.AuthorID]; ok {
		v.AuthorRole = u.Role
	}
	if last, ok := p.LastDeletion(); ok && p.Deleted() {
		v.DeletedAgo = forum.TimeAgo(last.DeletedOn, now)
		v.DeletedBy = author
		if last.DeletedBy != forum.DeletedBySelf {
			v.DeletedBy = authorName(users, last.DeleterID, string(last.DeletedBy))
		}
		if last.Reason != nil {
			v.DeleteReason = *last.Reason
		}
	}
	return v
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessions.Current(w, r)

	u, err := s.store.UserByUsername(ctx, r.PathValue("username"))
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	view := forum.ViewProfile(u, id)
	s.renderTemplate(w, r, "profile", profileViewData{
		layoutData: s.layout(ctx, id, u.Username),
		Profile:    view,
		IsOwner:    !id.IsGuest && id.ID == u.ID,
		Privacy:    u.Profile.Privacy,
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessions.Current(w, r)
	if id.IsGuest {
		s.failPage(w, r, session.ErrNotAuthenticated)
		return
	}

	threads, err := s.store.ThreadsByAuthor(ctx, id.ID)
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	posts, err := s.store.PostsByAuthor(ctx, id.ID)
	if err != nil {
		s.failPage(w, r, err)
		return
	}

	threadIDs := make([]int, 0, len(posts))
	for _, p := range posts {
		threadIDs = append(threadIDs, p.ThreadID)
	}
	postThreads, err := s.store.ThreadsByIDs(ctx, threadIDs)
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	titles := make(map[int]string, len(postThreads))
	for _, t := range postThreads {
		titles[t.ID] = t.Title
	}

	now := s.now()
	data := activityViewData{layoutData: s.layout(ctx, id, "My activity")}
	for _, t := range threads {
		data.Threads = append(data.Threads, threadRow{
			ID:     t.ID,
			Title:  forum.Truncate(t.Title, titleWidth),
			Author: id.Username,
			Ago:    forum.TimeAgo(t.CreatedAt, now),
		})
	}
	for _, p := range posts {
		data.Posts = append(data.Posts, activityPost{
			ID:          p.ID,
			ThreadID:    p.ThreadID,
			ThreadTitle: forum.Truncate(titles[p.ThreadID], titleWidth),
			Ago:         forum.TimeAgo(p.CreatedAt, now),
			HTML:        s.renderer.RenderPost(ctx, p.Content),
			Deleted:     p.Deleted(),
		})
	}
	s.renderTemplate(w, r, "activity", data)
}

func (s *Server) handleSitePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessions.Current(w, r)
	if s.pages == nil {
		http.NotFound(w, r)
		return
	}

	name := r.PathValue("name")
	doc, err := s.pages.Page(ctx, name)
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	title := doc.Metadata.Title
	if title == "" {
		title = name
	}
	s.renderTemplate(w, r, "sitepage", sitePageViewData{
		layoutData: s.layout(ctx, id, title),
		Name:       name,
		HTML:       template.HTML(doc.HTML), //nolint:gosec // site pages are operator-authored
		Metadata:   doc.Metadata,
		Modified:   doc.Modified,
	})
}

type layoutData struct {
	Title string
	User  forum.Identity
	Pages []pages.Summary
}

type homeViewData struct {
	layoutData
	Forums    []forum.Forum
	Page      int
	PageCount int
	PrevPage  int
	NextPage  int
}

type forumViewData struct {
	layoutData
	Forum     forum.Forum
	Threads   []threadRow
	CanCreate bool
}

type threadRow struct {
	ID     int
	Title  string
	Author string
	Ago    string
}

type threadViewData struct {
	layoutData
	Forum  forum.Forum
	Thread forum.Thread
	Author string
	Ago    string
	Posts  []postView
}

type postView struct { //nolint:govet // grouped for template readability
	ID             int
	Author         string
	AuthorRole     forum.Role
	AuthorIsGuest  bool
	Ago            string
	HTML           template.HTML
	Deleted        bool
	DeletedBy      string
	DeletedAgo     string
	DeleteReason   string
	CanDelete      bool
	CanUndo        bool
	RequiresReason bool
	ReplyPrefix    string
}

type profileViewData struct {
	layoutData
	Profile forum.PublicView
	Privacy forum.Privacy
	IsOwner bool
}

type activityViewData struct {
	layoutData
	Threads []threadRow
	Posts   []activityPost
}

type activityPost struct {
	ID          int
	ThreadID    int
	ThreadTitle string
	Ago         string
	HTML        template.HTML
	Deleted     bool
}

type sitePageViewData struct {
	layoutData
	Name     string
	HTML     template.HTML
	Metadata renderer.Metadata
	Modified time.Time
}
