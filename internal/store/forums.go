package store

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/vaadforum/vaad/internal/forum"
)

// ForumPage is one page of the forum index.
type ForumPage struct {
	Forums []forum.Forum
	Page   int
	Pages  int
	Total  int
}

// Forums returns page (1-based) of the forum index.
func (c *Client) Forums(ctx context.Context, page int) (ForumPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("_page", strconv.Itoa(page))
	q.Set("_limit", strconv.Itoa(c.pageSize))

	var forums []forum.Forum
	header, err := c.get(ctx, &forums, q, "forum")
	if err != nil {
		return ForumPage{}, fmt.Errorf("list forums: %w", err)
	}

	total := len(forums)
	if v := header.Get("X-Total-Count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			total = n
		}
	}
	pages := (total + c.pageSize - 1) / c.pageSize
	if pages == 0 {
		pages = 1
	}
	return ForumPage{Forums: forums, Page: page, Pages: pages, Total: total}, nil
}

// Forum returns one forum.
func (c *Client) Forum(ctx context.Context, id int) (forum.Forum, error) {
	var f forum.Forum
	if _, err := c.get(ctx, &f, nil, "forum", idParam(id)); err != nil {
		return forum.Forum{}, fmt.Errorf("get forum %d: %w", id, err)
	}
	return f, nil
}

// Threads returns the threads of a forum, newest first.
func (c *Client) Threads(ctx context.Context, forumID int) ([]forum.Thread, error) {
	q := url.Values{}
	q.Set("forumId", strconv.Itoa(forumID))
	var threads []forum.Thread
	if _, err := c.get(ctx, &threads, q, "thread"); err != nil {
		return nil, fmt.Errorf("list threads of forum %d: %w", forumID, err)
	}
	sortThreads(threads)
	return threads, nil
}

// Thread returns one thread.
func (c *Client) Thread(ctx context.Context, id int) (forum.Thread, error) {
	var t forum.Thread
	if _, err := c.get(ctx, &t, nil, "thread", idParam(id)); err != nil {
		return forum.Thread{}, fmt.Errorf("get thread %d: %w", id, err)
	}
	return t, nil
}

// ThreadsByAuthor returns threads opened by a user, newest first.
func (c *Client) ThreadsByAuthor(ctx context.Context, authorID int) ([]forum.Thread, error) {
	q := url.Values{}
	q.Set("authorId", strconv.Itoa(authorID))
	var threads []forum.Thread
	if _, err := c.get(ctx, &threads, q, "thread"); err != nil {
		return nil, fmt.Errorf("list threads by %d: %w", authorID, err)
	}
	sortThreads(threads)
	return threads, nil
}

// ThreadsByIDs returns the threads whose ids are listed.
func (c *Client) ThreadsByIDs(ctx context.Context, ids []int) ([]forum.Thread, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var threads []forum.Thread
	if _, err := c.get(ctx, &threads, likeQuery(ids), "thread"); err != nil {
		return nil, fmt.Errorf("list threads by id: %w", err)
	}
	want := idSet(ids)
	out := threads[:0]
	for _, t := range threads {
		if _, ok := want[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateThread stores a new thread and returns it with its id.
func (c *Client) CreateThread(ctx context.Context, t forum.Thread) (forum.Thread, error) {
	payload := struct {
		ForumID   int    `json:"forumId"`
		Title     string `json:"title"`
		AuthorID  int    `json:"authorId"`
		CreatedAt string `json:"createdAt"`
	}{t.ForumID, t.Title, t.AuthorID, isoTime(t.CreatedAt)}

	var created forum.Thread
	if err := c.send(ctx, http.MethodPost, payload, &created, "thread"); err != nil {
		return forum.Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return created, nil
}

func sortThreads(threads []forum.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].CreatedAt.After(threads[j].CreatedAt)
	})
}
