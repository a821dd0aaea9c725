package store

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/vaadforum/vaad/internal/forum"
)

// Posts returns a thread's posts, oldest first.
func (c *Client) Posts(ctx context.Context, threadID int) ([]forum.Post, error) {
	q := url.Values{}
	q.Set("threadId", strconv.Itoa(threadID))
	var posts []forum.Post
	if _, err := c.get(ctx, &posts, q, "posts"); err != nil {
		return nil, fmt.Errorf("list posts of thread %d: %w", threadID, err)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	return posts, nil
}

// PostsByAuthor returns posts written by a user, newest first.
func (c *Client) PostsByAuthor(ctx context.Context, authorID int) ([]forum.Post, error) {
	q := url.Values{}
	q.Set("authorId", strconv.Itoa(authorID))
	var posts []forum.Post
	if _, err := c.get(ctx, &posts, q, "posts"); err != nil {
		return nil, fmt.Errorf("list posts by %d: %w", authorID, err)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// Post returns one post.
func (c *Client) Post(ctx context.Context, id int) (forum.Post, error) {
	var p forum.Post
	if _, err := c.get(ctx, &p, nil, "posts", idParam(id)); err != nil {
		return forum.Post{}, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, nil
}

// CreatePost stores a new post and returns it with its id.
func (c *Client) CreatePost(ctx context.Context, p forum.Post) (forum.Post, error) {
	payload := struct {
		ThreadID       int    `json:"threadId"`
		AuthorID       int    `json:"authorId"`
		AuthorUsername string `json:"authorUsername"`
		CreatedAt      string `json:"createdAt"`
		Content        string `json:"content"`
	}{p.ThreadID, p.AuthorID, p.AuthorUsername, isoTime(p.CreatedAt), p.Content}

	var created forum.Post
	if err := c.send(ctx, http.MethodPost, payload, &created, "posts"); err != nil {
		return forum.Post{}, fmt.Errorf("create post: %w", err)
	}
	return created, nil
}

// PostPatch is the part of a post moderation rewrites.
type PostPatch struct {
	Content     string             `json:"content"`
	DeletionLog *forum.DeletionLog `json:"deletionLog"`
}

// PatchPost merges patch into post id and returns the stored post.
func (c *Client) PatchPost(ctx context.Context, id int, patch PostPatch) (forum.Post, error) {
	var updated forum.Post
	if err := c.send(ctx, http.MethodPatch, patch, &updated, "posts", idParam(id)); err != nil {
		return forum.Post{}, fmt.Errorf("patch post %d: %w", id, err)
	}
	return updated, nil
}

// SearchPosts runs the backend's full text search over posts.
func (c *Client) SearchPosts(ctx context.Context, query string) ([]forum.Post, error) {
	q := url.Values{}
	q.Set("q", query)
	var posts []forum.Post
	if _, err := c.get(ctx, &posts, q, "posts"); err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return posts, nil
}

func isoTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
