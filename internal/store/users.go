package store

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/vaadforum/vaad/internal/forum"
)

// Users returns the users whose ids are listed, keyed by id.
func (c *Client) Users(ctx context.Context, ids []int) (map[int]forum.User, error) {
	out := make(map[int]forum.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []forum.User
	if _, err := c.get(ctx, &users, likeQuery(ids), "user"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	want := idSet(ids)
	for _, u := range users {
		if _, ok := want[u.ID]; ok {
			out[u.ID] = u
		}
	}
	return out, nil
}

// UserByID returns one user.
func (c *Client) UserByID(ctx context.Context, id int) (forum.User, error) {
	var u forum.User
	if _, err := c.get(ctx, &u, nil, "user", idParam(id)); err != nil {
		return forum.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// UserByUsername looks a user up by exact username.
func (c *Client) UserByUsername(ctx context.Context, username string) (forum.User, error) {
	return c.userBy(ctx, "username", username)
}

// UserByEmail looks a user up by exact email.
func (c *Client) UserByEmail(ctx context.Context, email string) (forum.User, error) {
	return c.userBy(ctx, "email", email)
}

// UserByToken looks a user up by session token.
func (c *Client) UserByToken(ctx context.Context, token string) (forum.User, error) {
	return c.userBy(ctx, "authToken", token)
}

func (c *Client) userBy(ctx context.Context, field, value string) (forum.User, error) {
	if value == "" {
		return forum.User{}, fmt.Errorf("find user by %s: %w", field, ErrNotFound)
	}
	q := url.Values{}
	q.Set(field, value)
	var users []forum.User
	if _, err := c.get(ctx, &users, q, "user"); err != nil {
		return forum.User{}, fmt.Errorf("find user by %s: %w", field, err)
	}
	if len(users) == 0 {
		return forum.User{}, fmt.Errorf("find user by %s: %w", field, ErrNotFound)
	}
	return users[0], nil
}

// CreateUser stores a new account and returns it with its id.
func (c *Client) CreateUser(ctx context.Context, u forum.User) (forum.User, error) {
	payload := struct {
		Username           string        `json:"username"`
		Email              string        `json:"email"`
		PasswordHash       string        `json:"passwordHash"`
		Role               forum.Role    `json:"role"`
		CreatedAt          string        `json:"createdAt"`
		LastActiveAt       int64         `json:"lastActiveAt"`
		AuthToken          *string       `json:"authToken"`
		AuthTokenExpiresAt *int64        `json:"authTokenExpiresAt"`
		Profile            forum.Profile `json:"profile"`
	}{u.Username, u.Email, u.PasswordHash, u.Role, isoTime(u.CreatedAt), u.LastActiveAt, u.AuthToken, u.AuthTokenExpiresAt, u.Profile}

	var created forum.User
	if err := c.send(ctx, http.MethodPost, payload, &created, "user"); err != nil {
		return forum.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// UserPatch lists the user fields that may be rewritten. Nil pointers are
// left out of the request; ClearToken sends explicit nulls for the token.
type UserPatch struct {
	PasswordHash       *string
	AuthToken          *string
	AuthTokenExpiresAt *int64
	ClearToken         bool
	LastActiveAt       *int64
	Profile            *forum.Profile
}

func (p UserPatch) body() map[string]any {
	body := map[string]any{}
	if p.PasswordHash != nil {
		body["passwordHash"] = *p.PasswordHash
	}
	if p.ClearToken {
		body["authToken"] = nil
		body["authTokenExpiresAt"] = nil
	} else {
		if p.AuthToken != nil {
			body["authToken"] = *p.AuthToken
		}
		if p.AuthTokenExpiresAt != nil {
			body["authTokenExpiresAt"] = *p.AuthTokenExpiresAt
		}
	}
	if p.LastActiveAt != nil {
		body["lastActiveAt"] = *p.LastActiveAt
	}
	if p.Profile != nil {
		body["profile"] = *p.Profile
	}
	return body
}

// PatchUser merges patch into user id and returns the stored user.
func (c *Client) PatchUser(ctx context.Context, id int, patch UserPatch) (forum.User, error) {
	var updated forum.User
	if err := c.send(ctx, http.MethodPatch, patch.body(), &updated, "user", idParam(id)); err != nil {
		return forum.User{}, fmt.Errorf("patch user %d: %w", id, err)
	}
	return updated, nil
}

// Usernames lists every username, sorted.
func (c *Client) Usernames(ctx context.Context) ([]string, error) {
	var users []forum.User
	if _, err := c.get(ctx, &users, nil, "user"); err != nil {
		return nil, fmt.Errorf("list usernames: %w", err)
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	sort.Strings(names)
	return names, nil
}
