// Package session tracks who is browsing: a guest with a generated name or a
// signed-in user identified by a bearer token stored on the user record.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaadforum/vaad/internal/forum"
	"github.com/vaadforum/vaad/internal/store"
)

// Cookie names.
const (
	TokenCookie = "vaad_token"
	GuestCookie = "vaad_guest"
)

const (
	shortSession = 2 * time.Hour
	longSession  = 7 * 24 * time.Hour
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrEmailTaken       = errors.New("email already registered")
	ErrMissingFields    = errors.New("all fields are required")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Backend is the part of the store sessions need.
type Backend interface {
	UserByID(ctx context.Context, id int) (forum.User, error)
	UserByUsername(ctx context.Context, username string) (forum.User, error)
	UserByEmail(ctx context.Context, email string) (forum.User, error)
	UserByToken(ctx context.Context, token string) (forum.User, error)
	CreateUser(ctx context.Context, u forum.User) (forum.User, error)
	PatchUser(ctx context.Context, id int, patch store.UserPatch) (forum.User, error)
}

// Options configures a Manager.
type Options struct {
	// SecureCookies marks cookies Secure; enable behind TLS.
	SecureCookies bool
	// Now overrides the clock in tests.
	Now func() time.Time
	// Rand picks guest name letters. Nil uses the global source.
	Rand *rand.Rand
}

// Manager issues and restores sessions.
type Manager struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
	rand    *rand.Rand
	secure  bool
}

// NewManager returns a session manager backed by backend.
func NewManager(backend Backend, logger *slog.Logger, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		backend: backend,
		logger:  logger.With("component", "session"),
		now:     now,
		rand:    opts.Rand,
		secure:  opts.SecureCookies,
	}
}

// Current returns the identity of the request's sender. Unknown or expired
// tokens fall back to a guest; a guest name is issued once and kept in a cookie.
func (m *Manager) Current(w http.ResponseWriter, r *http.Request) forum.Identity {
	ctx := r.Context()
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		id, err := m.restore(ctx, c.Value)
		if err == nil {
			return id
		}
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, ErrNotAuthenticated) {
			m.logger.WarnContext(ctx, "restore session failed", slog.Any("err", err))
		}
		m.clearCookie(w, TokenCookie)
	}
	return forum.Guest(m.guestName(w, r))
}

func (m *Manager) restore(ctx context.Context, token string) (forum.Identity, error) {
	u, err := m.backend.UserByToken(ctx, token)
	if err != nil {
		return forum.Identity{}, err
	}
	if u.AuthTokenExpiresAt == nil {
		return forum.Identity{}, ErrNotAuthenticated
	}
	expires := time.UnixMilli(*u.AuthTokenExpiresAt)
	if m.now().After(expires) {
		return forum.Identity{}, ErrNotAuthenticated
	}
	return forum.IdentityFor(u, token, expires), nil
}

func (m *Manager) guestName(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(GuestCookie); err == nil && forum.ValidGuestName(c.Value) {
		return c.Value
	}
	name := forum.GuestName(m.rand, m.now())
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookie,
		Value:    name,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return name
}

// Login checks credentials, stores a fresh token on the user record and sets
// the session cookie. remember extends the session from two hours to a week.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, username, password string, remember bool) (forum.Identity, error) {
	u, err := m.backend.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return forum.Identity{}, ErrUserNotFound
		}
		return forum.Identity{}, fmt.Errorf("login: %w", err)
	}
	if !forum.CheckPassword(u.PasswordHash, password) {
		return forum.Identity{}, ErrInvalidPassword
	}

	ttl := shortSession
	if remember {
		ttl = longSession
	}
	now := m.now()
	token := uuid.NewString()
	expires := now.Add(ttl)
	expiresMs := expires.UnixMilli()
	lastActive := now.UnixMilli()

	u, err = m.backend.PatchUser(ctx, u.ID, store.UserPatch{
		AuthToken:          &token,
		AuthTokenExpiresAt: &expiresMs,
		LastActiveAt:       &lastActive,
	})
	if err != nil {
		return forum.Identity{}, fmt.Errorf("store session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	m.logger.InfoContext(ctx, "user signed in", slog.String("username", u.Username), slog.Bool("remember", remember))
	return forum.IdentityFor(u, token, time.UnixMilli(expiresMs)), nil
}

// SignupRequest is the signup form.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// Signup creates an account with role user and default privacy, then signs it in.
func (m *Manager) Signup(ctx context.Context, w http.ResponseWriter, req SignupRequest) (forum.Identity, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return forum.Identity{}, ErrMissingFields
	}

	if _, err := m.backend.UserByUsername(ctx, username); err == nil {
		return forum.Identity{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return forum.Identity{}, fmt.Errorf("check username: %w", err)
	}
	if _, err := m.backend.UserByEmail(ctx, email); err == nil {
		return forum.Identity{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return forum.Identity{}, fmt.Errorf("check email: %w", err)
	}

	now := m.now()
	_, err := m.backend.CreateUser(ctx, forum.User{
		Username:     username,
		Email:        email,
		PasswordHash: forum.HashPassword(req.Password),
		Role:         forum.RoleUser,
		CreatedAt:    now,
		LastActiveAt: now.UnixMilli(),
		Profile: forum.Profile{
			Interests: []string{},
			Privacy:   forum.DefaultPrivacy(),
		},
	})
	if err != nil {
		return forum.Identity{}, fmt.Errorf("create user: %w", err)
	}
	m.logger.InfoContext(ctx, "user signed up", slog.String("username", username))

	return m.Login(ctx, w, username, req.Password, req.Remember)
}

// Logout revokes the token on the user record and clears the cookie.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, id forum.Identity) error {
	m.clearCookie(w, TokenCookie)
	if id.IsGuest || id.ID == forum.GuestID {
		return nil
	}
	if _, err := m.backend.PatchUser(ctx, id.ID, store.UserPatch{ClearToken: true}); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// ResetPassword replaces the password after checking the old one. Every
// session of the user ends, including the current one.
func (m *Manager) ResetPassword(ctx context.Context, w http.ResponseWriter, id forum.Identity, oldPassword, newPassword string) error {
	if id.IsGuest || id.ID == forum.GuestID {
		return ErrNotAuthenticated
	}
	if newPassword == "" {
		return ErrMissingFields
	}
	u, err := m.backend.UserByID(ctx, id.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !forum.CheckPassword(u.PasswordHash, oldPassword) {
		return ErrInvalidPassword
	}

	hash := forum.HashPassword(newPassword)
	if _, err := m.backend.PatchUser(ctx, id.ID, store.UserPatch{PasswordHash: &hash, ClearToken: true}); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	m.clearCookie(w, TokenCookie)
	return nil
}

// UpdateProfile merges update into the user's profile and stores it.
func (m *Manager) UpdateProfile(ctx context.Context, id forum.Identity, update forum.ProfileUpdate) (forum.Profile, error) {
	if id.IsGuest || id.ID == forum.GuestID {
		return forum.Profile{}, ErrNotAuthenticated
	}
	u, err := m.backend.UserByID(ctx, id.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return forum.Profile{}, ErrUserNotFound
		}
		return forum.Profile{}, fmt.Errorf("load user: %w", err)
	}

	merged := forum.MergeProfile(u.Profile, update)
	updated, err := m.backend.PatchUser(ctx, id.ID, store.UserPatch{Profile: &merged})
	if err != nil {
		return forum.Profile{}, fmt.Errorf("store profile: %w", err)
	}
	return updated.Profile, nil
}

func (m *Manager) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
