// Package forum holds the forum's records and the rules that govern them:
// who may post where, who may delete and restore posts, and what a profile
// reveals to visitors.
package forum

import "time"

// GuestID is the author id recorded for posts written without an account.
const GuestID = -1

// Role is a user's permission level.
type Role string

// Roles known to the backend.
const (
	RoleGuest     Role = "guest"
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// IsStaff reports whether the role moderates content.
func (r Role) IsStaff() bool {
	return r == RoleModerator || r == RoleAdmin
}

// Forum is a top level board.
type Forum struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AnnouncementsForumID is the site news board; only staff open threads there.
const AnnouncementsForumID = 0

// Thread groups posts under a title.
type Thread struct {
	ID        int       `json:"id"`
	ForumID   int       `json:"forumId"`
	Title     string    `json:"title"`
	AuthorID  int       `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Post is a single message in a thread. Content is raw markup.
type Post struct {
	ID             int          `json:"id"`
	ThreadID       int          `json:"threadId"`
	AuthorID       int          `json:"authorId"`
	AuthorUsername string       `json:"authorUsername"`
	CreatedAt      time.Time    `json:"createdAt"`
	Content        string       `json:"content"`
	DeletionLog    *DeletionLog `json:"deletionLog,omitempty"`
}

// Deleted reports whether the post is currently shown as deleted.
func (p Post) Deleted() bool {
	return p.DeletionLog != nil && p.DeletionLog.Deleted
}

// LastDeletion returns the newest deletion entry, if any.
func (p Post) LastDeletion() (DeletionEntry, bool) {
	if p.DeletionLog == nil || len(p.DeletionLog.Log) == 0 {
		return DeletionEntry{}, false
	}
	return p.DeletionLog.Log[0], true
}

// DeletionLog records every deletion of a post, newest first.
type DeletionLog struct {
	Deleted bool            `json:"deleted"`
	Log     []DeletionEntry `json:"log"`
}

// DeletedBy names who removed a post.
type DeletedBy string

const (
	DeletedBySelf      DeletedBy = "self"
	DeletedByModerator DeletedBy = "moderator"
	DeletedByAdmin     DeletedBy = "admin"
)

// DeletionEntry keeps the content a deletion replaced.
type DeletionEntry struct {
	DeletedBy      DeletedBy `json:"deletedBy"`
	DeleterID      int       `json:"deleterId"`
	DeletedContent string    `json:"deletedContent"`
	Reason         *string   `json:"reason"`
	DeletedOn      time.Time `json:"deletedOn"`
}

// User is an account record as stored by the backend.
type User struct {
	ID                 int       `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"passwordHash"`
	Role               Role      `json:"role"`
	CreatedAt          time.Time `json:"createdAt"`
	LastActiveAt       int64     `json:"lastActiveAt"`
	AuthToken          *string   `json:"authToken"`
	AuthTokenExpiresAt *int64    `json:"authTokenExpiresAt"`
	Profile            Profile   `json:"profile"`
}

// Profile is the user-editable part of an account.
type Profile struct {
	DisplayName string   `json:"displayName"`
	Bio         string   `json:"bio"`
	Location    string   `json:"location"`
	Website     string   `json:"website"`
	Interests   []string `json:"interests"`
	Privacy     Privacy  `json:"privacy"`
}

// Privacy controls which profile fields visitors may see.
type Privacy struct {
	PublicProfile   bool `json:"publicProfile"`
	ShowEmail       bool `json:"showEmail"`
	ShowLocation    bool `json:"showLocation"`
	ShowInterests   bool `json:"showInterests"`
	ShowBio         bool `json:"showBio"`
	ShowWebsite     bool `json:"showWebsite"`
	ShowDisplayName bool `json:"showDisplayName"`
}

// DefaultPrivacy is applied to new accounts.
func DefaultPrivacy() Privacy {
	return Privacy{
		PublicProfile: true,
		ShowLocation:  true,
		ShowInterests: true,
	}
}

// Identity is the session's view of whoever is browsing.
type Identity struct {
	ID        int
	Username  string
	Role      Role
	IsGuest   bool
	Email     string
	Profile   Profile
	Token     string
	ExpiresAt time.Time
}

// Guest returns an anonymous identity using name.
func Guest(name string) Identity {
	return Identity{ID: GuestID, Username: name, Role: RoleGuest, IsGuest: true}
}

// IdentityFor builds the identity of a signed-in user.
func IdentityFor(u User, token string, expiresAt time.Time) Identity {
	return Identity{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Email:     u.Email,
		Profile:   u.Profile,
		Token:     token,
		ExpiresAt: expiresAt,
	}
}
