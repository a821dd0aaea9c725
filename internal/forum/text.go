package forum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"

	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
)

// ReplyPrefix is the reply reference the reply button prepends to a draft.
func ReplyPrefix(username string, postID int) string {
	return ">>>" + username + "[post:" + strconv.Itoa(postID) + "]\n"
}

// Truncate shortens s to at most width terminal cells, marking the cut with
// an ellipsis. Wide runes count double.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// SuggestMentions ranks usernames against a partially typed mention.
// An empty prefix returns the first n names in their given order.
func SuggestMentions(prefix string, usernames []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if prefix == "" {
		if len(usernames) > n {
			return append([]string(nil), usernames[:n]...)
		}
		return append([]string(nil), usernames...)
	}

	matches := fuzzy.Find(prefix, usernames)
	out := make([]string, 0, min(n, len(matches)))
	for _, m := range matches {
		if len(out) == n {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// HashPassword returns the lowercase hex SHA-256 digest stored on user records.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashPassword(password)), []byte(hash)) == 1
}
