package forum

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const guestLetters = "abcdefghijklmnopqrstuvwxyz"

// GuestName returns a display name for an anonymous visitor: "guest", one
// random letter, then the Unix time in milliseconds.
func GuestName(r *rand.Rand, now time.Time) string {
	var idx int
	if r == nil {
		idx = rand.IntN(len(guestLetters)) //nolint:gosec // display names only
	} else {
		idx = r.IntN(len(guestLetters))
	}
	return "guest" + guestLetters[idx:idx+1] + strconv.FormatInt(now.UnixMilli(), 10)
}

// ValidGuestName reports whether name has the shape GuestName produces.
func ValidGuestName(name string) bool {
	rest, ok := strings.CutPrefix(name, "guest")
	if !ok || len(rest) < 2 || !strings.ContainsRune(guestLetters, rune(rest[0])) {
		return false
	}
	for _, c := range []byte(rest[1:]) {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
