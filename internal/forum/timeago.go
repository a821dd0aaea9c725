package forum

import (
	"fmt"
	"time"
)

// TimeAgo describes how long before now t happened. Times in the future read
// as "0 seconds ago".
func TimeAgo(t, now time.Time) string {
	diff := max(now.Sub(t).Seconds(), 0)

	switch {
	case diff < 60:
		return fmt.Sprintf("%d seconds ago", int64(diff))
	case diff == 60:
		return "1 minute ago"
	case diff < 3600:
		return fmt.Sprintf("%d minutes ago", int64(diff/60))
	case diff == 3600:
		return "1 hour ago"
	case diff < 86400:
		return fmt.Sprintf("%d hours ago", int64(diff/3600))
	case diff < 172800:
		return "yesterday"
	case diff < 31536000:
		return fmt.Sprintf("%d days ago", int64(diff/86400))
	default:
		return fmt.Sprintf("%d years ago", int64(diff/31536000))
	}
}
