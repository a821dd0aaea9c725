package buildinfo

import (
	"runtime/debug"
	"testing"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	none := func() (*debug.BuildInfo, bool) { return nil, false }
	stamped := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2024-05-01T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		}}, true
	}

	tests := []struct {
		name    string
		version string
		commit  string
		date    string
		read    func() (*debug.BuildInfo, bool)
		want    string
	}{
		{name: "bare", version: "", read: none, want: "dev"},
		{name: "injected", version: "1.2.0", commit: "abc123", date: "2024-01-02", read: none, want: "1.2.0 (abc123 2024-01-02)"},
		{name: "date only", version: "1.2.0", date: "2024-01-02", read: none, want: "1.2.0 (2024-01-02)"},
		{name: "vcs stamp", version: "dev", read: stamped, want: "dev (0123456789ab-dirty 2024-05-01T10:00:00Z)"},
		{name: "injected commit wins", version: "dev", commit: "abc", read: stamped, want: "dev (abc)"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := summarize(tc.version, tc.commit, tc.date, tc.read); got != tc.want {
				t.Fatalf("summarize() = %q, want %q", got, tc.want)
			}
		})
	}
}
