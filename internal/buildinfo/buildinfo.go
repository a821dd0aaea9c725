// Package buildinfo reports the version of the running binary.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// Set through -ldflags "-X github.com/vaadforum/vaad/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Summary returns "version (commit date)". When no commit was injected the
// VCS stamp recorded by the Go toolchain is used instead.
func Summary() string {
	return summarize(Version, Commit, Date, readBuildInfo)
}

func summarize(version, commit, date string, read func() (*debug.BuildInfo, bool)) string {
	if version == "" {
		version = "dev"
	}
	if commit == "" {
		commit, date = vcsStamp(read, date)
	}

	var details []string
	if commit != "" {
		details = append(details, commit)
	}
	if date != "" {
		details = append(details, date)
	}
	if len(details) == 0 {
		return version
	}
	return version + " (" + strings.Join(details, " ") + ")"
}

func vcsStamp(read func() (*debug.BuildInfo, bool), date string) (string, string) {
	info, ok := read()
	if !ok || info == nil {
		return "", date
	}
	var revision string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			if date == "" {
				date = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if revision != "" && dirty {
		revision += "-dirty"
	}
	return revision, date
}

var readBuildInfo = debug.ReadBuildInfo
