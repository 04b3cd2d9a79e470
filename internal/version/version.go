// Package version reports how the livecanvas binary was built. Release
// builds set the variables below with -ldflags; otherwise the values come
// from the VCS stamp the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Set at build time, e.g.
//
//	-ldflags "-X github.com/conneroisu/livecanvas/internal/version.Version=v0.2.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time,omitempty"`
	Dirty     bool      `json:"dirty"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

var vcsSettings = sync.OnceValue(func() map[string]string {
	settings := make(map[string]string)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		settings["main.version"] = info.Main.Version
	}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
})

// Get returns the build information of the running binary.
func Get() Info {
	vcs := vcsSettings()

	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: parseBuildTime(BuildTime),
		Dirty:     vcs["vcs.modified"] == "true",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if info.GitCommit == "" || info.GitCommit == "unknown" {
		if rev, ok := vcs["vcs.revision"]; ok {
			info.GitCommit = rev
		}
	}
	if info.Version == "" || info.Version == "dev" {
		switch {
		case vcs["main.version"] != "":
			info.Version = vcs["main.version"]
		case len(info.GitCommit) >= 7 && info.GitCommit != "unknown":
			info.Version = "dev-" + info.GitCommit[:7]
		default:
			info.Version = "dev"
		}
	}
	if info.BuildTime.IsZero() {
		info.BuildTime = parseBuildTime(vcs["vcs.time"])
	}

	return info
}

// GetShortVersion returns a short version string suitable for display,
// e.g. "v0.2.0 (1a2b3c4)".
func GetShortVersion() string {
	info := Get()
	if strings.HasPrefix(info.Version, "dev") || len(info.GitCommit) < 7 {
		return info.Version
	}
	return fmt.Sprintf("%s (%s)", info.Version, info.GitCommit[:7])
}

// IsRelease reports whether the binary was built from a tagged version.
func IsRelease() bool {
	return !strings.HasPrefix(Get().Version, "dev")
}

// String renders the multi-line form printed by the version command.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "livecanvas %s\n", i.Version)
	if i.GitCommit != "unknown" && i.GitCommit != "" {
		commit := i.GitCommit
		if i.Dirty {
			commit += " (modified)"
		}
		fmt.Fprintf(&b, "  commit:   %s\n", commit)
	}
	if !i.BuildTime.IsZero() {
		fmt.Fprintf(&b, "  built:    %s\n", i.BuildTime.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "  go:       %s\n", i.GoVersion)
	fmt.Fprintf(&b, "  platform: %s", i.Platform)
	return b.String()
}

func parseBuildTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
