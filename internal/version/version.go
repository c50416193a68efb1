// Package version carries build metadata injected via ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/HerbHall/telerelay/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the line printed by "telerelay version".
func Info() string {
	return fmt.Sprintf("telerelay %s (commit: %s, built: %s, go: %s, %s/%s)",
		Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns the bare version, e.g. "0.2.0" or "dev".
func Short() string {
	return Version
}

// Map returns build metadata for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}
