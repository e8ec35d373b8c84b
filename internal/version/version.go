// Package version carries build metadata for the welfaredesk binary.
// Values are set with -ldflags at release time.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the one-line string printed by `welfaredesk version`.
func Info() string {
	return fmt.Sprintf("WelfareDesk %s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildDate, runtime.Version())
}

// Short returns the bare version, e.g. "0.3.0" or "dev".
func Short() string {
	return Version
}

// Map is the JSON form served by the health endpoint.
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
