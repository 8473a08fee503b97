package version

import "fmt"

var (
	// Version is the manager's semantic version, overridden via ldflags at release.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full renders the version line the CLI prints, including build provenance.
func Full() string {
	return fmt.Sprintf("factorio-manager %s (commit %s, built %s)", Version, Commit, BuildTime)
}
