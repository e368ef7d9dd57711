// Package build holds build-time metadata stamped via -ldflags.
package build

var (
	// Version is the release version, overridden at link time.
	Version = "dev"

	// Commit is the git commit hash, overridden at link time.
	Commit = "none"
)
