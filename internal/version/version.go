// Package version carries build metadata injected with -ldflags.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the full banner printed by `elora version`.
func String() string {
	return "elora " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies elora to remote services.
func UserAgent() string {
	return "elora/" + Version
}
