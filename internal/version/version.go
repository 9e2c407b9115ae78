// Package version carries build metadata injected with -ldflags.
package version

import "runtime"

const Name = "hark"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the full banner printed by `hark version`.
func String() string {
	return Name + " " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies hark to remote services.
func UserAgent() string {
	return Name + "/" + Version
}
