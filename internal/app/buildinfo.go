package app

import "fmt"

// Build information populated via -ldflags at build time.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// VersionString renders the build information for -version output.
func VersionString() string {
	return fmt.Sprintf("rqbconf %s (commit %s, built %s)", BuildVersion, BuildCommit, BuildDate)
}
