// Package version carries build-time version information.
package version

import "fmt"

var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// SetInfo installs build-time values injected via ldflags. Empty values
// leave the defaults in place.
func SetInfo(v, bt, gc string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
}

// String renders the version line shown by the version command.
func String() string {
	return fmt.Sprintf("wakespot %s (built %s, commit %s)", Version, BuildTime, GitCommit)
}
