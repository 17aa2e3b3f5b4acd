// Package version reports the binary's build identity.
package version

import (
	"fmt"
	"runtime"
)

// Version, Commit, and Date are stamped at build time with
// -ldflags "-X github.com/codescout-dev/codescout/pkg/version.Version=...".
// A plain `go build` reports the zero values below.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// BuildInfo bundles the build identity for structured output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Short returns the bare version number.
func Short() string {
	return Version
}

// String returns a one-line human-readable summary.
func String() string {
	return fmt.Sprintf("codescout %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, runtime.Version())
}

// GetInfo returns the full build identity.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
