// Package version exposes build metadata, populated via -ldflags at release
// time and falling back to module build info for "go install" builds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the release version, set via -ldflags.
	Version = "dev"
	// Commit is the git commit SHA, set via -ldflags.
	Commit = ""
	// BuildTime is the build timestamp, set via -ldflags.
	BuildTime = ""
)

// Short returns just the version number.
func Short() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// Info returns the full version description.
func Info() string {
	out := fmt.Sprintf("circ %s", Short())
	if Commit != "" {
		out += fmt.Sprintf("\ncommit: %s", Commit)
	}
	if BuildTime != "" {
		out += fmt.Sprintf("\nbuilt: %s", BuildTime)
	}
	out += fmt.Sprintf("\ngo: %s", runtime.Version())
	return out
}
