// Package version exposes the build provenance stamped into the binary.
// Release builds inject the variables below with -ldflags; a plain
// `go build` leaves the defaults, which render as a dev build.
package version

import (
	"fmt"
	"runtime"
)

// Stamped at build time:
//
//	-X github.com/gantry-sh/gantry/version.Version=v1.2.3
//	-X github.com/gantry-sh/gantry/version.Commit=$(git rev-parse HEAD)
//	-X github.com/gantry-sh/gantry/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is a snapshot of the stamped provenance plus the toolchain and
// platform the binary was compiled for.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get snapshots the build information. Commits are abbreviated to the
// usual seven characters.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    shortCommit(Commit),
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders a one-line summary suitable for logs and --version.
func (i Info) String() string {
	return fmt.Sprintf("gantry %s (%s, %s)", i.Version, i.Commit, i.Date)
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
