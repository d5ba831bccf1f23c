// Package version carries the build identity stamped in by the linker:
//
//	go build -ldflags "-X github.com/banshee-data/rigmodel/internal/version.Version=v0.3.0 \
//	  -X github.com/banshee-data/rigmodel/internal/version.GitSHA=$(git rev-parse --short HEAD)"
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the version line printed by the command-line tools.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
