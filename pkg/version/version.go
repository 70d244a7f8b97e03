// Package version records build metadata injected at link time via ldflags:
//
//	-X github.com/Sumatoshi-tech/streamcdp/pkg/version.Version=v1.2.3
package version

// Build metadata. Defaults identify a local development build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
