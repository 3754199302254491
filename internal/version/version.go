// Package version holds build metadata injected via ldflags:
//
//	go build -ldflags "-X github.com/kailas-cloud/topicdex/internal/version.Version=v0.3.0 \
//	  -X github.com/kailas-cloud/topicdex/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
)
