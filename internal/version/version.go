// Package version holds build metadata injected with -ldflags.
package version

// Version is overridden at build time:
//
//	go build -ldflags "-X github.com/aristath/marketpulse/internal/version.Version=v1.2.0" ./cmd/server
var Version = "dev"
