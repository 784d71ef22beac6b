package config

// Version is the build version injected at build time via ldflags.
//
// Build with:
//   go build -ldflags "-X 'github.com/skywave/skywave/internal/config.Version=1.0.0'"
var Version = "0.1.0-dev"
