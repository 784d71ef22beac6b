package config

// Embedded API credentials injected at build time via ldflags.
// These serve as defaults and can be overridden by environment
// variables or config file.
//
// Build with:
//   go build -ldflags "-X 'github.com/skywave/skywave/internal/config.EmbeddedPodcastIndexKey=xxx' \
//                      -X 'github.com/skywave/skywave/internal/config.EmbeddedPodcastIndexSecret=yyy'"
var (
	EmbeddedPodcastIndexKey    string
	EmbeddedPodcastIndexSecret string
)
