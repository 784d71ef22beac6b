package provider

import "fmt"

// UserAgent identifies outbound requests to upstream directories. Some of
// them (podcastindex in particular) reject requests without one.
var UserAgent = "Skywave/dev (+https://github.com/skywave/skywave)"

// SetVersion stamps the outbound User-Agent with the build version.
func SetVersion(version string) {
	UserAgent = fmt.Sprintf("Skywave/%s (+https://github.com/skywave/skywave)", version)
}
