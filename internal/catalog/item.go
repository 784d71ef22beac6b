// Package catalog defines the canonical item shapes produced by provider
// adapters and consumed by the dedupe, rank, and storage layers. Items are
// flat records; once returned to a caller they are never mutated by the core.
package catalog

import "time"

// StationItem is a single radio station candidate in canonical form.
type StationItem struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	StreamURL       string     `json:"streamUrl"`
	Homepage        string     `json:"homepage,omitempty"`
	Country         string     `json:"country,omitempty"`
	CountryCode     string     `json:"countryCode,omitempty"`
	State           string     `json:"state,omitempty"`
	City            string     `json:"city,omitempty"`
	Language        string     `json:"language,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	Bitrate         int        `json:"bitrate,omitempty"`
	Codec           string     `json:"codec,omitempty"`
	LogoURL         string     `json:"logoUrl,omitempty"`
	Votes           int        `json:"votes"`
	ClickCount      int        `json:"clickCount"`
	LastChanged     *time.Time `json:"lastChanged,omitempty"`
	Source          string     `json:"source"`
	SourceProviders []string   `json:"sourceProviders"`
}

// Popularity is the station ranking signal: votes plus click count, floored
// at zero so a misreporting upstream cannot push an item below "unknown".
func (s *StationItem) Popularity() int {
	p := s.Votes + s.ClickCount
	if p < 0 {
		return 0
	}
	return p
}

// PodcastItem is a single podcast candidate in canonical form. Explicit is
// tri-state: nil means the originating directory did not say.
type PodcastItem struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author,omitempty"`
	Description     string     `json:"description,omitempty"`
	ArtworkURL      string     `json:"artworkUrl,omitempty"`
	FeedURL         string     `json:"feedUrl,omitempty"`
	ITunesID        string     `json:"itunesId,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	EpisodeCount    *int       `json:"episodeCount,omitempty"`
	Language        string     `json:"language,omitempty"`
	Website         string     `json:"website,omitempty"`
	LastUpdated     *time.Time `json:"lastUpdated,omitempty"`
	Explicit        *bool      `json:"explicit"`
	Popularity      int        `json:"popularity"`
	Source          string     `json:"source"`
	SourceProviders []string   `json:"sourceProviders"`
}

// PopularityScore floors the provider-reported popularity at zero for ranking.
func (p *PodcastItem) PopularityScore() int {
	if p.Popularity < 0 {
		return 0
	}
	return p.Popularity
}

// EpisodeItem is emitted only by the feed parser.
type EpisodeItem struct {
	GUID        string     `json:"guid"`
	PodcastID   string     `json:"podcastId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AudioURL    string     `json:"audioUrl"`
	Duration    *int       `json:"duration"`
	ArtworkURL  string     `json:"artworkUrl,omitempty"`
	PublishedAt *time.Time `json:"publishedAt"`
}

// AddSourceProvider appends name to the set if it is not already present.
// Provider names are fixed lowercase identifiers, so comparison is exact.
func AddSourceProvider(set []string, name string) []string {
	if name == "" {
		return set
	}
	for _, s := range set {
		if s == name {
			return set
		}
	}
	return append(set, name)
}

// BoolPtr returns a pointer to b. Convenience for tri-state fields.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }
