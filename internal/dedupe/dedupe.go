// Package dedupe resolves provider items that describe the same station or
// podcast into one canonical record. Identity is keyed on normalized URLs and
// ids rather than display names, and merge favors whichever item arrived
// first, so callers feed items in provider priority order.
package dedupe

import (
	"net/url"
	"strings"

	"github.com/skywave/skywave/internal/catalog"
)

// NormalizeStreamURL reduces a stream URL to its identity form: lowercased
// host plus path with the scheme and trailing slashes removed. Two URLs that
// differ only in scheme or a trailing slash identify the same station.
func NormalizeStreamURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		return strings.TrimRight(u.Host+u.Path, "/")
	}
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	return strings.TrimRight(s, "/")
}

// Stations merges station candidates that share a normalized stream URL.
// Input order is preserved for the surviving records.
func Stations(items []catalog.StationItem) []catalog.StationItem {
	merged := make([]catalog.StationItem, 0, len(items))
	seen := make(map[string]int, len(items))

	for _, item := range items {
		key := NormalizeStreamURL(item.StreamURL)
		if key == "" {
			merged = append(merged, item)
			continue
		}
		if idx, ok := seen[key]; ok {
			mergeStation(&merged[idx], item)
			continue
		}
		seen[key] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// PodcastKeys returns the identity keys for a podcast in descending
// confidence order: feed URL, iTunes id, then normalized title and author.
// Keys are prefixed so a feed URL can never collide with a title.
func PodcastKeys(item catalog.PodcastItem) []string {
	keys := make([]string, 0, 3)
	if feed := strings.ToLower(strings.TrimSpace(item.FeedURL)); feed != "" {
		keys = append(keys, "feed:"+feed)
	}
	if id := strings.ToLower(strings.TrimSpace(item.ITunesID)); id != "" {
		keys = append(keys, "itunes:"+id)
	}
	if title := normalizeText(item.Title); title != "" {
		keys = append(keys, "title:"+title+"-"+normalizeText(item.Author))
	}
	return keys
}

// Podcasts merges podcast candidates. An item can match an existing record on
// any of its keys; once matched, all of its keys point at that record so later
// items can join through whichever key they carry.
func Podcasts(items []catalog.PodcastItem) []catalog.PodcastItem {
	merged := make([]catalog.PodcastItem, 0, len(items))
	seen := make(map[string]int, len(items))

	for _, item := range items {
		keys := PodcastKeys(item)

		idx := -1
		for _, key := range keys {
			if at, ok := seen[key]; ok {
				idx = at
				break
			}
		}

		if idx >= 0 {
			mergePodcast(&merged[idx], item)
		} else {
			idx = len(merged)
			merged = append(merged, item)
		}
		for _, key := range keys {
			if _, ok := seen[key]; !ok {
				seen[key] = idx
			}
		}
	}
	return merged
}

func mergeStation(dst *catalog.StationItem, src catalog.StationItem) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Homepage == "" {
		dst.Homepage = src.Homepage
	}
	if dst.Country == "" {
		dst.Country = src.Country
	}
	if dst.CountryCode == "" {
		dst.CountryCode = src.CountryCode
	}
	if dst.State == "" {
		dst.State = src.State
	}
	if dst.City == "" {
		dst.City = src.City
	}
	if dst.Language == "" {
		dst.Language = src.Language
	}
	if dst.Codec == "" {
		dst.Codec = src.Codec
	}
	if dst.LogoURL == "" {
		dst.LogoURL = src.LogoURL
	}
	if dst.Bitrate == 0 {
		dst.Bitrate = src.Bitrate
	}
	if dst.LastChanged == nil {
		dst.LastChanged = src.LastChanged
	}
	dst.Tags = unionFold(dst.Tags, src.Tags)
	dst.Votes += src.Votes
	dst.ClickCount += src.ClickCount
	dst.SourceProviders = mergeProviders(dst.SourceProviders, src.SourceProviders, src.Source)
}

func mergePodcast(dst *catalog.PodcastItem, src catalog.PodcastItem) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Author == "" {
		dst.Author = src.Author
	}
	if len(src.Description) > len(dst.Description) {
		dst.Description = src.Description
	}
	if dst.ArtworkURL == "" {
		dst.ArtworkURL = src.ArtworkURL
	}
	if dst.FeedURL == "" {
		dst.FeedURL = src.FeedURL
	}
	if dst.ITunesID == "" {
		dst.ITunesID = src.ITunesID
	}
	if dst.Language == "" {
		dst.Language = src.Language
	}
	if dst.Website == "" {
		dst.Website = src.Website
	}
	if dst.EpisodeCount == nil {
		dst.EpisodeCount = src.EpisodeCount
	}
	if dst.LastUpdated == nil {
		dst.LastUpdated = src.LastUpdated
	}
	dst.Explicit = mergeExplicit(dst.Explicit, src.Explicit)
	dst.Categories = unionFold(dst.Categories, src.Categories)
	dst.Popularity += src.Popularity
	dst.SourceProviders = mergeProviders(dst.SourceProviders, src.SourceProviders, src.Source)
}

// mergeProviders unions the incoming provenance set and the incoming source
// into dst.
func mergeProviders(dst, src []string, source string) []string {
	for _, p := range src {
		dst = catalog.AddSourceProvider(dst, p)
	}
	return catalog.AddSourceProvider(dst, source)
}

// mergeExplicit keeps any known value and resolves a disagreement to true.
func mergeExplicit(a, b *bool) *bool {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return catalog.BoolPtr(*a || *b)
}

// unionFold merges b into a, matching case-insensitively and keeping the
// first-seen spelling.
func unionFold(a, b []string) []string {
	out := a
	for _, candidate := range b {
		found := false
		for _, existing := range out {
			if strings.EqualFold(existing, candidate) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, candidate)
		}
	}
	return out
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
