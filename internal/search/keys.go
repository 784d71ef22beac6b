package search

import (
	"sort"
	"strconv"
	"strings"
)

// Cache key namespaces. The formats are stable across releases because a
// shared Redis cache may be read by replicas running different builds.
const (
	stationNamespace = "radio-search"
	podcastNamespace = "podcasts:multi"
)

// StationCacheKey builds the station result cache key:
// radio-search:<q>:<country>:<language>:<tag>:<limit>:<providersCSV>.
// The query is lowercased and trimmed and may be empty; absent filters encode
// as "all" and an absent provider filter as "any".
func StationCacheKey(query, country, language, tag string, limit int, providers []string) string {
	parts := []string{
		stationNamespace,
		normalizeQuery(query),
		filterSlot(country),
		filterSlot(language),
		filterSlot(tag),
		strconv.Itoa(limit),
		providerSlot(providers),
	}
	return strings.Join(parts, ":")
}

// PodcastCacheKey builds the podcast result cache key:
// podcasts:multi:<q>:<language>:<limit>:<providersCSV>.
func PodcastCacheKey(query, language string, limit int, providers []string) string {
	parts := []string{
		podcastNamespace,
		normalizeQuery(query),
		filterSlot(language),
		strconv.Itoa(limit),
		providerSlot(providers),
	}
	return strings.Join(parts, ":")
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func filterSlot(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "all"
	}
	return v
}

func providerSlot(providers []string) string {
	cleaned := make([]string, 0, len(providers))
	for _, p := range providers {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return "any"
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, ",")
}
