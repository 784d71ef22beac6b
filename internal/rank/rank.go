// Package rank orders merged catalog items for presentation. The compare is
// three-keyed: provider priority, then popularity, then name. Sorts are
// stable so equal items keep their merge order.
package rank

import (
	"sort"
	"strings"

	"github.com/skywave/skywave/internal/catalog"
)

// unknownPriority sorts items from providers missing in the priority map
// behind every configured provider.
const unknownPriority = 1 << 30

// Stations sorts stations in place by best provider priority ascending,
// popularity descending, then name ascending.
func Stations(items []catalog.StationItem, priorities map[string]int) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := minPriority(items[i].SourceProviders, priorities), minPriority(items[j].SourceProviders, priorities)
		if pi != pj {
			return pi < pj
		}
		si, sj := items[i].Popularity(), items[j].Popularity()
		if si != sj {
			return si > sj
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
}

// Podcasts sorts podcasts in place with the same three keys, using the merged
// popularity score and the title.
func Podcasts(items []catalog.PodcastItem, priorities map[string]int) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := minPriority(items[i].SourceProviders, priorities), minPriority(items[j].SourceProviders, priorities)
		if pi != pj {
			return pi < pj
		}
		si, sj := items[i].PopularityScore(), items[j].PopularityScore()
		if si != sj {
			return si > sj
		}
		return strings.ToLower(items[i].Title) < strings.ToLower(items[j].Title)
	})
}

// minPriority returns the best (lowest) priority among the item's source
// providers.
func minPriority(providers []string, priorities map[string]int) int {
	best := unknownPriority
	for _, name := range providers {
		if p, ok := priorities[name]; ok && p < best {
			best = p
		}
	}
	return best
}
