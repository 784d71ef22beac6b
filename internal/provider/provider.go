// Package provider defines the uniform contract for upstream directory
// adapters and the registry that holds the configured set. Adapters live in
// subpackages (radiobrowser, itunes, ...) and are wired into the registry at
// startup; the registry is immutable afterwards.
package provider

import (
	"context"

	"github.com/skywave/skywave/internal/catalog"
)

// Kind separates the two directory families a provider can serve.
type Kind string

const (
	KindStation Kind = "station"
	KindPodcast Kind = "podcast"
)

// StationQuery carries normalized station search facets. Filter strings are
// passed to providers in their original case; empty means unfiltered.
type StationQuery struct {
	Query    string
	Country  string
	Language string
	Tag      string
	Limit    int
	Offset   int
}

// HasFacet reports whether any search facet is present.
func (q StationQuery) HasFacet() bool {
	return q.Query != "" || q.Country != "" || q.Language != "" || q.Tag != ""
}

// PodcastQuery carries normalized podcast search facets.
type PodcastQuery struct {
	Query    string
	Language string
	Limit    int
}

// StationProvider is implemented by radio directory adapters. SearchStations
// returns an error on any upstream failure; the orchestrator isolates it to
// an empty contribution.
type StationProvider interface {
	Name() string
	RequiresAuth() bool
	IsAvailable() bool
	SearchStations(ctx context.Context, q StationQuery) ([]catalog.StationItem, error)
}

// PodcastProvider is implemented by podcast directory adapters.
type PodcastProvider interface {
	Name() string
	RequiresAuth() bool
	IsAvailable() bool
	SearchPodcasts(ctx context.Context, q PodcastQuery) ([]catalog.PodcastItem, error)
}

// Status is one row of the provider status listing.
type Status struct {
	Name           string `json:"name"`
	Kind           Kind   `json:"kind"`
	Enabled        bool   `json:"enabled"`
	Available      bool   `json:"available"`
	Priority       int    `json:"priority"`
	RateLimitQuota int    `json:"rateLimitQuota"`
	Used           int    `json:"used"`
	Remaining      int    `json:"remaining"`
	ResetSeconds   int64  `json:"resetSeconds"`
}
