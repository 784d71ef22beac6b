// Package taddy queries the Taddy podcast directory over GraphQL. The API is
// metered per month, so the adapter stays unavailable until a bearer token is
// configured and the orchestrator bills every issued request against the
// monthly window.
package taddy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/machinebox/graphql"
	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/provider"
)

var ErrTokenMissing = errors.New("taddy bearer token is not configured")

const searchQuery = `query Search($term: String!, $limit: Int!) {
  searchForTerm(term: $term, limitPerPage: $limit, filterForTypes: PODCASTSERIES) {
    podcastSeries {
      uuid
      name
      description
      imageUrl
      rssUrl
      itunesId
      authorName
      language
      genres
      totalEpisodesCount
      isExplicitContent
      popularityRank
      websiteUrl
    }
  }
}`

// Client is a Taddy GraphQL API client.
type Client struct {
	gql    *graphql.Client
	config config.ProviderConfig
	logger zerolog.Logger
}

func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout()}
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/graphql"
	return &Client{
		gql:    graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient)),
		config: cfg,
		logger: logger.With().Str("component", "taddy").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "taddy"
}

// RequiresAuth reports whether the provider needs credentials.
func (c *Client) RequiresAuth() bool {
	return true
}

// IsAvailable reports whether a bearer token is present.
func (c *Client) IsAvailable() bool {
	return c.config.Bearer != ""
}

// SearchPodcasts runs the fixed search document with {term, limit} variables.
func (c *Client) SearchPodcasts(ctx context.Context, q provider.PodcastQuery) ([]catalog.PodcastItem, error) {
	if !c.IsAvailable() {
		return nil, ErrTokenMissing
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	req := graphql.NewRequest(searchQuery)
	req.Header.Set("Authorization", "Bearer "+c.config.Bearer)
	req.Header.Set("User-Agent", provider.UserAgent)
	req.Var("term", q.Query)
	req.Var("limit", limit)

	var response searchResponse
	if err := c.gql.Run(ctx, req, &response); err != nil {
		return nil, fmt.Errorf("graphql query failed: %w", err)
	}

	series := response.SearchForTerm.PodcastSeries
	items := make([]catalog.PodcastItem, 0, len(series))
	for _, s := range series {
		items = append(items, c.toPodcast(s))
	}

	c.logger.Debug().
		Str("term", q.Query).
		Int("results", len(items)).
		Msg("Podcast search completed")

	return items, nil
}

type searchResponse struct {
	SearchForTerm struct {
		PodcastSeries []seriesPayload `json:"podcastSeries"`
	} `json:"searchForTerm"`
}

type seriesPayload struct {
	UUID               string   `json:"uuid"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	ImageURL           string   `json:"imageUrl"`
	RSSURL             string   `json:"rssUrl"`
	ITunesID           int64    `json:"itunesId"`
	AuthorName         string   `json:"authorName"`
	Language           string   `json:"language"`
	Genres             []string `json:"genres"`
	TotalEpisodesCount int      `json:"totalEpisodesCount"`
	IsExplicitContent  bool     `json:"isExplicitContent"`
	PopularityRank     string   `json:"popularityRank"`
	WebsiteURL         string   `json:"websiteUrl"`
}

func (c *Client) toPodcast(s seriesPayload) catalog.PodcastItem {
	item := catalog.PodcastItem{
		ID:              s.UUID,
		Title:           strings.TrimSpace(s.Name),
		Author:          strings.TrimSpace(s.AuthorName),
		Description:     strings.TrimSpace(s.Description),
		ArtworkURL:      s.ImageURL,
		FeedURL:         s.RSSURL,
		Categories:      normalizeGenres(s.Genres),
		Language:        strings.ToLower(s.Language),
		Website:         s.WebsiteURL,
		Explicit:        catalog.BoolPtr(s.IsExplicitContent),
		Popularity:      popularityFromRank(s.PopularityRank),
		Source:          c.Name(),
		SourceProviders: []string{c.Name()},
	}
	if s.ITunesID > 0 {
		item.ITunesID = strconv.FormatInt(s.ITunesID, 10)
	}
	if s.TotalEpisodesCount > 0 {
		item.EpisodeCount = catalog.IntPtr(s.TotalEpisodesCount)
	}
	return item
}

// popularityFromRank converts the TOP_N bucket enum into a comparable score.
// Tighter buckets score higher; an unknown or absent rank scores zero.
func popularityFromRank(rank string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(rank, "TOP_"))
	if err != nil || n <= 0 {
		return 0
	}
	return 1_000_000 / n
}

// normalizeGenres rewrites enum values like PODCASTSERIES_TRUE_CRIME into
// display form ("True Crime").
func normalizeGenres(genres []string) []string {
	if len(genres) == 0 {
		return nil
	}
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.TrimPrefix(g, "PODCASTSERIES_")
		words := strings.Split(strings.ToLower(g), "_")
		for i, w := range words {
			if w == "" {
				continue
			}
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		name := strings.TrimSpace(strings.Join(words, " "))
		if name != "" {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
