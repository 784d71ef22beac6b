// Package itunes queries the Apple iTunes search API for podcasts. The API
// is unauthenticated but informally capped around 20 requests per minute, so
// outbound calls are smoothed with a token bucket instead of being counted
// against a hard window.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/provider"
)

const smoothingBurst = 5

// Client is an iTunes search API client.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(float64(cfg.RateLimit) / cfg.RatePeriod().Seconds())
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		config:     cfg,
		limiter:    rate.NewLimiter(limit, smoothingBurst),
		logger:     logger.With().Str("component", "itunes").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "itunes"
}

// RequiresAuth reports whether the provider needs credentials.
func (c *Client) RequiresAuth() bool {
	return false
}

// IsAvailable reports whether the provider can serve requests.
func (c *Client) IsAvailable() bool {
	return true
}

// SearchPodcasts queries /search with media=podcast.
func (c *Client) SearchPodcasts(ctx context.Context, q provider.PodcastQuery) ([]catalog.PodcastItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for request slot: %w", err)
	}

	params := url.Values{}
	params.Set("media", "podcast")
	params.Set("term", q.Query)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	params.Set("limit", strconv.Itoa(limit))
	if q.Language != "" {
		params.Set("lang", q.Language)
	}

	reqURL := strings.TrimRight(c.config.BaseURL, "/") + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", provider.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var response searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	items := make([]catalog.PodcastItem, 0, len(response.Results))
	for _, p := range response.Results {
		items = append(items, c.toPodcast(p))
	}

	c.logger.Debug().
		Str("term", q.Query).
		Int("results", len(items)).
		Msg("Podcast search completed")

	return items, nil
}

type searchResponse struct {
	ResultCount int              `json:"resultCount"`
	Results     []podcastPayload `json:"results"`
}

type podcastPayload struct {
	TrackID                int64    `json:"trackId"`
	CollectionName         string   `json:"collectionName"`
	ArtistName             string   `json:"artistName"`
	FeedURL                string   `json:"feedUrl"`
	ArtworkURL100          string   `json:"artworkUrl100"`
	ArtworkURL600          string   `json:"artworkUrl600"`
	CollectionExplicitness string   `json:"collectionExplicitness"`
	TrackCount             int      `json:"trackCount"`
	PrimaryGenreName       string   `json:"primaryGenreName"`
	Genres                 []string `json:"genres"`
	CollectionViewURL      string   `json:"collectionViewUrl"`
	ReleaseDate            string   `json:"releaseDate"`
}

func (c *Client) toPodcast(p podcastPayload) catalog.PodcastItem {
	id := ""
	if p.TrackID != 0 {
		id = strconv.FormatInt(p.TrackID, 10)
	}

	artwork := p.ArtworkURL600
	if artwork == "" {
		artwork = p.ArtworkURL100
	}

	item := catalog.PodcastItem{
		ID:              id,
		Title:           strings.TrimSpace(p.CollectionName),
		Author:          strings.TrimSpace(p.ArtistName),
		ArtworkURL:      artwork,
		FeedURL:         p.FeedURL,
		ITunesID:        id,
		Categories:      normalizeGenres(p.PrimaryGenreName, p.Genres),
		Website:         p.CollectionViewURL,
		Explicit:        parseExplicitness(p.CollectionExplicitness),
		Source:          c.Name(),
		SourceProviders: []string{c.Name()},
	}
	if p.TrackCount > 0 {
		item.EpisodeCount = catalog.IntPtr(p.TrackCount)
	}
	if ts, err := time.Parse(time.RFC3339, p.ReleaseDate); err == nil {
		item.LastUpdated = &ts
	}
	return item
}

// normalizeGenres folds the primary genre and the genre list together,
// dropping the catch-all "Podcasts" bucket the API attaches to everything.
func normalizeGenres(primary string, genres []string) []string {
	var out []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || strings.EqualFold(name, "Podcasts") {
			return
		}
		for _, existing := range out {
			if strings.EqualFold(existing, name) {
				return
			}
		}
		out = append(out, name)
	}
	add(primary)
	for _, g := range genres {
		add(g)
	}
	return out
}

func parseExplicitness(s string) *bool {
	switch s {
	case "explicit":
		return catalog.BoolPtr(true)
	case "cleaned", "notExplicit":
		return catalog.BoolPtr(false)
	default:
		return nil
	}
}
