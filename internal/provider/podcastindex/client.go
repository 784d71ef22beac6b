// Package podcastindex queries the Podcast Index directory. Every request is
// signed with the key/secret HMAC scheme the API requires; without
// credentials the provider reports itself unavailable and issues nothing.
package podcastindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/provider"
)

var (
	ErrCredentialsMissing = errors.New("podcastindex API key and secret are not configured")
	ErrAPIError           = errors.New("podcastindex API error")
)

// Client is a Podcast Index API client.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger
	now        func() time.Time
}

func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		config:     cfg,
		logger:     logger.With().Str("component", "podcastindex").Logger(),
		now:        time.Now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "podcastindex"
}

// RequiresAuth reports whether the provider needs credentials.
func (c *Client) RequiresAuth() bool {
	return true
}

// IsAvailable reports whether both credentials are present.
func (c *Client) IsAvailable() bool {
	return c.config.APIKey != "" && c.config.APISecret != ""
}

// SearchPodcasts queries /search/byterm. The call is signed with the
// request's own timestamp, so a retried request gets a fresh signature.
func (c *Client) SearchPodcasts(ctx context.Context, q provider.PodcastQuery) ([]catalog.PodcastItem, error) {
	if !c.IsAvailable() {
		return nil, ErrCredentialsMissing
	}

	params := url.Values{}
	params.Set("q", q.Query)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	params.Set("max", strconv.Itoa(limit))

	reqURL := strings.TrimRight(c.config.BaseURL, "/") + "/search/byterm?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	signRequest(req, c.config.APIKey, c.config.APISecret, c.now())

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
	if response.Status != "true" {
		return nil, fmt.Errorf("%w: %s", ErrAPIError, response.Description)
	}

	items := make([]catalog.PodcastItem, 0, len(response.Feeds))
	for _, f := range response.Feeds {
		items = append(items, c.toPodcast(f))
	}

	c.logger.Debug().
		Str("term", q.Query).
		Int("results", len(items)).
		Msg("Podcast search completed")

	return items, nil
}

type searchResponse struct {
	Status      string        `json:"status"`
	Feeds       []feedPayload `json:"feeds"`
	Count       int           `json:"count"`
	Description string        `json:"description"`
}

type feedPayload struct {
	ID             int64             `json:"id"`
	Title          string            `json:"title"`
	URL            string            `json:"url"`
	Link           string            `json:"link"`
	Description    string            `json:"description"`
	Author         string            `json:"author"`
	OwnerName      string            `json:"ownerName"`
	Image          string            `json:"image"`
	Artwork        string            `json:"artwork"`
	LastUpdateTime int64             `json:"lastUpdateTime"`
	Language       string            `json:"language"`
	Categories     map[string]string `json:"categories"`
	EpisodeCount   int               `json:"episodeCount"`
	ITunesID       int64             `json:"itunesId"`
	Explicit       bool              `json:"explicit"`
}

func (c *Client) toPodcast(f feedPayload) catalog.PodcastItem {
	artwork := f.Artwork
	if artwork == "" {
		artwork = f.Image
	}

	author := strings.TrimSpace(f.Author)
	if author == "" {
		author = strings.TrimSpace(f.OwnerName)
	}

	item := catalog.PodcastItem{
		ID:              strconv.FormatInt(f.ID, 10),
		Title:           strings.TrimSpace(f.Title),
		Author:          author,
		Description:     strings.TrimSpace(f.Description),
		ArtworkURL:      artwork,
		FeedURL:         f.URL,
		Categories:      sortedCategories(f.Categories),
		Language:        f.Language,
		Website:         f.Link,
		Explicit:        catalog.BoolPtr(f.Explicit),
		Source:          c.Name(),
		SourceProviders: []string{c.Name()},
	}
	if f.ITunesID > 0 {
		item.ITunesID = strconv.FormatInt(f.ITunesID, 10)
	}
	if f.EpisodeCount > 0 {
		item.EpisodeCount = catalog.IntPtr(f.EpisodeCount)
	}
	if f.LastUpdateTime > 0 {
		ts := time.Unix(f.LastUpdateTime, 0).UTC()
		item.LastUpdated = &ts
	}
	return item
}

// sortedCategories flattens the id-keyed category map into a stable list;
// map iteration order would otherwise leak into the output.
func sortedCategories(cats map[string]string) []string {
	if len(cats) == 0 {
		return nil
	}
	out := make([]string, 0, len(cats))
	for _, name := range cats {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		duplicate := false
		for _, existing := range out {
			if strings.EqualFold(existing, name) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
