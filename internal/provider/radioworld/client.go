// Package radioworld queries a keyword-oriented station directory (RapidAPI
// style). The upstream only understands keyword and country lookups, so
// language and tag facets are filtered in memory and empty queries are
// satisfied by synthesizing a keyword.
package radioworld

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/provider"
)

const defaultLimit = 20

// Client is a radio-world directory client.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger
}

func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		config:     cfg,
		logger:     logger.With().Str("component", "radioworld").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "radioworld"
}

// RequiresAuth reports whether the provider needs credentials. The API key
// is optional here; keyless requests are served at a lower tier.
func (c *Client) RequiresAuth() bool {
	return false
}

// IsAvailable reports whether the provider can serve requests.
func (c *Client) IsAvailable() bool {
	return true
}

// SearchStations picks the upstream lookup from the available facets:
// country wins, then the free-text query as keyword, then a synthesized
// keyword (`top`, retrying `music` on an empty answer) so browse-style
// requests still return something.
func (c *Client) SearchStations(ctx context.Context, q provider.StationQuery) ([]catalog.StationItem, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	upstreamLimit := limit
	if q.Language != "" || q.Tag != "" {
		// In-memory facet filtering discards rows, so over-fetch.
		upstreamLimit = limit * 5
		if upstreamLimit > 100 {
			upstreamLimit = 100
		}
	}

	var payload []stationPayload
	var err error
	switch {
	case q.Country != "":
		payload, err = c.byCountry(ctx, q.Country, upstreamLimit)
	case q.Query != "":
		payload, err = c.byKeyword(ctx, q.Query, upstreamLimit)
	default:
		payload, err = c.byKeyword(ctx, "top", upstreamLimit)
		if err == nil && len(payload) == 0 {
			payload, err = c.byKeyword(ctx, "music", upstreamLimit)
		}
	}
	if err != nil {
		return nil, err
	}

	items := make([]catalog.StationItem, 0, len(payload))
	for _, p := range payload {
		item := c.toStation(p)
		if item.StreamURL == "" {
			continue
		}
		if !matchesLanguage(item, q.Language) || !matchesTag(item, q.Tag) {
			continue
		}
		items = append(items, item)
		if len(items) >= limit {
			break
		}
	}

	c.logger.Debug().
		Str("query", q.Query).
		Str("country", q.Country).
		Int("results", len(items)).
		Msg("Station search completed")

	return items, nil
}

func (c *Client) byKeyword(ctx context.Context, keyword string, limit int) ([]stationPayload, error) {
	params := url.Values{}
	params.Set("keyword", keyword)
	params.Set("limit", strconv.Itoa(limit))
	return c.doRequest(ctx, "/search/stationsbykeyword", params)
}

func (c *Client) byCountry(ctx context.Context, country string, limit int) ([]stationPayload, error) {
	params := url.Values{}
	params.Set("country", country)
	params.Set("limit", strconv.Itoa(limit))
	return c.doRequest(ctx, "/search/stationsbycountry", params)
}

func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]stationPayload, error) {
	reqURL := strings.TrimRight(c.config.BaseURL, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", provider.UserAgent)
	if c.config.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload []stationPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return payload, nil
}

type stationPayload struct {
	ID         json.Number `json:"id"`
	Name       string      `json:"name"`
	Country    string      `json:"country"`
	City       string      `json:"city"`
	Language   string      `json:"language"`
	Genre      stringList  `json:"genre"`
	StreamURL  string      `json:"streamUrl"`
	StreamURLs []string    `json:"streamUrls"`
	Logo       string      `json:"logo"`
	Website    string      `json:"website"`
}

// stringList tolerates a genre field that is either a JSON array or a
// comma-separated string.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var arr []string
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*s = arr
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	for _, part := range strings.Split(single, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// toStation normalizes one payload row. The stream URL falls back from the
// explicit field to the first alternate to a synthesized per-station path;
// stations with none of those are dropped by the caller.
func (c *Client) toStation(p stationPayload) catalog.StationItem {
	stream := strings.TrimSpace(p.StreamURL)
	if stream == "" && len(p.StreamURLs) > 0 {
		stream = strings.TrimSpace(p.StreamURLs[0])
	}
	if stream == "" && p.ID.String() != "" {
		stream = fmt.Sprintf("%s/station/%s/stream", strings.TrimRight(c.config.BaseURL, "/"), p.ID.String())
	}

	tags := make([]string, 0, len(p.Genre))
	for _, g := range p.Genre {
		if g = strings.TrimSpace(g); g != "" {
			tags = append(tags, g)
		}
	}
	if len(tags) == 0 {
		tags = nil
	}

	return catalog.StationItem{
		ID:              p.ID.String(),
		Name:            strings.TrimSpace(p.Name),
		StreamURL:       stream,
		Homepage:        p.Website,
		Country:         p.Country,
		City:            p.City,
		Language:        p.Language,
		Tags:            tags,
		LogoURL:         p.Logo,
		Source:          c.Name(),
		SourceProviders: []string{c.Name()},
	}
}

func matchesLanguage(item catalog.StationItem, language string) bool {
	if language == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.Language), strings.ToLower(language))
}

func matchesTag(item catalog.StationItem, tag string) bool {
	if tag == "" {
		return true
	}
	for _, t := range item.Tags {
		if strings.Contains(strings.ToLower(t), strings.ToLower(tag)) {
			return true
		}
	}
	return false
}
