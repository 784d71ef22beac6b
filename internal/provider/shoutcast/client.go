// Package shoutcast queries a SHOUTcast-style directory. The upstream only
// understands one free-text query string, so all station facets are folded
// into it, and stations are tuned in through the directory's m3u endpoint
// when no explicit stream URL is present.
package shoutcast

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

const tuneinURL = "http://yp.shoutcast.com/sbin/tunein-station.m3u?id=%d"

// Client is a SHOUTcast directory client.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger
}

func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		config:     cfg,
		logger:     logger.With().Str("component", "shoutcast").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "shoutcast"
}

// RequiresAuth reports whether the provider needs credentials.
func (c *Client) RequiresAuth() bool {
	return false
}

// IsAvailable reports whether the provider can serve requests.
func (c *Client) IsAvailable() bool {
	return true
}

// SearchStations queries /Search/UpdateSearch with every facet folded into a
// single free-text query.
func (c *Client) SearchStations(ctx context.Context, q provider.StationQuery) ([]catalog.StationItem, error) {
	terms := make([]string, 0, 4)
	for _, term := range []string{q.Query, q.Tag, q.Country, q.Language} {
		if term = strings.TrimSpace(term); term != "" {
			terms = append(terms, term)
		}
	}

	params := url.Values{}
	params.Set("query", strings.Join(terms, " "))

	reqURL := strings.TrimRight(c.config.BaseURL, "/") + "/Search/UpdateSearch?" + params.Encode()
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

	var payload []stationPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	items := make([]catalog.StationItem, 0, len(payload))
	for _, p := range payload {
		item := c.toStation(p)
		if item.StreamURL == "" {
			continue
		}
		items = append(items, item)
		if len(items) >= limit {
			break
		}
	}

	c.logger.Debug().
		Str("query", strings.Join(terms, " ")).
		Int("results", len(items)).
		Msg("Station search completed")

	return items, nil
}

type stationPayload struct {
	ID           int    `json:"ID"`
	Name         string `json:"Name"`
	URL          string `json:"URL"`
	Bitrate      int    `json:"Bitrate"`
	Genre        string `json:"Genre"`
	CurrentTrack string `json:"CurrentTrack"`
	Listeners    int    `json:"Listeners"`
	Format       string `json:"Format"`
}

func (c *Client) toStation(p stationPayload) catalog.StationItem {
	stream := strings.TrimSpace(p.URL)
	if stream == "" && p.ID > 0 {
		stream = fmt.Sprintf(tuneinURL, p.ID)
	}

	return catalog.StationItem{
		ID:              strconv.Itoa(p.ID),
		Name:            strings.TrimSpace(p.Name),
		StreamURL:       stream,
		Tags:            splitGenres(p.Genre),
		Bitrate:         p.Bitrate,
		Codec:           codecFromFormat(p.Format),
		ClickCount:      p.Listeners,
		Source:          c.Name(),
		SourceProviders: []string{c.Name()},
	}
}

// splitGenres handles both comma-separated lists and the directory's bare
// space-concatenated genre strings.
func splitGenres(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var parts []string
	if strings.Contains(raw, ",") {
		parts = strings.Split(raw, ",")
	} else {
		parts = strings.Fields(raw)
	}
	var tags []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		duplicate := false
		for _, existing := range tags {
			if strings.EqualFold(existing, part) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			tags = append(tags, part)
		}
	}
	return tags
}

func codecFromFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "audio/mpeg":
		return "MP3"
	case "audio/aacp", "audio/aac":
		return "AAC"
	case "":
		return ""
	default:
		if _, after, ok := strings.Cut(format, "/"); ok {
			return strings.ToUpper(after)
		}
		return strings.ToUpper(format)
	}
}
