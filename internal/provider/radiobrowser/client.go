// Package radiobrowser queries the community-run radio-browser.info
// directory. The directory is served by volunteer mirrors, so the client
// rotates through a mirror list on failure and promotes the first mirror
// that answers.
package radiobrowser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/provider"
)

var ErrAllMirrorsFailed = errors.New("all radio-browser mirrors failed")

var defaultMirrors = []string{
	"https://all.api.radio-browser.info",
	"https://de2.api.radio-browser.info",
	"https://fr1.api.radio-browser.info",
	"https://at1.api.radio-browser.info",
}

// Client is a radio-browser directory client.
type Client struct {
	httpClient *http.Client
	config     config.ProviderConfig
	logger     zerolog.Logger

	mirrors []string
	mu      sync.Mutex
	// preferred indexes mirrors; it moves when another mirror answers first.
	preferred int
}

// NewClient creates a radio-browser client. A configured base URL pins the
// client to that single host instead of the mirror list.
func NewClient(cfg config.ProviderConfig, logger zerolog.Logger) *Client {
	mirrors := defaultMirrors
	if cfg.BaseURL != "" {
		mirrors = []string{strings.TrimRight(cfg.BaseURL, "/")}
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		config:     cfg,
		logger:     logger.With().Str("component", "radiobrowser").Logger(),
		mirrors:    mirrors,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "radiobrowser"
}

// RequiresAuth reports whether the provider needs credentials.
func (c *Client) RequiresAuth() bool {
	return false
}

// IsAvailable reports whether the provider can serve requests.
func (c *Client) IsAvailable() bool {
	return true
}

// SearchStations queries /json/stations/search with the given facets.
func (c *Client) SearchStations(ctx context.Context, q provider.StationQuery) ([]catalog.StationItem, error) {
	params := url.Values{}
	if q.Query != "" {
		params.Set("name", q.Query)
	}
	if q.Country != "" {
		params.Set("country", q.Country)
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	if q.Tag != "" {
		params.Set("tag", q.Tag)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	params.Set("limit", strconv.Itoa(limit))
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	params.Set("order", "votes")
	params.Set("reverse", "true")

	var payload []stationPayload
	if err := c.doRequest(ctx, "/json/stations/search", params, &payload); err != nil {
		return nil, err
	}

	items := make([]catalog.StationItem, 0, len(payload))
	for _, p := range payload {
		item := c.toStation(p)
		if item.StreamURL == "" {
			continue
		}
		items = append(items, item)
	}

	c.logger.Debug().
		Str("query", q.Query).
		Int("results", len(items)).
		Msg("Station search completed")

	return items, nil
}

// doRequest tries each mirror starting from the preferred one. The first
// mirror that answers becomes preferred for future calls.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result any) error {
	c.mu.Lock()
	start := c.preferred
	c.mu.Unlock()

	var lastErr error
	for i := 0; i < len(c.mirrors); i++ {
		idx := (start + i) % len(c.mirrors)
		base := c.mirrors[idx]

		err := c.fetch(ctx, base+path+"?"+params.Encode(), result)
		if err == nil {
			c.promote(idx, base)
			return nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Str("mirror", base).Msg("Mirror request failed")

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %v", ErrAllMirrorsFailed, lastErr)
}

func (c *Client) promote(idx int, base string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preferred == idx {
		return
	}
	c.preferred = idx
	c.logger.Info().Str("mirror", base).Msg("Promoted mirror to preferred")
}

func (c *Client) fetch(ctx context.Context, reqURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", provider.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type stationPayload struct {
	StationUUID    string   `json:"stationuuid"`
	Name           string   `json:"name"`
	URL            string   `json:"url"`
	URLResolved    string   `json:"url_resolved"`
	Homepage       string   `json:"homepage"`
	Favicon        string   `json:"favicon"`
	Country        string   `json:"country"`
	CountryCode    string   `json:"countrycode"`
	State          string   `json:"state"`
	Language       string   `json:"language"`
	Tags           string   `json:"tags"`
	Codec          string   `json:"codec"`
	Bitrate        int      `json:"bitrate"`
	Votes          int      `json:"votes"`
	ClickCount     int      `json:"clickcount"`
	SSL            flexBool `json:"ssl"`
	LastChangeTime string   `json:"lastchangetime"`
}

// flexBool tolerates the directory serving booleans as true/false, 0/1, or
// quoted variants of either.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(strings.TrimSpace(string(data)), `"`) {
	case "true", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

func (c *Client) toStation(p stationPayload) catalog.StationItem {
	stream := strings.TrimSpace(p.URLResolved)
	if stream == "" {
		stream = strings.TrimSpace(p.URL)
	}
	if bool(p.SSL) {
		stream = upgradeScheme(stream)
	}

	item := catalog.StationItem{
		ID:              p.StationUUID,
		Name:            strings.TrimSpace(p.Name),
		StreamURL:       stream,
		Homepage:        p.Homepage,
		Country:         p.Country,
		CountryCode:     strings.ToUpper(p.CountryCode),
		State:           p.State,
		Language:        p.Language,
		Tags:            splitTags(p.Tags),
		Bitrate:         p.Bitrate,
		Codec:           p.Codec,
		LogoURL:         p.Favicon,
		Votes:           p.Votes,
		ClickCount:      p.ClickCount,
		Source:          c.Name(),
		SourceProviders: []string{c.Name()},
	}
	item.LastChanged = parseChangeTime(p.LastChangeTime)
	return item
}

func upgradeScheme(streamURL string) string {
	if rest, ok := strings.CutPrefix(streamURL, "http://"); ok {
		return "https://" + rest
	}
	return streamURL
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		duplicate := false
		for _, existing := range tags {
			if strings.EqualFold(existing, tag) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			tags = append(tags, tag)
		}
	}
	return tags
}

func parseChangeTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
