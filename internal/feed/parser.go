// Package feed parses XML podcast feeds into canonical catalog items.
// Parsing is deterministic: identical input produces identical output, with
// episodes in document order.
package feed

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/catalog"
)

// ErrFeedInvalid reports a document that is not a well-formed podcast feed.
// It is the only parser error callers are expected to branch on.
var ErrFeedInvalid = errors.New("invalid podcast feed")

const maxFeedBytes = 10 << 20

// Parser turns podcast RSS documents into a channel-level PodcastItem plus
// its episodes.
type Parser struct {
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

func NewParser(userAgent string, logger zerolog.Logger) *Parser {
	return &Parser{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  userAgent,
		logger:     logger.With().Str("component", "feed-parser").Logger(),
	}
}

// Feed document structures. Tags match by local name so the usual itunes
// namespace variants (itunes:author, itunes:duration, ...) bind without
// declaring the namespace URI.

type rssDocument struct {
	XMLName xml.Name    `xml:"rss"`
	Channel *rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string        `xml:"title"`
	Description   string        `xml:"description"`
	Language      string        `xml:"language"`
	Author        string        `xml:"author"`
	Explicit      string        `xml:"explicit"`
	LastBuildDate string        `xml:"lastBuildDate"`
	PubDate       string        `xml:"pubDate"`
	Links         []rssLink     `xml:"link"`
	Images        []rssImage    `xml:"image"`
	Categories    []rssCategory `xml:"category"`
	Items         []rssItem     `xml:"item"`
}

// rssLink covers both the plain RSS <link>text</link> and the self-closing
// <atom:link href="..."/> form.
type rssLink struct {
	Href  string `xml:"href,attr"`
	Value string `xml:",chardata"`
}

// rssImage covers <image><url>...</url></image> and <itunes:image href="..."/>.
type rssImage struct {
	Href string `xml:"href,attr"`
	URL  string `xml:"url"`
}

// rssCategory covers <category>Text</category> and the nested
// <itunes:category text="..."> form.
type rssCategory struct {
	Text  string        `xml:"text,attr"`
	Value string        `xml:",chardata"`
	Subs  []rssCategory `xml:"category"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	GUID        string       `xml:"guid"`
	PubDate     string       `xml:"pubDate"`
	Duration    string       `xml:"duration"`
	Enclosure   rssEnclosure `xml:"enclosure"`
	Images      []rssImage   `xml:"image"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length int64  `xml:"length,attr"`
}

// Parse decodes a podcast feed document. Items without an enclosure URL are
// skipped; a document without a channel is rejected with ErrFeedInvalid.
func (p *Parser) Parse(data []byte) (catalog.PodcastItem, []catalog.EpisodeItem, error) {
	var doc rssDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return catalog.PodcastItem{}, nil, fmt.Errorf("%w: %s", ErrFeedInvalid, err)
	}
	if doc.Channel == nil {
		return catalog.PodcastItem{}, nil, fmt.Errorf("%w: document has no channel", ErrFeedInvalid)
	}

	ch := doc.Channel
	artwork := firstArtwork(ch.Images)

	podcast := catalog.PodcastItem{
		Title:           strings.TrimSpace(ch.Title),
		Author:          strings.TrimSpace(ch.Author),
		Description:     strings.TrimSpace(ch.Description),
		ArtworkURL:      artwork,
		Categories:      flattenCategories(ch.Categories),
		Language:        strings.TrimSpace(ch.Language),
		Website:         firstWebsite(ch.Links),
		Explicit:        parseExplicit(ch.Explicit),
		Source:          "feed",
		SourceProviders: []string{"feed"},
	}
	if ts := parseFeedTime(ch.LastBuildDate); ts != nil {
		podcast.LastUpdated = ts
	} else {
		podcast.LastUpdated = parseFeedTime(ch.PubDate)
	}

	var episodes []catalog.EpisodeItem
	for _, item := range ch.Items {
		audioURL := strings.TrimSpace(item.Enclosure.URL)
		if audioURL == "" {
			continue
		}

		guid := strings.TrimSpace(item.GUID)
		if guid == "" {
			guid = audioURL
		}

		episodeArt := firstArtwork(item.Images)
		if episodeArt == "" {
			episodeArt = artwork
		}

		episodes = append(episodes, catalog.EpisodeItem{
			GUID:        guid,
			Title:       strings.TrimSpace(item.Title),
			Description: strings.TrimSpace(item.Description),
			AudioURL:    audioURL,
			Duration:    parseDuration(item.Duration),
			ArtworkURL:  episodeArt,
			PublishedAt: parseFeedTime(item.PubDate),
		})
	}
	podcast.EpisodeCount = catalog.IntPtr(len(episodes))

	return podcast, episodes, nil
}

// ParseURL fetches url and parses the body as a podcast feed.
func (p *Parser) ParseURL(ctx context.Context, url string) (catalog.PodcastItem, []catalog.EpisodeItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return catalog.PodcastItem{}, nil, fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return catalog.PodcastItem{}, nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return catalog.PodcastItem{}, nil, fmt.Errorf("fetching feed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return catalog.PodcastItem{}, nil, fmt.Errorf("reading feed body: %w", err)
	}

	podcast, episodes, err := p.Parse(data)
	if err != nil {
		return catalog.PodcastItem{}, nil, err
	}
	if podcast.FeedURL == "" {
		podcast.FeedURL = url
	}
	p.logger.Debug().Str("url", url).Int("episodes", len(episodes)).Msg("Parsed feed")
	return podcast, episodes, nil
}

func firstWebsite(links []rssLink) string {
	for _, l := range links {
		if v := strings.TrimSpace(l.Value); v != "" {
			return v
		}
	}
	return ""
}

func firstArtwork(images []rssImage) string {
	for _, img := range images {
		if img.Href != "" {
			return img.Href
		}
		if u := strings.TrimSpace(img.URL); u != "" {
			return u
		}
	}
	return ""
}

func flattenCategories(cats []rssCategory) []string {
	var out []string
	var walk func([]rssCategory)
	walk = func(cs []rssCategory) {
		for _, c := range cs {
			name := c.Text
			if name == "" {
				name = strings.TrimSpace(c.Value)
			}
			if name != "" {
				out = appendCategory(out, name)
			}
			walk(c.Subs)
		}
	}
	walk(cats)
	return out
}

func appendCategory(set []string, name string) []string {
	for _, existing := range set {
		if strings.EqualFold(existing, name) {
			return set
		}
	}
	return append(set, name)
}

// parseDuration accepts plain seconds or clock notation (HH:MM:SS, MM:SS).
// Anything else yields nil rather than failing the episode.
func parseDuration(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return nil
		}
		return catalog.IntPtr(secs)
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return nil
	}
	total := 0
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 {
			return nil
		}
		total = total*60 + v
	}
	return catalog.IntPtr(total)
}

func parseExplicit(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true":
		return catalog.BoolPtr(true)
	case "no", "false", "clean":
		return catalog.BoolPtr(false)
	default:
		return nil
	}
}

func parseFeedTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
