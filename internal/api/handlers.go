package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/feed"
	"github.com/skywave/skywave/internal/search"
)

// StationSearchRequest represents a station search request.
type StationSearchRequest struct {
	Query       string `query:"query"`
	Country     string `query:"country"`
	Language    string `query:"language"`
	Tag         string `query:"tag"`
	Page        int    `query:"page"`
	Limit       int    `query:"limit"`
	Providers   string `query:"providers"` // comma-separated provider names
	BypassCache bool   `query:"bypassCache"`
}

// PodcastSearchRequest represents a podcast search request.
type PodcastSearchRequest struct {
	Query       string `query:"query"`
	Language    string `query:"language"`
	Limit       int    `query:"limit"`
	Providers   string `query:"providers"`
	BypassCache bool   `query:"bypassCache"`
}

// FeedParseRequest asks the server to fetch and parse a feed by URL.
type FeedParseRequest struct {
	URL string `json:"url"`
}

// FeedParseResponse carries a parsed feed.
type FeedParseResponse struct {
	Podcast  catalog.PodcastItem   `json:"podcast"`
	Episodes []catalog.EpisodeItem `json:"episodes"`
}

// searchStations handles station search requests.
// GET /api/v1/stations/search?query=...&country=...&language=...&tag=...&page=...&limit=...&providers=...
func (s *Server) searchStations(c echo.Context) error {
	var req StationSearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request parameters",
		})
	}

	result := s.searchService.SearchStations(c.Request().Context(), search.StationRequest{
		Query:       req.Query,
		Country:     req.Country,
		Language:    req.Language,
		Tag:         req.Tag,
		Page:        req.Page,
		Limit:       req.Limit,
		Providers:   splitProviders(req.Providers),
		BypassCache: req.BypassCache,
	})

	return c.JSON(http.StatusOK, result)
}

// searchPodcasts handles podcast search requests.
// GET /api/v1/podcasts/search?query=...&language=...&limit=...&providers=...
func (s *Server) searchPodcasts(c echo.Context) error {
	var req PodcastSearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request parameters",
		})
	}

	result := s.searchService.SearchPodcasts(c.Request().Context(), search.PodcastRequest{
		Query:       req.Query,
		Language:    req.Language,
		Limit:       req.Limit,
		Providers:   splitProviders(req.Providers),
		BypassCache: req.BypassCache,
	})

	return c.JSON(http.StatusOK, result)
}

// listProviders returns the status of every registered provider.
// GET /api/v1/providers
func (s *Server) listProviders(c echo.Context) error {
	statuses := s.searchService.ProviderStatuses(c.Request().Context())

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": statuses,
	})
}

// parseFeed parses a podcast feed submitted either as {"url": ...} JSON or as
// a raw XML body.
// POST /api/v1/podcasts/feed
func (s *Server) parseFeed(c echo.Context) error {
	ctx := c.Request().Context()

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		var req FeedParseRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}
		if strings.TrimSpace(req.URL) == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "url is required"})
		}

		podcast, episodes, err := s.feedParser.ParseURL(ctx, req.URL)
		if err != nil {
			return feedParseError(c, err)
		}
		return c.JSON(http.StatusOK, feedResponse(podcast, episodes))
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil || len(body) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "empty request body"})
	}

	podcast, episodes, err := s.feedParser.Parse(body)
	if err != nil {
		return feedParseError(c, err)
	}
	return c.JSON(http.StatusOK, feedResponse(podcast, episodes))
}

// recentDirectory returns the most recently observed items from the storage
// sink.
// GET /api/v1/directory/recent?kind=stations|podcasts&limit=...
func (s *Server) recentDirectory(c echo.Context) error {
	if s.directory == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "directory storage is not enabled"})
	}

	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	ctx := c.Request().Context()
	kind := c.QueryParam("kind")
	switch kind {
	case "", "stations":
		items, err := s.directory.RecentStations(ctx, limit)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to read recent stations")
			items = nil
		}
		if items == nil {
			items = []catalog.StationItem{}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"kind":  "stations",
			"data":  items,
			"total": len(items),
		})
	case "podcasts":
		items, err := s.directory.RecentPodcasts(ctx, limit)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to read recent podcasts")
			items = nil
		}
		if items == nil {
			items = []catalog.PodcastItem{}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"kind":  "podcasts",
			"data":  items,
			"total": len(items),
		})
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "kind must be stations or podcasts"})
	}
}

func feedParseError(c echo.Context, err error) error {
	if errors.Is(err, feed.ErrFeedInvalid) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	// The document never arrived, so its validity is unknown.
	return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
}

func feedResponse(podcast catalog.PodcastItem, episodes []catalog.EpisodeItem) FeedParseResponse {
	if episodes == nil {
		episodes = []catalog.EpisodeItem{}
	}
	return FeedParseResponse{Podcast: podcast, Episodes: episodes}
}

// splitProviders parses the comma-separated provider filter.
func splitProviders(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}

	parts := strings.Split(csv, ",")
	providers := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			providers = append(providers, name)
		}
	}
	if len(providers) == 0 {
		return nil
	}
	return providers
}
