package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/cache"
	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/events"
	"github.com/skywave/skywave/internal/provider"
	"github.com/skywave/skywave/internal/search"
)

// SearchService provides the search operations backing the HTTP handlers.
type SearchService interface {
	SearchStations(ctx context.Context, req search.StationRequest) search.StationResult
	SearchPodcasts(ctx context.Context, req search.PodcastRequest) search.PodcastResult
	ProviderStatuses(ctx context.Context) []provider.Status
}

// FeedParser turns podcast feed documents into canonical items.
type FeedParser interface {
	Parse(data []byte) (catalog.PodcastItem, []catalog.EpisodeItem, error)
	ParseURL(ctx context.Context, url string) (catalog.PodcastItem, []catalog.EpisodeItem, error)
}

// DirectoryStore serves recently observed items from the storage sink.
type DirectoryStore interface {
	RecentStations(ctx context.Context, limit int) ([]catalog.StationItem, error)
	RecentPodcasts(ctx context.Context, limit int) ([]catalog.PodcastItem, error)
}

// Server handles HTTP requests for the Skywave API.
type Server struct {
	echo      *echo.Echo
	hub       *events.Hub
	logger    zerolog.Logger
	cfg       *config.Config
	startedAt time.Time

	searchService SearchService
	feedParser    FeedParser
	cache         cache.Store
	directory     DirectoryStore
}

// NewServer creates a new API server instance.
func NewServer(searchService SearchService, feedParser FeedParser, store cache.Store, hub *events.Hub, cfg *config.Config, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		hub:       hub,
		logger:    logger,
		cfg:       cfg,
		startedAt: time.Now(),

		searchService: searchService,
		feedParser:    feedParser,
		cache:         store,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// SetDirectoryStore wires the optional storage sink into the recent-items
// endpoint. Without it the endpoint reports not found.
func (s *Server) SetDirectoryStore(store DirectoryStore) {
	s.directory = store
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", s.healthCheck)

	// API v1 group
	api := s.echo.Group("/api/v1")

	// System routes
	api.GET("/system/status", s.getSystemStatus)
	api.GET("/providers", s.listProviders)

	// Station routes
	stations := api.Group("/stations")
	stations.GET("/search", s.searchStations)

	// Podcast routes
	podcasts := api.Group("/podcasts")
	podcasts.GET("/search", s.searchPodcasts)
	podcasts.POST("/feed", s.parseFeed)

	// Directory routes (storage-backed)
	api.GET("/directory/recent", s.recentDirectory)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance (for registering the WebSocket
// route and serving static files).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getSystemStatus(c echo.Context) error {
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}

	var stats cache.Stats
	if s.cache != nil {
		stats = s.cache.Stats()
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":          config.Version,
		"startTime":        s.startedAt.Format(time.RFC3339),
		"uptimeSeconds":    int64(time.Since(s.startedAt).Seconds()),
		"cache":            stats,
		"websocketClients": clients,
		"storageEnabled":   s.directory != nil,
	})
}
