package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/cache"
	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/feed"
	"github.com/skywave/skywave/internal/provider"
	"github.com/skywave/skywave/internal/search"
)

type fakeSearchService struct {
	stationReq search.StationRequest
	stationRes search.StationResult
	podcastReq search.PodcastRequest
	podcastRes search.PodcastResult
	statuses   []provider.Status
}

func (f *fakeSearchService) SearchStations(ctx context.Context, req search.StationRequest) search.StationResult {
	f.stationReq = req
	return f.stationRes
}

func (f *fakeSearchService) SearchPodcasts(ctx context.Context, req search.PodcastRequest) search.PodcastResult {
	f.podcastReq = req
	return f.podcastRes
}

func (f *fakeSearchService) ProviderStatuses(ctx context.Context) []provider.Status {
	return f.statuses
}

type fakeFeedParser struct {
	podcast  catalog.PodcastItem
	episodes []catalog.EpisodeItem
	err      error
	gotURL   string
	gotBody  []byte
}

func (f *fakeFeedParser) Parse(data []byte) (catalog.PodcastItem, []catalog.EpisodeItem, error) {
	f.gotBody = data
	return f.podcast, f.episodes, f.err
}

func (f *fakeFeedParser) ParseURL(ctx context.Context, url string) (catalog.PodcastItem, []catalog.EpisodeItem, error) {
	f.gotURL = url
	return f.podcast, f.episodes, f.err
}

type fakeDirectory struct {
	stations []catalog.StationItem
	podcasts []catalog.PodcastItem
	err      error
	gotLimit int
}

func (f *fakeDirectory) RecentStations(ctx context.Context, limit int) ([]catalog.StationItem, error) {
	f.gotLimit = limit
	return f.stations, f.err
}

func (f *fakeDirectory) RecentPodcasts(ctx context.Context, limit int) ([]catalog.PodcastItem, error) {
	f.gotLimit = limit
	return f.podcasts, f.err
}

func newTestServer(searchService *fakeSearchService, parser *fakeFeedParser) *Server {
	return NewServer(searchService, parser, cache.NewMemory(), nil, &config.Config{}, zerolog.Nop())
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestSearchStationsEndpoint(t *testing.T) {
	fake := &fakeSearchService{
		stationRes: search.StationResult{
			Data: []catalog.StationItem{
				{ID: "1", Name: "Jazz FM", StreamURL: "http://s/jazz", Source: "radiobrowser"},
			},
			Total: 1, Page: 2, TotalPages: 2,
		},
	}
	s := newTestServer(fake, &fakeFeedParser{})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/stations/search?query=Jazz&country=US&tag=smooth&page=2&limit=5&providers=radiobrowser,%20shoutcast&bypassCache=true", nil)
	rec := doRequest(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result search.StationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if result.Total != 1 || result.Page != 2 || result.TotalPages != 2 {
		t.Errorf("Unexpected envelope: %+v", result)
	}
	if len(result.Data) != 1 || result.Data[0].Name != "Jazz FM" {
		t.Errorf("Unexpected data: %+v", result.Data)
	}

	if fake.stationReq.Query != "Jazz" || fake.stationReq.Country != "US" || fake.stationReq.Tag != "smooth" {
		t.Errorf("Unexpected request facets: %+v", fake.stationReq)
	}
	if fake.stationReq.Page != 2 || fake.stationReq.Limit != 5 {
		t.Errorf("Expected page 2 limit 5, got %d %d", fake.stationReq.Page, fake.stationReq.Limit)
	}
	if !reflect.DeepEqual(fake.stationReq.Providers, []string{"radiobrowser", "shoutcast"}) {
		t.Errorf("Unexpected provider filter: %v", fake.stationReq.Providers)
	}
	if !fake.stationReq.BypassCache {
		t.Error("Expected bypassCache to be set")
	}
}

func TestSearchPodcastsEndpoint(t *testing.T) {
	fake := &fakeSearchService{
		podcastRes: search.PodcastResult{
			Data:  []catalog.PodcastItem{{ID: "p1", Title: "History Hour", Source: "itunes"}},
			Total: 1,
		},
	}
	s := newTestServer(fake, &fakeFeedParser{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/podcasts/search?query=history&language=en&limit=10", nil)
	rec := doRequest(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result search.PodcastResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if result.Total != 1 || len(result.Data) != 1 || result.Data[0].Title != "History Hour" {
		t.Errorf("Unexpected envelope: %+v", result)
	}

	if fake.podcastReq.Query != "history" || fake.podcastReq.Language != "en" || fake.podcastReq.Limit != 10 {
		t.Errorf("Unexpected request: %+v", fake.podcastReq)
	}
	if fake.podcastReq.Providers != nil {
		t.Errorf("Expected no provider filter, got %v", fake.podcastReq.Providers)
	}
}

func TestListProvidersEndpoint(t *testing.T) {
	fake := &fakeSearchService{
		statuses: []provider.Status{
			{Name: "radiobrowser", Kind: provider.KindStation, Enabled: true, Available: true, Priority: 1},
			{Name: "podcastindex", Kind: provider.KindPodcast, Enabled: false, Priority: 2},
		},
	}
	s := newTestServer(fake, &fakeFeedParser{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var response struct {
		Data []provider.Status `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(response.Data) != 2 {
		t.Fatalf("Expected 2 statuses, got %d", len(response.Data))
	}
	if response.Data[0].Name != "radiobrowser" || !response.Data[0].Available {
		t.Errorf("Unexpected first status: %+v", response.Data[0])
	}
}

func TestParseFeedFromURL(t *testing.T) {
	parser := &fakeFeedParser{
		podcast: catalog.PodcastItem{Title: "Daily Tech"},
		episodes: []catalog.EpisodeItem{
			{GUID: "e1", Title: "Episode 1", AudioURL: "https://cdn/1.mp3"},
		},
	}
	s := newTestServer(&fakeSearchService{}, parser)

	body := strings.NewReader(`{"url": "https://feeds.example.com/tech.xml"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/podcasts/feed", body)
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if parser.gotURL != "https://feeds.example.com/tech.xml" {
		t.Errorf("Expected the url to be fetched, got %q", parser.gotURL)
	}

	var response FeedParseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Podcast.Title != "Daily Tech" {
		t.Errorf("Podcast title = %q, want %q", response.Podcast.Title, "Daily Tech")
	}
	if len(response.Episodes) != 1 || response.Episodes[0].GUID != "e1" {
		t.Errorf("Unexpected episodes: %+v", response.Episodes)
	}
}

func TestParseFeedFromBody(t *testing.T) {
	parser := &fakeFeedParser{podcast: catalog.PodcastItem{Title: "Raw Feed"}}
	s := newTestServer(&fakeSearchService{}, parser)

	raw := `<?xml version="1.0"?><rss><channel><title>Raw Feed</title></channel></rss>`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/podcasts/feed", strings.NewReader(raw))
	req.Header.Set("Content-Type", "application/rss+xml")
	rec := doRequest(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if string(parser.gotBody) != raw {
		t.Errorf("Expected the raw body to reach the parser, got %q", parser.gotBody)
	}
	if parser.gotURL != "" {
		t.Errorf("Expected no fetch for a raw body, got %q", parser.gotURL)
	}
}

func TestParseFeedInvalid(t *testing.T) {
	parser := &fakeFeedParser{err: fmt.Errorf("%w: document has no channel", feed.ErrFeedInvalid)}
	s := newTestServer(&fakeSearchService{}, parser)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/podcasts/feed", strings.NewReader("not xml at all"))
	req.Header.Set("Content-Type", "text/plain")
	rec := doRequest(s, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestParseFeedFetchFailure(t *testing.T) {
	parser := &fakeFeedParser{err: errors.New("connection refused")}
	s := newTestServer(&fakeSearchService{}, parser)

	body := strings.NewReader(`{"url": "https://unreachable.example.com/feed.xml"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/podcasts/feed", body)
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(s, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestParseFeedMissingURL(t *testing.T) {
	s := newTestServer(&fakeSearchService{}, &fakeFeedParser{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/podcasts/feed", strings.NewReader(`{"url": "  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(s, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestParseFeedEmptyBody(t *testing.T) {
	s := newTestServer(&fakeSearchService{}, &fakeFeedParser{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/podcasts/feed", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/rss+xml")
	rec := doRequest(s, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRecentDirectoryWithoutStorage(t *testing.T) {
	s := newTestServer(&fakeSearchService{}, &fakeFeedParser{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/directory/recent", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRecentDirectoryStations(t *testing.T) {
	s := newTestServer(&fakeSearchService{}, &fakeFeedParser{})
	dir := &fakeDirectory{
		stations: []catalog.StationItem{{ID: "s1", Name: "Archive FM", Source: "radiobrowser"}},
	}
	s.SetDirectoryStore(dir)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/directory/recent?limit=7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if dir.gotLimit != 7 {
		t.Errorf("Expected limit 7 to reach the store, got %d", dir.gotLimit)
	}

	var response struct {
		Kind  string                `json:"kind"`
		Data  []catalog.StationItem `json:"data"`
		Total int                   `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Kind != "stations" || response.Total != 1 || len(response.Data) != 1 {
		t.Errorf("Unexpected response: %+v", response)
	}
}

func TestRecentDirectoryPodcasts(t *testing.T) {
	s := newTestServer(&fakeSearchService{}, &fakeFeedParser{})
	s.SetDirectoryStore(&fakeDirectory{
		podcasts: []catalog.PodcastItem{{ID: "p1", Title: "Archive Cast", Source: "itunes"}},
	})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/directory/recent?kind=podcasts", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var response struct {
		Kind  string                `json:"kind"`
		Data  []catalog.PodcastItem `json:"data"`
		Total int                   `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Kind != "podcasts" || response.Total != 1 {
		t.Errorf("Unexpected response: %+v", response)
	}
}

func TestRecentDirectoryReadFailureDegrades(t *testing.T) {
	s := newTestServer(&fakeSearchService{}, &fakeFeedParser{})
	s.SetDirectoryStore(&fakeDirectory{err: errors.New("disk io error")})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/directory/recent", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var response struct {
		Data  []catalog.StationItem `json:"data"`
		Total int                   `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Total != 0 || response.Data == nil {
		t.Errorf("Expected an empty data envelope, got %+v", response)
	}
}

func TestRecentDirectoryBadKind(t *testing.T) {
	s := newTestServer(&fakeSearchService{}, &fakeFeedParser{})
	s.SetDirectoryStore(&fakeDirectory{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/directory/recent?kind=movies", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeSearchService{}, &fakeFeedParser{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", response["status"])
	}
}

func TestSystemStatusEndpoint(t *testing.T) {
	s := newTestServer(&fakeSearchService{}, &fakeFeedParser{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/system/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var response struct {
		Version        string      `json:"version"`
		StartTime      string      `json:"startTime"`
		Cache          cache.Stats `json:"cache"`
		StorageEnabled bool        `json:"storageEnabled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Version == "" {
		t.Error("Expected a version string")
	}
	if response.StartTime == "" {
		t.Error("Expected a start time")
	}
	if response.StorageEnabled {
		t.Error("Expected storage to be reported disabled")
	}
}

func TestRoutesRegistered(t *testing.T) {
	s := newTestServer(&fakeSearchService{}, &fakeFeedParser{})

	expectedPaths := []string{
		"/health",
		"/api/v1/system/status",
		"/api/v1/providers",
		"/api/v1/stations/search",
		"/api/v1/podcasts/search",
		"/api/v1/podcasts/feed",
		"/api/v1/directory/recent",
	}

	registeredPaths := make(map[string]bool)
	for _, route := range s.Echo().Routes() {
		registeredPaths[route.Path] = true
	}

	for _, path := range expectedPaths {
		if !registeredPaths[path] {
			t.Errorf("Expected route %s not registered", path)
		}
	}
}
