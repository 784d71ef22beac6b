package taddy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/provider"
)

func testConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Enabled:   true,
		BaseURL:   baseURL,
		Bearer:    "test-token",
		TimeoutMs: 5000,
	}
}

func TestSearchPodcasts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/graphql" {
			t.Errorf("Expected path /graphql, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer auth header, got %s", got)
		}

		var body struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		if !strings.Contains(body.Query, "searchForTerm") {
			t.Errorf("Expected query document to use searchForTerm, got %s", body.Query)
		}
		if !strings.Contains(body.Query, "filterForTypes: PODCASTSERIES") {
			t.Errorf("Expected query document to filter for podcast series, got %s", body.Query)
		}
		if got := body.Variables["term"]; got != "true crime" {
			t.Errorf("Expected term variable true crime, got %v", got)
		}
		if got := body.Variables["limit"]; got != float64(15) {
			t.Errorf("Expected limit variable 15, got %v", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": {
				"searchForTerm": {
					"podcastSeries": [
						{
							"uuid": "d0cc2a1a",
							"name": "Crime Stories",
							"description": "Weekly cases.",
							"imageUrl": "https://img.example.com/cs.jpg",
							"rssUrl": "https://feeds.example.com/cs.xml",
							"itunesId": 123456,
							"authorName": "Jane Host",
							"language": "ENGLISH",
							"genres": ["PODCASTSERIES_TRUE_CRIME", "PODCASTSERIES_NEWS"],
							"totalEpisodesCount": 240,
							"isExplicitContent": true,
							"popularityRank": "TOP_200",
							"websiteUrl": "https://example.com/cs"
						},
						{
							"uuid": "7f3b",
							"name": "Quiet Show",
							"itunesId": 0,
							"genres": [],
							"popularityRank": ""
						}
					]
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zerolog.Nop())

	items, err := client.SearchPodcasts(context.Background(), provider.PodcastQuery{Query: "true crime", Limit: 15})
	if err != nil {
		t.Fatalf("SearchPodcasts failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.ID != "d0cc2a1a" {
		t.Errorf("Expected ID d0cc2a1a, got %s", first.ID)
	}
	if first.Title != "Crime Stories" {
		t.Errorf("Expected title Crime Stories, got %s", first.Title)
	}
	if first.ITunesID != "123456" {
		t.Errorf("Expected iTunes ID 123456, got %s", first.ITunesID)
	}
	if first.Language != "english" {
		t.Errorf("Expected lowercased language, got %s", first.Language)
	}
	if !reflect.DeepEqual(first.Categories, []string{"True Crime", "News"}) {
		t.Errorf("Expected normalized genres, got %v", first.Categories)
	}
	if first.EpisodeCount == nil || *first.EpisodeCount != 240 {
		t.Errorf("Expected episode count 240, got %v", first.EpisodeCount)
	}
	if first.Explicit == nil || !*first.Explicit {
		t.Errorf("Expected explicit true, got %v", first.Explicit)
	}
	if first.Popularity != 5000 {
		t.Errorf("Expected popularity 5000 for TOP_200, got %d", first.Popularity)
	}
	if first.Source != "taddy" {
		t.Errorf("Expected source taddy, got %s", first.Source)
	}
	if !reflect.DeepEqual(first.SourceProviders, []string{"taddy"}) {
		t.Errorf("Expected sourceProviders [taddy], got %v", first.SourceProviders)
	}

	second := items[1]
	if second.ITunesID != "" {
		t.Errorf("Expected empty iTunes ID, got %s", second.ITunesID)
	}
	if second.Categories != nil {
		t.Errorf("Expected nil categories, got %v", second.Categories)
	}
	if second.Popularity != 0 {
		t.Errorf("Expected popularity 0 for missing rank, got %d", second.Popularity)
	}
	if second.EpisodeCount != nil {
		t.Errorf("Expected nil episode count, got %v", second.EpisodeCount)
	}
}

func TestSearchPodcastsGraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors": [{"message": "monthly quota exceeded"}]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zerolog.Nop())

	_, err := client.SearchPodcasts(context.Background(), provider.PodcastQuery{Query: "news"})
	if err == nil {
		t.Fatal("Expected error for GraphQL errors response")
	}
	if !strings.Contains(err.Error(), "quota") {
		t.Errorf("Expected quota message in error, got %v", err)
	}
}

func TestSearchPodcastsMissingToken(t *testing.T) {
	cfg := testConfig("http://example.invalid")
	cfg.Bearer = ""
	client := NewClient(cfg, zerolog.Nop())

	if client.IsAvailable() {
		t.Error("Expected IsAvailable to be false without a token")
	}
	_, err := client.SearchPodcasts(context.Background(), provider.PodcastQuery{Query: "news"})
	if err != ErrTokenMissing {
		t.Errorf("Expected ErrTokenMissing, got %v", err)
	}
}

func TestPopularityFromRank(t *testing.T) {
	cases := []struct {
		rank string
		want int
	}{
		{"TOP_200", 5000},
		{"TOP_1000", 1000},
		{"TOP_10000", 100},
		{"", 0},
		{"UNRANKED", 0},
	}
	for _, tc := range cases {
		if got := popularityFromRank(tc.rank); got != tc.want {
			t.Errorf("popularityFromRank(%q) = %d, want %d", tc.rank, got, tc.want)
		}
	}
}
