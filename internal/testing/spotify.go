package testing

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

// FixtureTrack is a track served by [SpotifyServer].
type FixtureTrack struct {
	ID         string
	Name       string
	Artist     string // empty serves a track with no artists
	Popularity int
	Markets    []string
}

// SpotifyFixture is the catalogue a [SpotifyServer] serves.
type SpotifyFixture struct {
	Categories []string
	Markets    []string
	Tracks     map[string][]FixtureTrack // keyed by category name
}

// SpotifyServer fakes the token endpoint and the catalogue endpoints of the Spotify Web API.
//
// Faults queue status codes that the next requests to an endpoint receive before the fixture is served.
type SpotifyServer struct {
	*httptest.Server

	mu                sync.Mutex
	fixture           SpotifyFixture
	faults            map[string][]int
	hits              map[string]int
	rejectCredentials bool
}

// NewSpotifyServer starts a fake Spotify server closed at the end of the test.
func NewSpotifyServer(t *testing.T, fixture SpotifyFixture) *SpotifyServer {
	t.Helper()

	s := &SpotifyServer{
		fixture: fixture,
		faults:  make(map[string][]int),
		hits:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", s.handleToken)
	mux.HandleFunc("GET /v1/markets", s.handleMarkets)
	mux.HandleFunc("GET /v1/browse/categories", s.handleCategories)
	mux.HandleFunc("GET /v1/search", s.handleSearch)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// TokenURL returns the client-credentials token endpoint.
func (s *SpotifyServer) TokenURL() string { return s.URL + "/api/token" }

// APIURL returns the Web API base URL.
func (s *SpotifyServer) APIURL() string { return s.URL + "/v1" }

// Fail queues statuses for the next requests to endpoint: "token", "markets", "categories"
// or a genre name for its search requests.
func (s *SpotifyServer) Fail(endpoint string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[endpoint] = append(s.faults[endpoint], statuses...)
}

// RejectCredentials makes the token endpoint answer 401.
func (s *SpotifyServer) RejectCredentials() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectCredentials = true
}

// Hits returns how many requests endpoint received, faults included.
func (s *SpotifyServer) Hits(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[endpoint]
}

// fault records a hit and pops the next queued status for endpoint, zero when none.
func (s *SpotifyServer) fault(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[endpoint]++
	queue := s.faults[endpoint]
	if len(queue) == 0 {
		return 0
	}
	s.faults[endpoint] = queue[1:]
	return queue[0]
}

func writeFault(w http.ResponseWriter, status int) {
	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "0")
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"status": status, "message": http.StatusText(status)},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *SpotifyServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if status := s.fault("token"); status != 0 {
		writeFault(w, status)
		return
	}
	s.mu.Lock()
	reject := s.rejectCredentials
	s.mu.Unlock()
	if reject {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_client",
			"error_description": "Invalid client",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": "test-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer test-token" {
		writeFault(w, http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *SpotifyServer) handleMarkets(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	if status := s.fault("markets"); status != 0 {
		writeFault(w, status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": s.fixture.Markets})
}

func (s *SpotifyServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	if status := s.fault("categories"); status != 0 {
		writeFault(w, status)
		return
	}

	limit, offset := pageParams(r)
	start, end, next := window(len(s.fixture.Categories), limit, offset)

	items := make([]map[string]any, 0, end-start)
	for _, name := range s.fixture.Categories[start:end] {
		items = append(items, map[string]any{"id": strings.ToLower(name), "name": name, "icons": []any{}})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": map[string]any{
			"items":  items,
			"total":  len(s.fixture.Categories),
			"limit":  limit,
			"offset": offset,
			"next":   next,
		},
	})
}

func (s *SpotifyServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}

	genre := strings.TrimPrefix(r.URL.Query().Get("q"), "genre:")
	if unquoted, err := strconv.Unquote(genre); err == nil {
		genre = unquoted
	}
	if status := s.fault(genre); status != 0 {
		writeFault(w, status)
		return
	}

	tracks := s.fixture.Tracks[genre]
	limit, offset := pageParams(r)
	start, end, next := window(len(tracks), limit, offset)

	items := make([]map[string]any, 0, end-start)
	for _, tr := range tracks[start:end] {
		artists := []map[string]string{}
		if tr.Artist != "" {
			artists = append(artists, map[string]string{"id": strings.ToLower(tr.Artist), "name": tr.Artist})
		}
		items = append(items, map[string]any{
			"id":                tr.ID,
			"name":              tr.Name,
			"popularity":        tr.Popularity,
			"available_markets": tr.Markets,
			"artists":           artists,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tracks": map[string]any{
			"items":  items,
			"total":  len(tracks),
			"limit":  limit,
			"offset": offset,
			"next":   next,
		},
	})
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}
	return limit, offset
}

// window returns the slice bounds of a page and the next-page URL, nil on the last page.
func window(total, limit, offset int) (start, end int, next *string) {
	start = min(offset, total)
	end = min(offset+limit, total)
	if end < total {
		url := "next?offset=" + strconv.Itoa(end)
		next = &url
	}
	return start, end, next
}
