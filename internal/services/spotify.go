// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatborders/internal/shared"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Artists          []SpotifyArtist `json:"artists"`
	Album            SpotifyAlbum    `json:"album"`
	DurationMS       int             `json:"duration_ms"`
	Explicit         bool            `json:"explicit"`
	Popularity       int             `json:"popularity"`
	AvailableMarkets []string        `json:"available_markets"`
	URI              string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyCategory represents a browse category.
type SpotifyCategory struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Icons []SpotifyImage `json:"icons"`
}

// SpotifyPaginatedCategories is the response of GET /browse/categories.
type SpotifyPaginatedCategories struct {
	Categories struct {
		Items  []SpotifyCategory `json:"items"`
		Total  int               `json:"total"`
		Limit  int               `json:"limit"`
		Offset int               `json:"offset"`
		Next   *string           `json:"next"`
	} `json:"categories"`
}

// SpotifyPaginatedTracks is the response of GET /search with type=track.
type SpotifyPaginatedTracks struct {
	Tracks struct {
		Items  []SpotifyTrack `json:"items"`
		Total  int            `json:"total"`
		Limit  int            `json:"limit"`
		Offset int            `json:"offset"`
		Next   *string        `json:"next"`
	} `json:"tracks"`
}

// SpotifyMarkets is the response of GET /markets.
type SpotifyMarkets struct {
	Markets []string `json:"markets"`
}

// APIError is a non-2xx response from the Spotify API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify API error: %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Unwrap lets callers match [shared.ErrAPIRequest].
func (e *APIError) Unwrap() error {
	return shared.ErrAPIRequest
}

// Retryable reports whether the status is one the transport retries.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// SpotifyOptions configures a [SpotifyService].
type SpotifyOptions struct {
	ClientID     string
	ClientSecret string
	TokenURL     string // defaults to the Spotify accounts endpoint
	BaseURL      string // defaults to the Spotify Web API
	MaxRetries   int
	RequestRate  float64 // requests per second, zero disables pacing
	Timeout      time.Duration
	RetryWaitMin time.Duration // zero keeps the retryablehttp default
	RetryWaitMax time.Duration // zero keeps the retryablehttp default
	Logger       *log.Logger
}

// SpotifyService implements the Service interface for the Spotify Web API.
//
// Tokens come from the client-credentials flow and are cached in memory by the [oauth2.TokenSource].
// Requests go through a retrying transport that honours Retry-After and are paced by a rate limiter.
type SpotifyService struct {
	baseURL    string
	tokens     oauth2.TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSpotifyService creates a new Spotify service with the given client credentials.
func NewSpotifyService(ctx context.Context, opts SpotifyOptions) (*SpotifyService, error) {
	if strings.TrimSpace(opts.ClientID) == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if strings.TrimSpace(opts.ClientSecret) == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	logger := shared.WithLogger(opts.Logger, "service", "spotify")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.MaxRetries
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Timeout > 0 {
		retryClient.HTTPClient.Timeout = opts.Timeout
	}
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Warn("retrying request", "url", req.URL.Redacted(), "attempt", attempt, "max", opts.MaxRetries)
		}
	}

	base := retryClient.StandardClient()
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, base)

	config := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}
	tokens := config.TokenSource(tokenCtx)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestRate), 1)
	}

	return &SpotifyService{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: tokens, Base: base.Transport},
		},
		limiter: limiter,
		logger:  logger,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authenticate fetches the initial access token so bad credentials fail before any catalogue request.
func (s *SpotifyService) Authenticate(ctx context.Context) error {
	if _, err := s.tokens.Token(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	s.logger.Debug("obtained access token")
	return nil
}

// doRequest performs a paced, authenticated GET against the Spotify API and decodes the JSON body into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return fmt.Errorf("%w: %s: %v", shared.ErrRetriesExhausted, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: truncate(string(body), 200)}
		if apiErr.Retryable() {
			if resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("%w: %w: %w", shared.ErrRetriesExhausted, shared.ErrRateLimited, apiErr)
			}
			return fmt.Errorf("%w: %w", shared.ErrRetriesExhausted, apiErr)
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("%w: %s: %v", shared.ErrMalformedResponse, endpoint, err)
		}
	}
	return nil
}

// Categories retrieves one page of browse categories.
func (s *SpotifyService) Categories(ctx context.Context, limit, offset int) (*CategoryPage, error) {
	limit = clampLimit(limit)
	endpoint := fmt.Sprintf("/browse/categories?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedCategories
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	page := &CategoryPage{
		Total:  response.Categories.Total,
		Offset: response.Categories.Offset,
		Next:   response.Categories.Next != nil,
	}
	for _, c := range response.Categories.Items {
		page.Items = append(page.Items, Category{ID: c.ID, Name: c.Name})
	}
	return page, nil
}

// Markets retrieves the list of markets Spotify is available in.
func (s *SpotifyService) Markets(ctx context.Context) ([]string, error) {
	var response SpotifyMarkets
	if err := s.doRequest(ctx, "/markets", &response); err != nil {
		return nil, err
	}
	return response.Markets, nil
}

// SearchTracks searches the catalogue for tracks matching query.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit, offset int) (*TrackPage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	limit = clampLimit(limit)

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, "/search?"+params.Encode(), &response); err != nil {
		return nil, err
	}

	page := &TrackPage{
		Total:  response.Tracks.Total,
		Offset: response.Tracks.Offset,
		Next:   response.Tracks.Next != nil,
	}
	for _, item := range response.Tracks.Items {
		track := Track{
			ID:               item.ID,
			Title:            item.Name,
			Popularity:       item.Popularity,
			AvailableMarkets: item.AvailableMarkets,
		}
		if len(item.Artists) > 0 {
			track.Artist = item.Artists[0].Name
		}
		page.Items = append(page.Items, track)
	}
	return page, nil
}

// GenreQuery builds the search query that restricts results to genre.
func GenreQuery(genre string) string {
	return fmt.Sprintf("genre:%q", genre)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > PageSize {
		return PageSize
	}
	return limit
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
