// package services defines interface Service for reading the music catalogue over HTTP
package services

import (
	"context"
)

// PageSize is the largest page the Spotify Web API serves for categories and search.
const PageSize = 50

// Service defines the read-only catalogue operations the ingestion stage needs.
type Service interface {
	// Authenticate obtains an access token. Returns an error wrapping
	// [shared.ErrAuthFailed] when the provider rejects the credentials.
	Authenticate(ctx context.Context) error

	// Categories returns one page of browse categories.
	Categories(ctx context.Context, limit, offset int) (*CategoryPage, error)

	// Markets returns the market codes the catalogue is available in.
	Markets(ctx context.Context) ([]string, error)

	// SearchTracks returns one page of tracks matching query.
	SearchTracks(ctx context.Context, query string, limit, offset int) (*TrackPage, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// CategoryPage is one page of browse categories.
type CategoryPage struct {
	Items  []Category
	Total  int
	Offset int
	Next   bool
}

// Category is a browse category, used as a genre.
type Category struct {
	ID   string
	Name string
}

// TrackPage is one page of search results.
type TrackPage struct {
	Items  []Track
	Total  int
	Offset int
	Next   bool
}

// Track is a search result reduced to the fields ingestion aggregates.
type Track struct {
	ID               string
	Title            string
	Artist           string // primary artist, empty when the track lists none
	Popularity       int
	AvailableMarkets []string
}
