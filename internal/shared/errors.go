package shared

import "errors"

var (
	// Configuration errors
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Authentication errors
	ErrAuthFailed = errors.New("authentication failed")

	// API and transport errors
	ErrAPIRequest        = errors.New("API request failed")
	ErrRateLimited       = errors.New("rate limited")
	ErrRetriesExhausted  = errors.New("retries exhausted")
	ErrMalformedResponse = errors.New("malformed response")

	// Pipeline errors
	ErrNoMarkets       = errors.New("no markets available")
	ErrIncompleteRun   = errors.New("ingestion incomplete")
	ErrIncompleteGenre = errors.New("genre data incomplete")
	ErrNoISOColumn     = errors.New("no ISO-2 property found in boundaries")
	ErrGenreNotFound   = errors.New("genre not found")

	// Ledger errors
	ErrRunNotFound = errors.New("run not found")

	// Input validation errors
	ErrInvalidInput = errors.New("invalid input")
)
