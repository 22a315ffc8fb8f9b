// Package services defines the [Service] interface for reading a music catalogue and implements it for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] authenticates with the client-credentials flow. The [oauth2.TokenSource] caches the
// access token in memory and refreshes it when it expires; tokens are never written to disk.
//
// Requests go through a [retryablehttp.Client]:
//   - 429 and 5xx responses and connection errors are retried up to MaxRetries times
//   - Retry-After is honoured on 429 and 503
//   - every retry is logged at warn level
//
// A [rate.Limiter] paces requests to RequestRate per second with one request in flight.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAuthFailed] : the token endpoint rejected the credentials
//   - [shared.ErrRetriesExhausted] : a retryable failure persisted past MaxRetries
//   - [shared.ErrRateLimited] : the exhausted failure was a 429
//   - [shared.ErrAPIRequest] : any non-2xx response, see [APIError]
//   - [shared.ErrMalformedResponse] : the body was not the expected JSON
package services
