package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatborders/internal/shared"
	"github.com/hashicorp/go-retryablehttp"
)

// Fetcher downloads the boundary file over a retrying HTTP client.
type Fetcher struct {
	client *retryablehttp.Client
	logger *log.Logger
}

// NewFetcher creates a Fetcher retrying up to maxRetries times with a per-attempt timeout.
func NewFetcher(maxRetries int, timeout time.Duration, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.Logger = nil
	if timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Warn("retrying boundaries download", "url", req.URL.Redacted(), "attempt", attempt)
		}
	}

	return &Fetcher{client: client, logger: logger}
}

// SetRetryWait overrides the retry backoff bounds.
func (f *Fetcher) SetRetryWait(minWait, maxWait time.Duration) {
	f.client.RetryWaitMin = minWait
	f.client.RetryWaitMax = maxWait
}

// EnsureBoundaries downloads url to path when path does not exist yet.
// It reports whether a download happened. The body must parse as a boundary
// collection with at least one country before it is written atomically.
func (f *Fetcher) EnsureBoundaries(ctx context.Context, url, path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		f.logger.Debug("using cached boundaries", "path", path)
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat boundaries %s: %w", path, err)
	}

	f.logger.Info("downloading boundaries", "url", url)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("%w: boundaries download: %v", shared.ErrRetriesExhausted, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: boundaries download: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read boundaries: %w", err)
	}

	ref, err := ParseReference(data, LoadOptions{Logger: log.New(io.Discard)})
	if err != nil {
		return false, fmt.Errorf("invalid boundaries download: %w", err)
	}
	if ref.Len() == 0 {
		return false, fmt.Errorf("%w: boundaries download has no usable countries", shared.ErrMalformedResponse)
	}

	if err := shared.WriteFileAtomic(path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to save boundaries: %w", err)
	}
	f.logger.Info("saved boundaries", "path", path, "bytes", len(data))
	return true, nil
}
