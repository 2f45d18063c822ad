/**
 * HTTP Fetcher - downloads receipt images from presigned object URLs
 *
 * Retries transient failures with linear backoff and enforces a hard size cap
 * so a mispointed URL cannot balloon worker memory.
 */

package input

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/receiptflow/receipt-worker/internal/logging"
)

const (
	fetchRetries      = 3
	fetchRetryBackoff = 2 * time.Second
)

// HTTPFetcher fetches object URLs over plain HTTP(S).
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
	log      *logging.Logger
}

// NewHTTPFetcher creates a fetcher with the given download size cap in bytes.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		backoff:  fetchRetryBackoff,
		log:      logging.NewLogger("fetcher"),
	}
}

// Fetch downloads the URL, retrying transient failures.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchRetries; attempt++ {
		data, err := f.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		f.log.Warn("download attempt failed", "attempt", attempt, "url", url, "error", err)

		if attempt < fetchRetries {
			select {
			case <-time.After(time.Duration(attempt) * f.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("failed to download after %d attempts: %w", fetchRetries, lastErr)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("download exceeds size limit of %d bytes", f.maxBytes)
	}
	return data, nil
}
