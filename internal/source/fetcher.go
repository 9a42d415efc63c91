// Package source opens dataset locations and loads them into the store.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Fetcher opens local paths and http(s) URLs.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a Fetcher whose HTTP requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open returns the content at location. Failed loads are not retried.
func (f *Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !IsRemote(location) {
		file, err := os.Open(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", location, err)
		}
		return file, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", location, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: status %d", location, resp.StatusCode)
	}
	return resp.Body, nil
}

// Join appends a file name to a directory path or base URL.
func Join(base, file string) string {
	if base == "" {
		return file
	}
	return strings.TrimSuffix(base, "/") + "/" + file
}
