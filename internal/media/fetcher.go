// Package media handles hosted images: downloading them for platforms
// that need raw bytes, and rehosting uploads in object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"postdeck/pkg/clients"
)

const (
	defaultFetchTimeout = 20 * time.Second

	// MaxImageBytes caps downloads; the platforms reject larger images anyway.
	MaxImageBytes = 8 << 20
)

// Fetcher downloads media bytes from a hosted URL with a bounded timeout
// and size cap.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewFetcher creates a Fetcher. A zero timeout falls back to 20 seconds.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		httpClient: clients.NewHTTPClient(timeout),
		maxBytes:   MaxImageBytes,
	}
}

// Fetch downloads the media and returns its bytes and content type.
func (f *Fetcher) Fetch(ctx context.Context, rawurl string) ([]byte, string, error) {
	if !strings.HasPrefix(rawurl, "http://") && !strings.HasPrefix(rawurl, "https://") {
		return nil, "", fmt.Errorf("unsupported media url %q", rawurl)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch media: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("media exceeds %d byte limit", f.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
