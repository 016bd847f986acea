package clients

import (
	"net"
	"net/http"
	"time"
)

// DefaultTransport returns an HTTP transport with per-host connection limits.
// Platform APIs are rate limited and occasionally slow; capping connections
// keeps a dead upstream from exhausting goroutines and file descriptors.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		MaxConnsPerHost:     50,
		MaxIdleConnsPerHost: 10,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// NewHTTPClient returns an HTTP client with the default transport and a
// bounded overall timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Transport: DefaultTransport(),
		Timeout:   timeout,
	}
}
