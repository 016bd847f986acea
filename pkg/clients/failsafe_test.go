package clients

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultShouldRetry(t *testing.T) {
	require.True(t, DefaultShouldRetry(nil, errors.New("connection refused")))
	require.True(t, DefaultShouldRetry(nil, nil))

	retryable := []int{500, 502, 503, 504, 429}
	for _, code := range retryable {
		require.True(t, DefaultShouldRetry(&http.Response{StatusCode: code}, nil), "status %d", code)
	}
	final := []int{200, 201, 400, 401, 403, 404}
	for _, code := range final {
		require.False(t, DefaultShouldRetry(&http.Response{StatusCode: code}, nil), "status %d", code)
	}
}

func TestExecuteHTTPRetriesUntilSuccess(t *testing.T) {
	executor := NewHTTPExecutor(HTTPExecutorConfig{MaxRetries: 2, BaseDelay: 1, MaxDelay: 1})

	calls := 0
	resp, err := ExecuteHTTP(context.Background(), executor, func() (*http.Response, error) {
		calls++
		if calls < 3 {
			return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: http.NoBody}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, calls)
}

func TestExecuteHTTPDoesNotRetryClientErrors(t *testing.T) {
	executor := NewHTTPExecutor(HTTPExecutorConfig{MaxRetries: 2, BaseDelay: 1, MaxDelay: 1})

	calls := 0
	resp, err := ExecuteHTTP(context.Background(), executor, func() (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: http.NoBody}, nil
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 1, calls)
}

func TestExecuteHTTPRespectsContext(t *testing.T) {
	executor := NewHTTPExecutor(DefaultHTTPExecutorConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteHTTP(ctx, executor, func() (*http.Response, error) {
		return nil, errors.New("network down")
	})
	require.Error(t, err)
}
