// Package facebook publishes photo posts to a Facebook page through the
// Graph API using a stored page access token.
package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"postdeck/internal/platform"
	"postdeck/pkg/clients"
)

const (
	defaultGraphBaseURL = "https://graph.facebook.com/v19.0"
	defaultTimeout      = 30 * time.Second

	sharerBaseURL = "https://www.facebook.com/sharer/sharer.php"
)

// ErrMediaRequired is returned when a post has no image. Page photo posts
// need one; text-only page posts are not part of this design.
var ErrMediaRequired = errors.New("facebook page posts require an image")

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("facebook returned status %d: %s", e.StatusCode, e.Body)
}

// Client is a Facebook page publishing client.
type Client struct {
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// NewClient creates a Facebook Graph API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: clients.NewHTTPClient(defaultTimeout),
		executor:   clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
		baseURL:    defaultGraphBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURL overrides the Graph API endpoint (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// Publish posts the hosted image plus caption to the page photo endpoint in
// a single step. The Graph API downloads the image from the URL itself.
func (c *Client) Publish(ctx context.Context, cred platform.Credential, caption, mediaURL string) (platform.Result, error) {
	if mediaURL == "" {
		return platform.Result{}, ErrMediaRequired
	}
	if cred.PageID == "" {
		return platform.Result{}, fmt.Errorf("credential missing facebook page id")
	}

	endpoint := fmt.Sprintf("%s/%s/photos", c.baseURL, cred.PageID)
	form := url.Values{
		"url":          {mediaURL},
		"caption":      {caption},
		"access_token": {cred.AccessToken},
	}

	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return platform.Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return platform.Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return platform.Result{}, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var photo photoPostResponse
	if err := json.Unmarshal(body, &photo); err != nil {
		return platform.Result{}, fmt.Errorf("parse response: %w (body: %s)", err, string(body))
	}
	postID := photo.PostID
	if postID == "" {
		postID = photo.ID
	}
	if postID == "" {
		return platform.Result{}, fmt.Errorf("photo response missing post id")
	}

	return platform.PostedResult(platform.ActionAutoPosted, "https://www.facebook.com/"+postID), nil
}

type photoPostResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

// ShareDialogResult builds the manual sharer fallback. The caption rides
// along so the UI can offer it for copy/paste; publishing is handed off to
// the user rather than failed.
func ShareDialogResult(caption, mediaURL string) platform.Result {
	shareURL := sharerBaseURL + "?quote=" + url.QueryEscape(caption)
	if mediaURL != "" {
		shareURL += "&u=" + url.QueryEscape(mediaURL)
	}
	return platform.Result{
		Status:           platform.StatusSuccess,
		Action:           platform.ActionShareDialog,
		URL:              shareURL,
		OptimizedCaption: caption,
	}
}
