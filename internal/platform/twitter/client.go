// Package twitter publishes posts through the legacy OAuth1.0a media upload
// endpoint and the v2 tweet creation endpoint.
package twitter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"postdeck/internal/platform"
	"postdeck/internal/platform/oauth1"
	"postdeck/pkg/clients"
)

const (
	defaultAPIBaseURL    = "https://api.twitter.com"
	defaultUploadBaseURL = "https://upload.twitter.com/1.1"
	defaultTimeout       = 30 * time.Second

	intentBaseURL = "https://twitter.com/intent/tweet"
)

// APIError is a non-2xx response from the Twitter API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter returned status %d: %s", e.StatusCode, e.Body)
}

// MediaFetcher downloads media bytes from a hosted URL.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Client is a Twitter publishing client. One client serves all users; the
// per-user token pair arrives with each call.
type Client struct {
	consumerKey    string
	consumerSecret string
	signer         *oauth1.Signer
	httpClient     *http.Client
	executor       failsafe.Executor[*http.Response]
	fetcher        MediaFetcher

	apiBaseURL    string
	uploadBaseURL string
}

// Option configures a Client.
type Option func(*Client)

// NewClient creates a Twitter client using the application's consumer key pair.
func NewClient(consumerKey, consumerSecret string, fetcher MediaFetcher, opts ...Option) *Client {
	c := &Client{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		signer:         oauth1.NewSigner(),
		httpClient:     clients.NewHTTPClient(defaultTimeout),
		executor:       clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
		fetcher:        fetcher,
		apiBaseURL:     defaultAPIBaseURL,
		uploadBaseURL:  defaultUploadBaseURL,
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

// WithBaseURLs overrides the API and upload endpoints (tests, proxies).
func WithBaseURLs(apiBaseURL, uploadBaseURL string) Option {
	return func(c *Client) {
		if apiBaseURL != "" {
			c.apiBaseURL = strings.TrimSuffix(apiBaseURL, "/")
		}
		if uploadBaseURL != "" {
			c.uploadBaseURL = strings.TrimSuffix(uploadBaseURL, "/")
		}
	}
}

// WithSigner overrides the OAuth1 signer (deterministic tests).
func WithSigner(signer *oauth1.Signer) Option {
	return func(c *Client) {
		if signer != nil {
			c.signer = signer
		}
	}
}

// Publish uploads media when present, then creates the tweet. Both steps are
// signed with the user's token pair. A response carrying a tweet id counts
// as success; any other outcome is an error for the caller's fallback policy.
func (c *Client) Publish(ctx context.Context, cred platform.Credential, caption, mediaURL string) (platform.Result, error) {
	userCreds := oauth1.Credentials{
		ConsumerKey:    c.consumerKey,
		ConsumerSecret: c.consumerSecret,
		Token:          cred.AccessToken,
		TokenSecret:    cred.AccessTokenSecret,
	}

	var mediaID string
	if mediaURL != "" {
		id, err := c.uploadMedia(ctx, userCreds, mediaURL)
		if err != nil {
			return platform.Result{}, fmt.Errorf("upload media: %w", err)
		}
		mediaID = id
	}

	tweetID, err := c.createTweet(ctx, userCreds, caption, mediaID)
	if err != nil {
		return platform.Result{}, fmt.Errorf("create tweet: %w", err)
	}

	return platform.PostedResult(platform.ActionAutoPosted, "https://twitter.com/i/web/status/"+tweetID), nil
}

// uploadMedia downloads the hosted image, base64-encodes it and posts it to
// the chunkless media upload endpoint. The encoded payload is a form
// parameter and therefore part of the OAuth1 signature.
func (c *Client) uploadMedia(ctx context.Context, creds oauth1.Credentials, mediaURL string) (string, error) {
	data, _, err := c.fetcher.Fetch(ctx, mediaURL)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	endpoint := c.uploadBaseURL + "/media/upload.json"
	form := url.Values{"media_data": {encoded}}

	header, err := c.signer.AuthorizationHeader(http.MethodPost, endpoint, map[string]string{"media_data": encoded}, creds)
	if err != nil {
		return "", err
	}

	var uploaded mediaUploadResponse
	if err := c.do(ctx, http.MethodPost, endpoint, header, "application/x-www-form-urlencoded", form.Encode(), &uploaded); err != nil {
		return "", err
	}
	if uploaded.MediaIDString == "" {
		return "", fmt.Errorf("upload response missing media id")
	}
	return uploaded.MediaIDString, nil
}

// createTweet posts the v2 JSON body. JSON bodies are not request parameters
// under RFC 5849, so only the oauth_* parameters enter the signature.
func (c *Client) createTweet(ctx context.Context, creds oauth1.Credentials, caption, mediaID string) (string, error) {
	endpoint := c.apiBaseURL + "/2/tweets"

	body := createTweetRequest{Text: caption}
	if mediaID != "" {
		body.Media = &tweetMedia{MediaIDs: []string{mediaID}}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	header, err := c.signer.AuthorizationHeader(http.MethodPost, endpoint, nil, creds)
	if err != nil {
		return "", err
	}

	var created createTweetResponse
	if err := c.do(ctx, http.MethodPost, endpoint, header, "application/json", string(payload), &created); err != nil {
		return "", err
	}
	if created.Data.ID == "" {
		return "", fmt.Errorf("tweet response missing id")
	}
	return created.Data.ID, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, authHeader, contentType, payload string, out interface{}) error {
	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", authHeader)
		req.Header.Set("Content-Type", contentType)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w (body: %s)", err, string(respBody))
		}
	}
	return nil
}

// ShareDialogResult builds the manual compose-intent fallback. Handing the
// user a pre-filled intent link is a degraded success, not a failure.
func ShareDialogResult(caption, _ string) platform.Result {
	return platform.Result{
		Status:           platform.StatusSuccess,
		Action:           platform.ActionShareDialog,
		URL:              intentBaseURL + "?text=" + url.QueryEscape(caption),
		OptimizedCaption: caption,
	}
}
