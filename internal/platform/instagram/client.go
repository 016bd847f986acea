// Package instagram publishes posts to an Instagram business account linked
// to one of the user's Facebook pages, via the Graph API container flow.
package instagram

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

	placeholderPermalink = "https://www.instagram.com/"
)

// ErrNoBusinessAccount is returned when none of the user's pages has a
// linked Instagram business account.
var ErrNoBusinessAccount = errors.New("no instagram business account linked to any facebook page")

// ErrMediaRequired is returned for text-only requests; Instagram has no
// image-less feed post.
var ErrMediaRequired = errors.New("instagram posts require an image")

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("instagram returned status %d: %s", e.StatusCode, e.Body)
}

// Client is an Instagram publishing client.
type Client struct {
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// NewClient creates an Instagram Graph API client.
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

// Publish walks the container flow: find the linked business account,
// create a media container, publish it, then fetch the permalink
// best-effort. Unlike the other platforms there is no share-dialog
// fallback; errors surface to the caller as a failed result.
func (c *Client) Publish(ctx context.Context, cred platform.Credential, caption, mediaURL string) (platform.Result, error) {
	if mediaURL == "" {
		return platform.Result{}, ErrMediaRequired
	}

	accountID, pageToken, err := c.findBusinessAccount(ctx, cred.AccessToken)
	if err != nil {
		return platform.Result{}, err
	}

	creationID, err := c.createContainer(ctx, accountID, pageToken, caption, mediaURL)
	if err != nil {
		return platform.Result{}, fmt.Errorf("create media container: %w", err)
	}

	mediaID, err := c.publishContainer(ctx, accountID, pageToken, creationID)
	if err != nil {
		return platform.Result{}, fmt.Errorf("publish media container: %w", err)
	}

	permalink := c.fetchPermalink(ctx, mediaID, pageToken)
	return platform.PostedResult(platform.ActionPostPublished, permalink), nil
}

// findBusinessAccount enumerates the user's pages and returns the first
// linked Instagram business account id with that page's access token.
func (c *Client) findBusinessAccount(ctx context.Context, userToken string) (string, string, error) {
	endpoint := c.baseURL + "/me/accounts?fields=instagram_business_account,access_token&access_token=" + url.QueryEscape(userToken)

	var accounts pagesResponse
	if err := c.getJSON(ctx, endpoint, &accounts); err != nil {
		return "", "", fmt.Errorf("list pages: %w", err)
	}
	for _, page := range accounts.Data {
		if page.InstagramBusinessAccount.ID != "" {
			token := page.AccessToken
			if token == "" {
				token = userToken
			}
			return page.InstagramBusinessAccount.ID, token, nil
		}
	}
	return "", "", ErrNoBusinessAccount
}

func (c *Client) createContainer(ctx context.Context, accountID, token, caption, mediaURL string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", c.baseURL, accountID)
	form := url.Values{
		"image_url":    {mediaURL},
		"caption":      {caption},
		"access_token": {token},
	}

	var created idResponse
	if err := c.postForm(ctx, endpoint, form, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("container response missing id")
	}
	return created.ID, nil
}

func (c *Client) publishContainer(ctx context.Context, accountID, token, creationID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", c.baseURL, accountID)
	form := url.Values{
		"creation_id":  {creationID},
		"access_token": {token},
	}

	var published idResponse
	if err := c.postForm(ctx, endpoint, form, &published); err != nil {
		return "", err
	}
	if published.ID == "" {
		return "", fmt.Errorf("publish response missing media id")
	}
	return published.ID, nil
}

// fetchPermalink is best-effort: a failure here never fails the publish,
// the placeholder link is used instead.
func (c *Client) fetchPermalink(ctx context.Context, mediaID, token string) string {
	endpoint := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s", c.baseURL, mediaID, url.QueryEscape(token))

	var media permalinkResponse
	if err := c.getJSON(ctx, endpoint, &media); err != nil || media.Permalink == "" {
		return placeholderPermalink
	}
	return media.Permalink
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	payload := form.Encode()
	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parse response: %w (body: %s)", err, string(body))
		}
	}
	return nil
}

type pagesResponse struct {
	Data []struct {
		ID                       string `json:"id"`
		AccessToken              string `json:"access_token"`
		InstagramBusinessAccount struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	} `json:"data"`
}

type idResponse struct {
	ID string `json:"id"`
}

type permalinkResponse struct {
	ID        string `json:"id"`
	Permalink string `json:"permalink"`
}
