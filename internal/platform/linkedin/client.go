// Package linkedin publishes UGC posts through the LinkedIn REST API using
// a per-user OAuth2 bearer token.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
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
	defaultBaseURL = "https://api.linkedin.com"
	defaultTimeout = 30 * time.Second

	shareComposeURL = "https://www.linkedin.com/feed/?shareActive=true"
)

// APIError is a non-2xx response from the LinkedIn API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkedin returned status %d: %s", e.StatusCode, e.Body)
}

// MediaFetcher downloads media bytes from a hosted URL.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Client is a LinkedIn publishing client.
type Client struct {
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
	fetcher    MediaFetcher
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// NewClient creates a LinkedIn client.
func NewClient(fetcher MediaFetcher, opts ...Option) *Client {
	c := &Client{
		httpClient: clients.NewHTTPClient(defaultTimeout),
		executor:   clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
		fetcher:    fetcher,
		baseURL:    defaultBaseURL,
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

// WithBaseURL overrides the API endpoint (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// Publish resolves the person URN, registers and uploads the image when one
// is present, then creates the UGC post. Failure at any step is an error for
// the caller's fallback policy.
func (c *Client) Publish(ctx context.Context, cred platform.Credential, caption, mediaURL string) (platform.Result, error) {
	personID, err := c.fetchPersonID(ctx, cred.AccessToken)
	if err != nil {
		return platform.Result{}, fmt.Errorf("fetch profile: %w", err)
	}
	author := "urn:li:person:" + personID

	mediaCategory := "NONE"
	var assetURN string
	if mediaURL != "" {
		assetURN, err = c.uploadImage(ctx, cred.AccessToken, author, mediaURL)
		if err != nil {
			return platform.Result{}, fmt.Errorf("upload image: %w", err)
		}
		mediaCategory = "IMAGE"
	}

	postID, err := c.createPost(ctx, cred.AccessToken, author, caption, mediaCategory, assetURN)
	if err != nil {
		return platform.Result{}, fmt.Errorf("create post: %w", err)
	}

	return platform.PostedResult(platform.ActionPostPublished, "https://www.linkedin.com/feed/update/"+postID+"/"), nil
}

func (c *Client) fetchPersonID(ctx context.Context, token string) (string, error) {
	var profile userInfoResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v2/userinfo", token, nil, &profile); err != nil {
		return "", err
	}
	if profile.Sub == "" {
		return "", fmt.Errorf("userinfo response missing person id")
	}
	return profile.Sub, nil
}

// uploadImage registers upload intent, then PUTs the raw bytes to the
// one-time upload URL LinkedIn hands back.
func (c *Client) uploadImage(ctx context.Context, token, author, mediaURL string) (string, error) {
	reg := registerUploadRequest{}
	reg.RegisterUploadRequest.Owner = author
	reg.RegisterUploadRequest.Recipes = []string{"urn:li:digitalmediaRecipe:feedshare-image"}
	reg.RegisterUploadRequest.ServiceRelationships = []serviceRelationship{{
		RelationshipType: "OWNER",
		Identifier:       "urn:li:userGeneratedContent",
	}}

	var registered registerUploadResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v2/assets?action=registerUpload", token, reg, &registered); err != nil {
		return "", fmt.Errorf("register upload: %w", err)
	}
	uploadURL := registered.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	asset := registered.Value.Asset
	if uploadURL == "" || asset == "" {
		return "", fmt.Errorf("register upload response incomplete")
	}

	data, contentType, err := c.fetcher.Fetch(ctx, mediaURL)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("put image bytes: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return asset, nil
}

func (c *Client) createPost(ctx context.Context, token, author, caption, mediaCategory, assetURN string) (string, error) {
	post := ugcPostRequest{
		Author:         author,
		LifecycleState: "PUBLISHED",
	}
	share := &post.SpecificContent.ShareContent
	share.ShareCommentary.Text = caption
	share.ShareMediaCategory = mediaCategory
	if assetURN != "" {
		share.Media = []shareMedia{{Status: "READY", Media: assetURN}}
	}
	post.Visibility.MemberNetworkVisibility = "PUBLIC"

	var created ugcPostResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v2/ugcPosts", token, post, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("post response missing id")
	}
	return created.ID, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint, token string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
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

// ShareDialogResult builds the manual compose fallback. The media URL, when
// present, rides along in the pre-filled text since the compose dialog has
// no separate image slot.
func ShareDialogResult(caption, mediaURL string) platform.Result {
	text := caption
	if mediaURL != "" {
		text += " " + mediaURL
	}
	return platform.Result{
		Status:           platform.StatusSuccess,
		Action:           platform.ActionShareDialog,
		URL:              shareComposeURL + "&text=" + url.QueryEscape(text),
		OptimizedCaption: caption,
	}
}
