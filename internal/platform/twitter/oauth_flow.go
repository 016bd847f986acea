package twitter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"postdeck/internal/platform/oauth1"
)

// RequestToken is the first leg of the three-legged OAuth1.0a flow. The
// returned secret must be held (short-TTL) until the callback leg.
type RequestToken struct {
	Token        string
	TokenSecret  string
	AuthorizeURL string
}

// AccessToken is the long-lived per-user token pair produced by the third leg.
type AccessToken struct {
	Token       string
	TokenSecret string
	ScreenName  string
}

// StartAuthorization obtains a request token and the URL the user must visit
// to authorize the application.
func (c *Client) StartAuthorization(ctx context.Context, callbackURL string) (*RequestToken, error) {
	endpoint := c.apiBaseURL + "/oauth/request_token"
	params := map[string]string{"oauth_callback": callbackURL}

	header, err := c.signer.AuthorizationHeader(http.MethodPost, endpoint, params, c.appCredentials())
	if err != nil {
		return nil, err
	}

	form := url.Values{"oauth_callback": {callbackURL}}
	values, err := c.doForm(ctx, endpoint, header, form.Encode())
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}

	token := values.Get("oauth_token")
	secret := values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return nil, fmt.Errorf("request token response incomplete")
	}
	return &RequestToken{
		Token:        token,
		TokenSecret:  secret,
		AuthorizeURL: c.apiBaseURL + "/oauth/authorize?oauth_token=" + url.QueryEscape(token),
	}, nil
}

// ExchangeVerifier trades an authorized request token plus verifier for the
// user's access token pair.
func (c *Client) ExchangeVerifier(ctx context.Context, requestToken, requestSecret, verifier string) (*AccessToken, error) {
	endpoint := c.apiBaseURL + "/oauth/access_token"
	params := map[string]string{"oauth_verifier": verifier}

	creds := c.appCredentials()
	creds.Token = requestToken
	creds.TokenSecret = requestSecret

	header, err := c.signer.AuthorizationHeader(http.MethodPost, endpoint, params, creds)
	if err != nil {
		return nil, err
	}

	form := url.Values{"oauth_verifier": {verifier}}
	values, err := c.doForm(ctx, endpoint, header, form.Encode())
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}

	token := values.Get("oauth_token")
	secret := values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return nil, fmt.Errorf("access token response incomplete")
	}
	return &AccessToken{
		Token:       token,
		TokenSecret: secret,
		ScreenName:  values.Get("screen_name"),
	}, nil
}

func (c *Client) appCredentials() oauth1.Credentials {
	return oauth1.Credentials{
		ConsumerKey:    c.consumerKey,
		ConsumerSecret: c.consumerSecret,
	}
}

// doForm posts a form body and parses the urlencoded response the token
// endpoints return.
func (c *Client) doForm(ctx context.Context, endpoint, authHeader, payload string) (url.Values, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return url.ParseQuery(strings.TrimSpace(string(body)))
}
