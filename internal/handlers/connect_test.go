package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"postdeck/internal/platform"
	"postdeck/internal/platform/twitter"
	"postdeck/internal/tokencache"
)

type stubAuthorizer struct {
	requestToken *twitter.RequestToken
	accessToken  *twitter.AccessToken
	startErr     error
	exchangeErr  error

	gotCallback string
	gotSecret   string
	gotVerifier string
}

func (s *stubAuthorizer) StartAuthorization(_ context.Context, callbackURL string) (*twitter.RequestToken, error) {
	s.gotCallback = callbackURL
	return s.requestToken, s.startErr
}

func (s *stubAuthorizer) ExchangeVerifier(_ context.Context, _, requestSecret, verifier string) (*twitter.AccessToken, error) {
	s.gotSecret = requestSecret
	s.gotVerifier = verifier
	return s.accessToken, s.exchangeErr
}

type stubCredentialStore struct {
	userID string
	cred   platform.Credential
	err    error
}

func (s *stubCredentialStore) SetCredential(_ context.Context, userID string, cred platform.Credential) error {
	s.userID = userID
	s.cred = cred
	return s.err
}

func connectRouter(auth *stubAuthorizer, creds *stubCredentialStore, cache tokencache.Cache) *gin.Engine {
	logger, _ := test.NewNullLogger()
	h := NewConnectHandler(auth, creds, cache, "https://app.example.com/api/connect/twitter/callback", logger)
	router := gin.New()
	router.GET("/api/connect/twitter", asUser("u1"), h.StartTwitter)
	router.GET("/api/connect/twitter/callback", h.TwitterCallback)
	return router
}

func TestTwitterConnectFlow(t *testing.T) {
	auth := &stubAuthorizer{
		requestToken: &twitter.RequestToken{
			Token:        "req-tok",
			TokenSecret:  "req-sec",
			AuthorizeURL: "https://api.twitter.com/oauth/authorize?oauth_token=req-tok",
		},
		accessToken: &twitter.AccessToken{Token: "acc-tok", TokenSecret: "acc-sec", ScreenName: "someone"},
	}
	creds := &stubCredentialStore{}
	cache := tokencache.NewMemoryCache()
	router := connectRouter(auth, creds, cache)

	w := performJSON(router, http.MethodGet, "/api/connect/twitter", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "https://app.example.com/api/connect/twitter/callback", auth.gotCallback)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, auth.requestToken.AuthorizeURL, body["authorize_url"])

	w = performJSON(router, http.MethodGet, "/api/connect/twitter/callback?oauth_token=req-tok&oauth_verifier=ver-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, "req-sec", auth.gotSecret)
	require.Equal(t, "ver-1", auth.gotVerifier)
	require.Equal(t, "u1", creds.userID)
	require.Equal(t, platform.Twitter, creds.cred.Platform)
	require.Equal(t, "acc-tok", creds.cred.AccessToken)
	require.Equal(t, "acc-sec", creds.cred.AccessTokenSecret)
}

func TestTwitterCallbackUnknownToken(t *testing.T) {
	router := connectRouter(&stubAuthorizer{}, &stubCredentialStore{}, tokencache.NewMemoryCache())
	w := performJSON(router, http.MethodGet, "/api/connect/twitter/callback?oauth_token=stale&oauth_verifier=v", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTwitterCallbackMissingParams(t *testing.T) {
	router := connectRouter(&stubAuthorizer{}, &stubCredentialStore{}, tokencache.NewMemoryCache())
	w := performJSON(router, http.MethodGet, "/api/connect/twitter/callback?oauth_token=only", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTwitterCallbackSingleUse(t *testing.T) {
	auth := &stubAuthorizer{
		requestToken: &twitter.RequestToken{Token: "req-tok", TokenSecret: "req-sec", AuthorizeURL: "https://x"},
		accessToken:  &twitter.AccessToken{Token: "acc-tok", TokenSecret: "acc-sec"},
	}
	router := connectRouter(auth, &stubCredentialStore{}, tokencache.NewMemoryCache())

	w := performJSON(router, http.MethodGet, "/api/connect/twitter", "")
	require.Equal(t, http.StatusOK, w.Code)

	callback := "/api/connect/twitter/callback?oauth_token=req-tok&oauth_verifier=v"
	require.Equal(t, http.StatusOK, performJSON(router, http.MethodGet, callback, "").Code)
	require.Equal(t, http.StatusBadRequest, performJSON(router, http.MethodGet, callback, "").Code,
		"cached request token is consumed on first use")
}

func TestTwitterStartUpstreamFailure(t *testing.T) {
	auth := &stubAuthorizer{startErr: fmt.Errorf("rate limited")}
	router := connectRouter(auth, &stubCredentialStore{}, tokencache.NewMemoryCache())
	w := performJSON(router, http.MethodGet, "/api/connect/twitter", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
}
