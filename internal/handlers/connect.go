package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"postdeck/internal/platform"
	"postdeck/internal/tokencache"
	"postdeck/pkg/logging"
	"postdeck/pkg/middleware"
)

// ConnectHandler runs the three-legged OAuth1.0a flow that links a Twitter
// account. The request-token secret lives in the token cache between the
// two legs.
type ConnectHandler struct {
	authorizer  TwitterAuthorizer
	credentials CredentialStore
	cache       tokencache.Cache
	callbackURL string
	logger      logging.Logger
}

func NewConnectHandler(authorizer TwitterAuthorizer, credentials CredentialStore, cache tokencache.Cache, callbackURL string, logger logging.Logger) *ConnectHandler {
	return &ConnectHandler{
		authorizer:  authorizer,
		credentials: credentials,
		cache:       cache,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// StartTwitter obtains a request token and returns the authorize URL the
// user must visit.
func (h *ConnectHandler) StartTwitter(c *gin.Context) {
	userID := middleware.UserID(c)

	requestToken, err := h.authorizer.StartAuthorization(c.Request.Context(), h.callbackURL)
	if err != nil {
		h.logger.WithFields(logging.Fields{"user_id": userID, "error": err}).Error("Twitter request token failed")
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Failed to start Twitter authorization"})
		return
	}

	// The secret is keyed by token; the callback only gets the token back.
	// The user id rides along so the callback can attribute the credential.
	if err := h.cache.Put(c.Request.Context(), requestToken.Token, requestToken.TokenSecret+"|"+userID, tokencache.DefaultTTL); err != nil {
		h.logger.WithFields(logging.Fields{"user_id": userID, "error": err}).Error("Failed to cache request token")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to start Twitter authorization"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "authorize_url": requestToken.AuthorizeURL})
}

// TwitterCallback exchanges the authorized request token for the user's
// access token pair and stores the credential.
func (h *ConnectHandler) TwitterCallback(c *gin.Context) {
	token := c.Query("oauth_token")
	verifier := c.Query("oauth_verifier")
	if token == "" || verifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing oauth_token or oauth_verifier"})
		return
	}

	cached, err := h.cache.Take(c.Request.Context(), token)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "Failed to complete Twitter authorization"
		if errors.Is(err, tokencache.ErrNotFound) {
			status = http.StatusBadRequest
			msg = "Authorization expired, please start over"
		}
		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}
	secret, userID := splitCached(cached)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Authorization expired, please start over"})
		return
	}

	accessToken, err := h.authorizer.ExchangeVerifier(c.Request.Context(), token, secret, verifier)
	if err != nil {
		h.logger.WithFields(logging.Fields{"user_id": userID, "error": err}).Error("Twitter token exchange failed")
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Twitter token exchange failed"})
		return
	}

	cred := platform.Credential{
		Platform:          platform.Twitter,
		AccessToken:       accessToken.Token,
		AccessTokenSecret: accessToken.TokenSecret,
	}
	if err := h.credentials.SetCredential(c.Request.Context(), userID, cred); err != nil {
		h.logger.WithFields(logging.Fields{"user_id": userID, "error": err}).Error("Failed to store Twitter credential")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to store credential"})
		return
	}

	h.logger.WithFields(logging.Fields{"user_id": userID, "screen_name": accessToken.ScreenName}).Info("Twitter account linked")
	c.JSON(http.StatusOK, gin.H{"success": true, "platform": platform.Twitter, "screen_name": accessToken.ScreenName})
}

// splitCached unpacks the "secret|userID" value stored at the start leg.
func splitCached(cached string) (secret, userID string) {
	for i := len(cached) - 1; i >= 0; i-- {
		if cached[i] == '|' {
			return cached[:i], cached[i+1:]
		}
	}
	return cached, ""
}
