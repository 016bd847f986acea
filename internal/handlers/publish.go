// Package handlers exposes the HTTP API: immediate publishing, scheduling,
// notifications, platform connection and caption drafting.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"postdeck/internal/orchestrator"
	"postdeck/internal/platform"
	"postdeck/pkg/logging"
	"postdeck/pkg/middleware"
)

// PublishHandler serves immediate cross-platform publishing.
type PublishHandler struct {
	publisher Publisher
	logger    logging.Logger
}

func NewPublishHandler(publisher Publisher, logger logging.Logger) *PublishHandler {
	return &PublishHandler{publisher: publisher, logger: logger}
}

type publishRequest struct {
	Platforms []string `json:"platforms" binding:"required,min=1"`
	Caption   string   `json:"caption" binding:"required"`
	MediaURL  string   `json:"media_url"`
}

// Handle publishes to every requested platform and returns the aggregated
// envelope. Per-platform failures are reported in the body, not as an HTTP
// error.
func (h *PublishHandler) Handle(c *gin.Context) {
	userID := middleware.UserID(c)

	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}

	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	envelope := h.publisher.Publish(c.Request.Context(), orchestrator.PublishRequest{
		UserID:   userID,
		Platform: platforms,
		Caption:  req.Caption,
		MediaURL: req.MediaURL,
	}, true)

	h.logger.WithFields(logging.Fields{
		"user_id":     userID,
		"platforms":   req.Platforms,
		"all_success": envelope.AllSuccess,
		"all_failed":  envelope.AllFailed,
	}).Info("Publish request completed")

	c.JSON(http.StatusOK, envelope)
}

// parsePlatforms validates and deduplicates the requested platform names.
func parsePlatforms(names []string) ([]platform.Platform, error) {
	seen := make(map[platform.Platform]bool, len(names))
	out := make([]platform.Platform, 0, len(names))
	for _, name := range names {
		p, err := platform.Parse(name)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}
