package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"postdeck/pkg/logging"
	"postdeck/pkg/middleware"
)

// GenerateHandler serves AI caption drafts.
type GenerateHandler struct {
	captioner CaptionGenerator
	logger    logging.Logger
}

func NewGenerateHandler(captioner CaptionGenerator, logger logging.Logger) *GenerateHandler {
	return &GenerateHandler{captioner: captioner, logger: logger}
}

type generateCaptionRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Caption drafts a caption from the user's prompt.
func (h *GenerateHandler) Caption(c *gin.Context) {
	userID := middleware.UserID(c)

	var req generateCaptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}

	caption, err := h.captioner.GenerateCaption(c.Request.Context(), req.Prompt)
	if err != nil {
		h.logger.WithFields(logging.Fields{"user_id": userID, "error": err}).Error("Caption generation failed")
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Caption generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "caption": caption})
}
