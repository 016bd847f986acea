package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"postdeck/internal/platform"
	"postdeck/internal/store"
	"postdeck/pkg/logging"
	"postdeck/pkg/middleware"
)

// ScheduleHandler manages the scheduled-post queue.
type ScheduleHandler struct {
	posts   PostStore
	media   MediaStore // nil when no object storage is configured
	fetcher MediaFetcher
	logger  logging.Logger
	now     func() time.Time
}

func NewScheduleHandler(posts PostStore, media MediaStore, fetcher MediaFetcher, logger logging.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		posts:   posts,
		media:   media,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

type scheduleRequest struct {
	Platforms   []string  `json:"platforms" binding:"required,min=1"`
	Caption     string    `json:"caption" binding:"required"`
	MediaURL    string    `json:"media_url"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

// Create validates the request and stores a pending post. The scheduled
// time must be strictly in the future; the worker picks the post up once
// it comes due.
func (h *ScheduleHandler) Create(c *gin.Context) {
	userID := middleware.UserID(c)

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}

	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !req.ScheduledAt.After(h.now()) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "scheduled_at must be in the future"})
		return
	}

	mediaURL := req.MediaURL
	if mediaURL != "" && h.media != nil {
		mediaURL = h.rehost(c, req.MediaURL)
	}

	post := &store.ScheduledPost{
		UserID:      userID,
		Platforms:   platforms,
		Content:     req.Caption,
		MediaURL:    mediaURL,
		ScheduledAt: req.ScheduledAt.UTC(),
	}
	if err := h.posts.InsertScheduledPost(c.Request.Context(), post); err != nil {
		h.logger.WithFields(logging.Fields{"user_id": userID, "error": err}).Error("Failed to store scheduled post")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to schedule post"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"id":           post.ID,
		"status":       post.Status,
		"scheduled_at": post.ScheduledAt,
	})
}

// rehost copies external media into object storage so the image stays
// reachable at publish time. On any failure the original URL is kept.
func (h *ScheduleHandler) rehost(c *gin.Context, mediaURL string) string {
	data, contentType, err := h.fetcher.Fetch(c.Request.Context(), mediaURL)
	if err != nil {
		h.logger.WithFields(logging.Fields{"url": mediaURL, "error": err}).Warn("Media rehost fetch failed, keeping original URL")
		return mediaURL
	}
	hosted, err := h.media.Upload(c.Request.Context(), data, contentType)
	if err != nil {
		h.logger.WithFields(logging.Fields{"url": mediaURL, "error": err}).Warn("Media rehost upload failed, keeping original URL")
		return mediaURL
	}
	return hosted
}

type scheduledPostView struct {
	ID          string              `json:"id"`
	Platforms   []platform.Platform `json:"platforms"`
	Caption     string              `json:"caption"`
	MediaURL    string              `json:"media_url,omitempty"`
	ScheduledAt time.Time           `json:"scheduled_at"`
	Status      store.Status        `json:"status"`
	Error       string              `json:"error,omitempty"`
	PublishedAt *time.Time          `json:"published_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// List returns the user's scheduled posts, newest first.
func (h *ScheduleHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	posts, err := h.posts.ListScheduledPostsByUser(c.Request.Context(), userID, 50)
	if err != nil {
		h.logger.WithFields(logging.Fields{"user_id": userID, "error": err}).Error("Failed to list scheduled posts")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list scheduled posts"})
		return
	}

	views := make([]scheduledPostView, 0, len(posts))
	for _, post := range posts {
		view := scheduledPostView{
			ID:          post.ID,
			Platforms:   post.Platforms,
			Caption:     post.Content,
			MediaURL:    post.MediaURL,
			ScheduledAt: post.ScheduledAt,
			Status:      post.Status,
			Error:       post.Error,
			CreatedAt:   post.CreatedAt,
		}
		if post.PublishedAt.Valid {
			t := post.PublishedAt.Time
			view.PublishedAt = &t
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": views})
}

// Cancel deletes a still-pending post. A post the worker already picked up
// cannot be cancelled.
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	userID := middleware.UserID(c)
	id := c.Param("id")

	cancelled, err := h.posts.CancelScheduledPost(c.Request.Context(), id, userID)
	if err != nil {
		h.logger.WithFields(logging.Fields{"post_id": id, "error": err}).Error("Failed to cancel scheduled post")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to cancel post"})
		return
	}
	if !cancelled {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Post not found or no longer pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
