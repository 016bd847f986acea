package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"postdeck/internal/platform"
	"postdeck/pkg/logging"
	"postdeck/pkg/middleware"
)

// NotificationsHandler serves the per-user publish notification feed.
type NotificationsHandler struct {
	notifications NotificationStore
	logger        logging.Logger
}

func NewNotificationsHandler(notifications NotificationStore, logger logging.Logger) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications, logger: logger}
}

type notificationView struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"`
	Status    string              `json:"status"`
	Platforms []platform.Platform `json:"platforms"`
	PostLinks map[string]string   `json:"post_links"`
	Caption   string              `json:"caption"`
	ImageURL  string              `json:"image_url,omitempty"`
	Read      bool                `json:"read"`
	CreatedAt time.Time           `json:"created_at"`
}

// List returns the user's notifications, newest first.
func (h *NotificationsHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	notifications, err := h.notifications.ListNotifications(c.Request.Context(), userID, 20)
	if err != nil {
		h.logger.WithFields(logging.Fields{"user_id": userID, "error": err}).Error("Failed to list notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list notifications"})
		return
	}

	views := make([]notificationView, 0, len(notifications))
	for _, n := range notifications {
		links := map[string]string{}
		if len(n.PostLinks) > 0 {
			_ = json.Unmarshal(n.PostLinks, &links)
		}
		views = append(views, notificationView{
			ID:        n.ID,
			Type:      n.Type,
			Status:    n.Status,
			Platforms: n.Platforms,
			PostLinks: links,
			Caption:   n.Caption,
			ImageURL:  n.ImageURL,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": views})
}

// MarkRead flags one notification as read.
func (h *NotificationsHandler) MarkRead(c *gin.Context) {
	userID := middleware.UserID(c)
	id := c.Param("id")

	marked, err := h.notifications.MarkNotificationRead(c.Request.Context(), id, userID)
	if err != nil {
		h.logger.WithFields(logging.Fields{"notification_id": id, "error": err}).Error("Failed to mark notification read")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update notification"})
		return
	}
	if !marked {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
