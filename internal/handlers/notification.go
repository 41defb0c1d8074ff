package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/utils"
	"gorm.io/gorm"
)

type NotificationResponse struct {
	ID        uint            `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}

func notificationResponse(notification *models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        notification.ID,
		Type:      notification.Type,
		Title:     notification.Title,
		Message:   notification.Message,
		Payload:   json.RawMessage(notification.Payload),
		IsRead:    notification.IsRead,
		CreatedAt: notification.CreatedAt,
	}
}

// ListNotifications returns the caller's notifications, newest first.
// ?unread=true narrows to unread ones.
func (h *Handlers) ListNotifications(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	query := db.DB.Where("user_id = ?", currentUser.ID)

	if ctx.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification

	if err := query.Order("created_at DESC").Limit(100).Find(&notifications).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notifications"})
		return
	}

	response := make([]NotificationResponse, 0, len(notifications))

	for i := range notifications {
		response = append(response, notificationResponse(&notifications[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *Handlers) UnreadNotificationCount(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var count int64

	err = db.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", currentUser.ID, false).
		Count(&count).Error

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count notifications"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"count": count})
}

// RecentNotifications returns the ten newest notifications for the header
// dropdown, together with the unread count.
func (h *Handlers) RecentNotifications(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var notifications []models.Notification

	err = db.DB.Where("user_id = ?", currentUser.ID).
		Order("created_at DESC").
		Limit(10).
		Find(&notifications).Error

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notifications"})
		return
	}

	var unread int64

	db.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", currentUser.ID, false).
		Count(&unread)

	response := make([]NotificationResponse, 0, len(notifications))

	for i := range notifications {
		response = append(response, notificationResponse(&notifications[i]))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"notifications": response,
		"unread_count":  unread,
	})
}

func (h *Handlers) MarkNotificationRead(ctx *gin.Context) {
	notification, ok := h.ownNotification(ctx)

	if !ok {
		return
	}

	if err := db.DB.Model(notification).Update("is_read", true).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *Handlers) MarkAllNotificationsRead(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	err = db.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", currentUser.ID, false).
		Update("is_read", true).Error

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notifications"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *Handlers) DeleteNotification(ctx *gin.Context) {
	notification, ok := h.ownNotification(ctx)

	if !ok {
		return
	}

	if err := db.DB.Delete(notification).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete notification"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *Handlers) ClearNotifications(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	err = db.DB.Where("user_id = ?", currentUser.ID).
		Delete(&models.Notification{}).Error

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear notifications"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

// ownNotification loads the notification from the route and rejects access
// to another user's notification with 404.
func (h *Handlers) ownNotification(ctx *gin.Context) (*models.Notification, bool) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	notificationID, err := utils.GetNotificationID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	var notification models.Notification

	err = db.DB.Where("id = ? AND user_id = ?", notificationID, currentUser.ID).
		First(&notification).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notification"})
		}
		return nil, false
	}

	return &notification, true
}
