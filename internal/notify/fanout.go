// Package notify derives per-recipient notifications from domain events and
// pushes them to the recipient's personal topic.
//
// Call sites are responsible for self-suppression: a user is never notified
// about their own action.
package notify

import (
	"encoding/json"
	"log"
	"regexp"

	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/services"
	"github.com/taskboard-dev/taskboard/internal/types"
	"gorm.io/datatypes"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

type Fanout struct {
	hub *realtime.Hub
}

func NewFanout(hub *realtime.Hub) *Fanout {
	return &Fanout{hub: hub}
}

// Notify creates exactly one notification row for the recipient and
// publishes a new_notification event to their personal topic. The row is
// committed before the event is published, so a client reacting to the push
// always finds the row. An email copy goes out in the background when SMTP
// is configured.
func (f *Fanout) Notify(recipientID uint, notificationType string, title string, message string, payload interface{}) error {
	notification := models.Notification{
		UserID:  recipientID,
		Type:    notificationType,
		Title:   title,
		Message: message,
	}

	if payload != nil {
		raw, err := json.Marshal(payload)

		if err != nil {
			log.Printf("Failed to marshal %s payload: %v", notificationType, err)
		} else {
			notification.Payload = datatypes.JSON(raw)
		}
	}

	if err := db.DB.Create(&notification).Error; err != nil {
		return err
	}

	f.hub.Publish(realtime.UserTopic(recipientID), realtime.Event{
		Type: types.EventNewNotification,
		Data: types.NotificationEvent{
			ID:      notification.ID,
			Type:    notification.Type,
			Title:   notification.Title,
			Message: notification.Message,
		},
	})

	go f.emailCopy(recipientID, title, message)

	return nil
}

func (f *Fanout) emailCopy(recipientID uint, subject string, body string) {
	var recipient models.User

	if err := db.DB.First(&recipient, recipientID).Error; err != nil {
		return
	}

	if _, err := services.SendEmail(recipient.Email, subject, body); err != nil {
		log.Printf("Failed to email notification to user %d: %v", recipientID, err)
	}
}

// ProcessMentions scans a comment body for @username tokens and notifies
// each mentioned user, provided they exist, are not the author, and may
// observe the task's project. Unknown and unauthorized mentions are skipped
// without error.
func (f *Fanout) ProcessMentions(body string, task *models.Task, commentID uint, actor middleware.AuthenticatedUser) {
	seen := make(map[string]bool)

	for _, match := range mentionPattern.FindAllStringSubmatch(body, -1) {
		username := match[1]

		if seen[username] {
			continue
		}
		seen[username] = true

		var user models.User

		if err := db.DB.Where("username = ?", username).First(&user).Error; err != nil {
			continue
		}

		if user.ID == actor.ID {
			continue
		}

		isMember, err := access.IsMember(user.ID, task.ProjectID)

		if err != nil {
			log.Printf("Failed to check membership for mention @%s: %v", username, err)
			continue
		}

		if !isMember && user.Role != types.RolePrivileged {
			continue
		}

		err = f.Notify(
			user.ID,
			types.NotifyCommentMention,
			"You were mentioned in a comment",
			actor.FullName+" mentioned you in a comment on \""+task.Title+"\".",
			types.MentionRef{
				TaskID:        task.ID,
				ProjectID:     task.ProjectID,
				CommentID:     commentID,
				CommentAuthor: actor.FullName,
			},
		)

		if err != nil {
			log.Printf("Failed to notify mentioned user @%s: %v", username, err)
		}
	}
}
