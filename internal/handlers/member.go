package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/activity"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/types"
	"github.com/taskboard-dev/taskboard/internal/utils"
	"gorm.io/gorm"
)

type AddMemberRequest struct {
	UserID        uint   `json:"user_id" binding:"required"`
	RoleInProject string `json:"role_in_project"`
}

type MemberResponse struct {
	UserID        uint      `json:"user_id"`
	FullName      string    `json:"full_name"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	RoleInProject string    `json:"role_in_project"`
	JoinedAt      time.Time `json:"joined_at"`
}

func (h *Handlers) ListMembers(ctx *gin.Context) {
	project, _, ok := h.observableProject(ctx)

	if !ok {
		return
	}

	var memberships []models.ProjectMembership

	err := db.DB.Preload("User").
		Where("project_id = ?", project.ID).
		Order("joined_at ASC").
		Find(&memberships).Error

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve members"})
		return
	}

	response := make([]MemberResponse, 0, len(memberships))

	for _, m := range memberships {
		response = append(response, MemberResponse{
			UserID:        m.UserID,
			FullName:      m.User.FullName,
			Username:      m.User.Username,
			Email:         m.User.Email,
			RoleInProject: m.RoleInProject,
			JoinedAt:      m.JoinedAt,
		})
	}

	ctx.JSON(http.StatusOK, response)
}

// AddMember adds a user to the project, notifies them, and broadcasts
// member_added to the project topic.
func (h *Handlers) AddMember(ctx *gin.Context) {
	project, currentUser, ok := h.observableProject(ctx)

	if !ok {
		return
	}

	var body AddMemberRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	role := body.RoleInProject

	if role == "" {
		role = types.ProjectRoleMember
	}

	if role != types.ProjectRoleMember && role != types.ProjectRoleLead {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project role"})
		return
	}

	var user models.User

	if err := db.DB.First(&user, body.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		}
		return
	}

	var existing int64

	db.DB.Model(&models.ProjectMembership{}).
		Where("user_id = ? AND project_id = ?", user.ID, project.ID).
		Count(&existing)

	if existing > 0 {
		ctx.JSON(http.StatusConflict, gin.H{"error": "User is already a member"})
		return
	}

	membership := models.ProjectMembership{
		UserID:        user.ID,
		ProjectID:     project.ID,
		RoleInProject: role,
		JoinedAt:      time.Now(),
	}

	if err := db.DB.Create(&membership).Error; err != nil {
		log.Printf("Failed to add member %d to project %d: %v", user.ID, project.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		return
	}

	activity.Record(currentUser.ID, "Project", project.ID, "member_added",
		user.FullName+" added to \""+project.Name+"\"", types.ProjectRef{ProjectID: project.ID})

	if user.ID != currentUser.ID {
		err := h.Fanout.Notify(
			user.ID,
			types.NotifyProjectAdded,
			"Added to project",
			currentUser.FullName+" added you to the project \""+project.Name+"\".",
			types.ProjectRef{ProjectID: project.ID},
		)

		if err != nil {
			log.Printf("Failed to notify user %d about project membership: %v", user.ID, err)
		}
	}

	h.Hub.Publish(realtime.ProjectTopic(project.ID), realtime.Event{
		Type: types.EventMemberAdded,
		Data: types.MemberEvent{
			ProjectID: project.ID,
			UserID:    user.ID,
			FullName:  user.FullName,
		},
	})

	ctx.JSON(http.StatusCreated, MemberResponse{
		UserID:        user.ID,
		FullName:      user.FullName,
		Username:      user.Username,
		Email:         user.Email,
		RoleInProject: membership.RoleInProject,
		JoinedAt:      membership.JoinedAt,
	})
}

// RemoveMember removes a membership. The project creator cannot be removed.
// Revocation is not retroactive for a live websocket session already joined
// to the project room; the next connection simply won't see the project.
func (h *Handlers) RemoveMember(ctx *gin.Context) {
	project, currentUser, ok := h.observableProject(ctx)

	if !ok {
		return
	}

	userID, err := utils.GetUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if userID == project.CreatedBy {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Project creator cannot be removed"})
		return
	}

	var membership models.ProjectMembership

	err = db.DB.Preload("User").
		Where("user_id = ? AND project_id = ?", userID, project.ID).
		First(&membership).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve membership"})
		}
		return
	}

	if err := db.DB.Delete(&membership).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	activity.Record(currentUser.ID, "Project", project.ID, "member_removed",
		membership.User.FullName+" removed from \""+project.Name+"\"", types.ProjectRef{ProjectID: project.ID})

	if membership.UserID != currentUser.ID {
		err := h.Fanout.Notify(
			membership.UserID,
			types.NotifyProjectRemoved,
			"Removed from project",
			currentUser.FullName+" removed you from the project \""+project.Name+"\".",
			types.ProjectRef{ProjectID: project.ID},
		)

		if err != nil {
			log.Printf("Failed to notify user %d about removal: %v", membership.UserID, err)
		}
	}

	h.Hub.Publish(realtime.ProjectTopic(project.ID), realtime.Event{
		Type: types.EventMemberRemoved,
		Data: types.MemberEvent{
			ProjectID: project.ID,
			UserID:    membership.UserID,
			FullName:  membership.User.FullName,
		},
	})

	ctx.Status(http.StatusNoContent)
}
