package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/models"
)

type ActivityEntryResponse struct {
	ID          uint            `json:"id"`
	ActorUserID uint            `json:"actor_user_id"`
	ActorName   string          `json:"actor_name"`
	EntityType  string          `json:"entity_type"`
	EntityID    uint            `json:"entity_id"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListActivity returns the audit trail, newest first, optionally filtered
// by entity type, entity id or actor.
func (h *Handlers) ListActivity(ctx *gin.Context) {
	query := db.DB.Preload("Actor").Model(&models.ActivityLog{})

	if entityType := ctx.Query("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}

	if entityParam := ctx.Query("entity_id"); entityParam != "" {
		entityID, err := strconv.ParseUint(entityParam, 10, 32)

		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entity_id"})
			return
		}

		query = query.Where("entity_id = ?", uint(entityID))
	}

	if actorParam := ctx.Query("actor_id"); actorParam != "" {
		actorID, err := strconv.ParseUint(actorParam, 10, 32)

		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid actor_id"})
			return
		}

		query = query.Where("actor_user_id = ?", uint(actorID))
	}

	limit := 100

	if limitParam := ctx.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)

		if err != nil || parsed < 1 || parsed > 500 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}

		limit = parsed
	}

	var entries []models.ActivityLog

	if err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve activity log"})
		return
	}

	response := make([]ActivityEntryResponse, 0, len(entries))

	for _, entry := range entries {
		response = append(response, ActivityEntryResponse{
			ID:          entry.ID,
			ActorUserID: entry.ActorUserID,
			ActorName:   entry.Actor.FullName,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      entry.Action,
			Description: entry.Description,
			Meta:        json.RawMessage(entry.Meta),
			CreatedAt:   entry.CreatedAt,
		})
	}

	ctx.JSON(http.StatusOK, response)
}

// SystemStats returns aggregate counts for the admin dashboard.
func (h *Handlers) SystemStats(ctx *gin.Context) {
	var users, activeUsers, projects, tasks, completedTasks, overdueTasks int64

	db.DB.Model(&models.User{}).Count(&users)
	db.DB.Model(&models.User{}).Where("is_active = ?", true).Count(&activeUsers)
	db.DB.Model(&models.Project{}).Where("is_active = ?", true).Count(&projects)
	db.DB.Model(&models.Task{}).Count(&tasks)
	db.DB.Model(&models.Task{}).Where("status = ?", "Done").Count(&completedTasks)
	db.DB.Model(&models.Task{}).
		Where("due_date < ? AND status <> ?", time.Now(), "Done").
		Count(&overdueTasks)

	ctx.JSON(http.StatusOK, gin.H{
		"total_users":     users,
		"active_users":    activeUsers,
		"active_projects": projects,
		"total_tasks":     tasks,
		"completed_tasks": completedTasks,
		"overdue_tasks":   overdueTasks,
	})
}
