package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/activity"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/types"
	"github.com/taskboard-dev/taskboard/internal/utils"
	"gorm.io/gorm"
)

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

type ProjectResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	CreatedBy   uint   `json:"created_by"`
}

type StatusDefinitionRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	OrderIndex  int    `json:"order_index" binding:"required"`
	WIPLimit    *int   `json:"wip_limit"`
	Color       string `json:"color"`
}

type StatusDefinitionResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	OrderIndex  int    `json:"order_index"`
	WIPLimit    *int   `json:"wip_limit"`
	Color       string `json:"color"`
}

func projectResponse(project *models.Project) ProjectResponse {
	return ProjectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		IsActive:    project.IsActive,
		CreatedBy:   project.CreatedBy,
	}
}

// CreateProject creates the project together with its four default board
// columns and a LEAD membership for the creator, in one transaction.
func (h *Handlers) CreateProject(ctx *gin.Context) {
	var body CreateProjectRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	project := models.Project{
		Name:        body.Name,
		Description: body.Description,
		IsActive:    true,
		CreatedBy:   currentUser.ID,
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		for _, status := range types.DefaultStatuses {
			definition := models.StatusDefinition{
				ProjectID:   project.ID,
				Name:        status.Name,
				DisplayName: status.DisplayName,
				OrderIndex:  status.OrderIndex,
				Color:       status.Color,
			}
			if err := tx.Create(&definition).Error; err != nil {
				return err
			}
		}

		membership := models.ProjectMembership{
			UserID:        currentUser.ID,
			ProjectID:     project.ID,
			RoleInProject: types.ProjectRoleLead,
			JoinedAt:      time.Now(),
		}

		return tx.Create(&membership).Error
	})

	if err != nil {
		log.Printf("Failed to create project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	activity.Record(currentUser.ID, "Project", project.ID, "created",
		"Project \""+project.Name+"\" created", types.ProjectRef{ProjectID: project.ID})

	ctx.JSON(http.StatusCreated, projectResponse(&project))
}

// ListProjects returns the projects visible to the caller.
func (h *Handlers) ListProjects(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	query := db.DB.Where("is_active = ?", true)

	if !currentUser.IsPrivileged() {
		memberOf := db.DB.Model(&models.ProjectMembership{}).
			Select("project_id").
			Where("user_id = ?", currentUser.ID)
		query = query.Where("id IN (?)", memberOf)
	}

	if search := ctx.Query("search"); search != "" {
		query = query.Where("name LIKE ? OR description LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var projects []models.Project

	if err := query.Order("created_at DESC").Find(&projects).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve projects"})
		return
	}

	response := make([]ProjectResponse, 0, len(projects))

	for i := range projects {
		response = append(response, projectResponse(&projects[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *Handlers) GetProject(ctx *gin.Context) {
	project, _, ok := h.observableProject(ctx)

	if !ok {
		return
	}

	var totalTasks, completedTasks int64

	db.DB.Model(&models.Task{}).Where("project_id = ?", project.ID).Count(&totalTasks)
	db.DB.Model(&models.Task{}).Where("project_id = ? AND status = ?", project.ID, "Done").Count(&completedTasks)

	var memberships []models.ProjectMembership

	db.DB.Preload("User").Where("project_id = ?", project.ID).Find(&memberships)

	members := make([]gin.H, 0, len(memberships))

	for _, m := range memberships {
		members = append(members, gin.H{
			"user_id":         m.UserID,
			"full_name":       m.User.FullName,
			"username":        m.User.Username,
			"role_in_project": m.RoleInProject,
		})
	}

	ctx.JSON(http.StatusOK, gin.H{
		"project":         projectResponse(project),
		"total_tasks":     totalTasks,
		"completed_tasks": completedTasks,
		"members":         members,
	})
}

func (h *Handlers) UpdateProject(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body UpdateProjectRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		}
		return
	}

	project.Name = body.Name
	project.Description = body.Description

	if body.IsActive != nil {
		project.IsActive = *body.IsActive
	}

	if err := db.DB.Save(&project).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	activity.Record(currentUser.ID, "Project", project.ID, "updated",
		"Project \""+project.Name+"\" edited", types.ProjectRef{ProjectID: project.ID})

	ctx.JSON(http.StatusOK, projectResponse(&project))
}

// DeleteProject removes the project and, through the schema's cascades, its
// tasks, memberships and status definitions. Activity entries referencing
// the project survive; they are history.
func (h *Handlers) DeleteProject(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		}
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.StatusDefinition{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})

	if err != nil {
		log.Printf("Failed to delete project %d: %v", project.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	activity.Record(currentUser.ID, "Project", project.ID, "deleted",
		"Project \""+project.Name+"\" deleted", types.ProjectRef{ProjectID: project.ID})

	ctx.Status(http.StatusNoContent)
}

// GetBoard returns the project's columns in order, each with its tasks and
// a WIP advisory flag.
func (h *Handlers) GetBoard(ctx *gin.Context) {
	project, _, ok := h.observableProject(ctx)

	if !ok {
		return
	}

	var definitions []models.StatusDefinition

	err := db.DB.Where("project_id = ?", project.ID).
		Order("order_index ASC").
		Find(&definitions).Error

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve board"})
		return
	}

	columns := make([]gin.H, 0, len(definitions))

	for _, definition := range definitions {
		var tasks []models.Task

		err := db.DB.Preload("Assignee").Preload("Tags").
			Where("project_id = ? AND status = ?", project.ID, definition.Name).
			Order("created_at DESC").
			Find(&tasks).Error

		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve board"})
			return
		}

		wipExceeded := definition.WIPLimit != nil && len(tasks) > *definition.WIPLimit

		taskList := make([]TaskResponse, 0, len(tasks))

		for i := range tasks {
			taskList = append(taskList, taskResponse(&tasks[i]))
		}

		columns = append(columns, gin.H{
			"status":       statusDefinitionResponse(&definition),
			"tasks":        taskList,
			"wip_exceeded": wipExceeded,
		})
	}

	ctx.JSON(http.StatusOK, gin.H{
		"project": projectResponse(project),
		"columns": columns,
	})
}

func (h *Handlers) ListStatusDefinitions(ctx *gin.Context) {
	project, _, ok := h.observableProject(ctx)

	if !ok {
		return
	}

	var definitions []models.StatusDefinition

	err := db.DB.Where("project_id = ?", project.ID).
		Order("order_index ASC").
		Find(&definitions).Error

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve statuses"})
		return
	}

	response := make([]StatusDefinitionResponse, 0, len(definitions))

	for i := range definitions {
		response = append(response, statusDefinitionResponse(&definitions[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

// ReplaceStatusDefinitions swaps the project's column set. Existing columns
// matched by name keep their identity; new ones are created, missing ones
// are removed if no task still uses them.
func (h *Handlers) ReplaceStatusDefinitions(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body []StatusDefinitionRequest

	if err := ctx.BindJSON(&body); err != nil || len(body) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "At least one status is required"})
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	keep := make(map[string]bool, len(body))

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		for _, item := range body {
			keep[item.Name] = true

			var definition models.StatusDefinition

			err := tx.Where("project_id = ? AND name = ?", project.ID, item.Name).First(&definition).Error

			if errors.Is(err, gorm.ErrRecordNotFound) {
				definition = models.StatusDefinition{ProjectID: project.ID, Name: item.Name}
			} else if err != nil {
				return err
			}

			definition.DisplayName = item.DisplayName
			definition.OrderIndex = item.OrderIndex
			definition.WIPLimit = item.WIPLimit

			if item.Color != "" {
				definition.Color = item.Color
			}

			if err := tx.Save(&definition).Error; err != nil {
				return err
			}
		}

		var stale []models.StatusDefinition

		if err := tx.Where("project_id = ?", project.ID).Find(&stale).Error; err != nil {
			return err
		}

		for _, definition := range stale {
			if keep[definition.Name] {
				continue
			}

			var inUse int64

			if err := tx.Model(&models.Task{}).
				Where("project_id = ? AND status = ?", project.ID, definition.Name).
				Count(&inUse).Error; err != nil {
				return err
			}

			if inUse > 0 {
				return errors.New("status \"" + definition.Name + "\" still has tasks")
			}

			if err := tx.Delete(&definition).Error; err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	activity.Record(currentUser.ID, "Project", project.ID, "statuses_updated",
		"Board columns of \""+project.Name+"\" changed", types.ProjectRef{ProjectID: project.ID})

	h.ListStatusDefinitions(ctx)
}

// observableProject loads the project from the route and enforces the
// access check, answering 404 for both a missing project and a forbidden
// one so the response does not confirm existence.
func (h *Handlers) observableProject(ctx *gin.Context) (*models.Project, middleware.AuthenticatedUser, bool) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, currentUser, false
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, currentUser, false
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, currentUser, false
	}

	allowed, err := access.CanObserve(currentUser, project.ID)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, currentUser, false
	}

	if !allowed {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, currentUser, false
	}

	return &project, currentUser, true
}

func statusDefinitionResponse(definition *models.StatusDefinition) StatusDefinitionResponse {
	return StatusDefinitionResponse{
		ID:          definition.ID,
		Name:        definition.Name,
		DisplayName: definition.DisplayName,
		OrderIndex:  definition.OrderIndex,
		WIPLimit:    definition.WIPLimit,
		Color:       definition.Color,
	}
}
