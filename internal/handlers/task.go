package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/activity"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/types"
	"github.com/taskboard-dev/taskboard/internal/utils"
	"github.com/taskboard-dev/taskboard/internal/workflow"
	"gorm.io/gorm"
)

type TaskRequest struct {
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssigneeID     *uint      `json:"assignee_id"`
	EstimatedHours *float64   `json:"estimated_hours"`
	DueDate        *time.Time `json:"due_date"`
	Tags           []string   `json:"tags"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type TaskResponse struct {
	ID             uint       `json:"id"`
	ProjectID      uint       `json:"project_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssigneeID     *uint      `json:"assignee_id"`
	AssigneeName   string     `json:"assignee_name,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours"`
	DueDate        *time.Time `json:"due_date"`
	IsOverdue      bool       `json:"is_overdue"`
	Tags           []string   `json:"tags"`
	CreatedBy      uint       `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func taskResponse(task *models.Task) TaskResponse {
	tags := make([]string, 0, len(task.Tags))

	for _, tag := range task.Tags {
		tags = append(tags, tag.Name)
	}

	assigneeName := ""

	if task.Assignee != nil {
		assigneeName = task.Assignee.FullName
	}

	return TaskResponse{
		ID:             task.ID,
		ProjectID:      task.ProjectID,
		Title:          task.Title,
		Description:    task.Description,
		Status:         task.Status,
		Priority:       task.Priority,
		AssigneeID:     task.AssigneeID,
		AssigneeName:   assigneeName,
		EstimatedHours: task.EstimatedHours,
		DueDate:        task.DueDate,
		IsOverdue:      task.IsOverdue(),
		Tags:           tags,
		CreatedBy:      task.CreatedBy,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}
}

func taskInput(body TaskRequest) workflow.TaskInput {
	return workflow.TaskInput{
		Title:          body.Title,
		Description:    body.Description,
		Status:         body.Status,
		Priority:       body.Priority,
		AssigneeID:     body.AssigneeID,
		EstimatedHours: body.EstimatedHours,
		DueDate:        body.DueDate,
		Tags:           body.Tags,
	}
}

func (h *Handlers) CreateTask(ctx *gin.Context) {
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

	var body TaskRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	task, err := h.Engine.CreateTask(projectID, taskInput(body), currentUser)

	if err != nil {
		respondWorkflowError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, taskResponse(task))
}

// ListTasks returns the tasks the caller may observe, filtered by the query
// parameters. Without a project filter the listing spans every visible
// project.
func (h *Handlers) ListTasks(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	visible, err := access.VisibleProjects(currentUser)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tasks"})
		return
	}

	if len(visible) == 0 {
		ctx.JSON(http.StatusOK, []TaskResponse{})
		return
	}

	query := db.DB.Preload("Assignee").Preload("Tags").Where("project_id IN (?)", visible)

	if projectParam := ctx.Query("project_id"); projectParam != "" {
		projectID, err := strconv.ParseUint(projectParam, 10, 32)

		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project_id"})
			return
		}

		query = query.Where("project_id = ?", uint(projectID))
	}

	if status := ctx.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if priority := ctx.Query("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}

	if assigneeParam := ctx.Query("assignee_id"); assigneeParam != "" {
		if assigneeParam == "none" {
			query = query.Where("assignee_id IS NULL")
		} else {
			assigneeID, err := strconv.ParseUint(assigneeParam, 10, 32)

			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assignee_id"})
				return
			}

			query = query.Where("assignee_id = ?", uint(assigneeID))
		}
	}

	if search := ctx.Query("search"); search != "" {
		query = query.Where("title LIKE ? OR description LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if tag := ctx.Query("tag"); tag != "" {
		query = query.Joins("JOIN task_tags ON task_tags.task_id = tasks.id").
			Joins("JOIN tags ON tags.id = task_tags.tag_id").
			Where("tags.name = ?", tag)
	}

	if ctx.Query("overdue") == "true" {
		query = query.Where("due_date < ? AND status <> ?", time.Now(), "Done")
	}

	var tasks []models.Task

	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tasks"})
		return
	}

	response := make([]TaskResponse, 0, len(tasks))

	for i := range tasks {
		response = append(response, taskResponse(&tasks[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *Handlers) GetTask(ctx *gin.Context) {
	task, _, ok := h.observableTask(ctx)

	if !ok {
		return
	}

	var commentCount, attachmentCount int64

	db.DB.Model(&models.TaskComment{}).Where("task_id = ?", task.ID).Count(&commentCount)
	db.DB.Model(&models.TaskAttachment{}).Where("task_id = ?", task.ID).Count(&attachmentCount)

	ctx.JSON(http.StatusOK, gin.H{
		"task":             taskResponse(task),
		"comment_count":    commentCount,
		"attachment_count": attachmentCount,
	})
}

func (h *Handlers) UpdateTask(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body TaskRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	task, err := h.Engine.UpdateTask(taskID, taskInput(body), currentUser)

	if err != nil {
		respondWorkflowError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, taskResponse(task))
}

// UpdateTaskStatus is the HTTP counterpart of the task_status_update
// websocket command. Both paths run the same transition.
func (h *Handlers) UpdateTaskStatus(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body UpdateStatusRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}

	result, err := h.Engine.ApplyTransition(taskID, body.Status, currentUser)

	if err != nil {
		respondWorkflowError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"task":         taskResponse(result.Task),
		"old_status":   result.OldStatus,
		"wip_exceeded": result.WIPExceeded,
	})
}

func (h *Handlers) DeleteTask(ctx *gin.Context) {
	task, currentUser, ok := h.observableTask(ctx)

	if !ok {
		return
	}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(task).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskAttachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(task).Error
	})

	if err != nil {
		log.Printf("Failed to delete task %d: %v", task.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}

	activity.Record(currentUser.ID, "Task", task.ID, "deleted",
		"Task \""+task.Title+"\" deleted", types.TaskRef{TaskID: task.ID, ProjectID: task.ProjectID})

	ctx.Status(http.StatusNoContent)
}

// observableTask loads the task from the route and enforces project-level
// access, answering 404 for both a missing task and a forbidden one.
func (h *Handlers) observableTask(ctx *gin.Context) (*models.Task, middleware.AuthenticatedUser, bool) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, currentUser, false
	}

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, currentUser, false
	}

	var task models.Task

	err = db.DB.Preload("Assignee").Preload("Tags").First(&task, taskID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return nil, currentUser, false
	}

	allowed, err := access.CanObserve(currentUser, task.ProjectID)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, currentUser, false
	}

	if !allowed {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return nil, currentUser, false
	}

	return &task, currentUser, true
}
