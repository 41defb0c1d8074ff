package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/activity"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/types"
)

type AddCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

type CommentResponse struct {
	ID        uint      `json:"id"`
	TaskID    uint      `json:"task_id"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	AuthorID  uint      `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

func commentResponse(comment *models.TaskComment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		TaskID:    comment.TaskID,
		Body:      comment.Body,
		Author:    comment.Author.FullName,
		AuthorID:  comment.CreatedBy,
		CreatedAt: comment.CreatedAt,
	}
}

// AddComment persists a comment, resolves @mentions, records the activity
// entry and broadcasts comment_added to the project topic.
func (h *Handlers) AddComment(ctx *gin.Context) {
	task, currentUser, ok := h.observableTask(ctx)

	if !ok {
		return
	}

	var body AddCommentRequest

	if err := ctx.BindJSON(&body); err != nil || strings.TrimSpace(body.Body) == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Comment body is required"})
		return
	}

	comment := models.TaskComment{
		TaskID:    task.ID,
		Body:      body.Body,
		CreatedBy: currentUser.ID,
	}

	if err := db.DB.Create(&comment).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add comment"})
		return
	}

	h.Fanout.ProcessMentions(comment.Body, task, comment.ID, currentUser)

	activity.Record(currentUser.ID, "Task", task.ID, "commented",
		"Comment added to \""+task.Title+"\"",
		types.TaskRef{TaskID: task.ID, ProjectID: task.ProjectID})

	h.Hub.Publish(realtime.ProjectTopic(task.ProjectID), realtime.Event{
		Type: types.EventCommentAdded,
		Data: types.CommentEvent{
			TaskID:    task.ID,
			ProjectID: task.ProjectID,
			CommentID: comment.ID,
			Author:    currentUser.FullName,
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt.Format(time.RFC3339),
		},
	})

	comment.Author = models.User{FullName: currentUser.FullName}

	ctx.JSON(http.StatusCreated, commentResponse(&comment))
}

func (h *Handlers) ListComments(ctx *gin.Context) {
	task, _, ok := h.observableTask(ctx)

	if !ok {
		return
	}

	var comments []models.TaskComment

	err := db.DB.Preload("Author").
		Where("task_id = ?", task.ID).
		Order("created_at ASC").
		Find(&comments).Error

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comments"})
		return
	}

	response := make([]CommentResponse, 0, len(comments))

	for i := range comments {
		response = append(response, commentResponse(&comments[i]))
	}

	ctx.JSON(http.StatusOK, response)
}
