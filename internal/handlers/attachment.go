package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/activity"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/types"
)

type AttachmentResponse struct {
	ID               uint      `json:"id"`
	TaskID           uint      `json:"task_id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	Size             int64     `json:"size"`
	MimeType         string    `json:"mime_type"`
	UploadedBy       uint      `json:"uploaded_by"`
	CreatedAt        time.Time `json:"created_at"`
}

func attachmentResponse(attachment *models.TaskAttachment) AttachmentResponse {
	return AttachmentResponse{
		ID:               attachment.ID,
		TaskID:           attachment.TaskID,
		Filename:         attachment.Filename,
		OriginalFilename: attachment.OriginalFilename,
		Size:             attachment.Size,
		MimeType:         attachment.MimeType,
		UploadedBy:       attachment.UploadedBy,
		CreatedAt:        attachment.CreatedAt,
	}
}

// UploadAttachment stores the uploaded file on disk and records the
// attachment row. The stored filename is randomized; the original name is
// kept for display only.
func (h *Handlers) UploadAttachment(ctx *gin.Context) {
	task, currentUser, ok := h.observableTask(ctx)

	if !ok {
		return
	}

	file, err := ctx.FormFile("file")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	info, err := h.Files.Save(ctx, file, "attachments")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attachment := models.TaskAttachment{
		TaskID:           task.ID,
		Filename:         info.Filename,
		OriginalFilename: info.OriginalFilename,
		Path:             info.Path,
		Size:             info.Size,
		MimeType:         info.MimeType,
		UploadedBy:       currentUser.ID,
	}

	if err := db.DB.Create(&attachment).Error; err != nil {
		log.Printf("Failed to record attachment for task %d: %v", task.ID, err)
		h.Files.Remove(info.Path)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save attachment"})
		return
	}

	activity.Record(currentUser.ID, "Task", task.ID, "attachment_added",
		"File \""+info.OriginalFilename+"\" attached to \""+task.Title+"\"",
		types.TaskRef{TaskID: task.ID, ProjectID: task.ProjectID})

	ctx.JSON(http.StatusCreated, attachmentResponse(&attachment))
}

func (h *Handlers) ListAttachments(ctx *gin.Context) {
	task, _, ok := h.observableTask(ctx)

	if !ok {
		return
	}

	var attachments []models.TaskAttachment

	err := db.DB.Where("task_id = ?", task.ID).
		Order("created_at ASC").
		Find(&attachments).Error

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve attachments"})
		return
	}

	response := make([]AttachmentResponse, 0, len(attachments))

	for i := range attachments {
		response = append(response, attachmentResponse(&attachments[i]))
	}

	ctx.JSON(http.StatusOK, response)
}
