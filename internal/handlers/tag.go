package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/activity"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/utils"
	"gorm.io/gorm"
)

type TagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

type TagResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func tagResponse(tag *models.Tag) TagResponse {
	return TagResponse{ID: tag.ID, Name: tag.Name, Color: tag.Color}
}

func (h *Handlers) ListTags(ctx *gin.Context) {
	var tags []models.Tag

	if err := db.DB.Order("name ASC").Find(&tags).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tags"})
		return
	}

	response := make([]TagResponse, 0, len(tags))

	for i := range tags {
		response = append(response, tagResponse(&tags[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *Handlers) CreateTag(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body TagRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var existing int64

	db.DB.Model(&models.Tag{}).Where("name = ?", body.Name).Count(&existing)

	if existing > 0 {
		ctx.JSON(http.StatusConflict, gin.H{"error": "Tag already exists"})
		return
	}

	tag := models.Tag{Name: body.Name, Color: body.Color}

	if err := db.DB.Create(&tag).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tag"})
		return
	}

	activity.Record(currentUser.ID, "Tag", tag.ID, "created",
		"Tag \""+tag.Name+"\" created", nil)

	ctx.JSON(http.StatusCreated, tagResponse(&tag))
}

func (h *Handlers) UpdateTag(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	tagID, err := utils.GetTagID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body TagRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var tag models.Tag

	if err := db.DB.First(&tag, tagID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tag"})
		}
		return
	}

	tag.Name = body.Name

	if body.Color != "" {
		tag.Color = body.Color
	}

	if err := db.DB.Save(&tag).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tag"})
		return
	}

	activity.Record(currentUser.ID, "Tag", tag.ID, "updated",
		"Tag \""+tag.Name+"\" edited", nil)

	ctx.JSON(http.StatusOK, tagResponse(&tag))
}

func (h *Handlers) DeleteTag(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	tagID, err := utils.GetTagID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var tag models.Tag

	if err := db.DB.First(&tag, tagID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tag"})
		}
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&tag).Association("Tasks").Clear(); err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete tag"})
		return
	}

	activity.Record(currentUser.ID, "Tag", tag.ID, "deleted",
		"Tag \""+tag.Name+"\" deleted", nil)

	ctx.Status(http.StatusNoContent)
}
