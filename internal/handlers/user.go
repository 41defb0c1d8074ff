package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/activity"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/types"
	"github.com/taskboard-dev/taskboard/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type CreateUserRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

type UpdateUserRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
	Password string `json:"password"`
}

// ListUsers returns every account. Privileged only; the router enforces it.
func (h *Handlers) ListUsers(ctx *gin.Context) {
	var users []models.User

	if err := db.DB.Order("full_name ASC").Find(&users).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve users"})
		return
	}

	response := make([]types.UserResponse, 0, len(users))

	for _, user := range users {
		response = append(response, types.UserResponse{
			ID:       user.ID,
			FullName: user.FullName,
			Username: user.Username,
			Email:    user.Email,
			Role:     user.Role,
		})
	}

	ctx.JSON(http.StatusOK, response)
}

// CreateUser provisions an account. New accounts must change their password
// on first login.
func (h *Handlers) CreateUser(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body CreateUserRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	role := body.Role

	if role == "" {
		role = types.RoleStandard
	}

	if role != types.RoleStandard && role != types.RolePrivileged {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	// Login lowercases the identifier, so store it lowercased too or the
	// account would be unreachable.
	email := strings.ToLower(strings.TrimSpace(body.Email))
	username := strings.ToLower(strings.TrimSpace(body.Username))

	var existing int64

	db.DB.Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&existing)

	if existing > 0 {
		ctx.JSON(http.StatusConflict, gin.H{"error": "Email or username already in use"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		FullName:            body.FullName,
		Email:               email,
		Username:            username,
		PasswordHash:        string(hash),
		Role:                role,
		IsActive:            true,
		ForcePasswordChange: true,
	}

	if err := db.DB.Create(&user).Error; err != nil {
		log.Printf("Failed to create user: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	activity.Record(currentUser.ID, "User", user.ID, "created",
		"Account \""+user.Username+"\" created", nil)

	ctx.JSON(http.StatusCreated, types.UserResponse{
		ID:       user.ID,
		FullName: user.FullName,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	})
}

func (h *Handlers) UpdateUser(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userID, err := utils.GetUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body UpdateUserRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var user models.User

	if err := db.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		}
		return
	}

	if body.FullName != "" {
		user.FullName = body.FullName
	}

	if body.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(body.Email))
	}

	if body.Role != "" {
		if body.Role != types.RoleStandard && body.Role != types.RolePrivileged {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		user.Role = body.Role
	}

	if body.IsActive != nil {
		if user.ID == currentUser.ID && !*body.IsActive {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Cannot deactivate your own account"})
			return
		}
		user.IsActive = *body.IsActive
	}

	if body.Password != "" {
		if len(body.Password) < 8 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)

		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}

		user.PasswordHash = string(hash)
		user.ForcePasswordChange = true
	}

	if err := db.DB.Save(&user).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	activity.Record(currentUser.ID, "User", user.ID, "updated",
		"Account \""+user.Username+"\" edited", nil)

	ctx.JSON(http.StatusOK, types.UserResponse{
		ID:       user.ID,
		FullName: user.FullName,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	})
}

// DeleteUser removes an account. Self-deletion is refused, as is deleting a
// user who still has tasks; deactivate instead.
func (h *Handlers) DeleteUser(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userID, err := utils.GetUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if userID == currentUser.ID {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete your own account"})
		return
	}

	var user models.User

	if err := db.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		}
		return
	}

	var taskCount int64

	db.DB.Model(&models.Task{}).
		Where("assignee_id = ? OR created_by = ?", user.ID, user.ID).
		Count(&taskCount)

	if taskCount > 0 {
		ctx.JSON(http.StatusConflict, gin.H{"error": "User still has tasks; deactivate the account instead"})
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.ProjectMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})

	if err != nil {
		log.Printf("Failed to delete user %d: %v", user.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	activity.Record(currentUser.ID, "User", user.ID, "deleted",
		"Account \""+user.Username+"\" deleted", nil)

	ctx.Status(http.StatusNoContent)
}
