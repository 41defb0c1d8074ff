package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/handlers"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/types"
)

func NewRouter(h *handlers.Handlers) *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws", middleware.AuthMiddleware(), h.WebSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/login", h.Login)
			auth.POST("/logout", h.Logout)
			auth.GET("/me", middleware.AuthMiddleware(), h.Me)
			auth.POST("/change-password", middleware.AuthMiddleware(), h.ChangePassword)
		}

		projects := api.Group("/projects", middleware.AuthMiddleware())
		{
			projects.POST("", middleware.PrivilegedOnly(), h.CreateProject)
			projects.GET("", h.ListProjects)
			projects.GET("/:project_id", h.GetProject)
			projects.PATCH("/:project_id", middleware.PrivilegedOnly(), h.UpdateProject)
			projects.DELETE("/:project_id", middleware.PrivilegedOnly(), h.DeleteProject)

			projects.GET("/:project_id/board", h.GetBoard)
			projects.GET("/:project_id/statuses", h.ListStatusDefinitions)
			projects.PUT("/:project_id/statuses", middleware.PrivilegedOnly(), h.ReplaceStatusDefinitions)

			projects.GET("/:project_id/members", h.ListMembers)
			projects.POST("/:project_id/members", middleware.PrivilegedOnly(), h.AddMember)
			projects.DELETE("/:project_id/members/:user_id", middleware.PrivilegedOnly(), h.RemoveMember)

			projects.POST("/:project_id/tasks", h.CreateTask)
		}

		tasks := api.Group("/tasks", middleware.AuthMiddleware())
		{
			tasks.GET("", h.ListTasks)
			tasks.GET("/:task_id", h.GetTask)
			tasks.PATCH("/:task_id", h.UpdateTask)
			tasks.DELETE("/:task_id", h.DeleteTask)
			tasks.POST("/:task_id/status", h.UpdateTaskStatus)

			tasks.POST("/:task_id/comments", h.AddComment)
			tasks.GET("/:task_id/comments", h.ListComments)

			tasks.POST("/:task_id/attachments", h.UploadAttachment)
			tasks.GET("/:task_id/attachments", h.ListAttachments)
		}

		notifications := api.Group("/notifications", middleware.AuthMiddleware())
		{
			notifications.GET("", h.ListNotifications)
			notifications.GET("/unread-count", h.UnreadNotificationCount)
			notifications.GET("/recent", h.RecentNotifications)
			notifications.POST("/read-all", h.MarkAllNotificationsRead)
			notifications.POST("/:notification_id/read", h.MarkNotificationRead)
			notifications.DELETE("/:notification_id", h.DeleteNotification)
			notifications.DELETE("", h.ClearNotifications)
		}

		admin := api.Group("/admin", middleware.AuthMiddleware(), middleware.PrivilegedOnly())
		{
			admin.GET("/users", h.ListUsers)
			admin.POST("/users", h.CreateUser)
			admin.PATCH("/users/:user_id", h.UpdateUser)
			admin.DELETE("/users/:user_id", h.DeleteUser)

			admin.GET("/tags", h.ListTags)
			admin.POST("/tags", h.CreateTag)
			admin.PATCH("/tags/:tag_id", h.UpdateTag)
			admin.DELETE("/tags/:tag_id", h.DeleteTag)

			admin.GET("/activity-log", h.ListActivity)
			admin.GET("/stats", h.SystemStats)
		}
	}

	return r
}
