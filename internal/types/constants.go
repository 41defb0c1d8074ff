package types

import (
	"os"
	"strings"
)

const ContextUserKey = "user"

// User roles.
const (
	RolePrivileged = "PRIVILEGED"
	RoleStandard   = "STANDARD"
)

// Roles within a project.
const (
	ProjectRoleMember = "MEMBER"
	ProjectRoleLead   = "LEAD"
)

// Task priorities. The canonical set; seed data and validation both use it.
const (
	PriorityLow  = "Low"
	PriorityMed  = "Med"
	PriorityHigh = "High"
)

// Notification types.
const (
	NotifyTaskAssigned      = "task_assigned"
	NotifyTaskUnassigned    = "task_unassigned"
	NotifyTaskStatusChanged = "task_status_changed"
	NotifyTaskOverdue       = "task_overdue"
	NotifyCommentMention    = "comment_mention"
	NotifyProjectAdded      = "project_added"
	NotifyProjectRemoved    = "project_removed"
)

// DefaultStatus describes one of the four board columns seeded into every
// new project.
type DefaultStatus struct {
	Name        string
	DisplayName string
	OrderIndex  int
	Color       string
}

var DefaultStatuses = []DefaultStatus{
	{Name: "ToDo", DisplayName: "To Do", OrderIndex: 1, Color: "#6B7280"},
	{Name: "Doing", DisplayName: "Doing", OrderIndex: 2, Color: "#3B82F6"},
	{Name: "Review", DisplayName: "Review", OrderIndex: 3, Color: "#F59E0B"},
	{Name: "Done", DisplayName: "Done", OrderIndex: 4, Color: "#10B981"},
}

var (
	// Default allowed origins for development
	defaultOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}

	AllowedOrigins = initAllowedOrigins()
)

func initAllowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		envOrigins := strings.Split(allowedOrigins, ",")
		for _, origin := range envOrigins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}

type UserResponse struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
