package types

// Notification payloads and activity metadata are persisted as JSON columns,
// but every call site marshals one of these named shapes so the structure per
// notification type stays consistent. A plain map[string]any remains the
// escape hatch for metadata with no fixed shape.

// TaskRef points a notification at a task.
type TaskRef struct {
	TaskID    uint `json:"task_id"`
	ProjectID uint `json:"project_id"`
}

// StatusChangeRef records the transition that triggered a notification.
type StatusChangeRef struct {
	TaskID    uint   `json:"task_id"`
	ProjectID uint   `json:"project_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// MentionRef points at the comment a user was mentioned in.
type MentionRef struct {
	TaskID        uint   `json:"task_id"`
	ProjectID     uint   `json:"project_id"`
	CommentID     uint   `json:"comment_id"`
	CommentAuthor string `json:"comment_author"`
}

// ProjectRef points a notification at a project.
type ProjectRef struct {
	ProjectID uint `json:"project_id"`
}
