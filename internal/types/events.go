package types

// Server-to-client websocket event names.
const (
	EventConnected           = "connected"
	EventJoinedProject       = "joined_project"
	EventLeftProject         = "left_project"
	EventTaskCreated         = "task_created"
	EventTaskUpdated         = "task_updated"
	EventTaskStatusChanged   = "task_status_changed"
	EventCommentAdded        = "comment_added"
	EventMemberAdded         = "member_added"
	EventMemberRemoved       = "member_removed"
	EventNewNotification     = "new_notification"
	EventStatusUpdateSuccess = "status_update_success"
	EventError               = "error"
	EventPong                = "pong"
)

// Client-to-server websocket command names.
const (
	CommandJoinProject      = "join_project"
	CommandLeaveProject     = "leave_project"
	CommandTaskStatusUpdate = "task_status_update"
	CommandPing             = "ping"
)

// TaskEvent is broadcast to a project topic on task creation and edit.
type TaskEvent struct {
	TaskID    uint   `json:"task_id"`
	ProjectID uint   `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	Assignee  string `json:"assignee,omitempty"`
}

// StatusChangedEvent is broadcast to a project topic on every committed
// status transition.
type StatusChangedEvent struct {
	TaskID      uint   `json:"task_id"`
	ProjectID   uint   `json:"project_id"`
	Title       string `json:"title"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	Assignee    string `json:"assignee,omitempty"`
	UpdatedBy   string `json:"updated_by"`
	WIPExceeded bool   `json:"wip_exceeded,omitempty"`
}

type CommentEvent struct {
	TaskID    uint   `json:"task_id"`
	ProjectID uint   `json:"project_id"`
	CommentID uint   `json:"comment_id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

type MemberEvent struct {
	ProjectID uint   `json:"project_id"`
	UserID    uint   `json:"user_id"`
	FullName  string `json:"full_name"`
}

// NotificationEvent is pushed to the recipient's personal topic.
type NotificationEvent struct {
	ID      uint   `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}
