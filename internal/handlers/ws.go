package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/types"
	"github.com/taskboard-dev/taskboard/internal/utils"
	"github.com/taskboard-dev/taskboard/internal/workflow"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if origin == "" {
			return true
		}

		for _, allowed := range types.AllowedOrigins {
			if origin == allowed {
				return true
			}
		}

		return false
	},
}

// WebSocket upgrades the request and serves the session until the client
// disconnects. Authentication happened in middleware; the token may arrive
// via cookie since browsers cannot set headers on websocket requests.
func (h *Handlers) WebSocket(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)

	if err != nil {
		log.Printf("Failed to upgrade websocket for user %d: %v", currentUser.ID, err)
		return
	}

	session := realtime.NewSession(h.Hub, conn, currentUser)
	session.Serve()
}

// CommandDispatcher routes domain commands arriving over a websocket into
// the workflow engine. Installed on the hub at startup.
type CommandDispatcher struct {
	engine *workflow.Engine
}

func NewCommandDispatcher(engine *workflow.Engine) *CommandDispatcher {
	return &CommandDispatcher{engine: engine}
}

// statusUpdateCommand carries project_id for wire compatibility, but the
// task's own project assignment is authoritative.
type statusUpdateCommand struct {
	TaskID    uint   `json:"task_id"`
	ProjectID uint   `json:"project_id"`
	Status    string `json:"status"`
}

// HandleCommand runs a domain command on behalf of the session's user.
// Failures go back to the originating connection only; a committed
// transition is confirmed with status_update_success while the broadcast to
// the project room happens inside the engine.
func (d *CommandDispatcher) HandleCommand(s *realtime.Session, command string, data json.RawMessage) {
	switch command {
	case types.CommandTaskStatusUpdate:
		d.handleStatusUpdate(s, data)
	default:
		s.SendError("Unknown command")
	}
}

func (d *CommandDispatcher) handleStatusUpdate(s *realtime.Session, data json.RawMessage) {
	var cmd statusUpdateCommand

	if err := json.Unmarshal(data, &cmd); err != nil || cmd.TaskID == 0 || cmd.Status == "" {
		s.SendError("task_id and status are required")
		return
	}

	result, err := d.engine.ApplyTransition(cmd.TaskID, cmd.Status, s.User)

	if err != nil {
		s.SendError(transitionErrorMessage(err))
		return
	}

	s.Send(types.EventStatusUpdateSuccess, map[string]interface{}{
		"task_id":      result.Task.ID,
		"old_status":   result.OldStatus,
		"new_status":   result.Task.Status,
		"wip_exceeded": result.WIPExceeded,
	})
}

func transitionErrorMessage(err error) string {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return "Task not found"
	case errors.Is(err, workflow.ErrForbidden):
		return "You do not have access to this task"
	case errors.Is(err, workflow.ErrInvalidStatus):
		return "Invalid status for this project"
	case errors.Is(err, workflow.ErrWIPLimitExceeded):
		return "WIP limit reached for this status"
	default:
		log.Printf("Status update failed: %v", err)
		return "Failed to update task status"
	}
}
