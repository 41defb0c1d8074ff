package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/storage"
	"github.com/taskboard-dev/taskboard/internal/workflow"
)

// Handlers carries the owned service instances every request handler works
// through. Built once in main, torn down with the server.
type Handlers struct {
	Hub    *realtime.Hub
	Engine *workflow.Engine
	Fanout *notify.Fanout
	Files  *storage.Store
}

func New(hub *realtime.Hub, engine *workflow.Engine, fanout *notify.Fanout, files *storage.Store) *Handlers {
	return &Handlers{
		Hub:    hub,
		Engine: engine,
		Fanout: fanout,
		Files:  files,
	}
}

// respondWorkflowError maps the engine's failure taxonomy onto HTTP codes.
func respondWorkflowError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Task or project not found"})
	case errors.Is(err, workflow.ErrForbidden):
		ctx.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this project"})
	case errors.Is(err, workflow.ErrInvalidStatus):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Status is not defined for this project"})
	case errors.Is(err, workflow.ErrWIPLimitExceeded):
		ctx.JSON(http.StatusConflict, gin.H{"error": "WIP limit exceeded for this status"})
	case errors.Is(err, workflow.ErrValidation):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("Unexpected workflow error: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
