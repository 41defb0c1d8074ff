// Package workflow is the sole writer of authoritative task state. Every
// accepted mutation follows the same shape: validate, persist, record the
// audit entry, fan out notifications, broadcast — with the broadcast strictly
// after the database commit, so subscribers never hear about state that does
// not exist.
package workflow

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/activity"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/types"
	"gorm.io/gorm"
)

// WIPPolicy decides what happens when a transition would push a status
// column past its configured WIP limit.
type WIPPolicy int

const (
	// WIPAdvisory accepts the transition and surfaces the overflow in the
	// result and the broadcast payload. The default; matches long-standing
	// product behavior where the limit is informational.
	WIPAdvisory WIPPolicy = iota
	// WIPEnforce rejects the transition with ErrWIPLimitExceeded.
	WIPEnforce
)

type Engine struct {
	hub    *realtime.Hub
	fanout *notify.Fanout
	wip    WIPPolicy
}

func NewEngine(hub *realtime.Hub, fanout *notify.Fanout, wip WIPPolicy) *Engine {
	return &Engine{hub: hub, fanout: fanout, wip: wip}
}

type TransitionResult struct {
	Task        *models.Task
	OldStatus   string
	WIPExceeded bool
}

type TaskInput struct {
	Title          string
	Description    string
	Status         string
	Priority       string
	AssigneeID     *uint
	EstimatedHours *float64
	DueDate        *time.Time
	Tags           []string
}

// ApplyTransition validates and applies a status transition. Exactly one
// task_status_changed event is published per committed transition, and at
// most one notification is created (only when the task has an assignee other
// than the actor).
func (e *Engine) ApplyTransition(taskID uint, newStatus string, actor middleware.AuthenticatedUser) (*TransitionResult, error) {
	var task models.Task

	if err := db.DB.Preload("Assignee").First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	allowed, err := access.CanObserve(actor, task.ProjectID)

	if err != nil {
		return nil, err
	}

	if !allowed {
		return nil, ErrForbidden
	}

	definition, err := e.statusDefinition(task.ProjectID, newStatus)

	if err != nil {
		return nil, err
	}

	wipExceeded, err := e.checkWIP(&task, definition)

	if err != nil {
		return nil, err
	}

	oldStatus := task.Status
	task.Status = newStatus
	task.UpdatedAt = time.Now()

	if err := db.DB.Model(&task).Updates(map[string]interface{}{
		"status":     task.Status,
		"updated_at": task.UpdatedAt,
	}).Error; err != nil {
		return nil, err
	}

	activity.Record(actor.ID, "Task", task.ID, "status_changed",
		fmt.Sprintf("Task %q moved from %q to %q", task.Title, oldStatus, newStatus),
		types.StatusChangeRef{
			TaskID:    task.ID,
			ProjectID: task.ProjectID,
			OldStatus: oldStatus,
			NewStatus: newStatus,
		})

	if task.AssigneeID != nil && *task.AssigneeID != actor.ID {
		err := e.fanout.Notify(
			*task.AssigneeID,
			types.NotifyTaskStatusChanged,
			"Task status changed",
			fmt.Sprintf("Task %q is now %q.", task.Title, newStatus),
			types.StatusChangeRef{
				TaskID:    task.ID,
				ProjectID: task.ProjectID,
				OldStatus: oldStatus,
				NewStatus: newStatus,
			})

		if err != nil {
			log.Printf("Failed to notify assignee of task %d: %v", task.ID, err)
		}
	}

	e.hub.Publish(realtime.ProjectTopic(task.ProjectID), realtime.Event{
		Type: types.EventTaskStatusChanged,
		Data: types.StatusChangedEvent{
			TaskID:      task.ID,
			ProjectID:   task.ProjectID,
			Title:       task.Title,
			OldStatus:   oldStatus,
			NewStatus:   newStatus,
			Assignee:    assigneeName(&task),
			UpdatedBy:   actor.FullName,
			WIPExceeded: wipExceeded,
		},
	})

	return &TransitionResult{Task: &task, OldStatus: oldStatus, WIPExceeded: wipExceeded}, nil
}

// CreateTask validates and persists a new task in the project, then logs,
// notifies the assignee (when it is not the actor) and broadcasts
// task_created to the project topic.
func (e *Engine) CreateTask(projectID uint, input TaskInput, actor middleware.AuthenticatedUser) (*models.Task, error) {
	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	allowed, err := access.CanObserve(actor, project.ID)

	if err != nil {
		return nil, err
	}

	if !allowed {
		return nil, ErrForbidden
	}

	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	if input.Status == "" {
		input.Status = "ToDo"
	}

	if input.Priority == "" {
		input.Priority = types.PriorityMed
	}

	if _, err := e.statusDefinition(project.ID, input.Status); err != nil {
		return nil, err
	}

	if err := validPriority(input.Priority); err != nil {
		return nil, err
	}

	if err := e.validAssignee(input.AssigneeID, project.ID); err != nil {
		return nil, err
	}

	task := models.Task{
		ProjectID:      project.ID,
		Title:          input.Title,
		Description:    input.Description,
		Status:         input.Status,
		Priority:       input.Priority,
		AssigneeID:     input.AssigneeID,
		EstimatedHours: input.EstimatedHours,
		DueDate:        input.DueDate,
		CreatedBy:      actor.ID,
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		return applyTags(tx, &task, input.Tags)
	})

	if err != nil {
		return nil, err
	}

	activity.Record(actor.ID, "Task", task.ID, "created",
		fmt.Sprintf("Task %q created in project %q", task.Title, project.Name),
		types.TaskRef{TaskID: task.ID, ProjectID: project.ID})

	if task.AssigneeID != nil && *task.AssigneeID != actor.ID {
		err := e.fanout.Notify(
			*task.AssigneeID,
			types.NotifyTaskAssigned,
			"New task assigned to you",
			fmt.Sprintf("Task %q in project %q was assigned to you.", task.Title, project.Name),
			types.TaskRef{TaskID: task.ID, ProjectID: project.ID})

		if err != nil {
			log.Printf("Failed to notify assignee of task %d: %v", task.ID, err)
		}
	}

	e.loadAssignee(&task)

	e.hub.Publish(realtime.ProjectTopic(project.ID), realtime.Event{
		Type: types.EventTaskCreated,
		Data: types.TaskEvent{
			TaskID:    task.ID,
			ProjectID: project.ID,
			Title:     task.Title,
			Status:    task.Status,
			Priority:  task.Priority,
			Assignee:  assigneeName(&task),
		},
	})

	return &task, nil
}

// UpdateTask replaces the editable fields of a task. Status and assignee
// changes produce the same notifications a direct transition or
// re-assignment would; the broadcast is a single task_updated event.
func (e *Engine) UpdateTask(taskID uint, input TaskInput, actor middleware.AuthenticatedUser) (*models.Task, error) {
	var task models.Task

	if err := db.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	allowed, err := access.CanObserve(actor, task.ProjectID)

	if err != nil {
		return nil, err
	}

	if !allowed {
		return nil, ErrForbidden
	}

	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	if input.Status == "" {
		input.Status = task.Status
	}

	if input.Priority == "" {
		input.Priority = task.Priority
	}

	if _, err := e.statusDefinition(task.ProjectID, input.Status); err != nil {
		return nil, err
	}

	if err := validPriority(input.Priority); err != nil {
		return nil, err
	}

	if err := e.validAssignee(input.AssigneeID, task.ProjectID); err != nil {
		return nil, err
	}

	oldStatus := task.Status
	oldAssigneeID := task.AssigneeID

	task.Title = input.Title
	task.Description = input.Description
	task.Status = input.Status
	task.Priority = input.Priority
	task.AssigneeID = input.AssigneeID
	task.EstimatedHours = input.EstimatedHours
	task.DueDate = input.DueDate
	task.UpdatedAt = time.Now()

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&task).Error; err != nil {
			return err
		}

		if input.Tags != nil {
			if err := tx.Model(&task).Association("Tags").Clear(); err != nil {
				return err
			}
			return applyTags(tx, &task, input.Tags)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	activity.Record(actor.ID, "Task", task.ID, "updated",
		fmt.Sprintf("Task %q edited", task.Title),
		types.TaskRef{TaskID: task.ID, ProjectID: task.ProjectID})

	e.notifyTaskChanges(&task, oldStatus, oldAssigneeID, actor)

	e.loadAssignee(&task)

	e.hub.Publish(realtime.ProjectTopic(task.ProjectID), realtime.Event{
		Type: types.EventTaskUpdated,
		Data: types.TaskEvent{
			TaskID:    task.ID,
			ProjectID: task.ProjectID,
			Title:     task.Title,
			Status:    task.Status,
			Priority:  task.Priority,
			Assignee:  assigneeName(&task),
		},
	})

	return &task, nil
}

func (e *Engine) notifyTaskChanges(task *models.Task, oldStatus string, oldAssigneeID *uint, actor middleware.AuthenticatedUser) {
	if oldStatus != task.Status && task.AssigneeID != nil && *task.AssigneeID != actor.ID {
		err := e.fanout.Notify(
			*task.AssigneeID,
			types.NotifyTaskStatusChanged,
			"Task status changed",
			fmt.Sprintf("Task %q is now %q.", task.Title, task.Status),
			types.StatusChangeRef{
				TaskID:    task.ID,
				ProjectID: task.ProjectID,
				OldStatus: oldStatus,
				NewStatus: task.Status,
			})

		if err != nil {
			log.Printf("Failed to notify assignee of task %d: %v", task.ID, err)
		}
	}

	if !sameAssignee(oldAssigneeID, task.AssigneeID) {
		if task.AssigneeID != nil && *task.AssigneeID != actor.ID {
			err := e.fanout.Notify(
				*task.AssigneeID,
				types.NotifyTaskAssigned,
				"Task assigned to you",
				fmt.Sprintf("Task %q was assigned to you.", task.Title),
				types.TaskRef{TaskID: task.ID, ProjectID: task.ProjectID})

			if err != nil {
				log.Printf("Failed to notify new assignee of task %d: %v", task.ID, err)
			}
		}

		if oldAssigneeID != nil && *oldAssigneeID != actor.ID {
			err := e.fanout.Notify(
				*oldAssigneeID,
				types.NotifyTaskUnassigned,
				"Task unassigned",
				fmt.Sprintf("Task %q is no longer assigned to you.", task.Title),
				types.TaskRef{TaskID: task.ID, ProjectID: task.ProjectID})

			if err != nil {
				log.Printf("Failed to notify previous assignee of task %d: %v", task.ID, err)
			}
		}
	}
}

func (e *Engine) statusDefinition(projectID uint, status string) (*models.StatusDefinition, error) {
	var definition models.StatusDefinition

	err := db.DB.Where("project_id = ? AND name = ?", projectID, status).First(&definition).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidStatus
		}
		return nil, err
	}

	return &definition, nil
}

// checkWIP applies the configured WIP policy for a transition into the
// definition's column. The current occupant count excludes the moving task.
func (e *Engine) checkWIP(task *models.Task, definition *models.StatusDefinition) (bool, error) {
	if definition.WIPLimit == nil {
		return false, nil
	}

	var count int64

	err := db.DB.Model(&models.Task{}).
		Where("project_id = ? AND status = ? AND id <> ?", task.ProjectID, definition.Name, task.ID).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	if count < int64(*definition.WIPLimit) {
		return false, nil
	}

	if e.wip == WIPEnforce {
		return true, ErrWIPLimitExceeded
	}

	log.Printf("WIP limit exceeded for project %d status %q (%d/%d)",
		task.ProjectID, definition.Name, count+1, *definition.WIPLimit)

	return true, nil
}

func (e *Engine) validAssignee(assigneeID *uint, projectID uint) error {
	if assigneeID == nil {
		return nil
	}

	isMember, err := access.IsMember(*assigneeID, projectID)

	if err != nil {
		return err
	}

	if !isMember {
		return fmt.Errorf("%w: assignee must be a project member", ErrValidation)
	}

	return nil
}

func (e *Engine) loadAssignee(task *models.Task) {
	if task.AssigneeID == nil || task.Assignee != nil {
		return
	}

	var assignee models.User

	if err := db.DB.First(&assignee, *task.AssigneeID).Error; err == nil {
		task.Assignee = &assignee
	}
}

// applyTags resolves tag names to rows, creating missing tags, and attaches
// them to the task. Tags are shared; they are never deleted here.
func applyTags(tx *gorm.DB, task *models.Task, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)

		if name == "" {
			continue
		}

		var tag models.Tag

		err := tx.Where("name = ?", name).First(&tag).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = models.Tag{Name: name}
			err = tx.Create(&tag).Error
		}

		if err != nil {
			return err
		}

		if err := tx.Model(task).Association("Tags").Append(&tag); err != nil {
			return err
		}
	}

	return nil
}

func validPriority(priority string) error {
	switch priority {
	case types.PriorityLow, types.PriorityMed, types.PriorityHigh:
		return nil
	}
	return fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
}

func sameAssignee(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func assigneeName(task *models.Task) string {
	if task.Assignee == nil {
		return ""
	}
	return task.Assignee.FullName
}
