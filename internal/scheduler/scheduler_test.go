package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/testdb"
	"github.com/taskboard-dev/taskboard/internal/types"
)

func seedOverdueTask(t *testing.T, title string, assigneeID *uint, status string, due time.Time) *models.Task {
	t.Helper()

	task := models.Task{
		ProjectID:  1,
		Title:      title,
		Status:     status,
		Priority:   types.PriorityMed,
		AssigneeID: assigneeID,
		DueDate:    &due,
		CreatedBy:  1,
	}
	require.NoError(t, db.DB.Create(&task).Error)

	return &task
}

func TestSweepNotifiesAssigneeOnce(t *testing.T) {
	testdb.Open(t)

	user := models.User{FullName: "Assignee", Email: "a@example.com", Username: "assignee", PasswordHash: "x", Role: types.RoleStandard, IsActive: true}
	require.NoError(t, db.DB.Create(&user).Error)

	yesterday := time.Now().AddDate(0, 0, -1)
	tomorrow := time.Now().AddDate(0, 0, 1)

	seedOverdueTask(t, "Late", &user.ID, "Doing", yesterday)
	seedOverdueTask(t, "Finished late", &user.ID, "Done", yesterday)
	seedOverdueTask(t, "Not due yet", &user.ID, "Doing", tomorrow)
	seedOverdueTask(t, "Unassigned", nil, "Doing", yesterday)

	s := NewScheduler(notify.NewFanout(realtime.NewHub()))
	s.Sweep()

	var notifications []models.Notification
	require.NoError(t, db.DB.Where("user_id = ?", user.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, types.NotifyTaskOverdue, notifications[0].Type)

	// A second sweep does not repeat the reminder.
	s.Sweep()

	require.NoError(t, db.DB.Where("user_id = ?", user.ID).Find(&notifications).Error)
	assert.Len(t, notifications, 1)
}
