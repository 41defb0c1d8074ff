package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/testdb"
	"github.com/taskboard-dev/taskboard/internal/types"
)

type fixture struct {
	engine  *Engine
	project *models.Project
	lead    middleware.AuthenticatedUser
	member  middleware.AuthenticatedUser
}

func newFixture(t *testing.T, wip WIPPolicy) *fixture {
	t.Helper()
	testdb.Open(t)

	hub := realtime.NewHub()
	engine := NewEngine(hub, notify.NewFanout(hub), wip)

	lead := seedUser(t, "Lead User", "lead", types.RolePrivileged)
	member := seedUser(t, "Member User", "member", types.RoleStandard)

	project := models.Project{Name: "Alpha", IsActive: true, CreatedBy: lead.ID}
	require.NoError(t, db.DB.Create(&project).Error)

	for _, status := range types.DefaultStatuses {
		definition := models.StatusDefinition{
			ProjectID:   project.ID,
			Name:        status.Name,
			DisplayName: status.DisplayName,
			OrderIndex:  status.OrderIndex,
			Color:       status.Color,
		}
		require.NoError(t, db.DB.Create(&definition).Error)
	}

	for _, u := range []*models.User{lead, member} {
		membership := models.ProjectMembership{
			UserID:        u.ID,
			ProjectID:     project.ID,
			RoleInProject: types.ProjectRoleMember,
			JoinedAt:      time.Now(),
		}
		require.NoError(t, db.DB.Create(&membership).Error)
	}

	return &fixture{
		engine:  engine,
		project: &project,
		lead:    middleware.AuthenticatedUser{ID: lead.ID, FullName: lead.FullName, Username: lead.Username, Role: lead.Role},
		member:  middleware.AuthenticatedUser{ID: member.ID, FullName: member.FullName, Username: member.Username, Role: member.Role},
	}
}

func seedUser(t *testing.T, fullName, username, role string) *models.User {
	t.Helper()

	user := models.User{
		FullName:     fullName,
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.DB.Create(&user).Error)

	return &user
}

func notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()

	var notifications []models.Notification
	require.NoError(t, db.DB.Where("user_id = ?", userID).Find(&notifications).Error)

	return notifications
}

func TestCreateTaskDefaults(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	task, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "First task"}, f.lead)
	require.NoError(t, err)

	assert.Equal(t, "ToDo", task.Status)
	assert.Equal(t, types.PriorityMed, task.Priority)
	assert.Equal(t, f.lead.ID, task.CreatedBy)
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	_, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "   "}, f.lead)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.CreateTask(f.project.ID, TaskInput{Title: "T", Status: "Shipped"}, f.lead)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.engine.CreateTask(f.project.ID, TaskInput{Title: "T", Priority: "Critical"}, f.lead)
	assert.ErrorIs(t, err, ErrValidation)

	outsider := seedUser(t, "Outsider", "outsider", types.RoleStandard)

	_, err = f.engine.CreateTask(f.project.ID, TaskInput{Title: "T", AssigneeID: &outsider.ID}, f.lead)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.CreateTask(9999, TaskInput{Title: "T"}, f.lead)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateTaskForbiddenForOutsider(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	outsider := seedUser(t, "Outsider", "outsider", types.RoleStandard)
	actor := middleware.AuthenticatedUser{ID: outsider.ID, Role: outsider.Role}

	_, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "T"}, actor)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateTaskAppliesTags(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	task, err := f.engine.CreateTask(f.project.ID, TaskInput{
		Title: "Tagged",
		Tags:  []string{"bug", "urgent", " ", "bug"},
	}, f.lead)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.DB.Table("task_tags").Where("task_id = ?", task.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestCreateTaskNotifiesAssignee(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	_, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "T", AssigneeID: &f.member.ID}, f.lead)
	require.NoError(t, err)

	notifications := notificationsFor(t, f.member.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, types.NotifyTaskAssigned, notifications[0].Type)
}

func TestCreateTaskSelfAssignmentIsSilent(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	_, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "T", AssigneeID: &f.lead.ID}, f.lead)
	require.NoError(t, err)

	assert.Empty(t, notificationsFor(t, f.lead.ID))
}

func TestApplyTransition(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	task, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "T", AssigneeID: &f.member.ID}, f.lead)
	require.NoError(t, err)

	result, err := f.engine.ApplyTransition(task.ID, "Doing", f.lead)
	require.NoError(t, err)

	assert.Equal(t, "ToDo", result.OldStatus)
	assert.Equal(t, "Doing", result.Task.Status)
	assert.False(t, result.WIPExceeded)

	var stored models.Task
	require.NoError(t, db.DB.First(&stored, task.ID).Error)
	assert.Equal(t, "Doing", stored.Status)

	// task_assigned from creation plus task_status_changed from the move.
	notifications := notificationsFor(t, f.member.ID)
	require.Len(t, notifications, 2)
	assert.Equal(t, types.NotifyTaskStatusChanged, notifications[1].Type)

	var entries []models.ActivityLog
	require.NoError(t, db.DB.Where("entity_type = ? AND action = ?", "Task", "status_changed").Find(&entries).Error)
	assert.Len(t, entries, 1)
}

func TestApplyTransitionSelfSuppression(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	task, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "T", AssigneeID: &f.member.ID}, f.member)
	require.NoError(t, err)

	_, err = f.engine.ApplyTransition(task.ID, "Doing", f.member)
	require.NoError(t, err)

	assert.Empty(t, notificationsFor(t, f.member.ID))
}

func TestApplyTransitionRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	task, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "T"}, f.lead)
	require.NoError(t, err)

	_, err = f.engine.ApplyTransition(task.ID, "Shipped", f.lead)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	var stored models.Task
	require.NoError(t, db.DB.First(&stored, task.ID).Error)
	assert.Equal(t, "ToDo", stored.Status)
}

func TestApplyTransitionForbidden(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	task, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "T"}, f.lead)
	require.NoError(t, err)

	outsider := seedUser(t, "Outsider", "outsider", types.RoleStandard)

	_, err = f.engine.ApplyTransition(task.ID, "Doing", middleware.AuthenticatedUser{ID: outsider.ID, Role: outsider.Role})
	assert.ErrorIs(t, err, ErrForbidden)
}

func setWIPLimit(t *testing.T, projectID uint, status string, limit int) {
	t.Helper()

	require.NoError(t, db.DB.Model(&models.StatusDefinition{}).
		Where("project_id = ? AND name = ?", projectID, status).
		Update("wip_limit", limit).Error)
}

func TestWIPAdvisoryAcceptsOverflow(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	setWIPLimit(t, f.project.ID, "Doing", 1)

	_, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "First", Status: "Doing"}, f.lead)
	require.NoError(t, err)

	second, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "Second"}, f.lead)
	require.NoError(t, err)

	result, err := f.engine.ApplyTransition(second.ID, "Doing", f.lead)
	require.NoError(t, err)
	assert.True(t, result.WIPExceeded)
	assert.Equal(t, "Doing", result.Task.Status)
}

func TestWIPEnforceRejectsOverflow(t *testing.T) {
	f := newFixture(t, WIPEnforce)

	setWIPLimit(t, f.project.ID, "Doing", 1)

	_, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "First", Status: "Doing"}, f.lead)
	require.NoError(t, err)

	second, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "Second"}, f.lead)
	require.NoError(t, err)

	_, err = f.engine.ApplyTransition(second.ID, "Doing", f.lead)
	assert.ErrorIs(t, err, ErrWIPLimitExceeded)

	var stored models.Task
	require.NoError(t, db.DB.First(&stored, second.ID).Error)
	assert.Equal(t, "ToDo", stored.Status)
}

func TestWIPLimitIgnoresMovingTask(t *testing.T) {
	f := newFixture(t, WIPEnforce)

	setWIPLimit(t, f.project.ID, "Doing", 1)

	task, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "Only", Status: "Doing"}, f.lead)
	require.NoError(t, err)

	// Re-entering the same column must not count the task against itself.
	_, err = f.engine.ApplyTransition(task.ID, "Doing", f.lead)
	require.NoError(t, err)
}

func TestUpdateTaskReassignmentNotifiesBothSides(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	other := seedUser(t, "Other Member", "other", types.RoleStandard)
	membership := models.ProjectMembership{
		UserID:        other.ID,
		ProjectID:     f.project.ID,
		RoleInProject: types.ProjectRoleMember,
		JoinedAt:      time.Now(),
	}
	require.NoError(t, db.DB.Create(&membership).Error)

	task, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "T", AssigneeID: &f.member.ID}, f.lead)
	require.NoError(t, err)

	_, err = f.engine.UpdateTask(task.ID, TaskInput{Title: "T", AssigneeID: &other.ID}, f.lead)
	require.NoError(t, err)

	previous := notificationsFor(t, f.member.ID)
	require.Len(t, previous, 2)
	assert.Equal(t, types.NotifyTaskUnassigned, previous[1].Type)

	next := notificationsFor(t, other.ID)
	require.Len(t, next, 1)
	assert.Equal(t, types.NotifyTaskAssigned, next[0].Type)
}

func TestUpdateTaskReplacesTags(t *testing.T) {
	f := newFixture(t, WIPAdvisory)

	task, err := f.engine.CreateTask(f.project.ID, TaskInput{Title: "T", Tags: []string{"bug"}}, f.lead)
	require.NoError(t, err)

	_, err = f.engine.UpdateTask(task.ID, TaskInput{Title: "T", Tags: []string{"feature", "docs"}}, f.lead)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.DB.Table("task_tags").Where("task_id = ?", task.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
