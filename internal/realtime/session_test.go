package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/testdb"
	"github.com/taskboard-dev/taskboard/internal/types"
)

func seedProjectWithMember(t *testing.T) (*models.Project, *models.User) {
	t.Helper()

	owner := models.User{FullName: "Owner", Email: "owner@example.com", Username: "owner", PasswordHash: "x", Role: types.RolePrivileged, IsActive: true}
	require.NoError(t, db.DB.Create(&owner).Error)

	member := models.User{FullName: "Member", Email: "member@example.com", Username: "member", PasswordHash: "x", Role: types.RoleStandard, IsActive: true}
	require.NoError(t, db.DB.Create(&member).Error)

	project := models.Project{Name: "Alpha", CreatedBy: owner.ID, IsActive: true}
	require.NoError(t, db.DB.Create(&project).Error)

	membership := models.ProjectMembership{
		UserID:        member.ID,
		ProjectID:     project.ID,
		RoleInProject: types.ProjectRoleMember,
		JoinedAt:      time.Now(),
	}
	require.NoError(t, db.DB.Create(&membership).Error)

	return &project, &member
}

func joinProject(s *Session, projectID uint) {
	raw, _ := json.Marshal(map[string]uint{"project_id": projectID})
	s.handleJoinProject(raw)
}

// A join_project for a project the user cannot observe gets no reply of any
// kind, success or error, and leaves no subscription behind. The same goes
// for a project that does not exist, so the two cases are indistinguishable
// to the client.
func TestJoinProjectUnauthorizedIsSilent(t *testing.T) {
	testdb.Open(t)

	project, _ := seedProjectWithMember(t)

	outsider := models.User{FullName: "Outsider", Email: "outsider@example.com", Username: "outsider", PasswordHash: "x", Role: types.RoleStandard, IsActive: true}
	require.NoError(t, db.DB.Create(&outsider).Error)

	hub := NewHub()
	s := testSession(hub, outsider.ID)

	joinProject(s, project.ID)

	assert.Empty(t, s.send)
	assert.Empty(t, hub.TopicsOf(s))

	joinProject(s, project.ID+1000)

	assert.Empty(t, s.send)
	assert.Empty(t, hub.TopicsOf(s))
}

// Removing a membership row stops new joins but does not evict sessions that
// already hold the room; those keep receiving until they disconnect.
func TestRevokedMemberKeepsJoinedRoomUntilDisconnect(t *testing.T) {
	testdb.Open(t)

	project, member := seedProjectWithMember(t)

	hub := NewHub()
	joined := testSession(hub, member.ID)

	joinProject(joined, project.ID)

	event := receive(t, joined)
	require.Equal(t, types.EventJoinedProject, event.Type)
	require.Contains(t, hub.TopicsOf(joined), ProjectTopic(project.ID))

	require.NoError(t, db.DB.Unscoped().
		Where("user_id = ? AND project_id = ?", member.ID, project.ID).
		Delete(&models.ProjectMembership{}).Error)

	// The live session still gets project events.
	hub.Publish(ProjectTopic(project.ID), Event{Type: "task_created"})

	event = receive(t, joined)
	assert.Equal(t, "task_created", event.Type)

	// A fresh session for the same user can no longer get in.
	fresh := testSession(hub, member.ID)
	joinProject(fresh, project.ID)

	assert.Empty(t, fresh.send)
	assert.Empty(t, hub.TopicsOf(fresh))
}
