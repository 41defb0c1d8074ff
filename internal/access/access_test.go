package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/testdb"
	"github.com/taskboard-dev/taskboard/internal/types"
)

func seedProject(t *testing.T, name string, active bool) *models.Project {
	t.Helper()

	project := models.Project{Name: name, IsActive: active, CreatedBy: 1}
	require.NoError(t, db.DB.Create(&project).Error)

	return &project
}

func seedMember(t *testing.T, userID, projectID uint) {
	t.Helper()

	membership := models.ProjectMembership{
		UserID:        userID,
		ProjectID:     projectID,
		RoleInProject: types.ProjectRoleMember,
	}
	require.NoError(t, db.DB.Create(&membership).Error)
}

func TestVisibleProjects(t *testing.T) {
	testdb.Open(t)

	alpha := seedProject(t, "Alpha", true)
	beta := seedProject(t, "Beta", true)
	seedProject(t, "Archived", false)

	seedMember(t, 7, alpha.ID)

	standard := middleware.AuthenticatedUser{ID: 7, Role: types.RoleStandard}
	privileged := middleware.AuthenticatedUser{ID: 1, Role: types.RolePrivileged}

	visible, err := VisibleProjects(standard)
	require.NoError(t, err)
	assert.Equal(t, []uint{alpha.ID}, visible)

	visible, err = VisibleProjects(privileged)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{alpha.ID, beta.ID}, visible)
}

func TestVisibleProjectsExcludesInactive(t *testing.T) {
	testdb.Open(t)

	archived := seedProject(t, "Archived", false)
	seedMember(t, 7, archived.ID)

	visible, err := VisibleProjects(middleware.AuthenticatedUser{ID: 7, Role: types.RoleStandard})
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestCanObserve(t *testing.T) {
	testdb.Open(t)

	project := seedProject(t, "Alpha", true)
	seedMember(t, 7, project.ID)

	member := middleware.AuthenticatedUser{ID: 7, Role: types.RoleStandard}
	outsider := middleware.AuthenticatedUser{ID: 8, Role: types.RoleStandard}
	privileged := middleware.AuthenticatedUser{ID: 1, Role: types.RolePrivileged}

	allowed, err := CanObserve(member, project.ID)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = CanObserve(outsider, project.ID)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = CanObserve(privileged, project.ID)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestIsMemberIgnoresPrivilege(t *testing.T) {
	testdb.Open(t)

	project := seedProject(t, "Alpha", true)
	seedMember(t, 7, project.ID)

	isMember, err := IsMember(7, project.ID)
	require.NoError(t, err)
	assert.True(t, isMember)

	// A privileged user who never joined is still not a member.
	isMember, err = IsMember(1, project.ID)
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestMembershipChangeTakesEffectImmediately(t *testing.T) {
	testdb.Open(t)

	project := seedProject(t, "Alpha", true)
	seedMember(t, 7, project.ID)

	user := middleware.AuthenticatedUser{ID: 7, Role: types.RoleStandard}

	allowed, err := CanObserve(user, project.ID)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, db.DB.
		Where("user_id = ? AND project_id = ?", 7, project.ID).
		Delete(&models.ProjectMembership{}).Error)

	allowed, err = CanObserve(user, project.ID)
	require.NoError(t, err)
	assert.False(t, allowed)
}
