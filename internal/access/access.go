// Package access resolves which projects an identity may observe.
//
// Every check is a fresh query against the membership relation; results are
// never cached, so a membership change takes effect on the very next call.
package access

import (
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/models"
)

// VisibleProjects returns the IDs of every project the user may observe: all
// active projects for a privileged user, otherwise the active projects the
// user holds a membership in.
func VisibleProjects(user middleware.AuthenticatedUser) ([]uint, error) {
	var ids []uint

	query := db.DB.Model(&models.Project{}).Where("is_active = ?", true)

	if !user.IsPrivileged() {
		memberOf := db.DB.Model(&models.ProjectMembership{}).
			Select("project_id").
			Where("user_id = ?", user.ID)
		query = query.Where("id IN (?)", memberOf)
	}

	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	return ids, nil
}

// CanObserve reports whether the user may observe the given project.
func CanObserve(user middleware.AuthenticatedUser, projectID uint) (bool, error) {
	if user.IsPrivileged() {
		return true, nil
	}

	var count int64

	err := db.DB.Model(&models.ProjectMembership{}).
		Where("user_id = ? AND project_id = ?", user.ID, projectID).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// IsMember reports whether the user holds a membership in the project,
// regardless of privilege. Used to validate assignees, who must be actual
// members.
func IsMember(userID uint, projectID uint) (bool, error) {
	var count int64

	err := db.DB.Model(&models.ProjectMembership{}).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}
