package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/types"
	"golang.org/x/crypto/bcrypt"
)

// Seed populates the database with demo accounts, projects and tasks.
// Refuses to run against a database that already has users.
func Seed() error {
	var existing int64

	if err := DB.Model(&models.User{}).Count(&existing).Error; err != nil {
		return err
	}

	if existing > 0 {
		return fmt.Errorf("database already contains %d users, refusing to seed", existing)
	}

	admin, err := seedUser("System Admin", "admin@taskboard.dev", "admin", "admin123", types.RolePrivileged, true)

	if err != nil {
		return err
	}

	employeeNames := []struct {
		FullName string
		Email    string
		Username string
	}{
		{"Ali Ahmadi", "ali.ahmadi@taskboard.dev", "employee1"},
		{"Fateme Mohammadi", "fateme.mohammadi@taskboard.dev", "employee2"},
		{"Hasan Rezaei", "hasan.rezaei@taskboard.dev", "employee3"},
		{"Maryam Karimi", "maryam.karimi@taskboard.dev", "employee4"},
		{"Mohammad Hosseini", "mohammad.hosseini@taskboard.dev", "employee5"},
		{"Zahra Nouri", "zahra.nouri@taskboard.dev", "employee6"},
		{"Reza Mousavi", "reza.mousavi@taskboard.dev", "employee7"},
		{"Sara Jafari", "sara.jafari@taskboard.dev", "employee8"},
	}

	employees := make([]*models.User, 0, len(employeeNames))

	for _, item := range employeeNames {
		employee, err := seedUser(item.FullName, item.Email, item.Username, "123456", types.RoleStandard, false)

		if err != nil {
			return err
		}

		employees = append(employees, employee)
	}

	log.Printf("Seeded admin (admin/admin123) and %d employees (password: 123456)", len(employees))

	tagData := []struct {
		Name  string
		Color string
	}{
		{"urgent", "#ef4444"},
		{"bug", "#f97316"},
		{"feature", "#22c55e"},
		{"improvement", "#3b82f6"},
		{"docs", "#8b5cf6"},
		{"testing", "#06b6d4"},
		{"design", "#ec4899"},
		{"code-review", "#84cc16"},
	}

	tags := make([]models.Tag, 0, len(tagData))

	for _, item := range tagData {
		tag := models.Tag{Name: item.Name, Color: item.Color}

		if err := DB.Create(&tag).Error; err != nil {
			return err
		}

		tags = append(tags, tag)
	}

	projectData := []struct {
		Name        string
		Description string
	}{
		{"Sales Platform", "Customer and sales management system for the company"},
		{"Mobile App", "Design and development of the customer mobile application"},
	}

	taskTitles := []string{
		"Design the landing page",
		"Implement authentication",
		"Create the customer database schema",
		"Performance testing",
		"Write API documentation",
		"Optimize database queries",
		"Add search functionality",
		"Fix payment processing bug",
		"Design logo and visual identity",
		"Implement the reporting module",
		"Build the admin panel",
		"Security audit",
		"Improve the onboarding flow",
		"Add in-app chat",
		"Implement push notifications",
		"Optimize page load times",
		"Set up automated backups",
		"Design the profile page",
		"Implement the rating system",
		"Cross-browser compatibility testing",
	}

	taskDescriptions := []string{
		"Needs careful review and a proper design before starting.",
		"Must comply with the security guidelines.",
		"Coordinate with the design team first.",
		"High priority, should be done quickly.",
		"Please sync with the project lead before starting.",
		"Requires a full test pass before merging.",
		"Documentation has to be updated alongside.",
	}

	commentTexts := []string{
		"Nice work!",
		"Please take another look at this part.",
		"Needs minor changes.",
		"Looks great, keep going.",
		"This section is broken, please fix.",
		"Coordinate with the design team.",
		"Tested, no issues found.",
		"Could use further optimization.",
	}

	statuses := []string{"ToDo", "Doing", "Review", "Done"}
	priorities := []string{types.PriorityLow, types.PriorityMed, types.PriorityHigh}
	estimates := []float64{2, 4, 8, 16, 24}

	for _, item := range projectData {
		project := models.Project{
			Name:        item.Name,
			Description: item.Description,
			IsActive:    true,
			CreatedBy:   admin.ID,
		}

		if err := DB.Create(&project).Error; err != nil {
			return err
		}

		for _, status := range types.DefaultStatuses {
			definition := models.StatusDefinition{
				ProjectID:   project.ID,
				Name:        status.Name,
				DisplayName: status.DisplayName,
				OrderIndex:  status.OrderIndex,
				Color:       status.Color,
			}
			if err := DB.Create(&definition).Error; err != nil {
				return err
			}
		}

		members := []*models.User{admin}

		if err := seedMembership(admin.ID, project.ID, types.ProjectRoleLead); err != nil {
			return err
		}

		for _, employee := range employees {
			if rand.Float64() < 0.4 {
				continue
			}

			if err := seedMembership(employee.ID, project.ID, types.ProjectRoleMember); err != nil {
				return err
			}

			members = append(members, employee)
		}

		for _, title := range taskTitles {
			task := models.Task{
				ProjectID:   project.ID,
				Title:       title,
				Description: taskDescriptions[rand.Intn(len(taskDescriptions))],
				Status:      statuses[rand.Intn(len(statuses))],
				Priority:    priorities[rand.Intn(len(priorities))],
				CreatedBy:   members[rand.Intn(len(members))].ID,
			}

			if rand.Float64() > 0.2 {
				assignee := members[rand.Intn(len(members))].ID
				task.AssigneeID = &assignee
			}

			if rand.Float64() > 0.5 {
				estimate := estimates[rand.Intn(len(estimates))]
				task.EstimatedHours = &estimate
			}

			if rand.Float64() > 0.3 {
				due := time.Now().AddDate(0, 0, rand.Intn(40)-10)
				task.DueDate = &due
			}

			if err := DB.Create(&task).Error; err != nil {
				return err
			}

			if rand.Float64() > 0.4 {
				tag := tags[rand.Intn(len(tags))]

				if err := DB.Model(&task).Association("Tags").Append(&tag); err != nil {
					return err
				}
			}

			for i := 0; i < rand.Intn(3); i++ {
				comment := models.TaskComment{
					TaskID:    task.ID,
					Body:      commentTexts[rand.Intn(len(commentTexts))],
					CreatedBy: members[rand.Intn(len(members))].ID,
				}
				if err := DB.Create(&comment).Error; err != nil {
					return err
				}
			}
		}

		log.Printf("Seeded project %q with %d members", project.Name, len(members))
	}

	return nil
}

func seedUser(fullName, email, username, password, role string, forceChange bool) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	if err != nil {
		return nil, err
	}

	user := models.User{
		FullName:            fullName,
		Email:               email,
		Username:            username,
		PasswordHash:        string(hash),
		Role:                role,
		IsActive:            true,
		ForcePasswordChange: forceChange,
	}

	if err := DB.Create(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func seedMembership(userID, projectID uint, role string) error {
	membership := models.ProjectMembership{
		UserID:        userID,
		ProjectID:     projectID,
		RoleInProject: role,
		JoinedAt:      time.Now(),
	}
	return DB.Create(&membership).Error
}
