package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/auth"
	"github.com/taskboard-dev/taskboard/internal/handlers"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/router"
	"github.com/taskboard-dev/taskboard/internal/storage"
	"github.com/taskboard-dev/taskboard/internal/testdb"
	"github.com/taskboard-dev/taskboard/internal/types"
	"github.com/taskboard-dev/taskboard/internal/workflow"
	"golang.org/x/crypto/bcrypt"
)

type env struct {
	router *gin.Engine
	hub    *realtime.Hub
}

func newEnv(t *testing.T) *env {
	t.Helper()

	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")
	require.NoError(t, auth.InitJWTSecret())

	testdb.Open(t)

	hub := realtime.NewHub()
	fanout := notify.NewFanout(hub)
	engine := workflow.NewEngine(hub, fanout, workflow.WIPAdvisory)
	hub.SetCommandHandler(handlers.NewCommandDispatcher(engine))

	files, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	return &env{
		router: router.NewRouter(handlers.New(hub, engine, fanout, files)),
		hub:    hub,
	}
}

func (e *env) seedUser(t *testing.T, fullName, username, password, role string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := models.User{
		FullName:     fullName,
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.DB.Create(&user).Error)

	return &user
}

func (e *env) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)

	return recorder
}

func (e *env) login(t *testing.T, username, password string) string {
	t.Helper()

	recorder := e.request(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var response struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.NotEmpty(t, response.Token)

	return response.Token
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "Admin", "admin", "admin123", types.RolePrivileged)

	e.login(t, "admin", "admin123")

	// Email works as the identifier too.
	e.login(t, "admin@example.com", "admin123")

	recorder := e.request(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "admin",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestMeRequiresToken(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "Admin", "admin", "admin123", types.RolePrivileged)

	recorder := e.request(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	token := e.login(t, "admin", "admin123")
	recorder = e.request(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCreateProjectSeedsDefaults(t *testing.T) {
	e := newEnv(t)
	admin := e.seedUser(t, "Admin", "admin", "admin123", types.RolePrivileged)
	token := e.login(t, "admin", "admin123")

	recorder := e.request(t, http.MethodPost, "/api/projects", token, gin.H{
		"name":        "Alpha",
		"description": "First project",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var project struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &project))

	var definitions []models.StatusDefinition
	require.NoError(t, db.DB.Where("project_id = ?", project.ID).Order("order_index ASC").Find(&definitions).Error)
	require.Len(t, definitions, 4)
	assert.Equal(t, "ToDo", definitions[0].Name)
	assert.Equal(t, "Done", definitions[3].Name)

	var membership models.ProjectMembership
	require.NoError(t, db.DB.Where("project_id = ? AND user_id = ?", project.ID, admin.ID).First(&membership).Error)
	assert.Equal(t, types.ProjectRoleLead, membership.RoleInProject)
}

func TestProjectVisibilityScoping(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "Admin", "admin", "admin123", types.RolePrivileged)
	e.seedUser(t, "Outsider", "outsider", "password1", types.RoleStandard)

	adminToken := e.login(t, "admin", "admin123")

	recorder := e.request(t, http.MethodPost, "/api/projects", adminToken, gin.H{"name": "Secret"})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var project struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &project))

	outsiderToken := e.login(t, "outsider", "password1")

	recorder = e.request(t, http.MethodGet, "/api/projects", outsiderToken, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "[]", recorder.Body.String())

	// Existence is not confirmed to non-members.
	recorder = e.request(t, http.MethodGet, fmt.Sprintf("/api/projects/%d", project.ID), outsiderToken, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestProjectWritesRequirePrivilege(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "Admin", "admin", "admin123", types.RolePrivileged)
	e.seedUser(t, "Member", "member", "password1", types.RoleStandard)

	adminToken := e.login(t, "admin", "admin123")

	recorder := e.request(t, http.MethodPost, "/api/projects", adminToken, gin.H{"name": "Alpha"})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var project struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &project))

	memberToken := e.login(t, "member", "password1")

	recorder = e.request(t, http.MethodPost, "/api/projects", memberToken, gin.H{"name": "Rogue"})
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	var count int64
	db.DB.Model(&models.Project{}).Count(&count)
	assert.Equal(t, int64(1), count)

	recorder = e.request(t, http.MethodPatch, fmt.Sprintf("/api/projects/%d", project.ID), memberToken, gin.H{
		"name":      "Hijacked",
		"is_active": false,
	})
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	var stored models.Project
	require.NoError(t, db.DB.First(&stored, project.ID).Error)
	assert.Equal(t, "Alpha", stored.Name)
	assert.True(t, stored.IsActive)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "Admin", "admin", "admin123", types.RolePrivileged)
	member := e.seedUser(t, "Member", "member", "password1", types.RoleStandard)

	token := e.login(t, "admin", "admin123")

	recorder := e.request(t, http.MethodPost, "/api/projects", token, gin.H{"name": "Alpha"})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var project struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &project))

	membership := models.ProjectMembership{
		UserID:        member.ID,
		ProjectID:     project.ID,
		RoleInProject: types.ProjectRoleMember,
		JoinedAt:      time.Now(),
	}
	require.NoError(t, db.DB.Create(&membership).Error)

	recorder = e.request(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", project.ID), token, gin.H{
		"title":       "Fix the login flow",
		"priority":    types.PriorityHigh,
		"assignee_id": member.ID,
		"tags":        []string{"bug"},
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var task struct {
		ID       uint     `json:"id"`
		Status   string   `json:"status"`
		Priority string   `json:"priority"`
		Tags     []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &task))
	assert.Equal(t, "ToDo", task.Status)
	assert.Equal(t, types.PriorityHigh, task.Priority)
	assert.Equal(t, []string{"bug"}, task.Tags)

	// Assignment notified the member.
	var notifications []models.Notification
	require.NoError(t, db.DB.Where("user_id = ?", member.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, types.NotifyTaskAssigned, notifications[0].Type)

	recorder = e.request(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/status", task.ID), token, gin.H{
		"status": "Doing",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = e.request(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/status", task.ID), token, gin.H{
		"status": "Shipped",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	recorder = e.request(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/comments", task.ID), token, gin.H{
		"body": "@member please pick this up",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	require.NoError(t, db.DB.Where("user_id = ?", member.ID).Find(&notifications).Error)
	assert.Len(t, notifications, 3) // assigned, status change, mention
}

func TestDeleteProjectCascadesButKeepsAuditTrail(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "Admin", "admin", "admin123", types.RolePrivileged)
	token := e.login(t, "admin", "admin123")

	recorder := e.request(t, http.MethodPost, "/api/projects", token, gin.H{"name": "Doomed"})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var project struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &project))

	recorder = e.request(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", project.ID), token, gin.H{
		"title": "Doomed task",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	recorder = e.request(t, http.MethodDelete, fmt.Sprintf("/api/projects/%d", project.ID), token, nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	var count int64

	db.DB.Model(&models.Task{}).Where("project_id = ?", project.ID).Count(&count)
	assert.Zero(t, count)

	db.DB.Model(&models.ProjectMembership{}).Where("project_id = ?", project.ID).Count(&count)
	assert.Zero(t, count)

	db.DB.Model(&models.StatusDefinition{}).Where("project_id = ?", project.ID).Count(&count)
	assert.Zero(t, count)

	// The history of the project survives its deletion.
	db.DB.Model(&models.ActivityLog{}).
		Where("entity_type = ? AND entity_id = ?", "Project", project.ID).
		Count(&count)
	assert.NotZero(t, count)
}

func TestAdminRoutesRequirePrivilege(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "Member", "member", "password1", types.RoleStandard)
	token := e.login(t, "member", "password1")

	recorder := e.request(t, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = e.request(t, http.MethodGet, "/api/admin/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestCreateUserNormalizesIdentifiers(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "Admin", "admin", "admin123", types.RolePrivileged)
	token := e.login(t, "admin", "admin123")

	recorder := e.request(t, http.MethodPost, "/api/admin/users", token, gin.H{
		"full_name": "Alice Doe",
		"username":  "Alice",
		"email":     "Alice@Example.com",
		"password":  "password1",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var user models.User
	require.NoError(t, db.DB.Where("full_name = ?", "Alice Doe").First(&user).Error)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)

	// The account is reachable through login, whichever casing was used
	// at creation.
	e.login(t, "alice", "password1")
	e.login(t, "Alice@Example.com", "password1")

	// Case-variant duplicates are caught too.
	recorder = e.request(t, http.MethodPost, "/api/admin/users", token, gin.H{
		"full_name": "Alice Again",
		"username":  "ALICE",
		"email":     "other@example.com",
		"password":  "password1",
	})
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestNotificationInboxIsRecipientScoped(t *testing.T) {
	e := newEnv(t)
	first := e.seedUser(t, "First", "first", "password1", types.RoleStandard)
	e.seedUser(t, "Second", "second", "password1", types.RoleStandard)

	notification := models.Notification{UserID: first.ID, Type: types.NotifyTaskAssigned, Title: "T", Message: "M"}
	require.NoError(t, db.DB.Create(&notification).Error)

	secondToken := e.login(t, "second", "password1")

	recorder := e.request(t, http.MethodGet, "/api/notifications", secondToken, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "[]", recorder.Body.String())

	recorder = e.request(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", notification.ID), secondToken, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	firstToken := e.login(t, "first", "password1")

	recorder = e.request(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", notification.ID), firstToken, nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = e.request(t, http.MethodGet, "/api/notifications/unread-count", firstToken, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"count":0}`, recorder.Body.String())
}
