package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nhle/taskflow/internal/model"
)

const sessionCookie = "token"

// FakeBackend is an in-memory TaskFlow backend served over HTTP. It speaks
// the same REST routes and Socket.IO endpoint as the real service, pushes
// task:assigned when a task is created for someone else, and supports
// failure injection.
type FakeBackend struct {
	Server  *httptest.Server
	Sockets *SocketServer

	mu        sync.Mutex
	users     map[string]fakeUser
	tasks     []model.Task
	sessions  map[string]string // token -> user id
	failures  map[string]int    // "METHOD /path" -> status
	requests  []string
	listDelay time.Duration
}

type fakeUser struct {
	model.User
	password string
}

// NewFakeBackend starts a backend and closes it when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &FakeBackend{
		Sockets:  NewSocketServer(),
		users:    make(map[string]fakeUser),
		sessions: make(map[string]string),
		failures: make(map[string]int),
	}

	router := gin.New()
	router.Use(b.recordAndFail)

	router.GET("/socket.io/", gin.WrapH(b.Sockets))

	router.POST("/auth/login", b.handleLogin)
	router.POST("/auth/logout", b.handleLogout)

	authed := router.Group("/", b.requireSession)
	{
		authed.GET("/auth/profile", b.handleProfile)

		authed.GET("/tasks", b.handleListTasks)
		authed.POST("/tasks", b.handleCreateTask)
		authed.PUT("/tasks/:id", b.handleUpdateTask)
		authed.DELETE("/tasks/:id", b.handleDeleteTask)

		authed.GET("/users", b.handleListUsers)
		authed.GET("/users/all", b.requireAdmin, b.handleListUsers)
		authed.GET("/users/:id", b.handleGetUser)
		authed.POST("/users/create", b.requireAdmin, b.handleCreateUser)
	}

	b.Server = httptest.NewServer(router)
	t.Cleanup(b.Server.Close)

	return b
}

// URL returns the backend origin.
func (b *FakeBackend) URL() string {
	return b.Server.URL
}

// AddUser registers an account and returns it.
func (b *FakeBackend) AddUser(name, email, password string, role model.Role) model.User {
	b.mu.Lock()
	defer b.mu.Unlock()

	u := model.User{ID: uuid.NewString(), Name: name, Email: email, Role: role}
	b.users[u.ID] = fakeUser{User: u, password: password}
	return u
}

// SeedTask stores t as-is, assigning an id when it has none.
func (b *FakeBackend) SeedTask(t model.Task) model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	b.tasks = append([]model.Task{t}, b.tasks...)
	return t
}

// Tasks returns the server-side task list.
func (b *FakeBackend) Tasks() []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Task(nil), b.tasks...)
}

// FailNext makes every request to "METHOD /path" answer with status until
// cleared with status 0.
func (b *FakeBackend) FailNext(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := method + " " + path
	if status == 0 {
		delete(b.failures, key)
		return
	}
	b.failures[key] = status
}

// SetListDelay slows down GET /tasks.
func (b *FakeBackend) SetListDelay(d time.Duration) {
	b.mu.Lock()
	b.listDelay = d
	b.mu.Unlock()
}

// Requests returns "METHOD /path" for every request served.
func (b *FakeBackend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *FakeBackend) recordAndFail(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path

	b.mu.Lock()
	b.requests = append(b.requests, key)
	status, fail := b.failures[key]
	b.mu.Unlock()

	if fail {
		c.AbortWithStatusJSON(status, gin.H{"message": http.StatusText(status)})
		return
	}
	c.Next()
}

func (b *FakeBackend) requireSession(c *gin.Context) {
	token, err := c.Cookie(sessionCookie)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return
	}

	b.mu.Lock()
	userID, ok := b.sessions[token]
	user := b.users[userID]
	b.mu.Unlock()

	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Session expired"})
		return
	}
	c.Set("user", user.User)
	c.Next()
}

func (b *FakeBackend) requireAdmin(c *gin.Context) {
	if currentUser(c).Role != model.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admins only"})
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) model.User {
	u, _ := c.Get("user")
	user, _ := u.(model.User)
	return user
}

func (b *FakeBackend) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BindJSON(&req); err != nil {
		return
	}

	b.mu.Lock()
	var found *fakeUser
	for _, u := range b.users {
		if strings.EqualFold(u.Email, req.Email) && u.password == req.Password {
			u := u
			found = &u
			break
		}
	}
	var token string
	if found != nil {
		token = uuid.NewString()
		b.sessions[token] = found.ID
	}
	b.mu.Unlock()

	if found == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}

	c.SetCookie(sessionCookie, token, 3600, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "user": found.User})
}

func (b *FakeBackend) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, token)
		b.mu.Unlock()
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (b *FakeBackend) handleProfile(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (b *FakeBackend) handleListTasks(c *gin.Context) {
	me := currentUser(c)

	b.mu.Lock()
	delay := b.listDelay
	var visible []model.Task
	for _, t := range b.tasks {
		if me.Role == model.RoleAdmin || t.AssigneeID() == me.ID || t.CreatorID() == me.ID {
			visible = append(visible, t)
		}
	}
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if visible == nil {
		visible = []model.Task{}
	}
	c.JSON(http.StatusOK, visible)
}

type taskBody struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	DueDate     *string         `json:"dueDate"`
	Priority    *model.Priority `json:"priority"`
	Status      *model.Status   `json:"status"`

	// AssignedTo is nil when absent and "null" when cleared.
	AssignedTo json.RawMessage `json:"assignedTo"`
}

func (b *FakeBackend) handleCreateTask(c *gin.Context) {
	var body taskBody
	if err := c.BindJSON(&body); err != nil {
		return
	}
	if body.Title == nil || *body.Title == "" || body.DueDate == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title and due date are required"})
		return
	}

	me := currentUser(c)
	t := model.Task{
		ID:        uuid.NewString(),
		Priority:  model.PriorityMedium,
		Status:    model.StatusPending,
		CreatedBy: &model.UserRef{ID: me.ID, Name: me.Name},
	}
	if msg := b.applyBody(&t, body); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}

	b.mu.Lock()
	b.tasks = append([]model.Task{t}, b.tasks...)
	b.mu.Unlock()

	if assignee := t.AssigneeID(); assignee != "" && assignee != me.ID {
		b.Sockets.Emit(assignee, "task:assigned", gin.H{
			"message":   fmt.Sprintf("New task assigned: %s", t.Title),
			"task":      gin.H{"_id": t.ID, "title": t.Title, "description": t.Description},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusCreated, t)
}

func (b *FakeBackend) handleUpdateTask(c *gin.Context) {
	var body taskBody
	if err := c.BindJSON(&body); err != nil {
		return
	}

	id := c.Param("id")
	current, ok := b.task(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
		return
	}
	if msg := b.applyBody(&current, body); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}

	b.mu.Lock()
	for i := range b.tasks {
		if b.tasks[i].ID == id {
			b.tasks[i] = current
		}
	}
	b.mu.Unlock()

	c.JSON(http.StatusOK, current)
}

func (b *FakeBackend) task(id string) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range b.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func (b *FakeBackend) handleDeleteTask(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.tasks {
		if b.tasks[i].ID == c.Param("id") {
			b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
}

func (b *FakeBackend) handleListUsers(c *gin.Context) {
	b.mu.Lock()
	users := make([]model.User, 0, len(b.users))
	for _, u := range b.users {
		users = append(users, u.User)
	}
	b.mu.Unlock()

	c.JSON(http.StatusOK, users)
}

func (b *FakeBackend) handleGetUser(c *gin.Context) {
	b.mu.Lock()
	u, ok := b.users[c.Param("id")]
	b.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, u.User)
}

func (b *FakeBackend) handleCreateUser(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}

	u := b.AddUser(req.Name, req.Email, req.Password, model.RoleUser)
	c.JSON(http.StatusCreated, u)
}

// applyBody copies the set fields of body onto t and returns a validation
// message on bad input. The assignee name is resolved from the user table.
func (b *FakeBackend) applyBody(t *model.Task, body taskBody) string {
	if body.Title != nil {
		t.Title = *body.Title
	}
	if body.Description != nil {
		t.Description = *body.Description
	}
	if body.DueDate != nil {
		d, err := time.Parse(model.DateLayout, *body.DueDate)
		if err != nil {
			return "Invalid due date"
		}
		t.DueDate = &d
	}
	if body.Priority != nil {
		if !body.Priority.Valid() {
			return "Invalid priority"
		}
		t.Priority = *body.Priority
	}
	if body.Status != nil {
		if !body.Status.Valid() {
			return "Invalid status"
		}
		t.Status = *body.Status
	}
	if body.AssignedTo != nil {
		if bytes.Equal(body.AssignedTo, []byte("null")) {
			t.AssignedTo = nil
			return ""
		}
		var id string
		if err := json.Unmarshal(body.AssignedTo, &id); err != nil {
			return "Invalid assignee"
		}
		b.mu.Lock()
		u, ok := b.users[id]
		b.mu.Unlock()
		if !ok {
			return "Assignee not found"
		}
		t.AssignedTo = &model.UserRef{ID: u.ID, Name: u.Name}
	}
	return ""
}
