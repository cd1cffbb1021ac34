package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskflow/internal/model"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(model.BackendConfig{BaseURL: srv.URL, TimeoutSec: 5, MaxRetries: 2})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewClient(model.BackendConfig{BaseURL: "/just/a/path"})
	require.Error(t, err)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]string{"message": "expired"}, IsAuthError},
		{"forbidden", http.StatusForbidden, nil, IsAuthError},
		{"not found", http.StatusNotFound, nil, IsNotFound},
		{"bad request with message", http.StatusBadRequest, map[string]string{"message": "title required"}, IsValidationError},
		{"bad request without message", http.StatusBadRequest, nil, IsNetworkError},
		{"server error", http.StatusInternalServerError, map[string]string{"error": "boom"}, IsNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))

			err := c.Get(context.Background(), "/anything", nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error type: %v", err)
		})
	}
}

func TestServerErrorSurfacesMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream down"})
	}))

	err := c.Get(context.Background(), "/tasks", nil)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusBadGateway, netErr.StatusCode)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestRetryOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, http.StatusOK, []model.Task{{ID: "t1", Title: "ok"}})
	}))

	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRetryExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	err := c.Get(context.Background(), "/tasks", nil)
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.EqualValues(t, 3, calls.Load())
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, time.Second, retryAfterDuration(resp, 0))
	assert.Equal(t, 4*time.Second, retryAfterDuration(resp, 2))
	assert.Equal(t, 30*time.Second, retryAfterDuration(resp, 10))

	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, retryAfterDuration(resp, 0))
}

func TestCookiesAreSharedAcrossRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "abc", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{
			"user": map[string]string{"_id": "u1", "name": "Ann", "email": "ann@example.com", "role": "admin"},
		})
	})
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("token")
		if err != nil || ck.Value != "abc" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "no session"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"_id": "u1", "name": "Ann"})
	})
	c := newTestClient(t, mux)

	_, err := c.Profile(context.Background())
	require.True(t, IsAuthError(err))

	user, err := c.Login(context.Background(), "ann@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)

	profile, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	require.Len(t, c.Cookies(), 1)

	c.ClearCookies()
	assert.Empty(t, c.Cookies())
}

func TestLogin_RejectedCredentials(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid credentials"})
	}))

	_, err := c.Login(context.Background(), "a@b.c", "wrong")

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid credentials", authErr.Message)
}

func TestLogin_MissingUserInResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	_, err := c.Login(context.Background(), "a@b.c", "pw")

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Login failed", authErr.Message)
}

func TestLogin_RequiresFields(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := c.Login(context.Background(), " ", "pw")
	assert.True(t, IsValidationError(err))
	_, err = c.Login(context.Background(), "a@b.c", "")
	assert.True(t, IsValidationError(err))
}

func TestListTasks_AcceptsWrappedForm(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"tasks":[{"_id":"a","title":"A","assignedTo":"u2","createdBy":{"_id":"u1"}}]}`)
	}))

	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "u2", tasks[0].AssigneeID())
	assert.Equal(t, "u1", tasks[0].CreatorID())
}

func TestListTasks_LenientDueDates(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"_id":"1","title":"A","dueDate":"2025-01-02T00:00:00.000Z"},
			{"_id":"2","title":"B","dueDate":"2025-01-03"},
			{"_id":"3","title":"C","dueDate":""},
			{"_id":"4","title":"D","dueDate":null},
			{"_id":"5","title":"E","dueDate":"someday"},
			{"_id":"6","title":"F"}
		]`)
	}))

	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 6)
	assert.Equal(t, "2025-01-02", tasks[0].DueDay())
	assert.Equal(t, "2025-01-03", tasks[1].DueDay())
	for _, task := range tasks[2:] {
		assert.Nil(t, task.DueDate, task.ID)
	}
}

func TestListTasks_ReportsArrayDecodeError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"_id":"1","title":42}]`)
	}))

	_, err := c.ListTasks(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.NotContains(t, err.Error(), "taskList")
	assert.NotContains(t, err.Error(), "cannot unmarshal array")
	assert.Contains(t, err.Error(), "title")
}

func TestUpdateTask_NotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Task not found"})
	}))

	title := "x"
	_, err := c.UpdateTask(context.Background(), "missing", model.TaskPatch{Title: &title})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "task", nf.Resource)
	assert.Equal(t, "missing", nf.ID)
}

func TestUpdateTask_UnassignSendsNull(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tasks/t1", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"task": map[string]string{"_id": "t1", "title": "T"}})
	}))

	empty := ""
	status := model.StatusCompleted
	task, err := c.UpdateTask(context.Background(), "t1", model.TaskPatch{AssignedTo: &empty, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)

	v, ok := got["assignedTo"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, "completed", got["status"])
	assert.NotContains(t, got, "title")
}

func TestCreateUser_Validates(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := c.CreateUser(context.Background(), CreateUserRequest{Name: "Bo", Email: "bo@example.com"})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "password", ve.Field)
}
