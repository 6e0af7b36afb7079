package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/notifier"
	"remindd/internal/reminder"
	rtsup "remindd/internal/runtime/supervisor"
	"remindd/internal/service"
	"remindd/internal/storage"
	"remindd/internal/task/scheduler"
	kit "remindd/internal/transport"
	"remindd/internal/transport/httpapi"
	"remindd/internal/trigger"
	logx "remindd/pkg/logx"
)

type discard struct{}

func (discard) Notify(context.Context, kit.Notification) error { return nil }

type history []notifier.HistoryItem

func (h history) Snapshot() []notifier.HistoryItem { return h }

type runtimeTasks []rtsup.TaskState

func (r runtimeTasks) Tasks() []rtsup.TaskState { return r }

func setupTestRouter(t *testing.T, token string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := func() time.Time { return time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC) }
	st := storage.New(storage.NewMemory(), logx.Nop())
	reg := scheduler.New(scheduler.Config{Enabled: true, Timezone: "UTC"}, logx.Nop(), scheduler.WithClock(now))
	ev := trigger.New(st, discard{}, logx.Nop(), trigger.WithClock(now))
	svc := service.New(st, reg, ev, service.Config{Location: time.UTC}, logx.Nop(), service.WithClock(now))

	rt := runtimeTasks{
		{Name: "config.watch", Running: true, Starts: 1},
		{Name: "notifier.worker.0", Running: true, Starts: 2, Restarts: 1, LastError: "worker.0: notifier worker exited unexpectedly"},
	}
	h := httpapi.NewHandler(svc, history{{ReminderID: "r1", Text: "Reminder: hi"}}, rt, logx.Nop())
	return httpapi.NewServer(httpapi.Config{Token: token}, h, logx.Nop()).Handler()
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type reminderBody struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	CronExpression *string `json:"cronExpression"`
	IsCancelled    bool    `json:"isCancelled"`
	IsPaused       bool    `json:"isPaused"`
	IsDeleted      bool    `json:"isDeleted"`
	Status         string  `json:"status"`
	Scheduled      bool    `json:"scheduled"`
}

func createGroup(t *testing.T, router http.Handler) string {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/v1/groups", map[string]string{"name": "Work", "color": "#FF9500"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[reminder.Group](t, w).ID
}

func TestReminderLifecycle(t *testing.T) {
	t.Parallel()
	router := setupTestRouter(t, "")
	gid := createGroup(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/reminders", map[string]any{
		"title": "Standup", "groupId": gid, "cronExpression": "every weekday at 9am",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[reminderBody](t, w)
	require.NotNil(t, created.CronExpression)
	assert.Equal(t, "0 9 * * 1-5", *created.CronExpression)
	assert.Equal(t, "active", created.Status)
	assert.True(t, created.Scheduled)

	w = do(t, router, http.MethodPost, "/api/v1/reminders/"+created.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	paused := decode[reminderBody](t, w)
	assert.True(t, paused.IsPaused)
	assert.False(t, paused.Scheduled)

	w = do(t, router, http.MethodPost, "/api/v1/reminders/"+created.ID+"/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[reminderBody](t, w).Scheduled)

	w = do(t, router, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[httpapi.ListResponse[scheduler.JobInfo]](t, w).Count)

	w = do(t, router, http.MethodPost, "/api/v1/reminders/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cancelled := decode[reminderBody](t, w)
	assert.True(t, cancelled.IsCancelled)
	assert.Equal(t, "cancelled", cancelled.Status)

	w = do(t, router, http.MethodGet, "/api/v1/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[httpapi.ListResponse[reminderBody]](t, w).Count, "cancelled reminder stays listed")

	w = do(t, router, http.MethodDelete, "/api/v1/reminders/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/reminders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[reminderBody](t, w).IsDeleted)

	w = do(t, router, http.MethodDelete, "/api/v1/reminders/"+created.ID+"?purge=true", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/reminders/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	router := setupTestRouter(t, "")
	gid := createGroup(t, router)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
		field  string
	}{
		{"bad phrase", http.MethodPost, "/api/v1/reminders", map[string]any{"title": "x", "groupId": gid, "cronExpression": "every blue moon"}, http.StatusBadRequest, "validation_error", "cronExpression"},
		{"missing title", http.MethodPost, "/api/v1/reminders", map[string]any{"groupId": gid}, http.StatusBadRequest, "validation_error", ""},
		{"unknown group", http.MethodPost, "/api/v1/reminders", map[string]any{"title": "x", "groupId": "nope"}, http.StatusNotFound, "not_found", ""},
		{"unknown reminder", http.MethodGet, "/api/v1/reminders/nope", nil, http.StatusNotFound, "not_found", ""},
		{"pause unknown", http.MethodPost, "/api/v1/reminders/nope/pause", nil, http.StatusNotFound, "not_found", ""},
		{"blank group name", http.MethodPost, "/api/v1/groups", map[string]string{"name": "   "}, http.StatusBadRequest, "validation_error", "name"},
		{"bad fires limit", http.MethodGet, "/api/v1/reminders/x/fires?limit=0", nil, http.StatusBadRequest, "validation_error", "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode[httpapi.ErrorResponse](t, w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.field, resp.Field)
		})
	}

	w := do(t, router, http.MethodPost, "/api/v1/reminders", map[string]any{"title": "x", "groupId": gid, "cronExpression": "every blue moon"})
	assert.Contains(t, decode[httpapi.ErrorResponse](t, w).Message, `"every blue moon"`)
}

func TestInvalidTransitionReturns400(t *testing.T) {
	t.Parallel()
	router := setupTestRouter(t, "")
	gid := createGroup(t, router)
	w := do(t, router, http.MethodPost, "/api/v1/reminders", map[string]any{"title": "x", "groupId": gid, "cronExpression": "hourly"})
	id := decode[reminderBody](t, w).ID

	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/v1/reminders/"+id+"/cancel", nil).Code)
	w = do(t, router, http.MethodPost, "/api/v1/reminders/"+id+"/resume", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_transition", decode[httpapi.ErrorResponse](t, w).Error)
}

func TestUpdateAndGroupCascade(t *testing.T) {
	t.Parallel()
	router := setupTestRouter(t, "")
	gid := createGroup(t, router)
	w := do(t, router, http.MethodPost, "/api/v1/reminders", map[string]any{"title": "x", "groupId": gid, "cronExpression": "daily"})
	id := decode[reminderBody](t, w).ID

	w = do(t, router, http.MethodPatch, "/api/v1/reminders/"+id, map[string]any{"title": "renamed", "cronExpression": "every 5 minutes"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[reminderBody](t, w)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "*/5 * * * *", *updated.CronExpression)

	w = do(t, router, http.MethodGet, "/api/v1/groups/"+gid+"/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[httpapi.ListResponse[reminderBody]](t, w).Count)

	require.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/api/v1/groups/"+gid, nil).Code)
	w = do(t, router, http.MethodGet, "/api/v1/jobs", nil)
	assert.Equal(t, 0, decode[httpapi.ListResponse[scheduler.JobInfo]](t, w).Count)
	w = do(t, router, http.MethodGet, "/api/v1/groups/"+gid+"/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[httpapi.ListResponse[reminderBody]](t, w).Count)
}

func TestFiresAndNotifications(t *testing.T) {
	t.Parallel()
	router := setupTestRouter(t, "")
	gid := createGroup(t, router)
	w := do(t, router, http.MethodPost, "/api/v1/reminders", map[string]any{"title": "x", "groupId": gid})
	id := decode[reminderBody](t, w).ID

	w = do(t, router, http.MethodGet, "/api/v1/reminders/"+id+"/fires", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[httpapi.ListResponse[storage.FireRecord]](t, w).Count)

	w = do(t, router, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[httpapi.ListResponse[notifier.HistoryItem]](t, w).Count)
}

func TestListTasks(t *testing.T) {
	t.Parallel()
	router := setupTestRouter(t, "")

	w := do(t, router, http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[httpapi.ListResponse[rtsup.TaskState]](t, w)
	require.Equal(t, 2, got.Count)
	assert.Equal(t, "notifier.worker.0", got.Items[1].Name)
	assert.Equal(t, 1, got.Items[1].Restarts)
	assert.NotEmpty(t, got.Items[1].LastError)

	bare := httpapi.NewServer(httpapi.Config{}, httpapi.NewHandler(nil, nil, nil, logx.Nop()), logx.Nop()).Handler()
	w = do(t, bare, http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[httpapi.ListResponse[rtsup.TaskState]](t, w).Count)
}

func TestBearerAuth(t *testing.T) {
	t.Parallel()
	router := setupTestRouter(t, "s3cret")

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/api/v1/groups", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/api/v1/groups?token=s3cret", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
