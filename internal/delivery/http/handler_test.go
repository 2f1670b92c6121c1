package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/repository/memory"
	"remoteworks-cleaner/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var cutoff = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type observed struct {
	method, route string
	status        int
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []observed
}

func (m *recordingMetrics) ObserveRequest(method, route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, observed{method, route, status})
}

type testEnv struct {
	store   *memory.Store
	cleaner usecase.Cleaner
	metrics *recordingMetrics
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	for i := 0; i < 3; i++ {
		store.Put(entities.Record{Collection: "notifications", ID: fmt.Sprintf("old-%d", i),
			Fields: map[string]any{"createdAt": cutoff.Add(-time.Hour)}})
	}
	store.Put(entities.Record{Collection: "notifications", ID: "new",
		Fields: map[string]any{"createdAt": cutoff.Add(time.Hour)}})
	store.Put(entities.Record{Collection: "candidate_projects", ID: "p1",
		Fields: map[string]any{"createdAt": cutoff.Add(-time.Hour)}})
	store.Put(entities.Record{Collection: "project_updates", ID: "u1",
		Fields: map[string]any{"projectId": "p1"}})
	store.Put(entities.Record{Collection: "users", ID: "u-1",
		Fields: map[string]any{"email": "ops@remote.works", "role": "member"}})

	logger := zap.NewNop()
	cleaner := usecase.NewCleanerUseCase(store, memory.NewTaskStore(time.Hour), logger)
	roles := usecase.NewRoleUseCase(store, usecase.DefaultUserFields(), logger)
	handler := NewHandler(cleaner, roles, HandlerConfig{DefaultBatchSize: 500, MaxRequestTime: time.Minute}, logger)

	m := &recordingMetrics{}
	return &testEnv{
		store:   store,
		cleaner: cleaner,
		metrics: m,
		router:  NewRouter(handler, logger, m),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHandleCleanup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cleanup", map[string]any{
		"collection":  "notifications",
		"before_date": cutoff,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	result := decode[entities.CleanupResult](t, rec)
	assert.Equal(t, entities.StatusCompleted, result.Status)
	assert.Equal(t, 3, result.RecordsDeleted)
	assert.Equal(t, 1, env.store.Count("notifications"))
}

func TestHandleCleanup_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", "{", "Invalid request format"},
		{"missing collection", `{"before_date":"2024-01-01T00:00:00Z"}`, entities.ErrEmptyCollection.Error()},
		{"missing date", `{"collection":"notifications"}`, entities.ErrInvalidDate.Error()},
		{"batch too large", `{"collection":"notifications","before_date":"2024-01-01T00:00:00Z","batch_size":501}`, entities.ErrBatchSizeTooLarge.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cleanup", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode[map[string]string](t, rec)["error"])
		})
	}
	assert.Equal(t, 4, env.store.Count("notifications"))
}

func TestHandleNotificationsCleanup_WithProjects(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cleanup/notifications", entities.NotificationsCleanupRequest{
		BeforeDate:      cutoff,
		IncludeProjects: true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[entities.CleanupResult](t, rec)
	assert.Equal(t, 3, result.Counters["notifications"].Deleted)
	assert.Equal(t, 1, result.Counters["candidate_projects"].Deleted)
	assert.Equal(t, 1, result.Counters["project_updates"].Deleted)
	assert.Equal(t, 0, env.store.Count("project_updates"))
}

func TestHandleAsyncCleanup_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cleanup/notifications?async=true", entities.NotificationsCleanupRequest{
		BeforeDate: cutoff,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode[map[string]string](t, rec)
	taskID := accepted["task_id"]
	require.NotEmpty(t, taskID)
	assert.Equal(t, "/api/v1/cleanup/"+taskID, accepted["status_url"])

	env.cleaner.Wait()

	rec = env.do(t, http.MethodGet, "/api/v1/cleanup/"+taskID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[entities.CleanupResult](t, rec)
	assert.Equal(t, entities.StatusCompleted, status.Status)
	assert.Equal(t, 3, status.RecordsDeleted)
}

func TestHandleAsyncCleanup_InvalidRequest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cleanup/async", map[string]any{"collection": "notifications"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetCleanupStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/cleanup/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", decode[map[string]string](t, rec)["error"])
}

func TestHandleSetUserRole(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/users/role", entities.RoleUpdateRequest{Email: "ops@remote.works"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[entities.RoleUpdateResult](t, rec)
	assert.Equal(t, "member", result.PreviousRole)
	assert.Equal(t, entities.DefaultAdminRole, result.CurrentRole)

	rec = env.do(t, http.MethodPost, "/api/v1/users/role", entities.RoleUpdateRequest{Email: "nobody@remote.works"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No user found", decode[map[string]string](t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/v1/users/role", entities.RoleUpdateRequest{Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSetUserRole_Ambiguous(t *testing.T) {
	env := newTestEnv(t)
	env.store.Put(entities.Record{Collection: "users", ID: "u-2",
		Fields: map[string]any{"email": "ops@remote.works", "role": "member"}})

	rec := env.do(t, http.MethodPost, "/api/v1/users/role", entities.RoleUpdateRequest{Email: "ops@remote.works"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/v1/cleanup/some-task", nil)
	env.do(t, http.MethodGet, "/api/v1/health", nil)

	require.Len(t, env.metrics.calls, 2)
	assert.Equal(t, observed{http.MethodGet, "/api/v1/cleanup/{taskID}", http.StatusNotFound}, env.metrics.calls[0])
	assert.Equal(t, observed{http.MethodGet, "/api/v1/health", http.StatusOK}, env.metrics.calls[1])
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	// без сервиса очистки обработчик паникует
	h := NewHandler(nil, nil, HandlerConfig{}, zap.NewNop())
	assert.Equal(t, entities.MaxBatchCapacity, h.cfg.DefaultBatchSize)

	wrapped := NewRouter(h, zap.NewNop(), &recordingMetrics{})
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cleanup/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoggingMiddleware_KeepsRequestID(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
