package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"todoList/internal/cache"
	"todoList/internal/handlers"
	"todoList/internal/models/task"
	"todoList/internal/repository/task/filecache"
	"todoList/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskService - мок сервиса
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) Tasks(includeDone bool) []task.Task {
	args := m.Called(includeDone)
	return args.Get(0).([]task.Task)
}

func (m *MockTaskService) CompletedCount() int {
	return m.Called().Int(0)
}

func (m *MockTaskService) IsDirty() bool {
	return m.Called().Bool(0)
}

func (m *MockTaskService) GetTask(id string) (task.Task, error) {
	args := m.Called(id)
	return args.Get(0).(task.Task), args.Error(1)
}

func (m *MockTaskService) AddTask(ctx context.Context, text string, options ...task.Option) (service.Outcome, error) {
	args := m.Called(ctx, text, options)
	return args.Get(0).(service.Outcome), args.Error(1)
}

func (m *MockTaskService) EditTask(ctx context.Context, id string, options ...task.Option) (service.Outcome, error) {
	args := m.Called(ctx, id, options)
	return args.Get(0).(service.Outcome), args.Error(1)
}

func (m *MockTaskService) ToggleDone(ctx context.Context, id string) (service.Outcome, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(service.Outcome), args.Error(1)
}

func (m *MockTaskService) DeleteTask(ctx context.Context, id string) (service.Outcome, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(service.Outcome), args.Error(1)
}

func (m *MockTaskService) Synchronize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ handlers.Service = (*MockTaskService)(nil)

var fixedNow = time.Unix(1_700_000_000, 0)

func newRouter(svc handlers.Service, options ...handlers.Option) http.Handler {
	options = append(options, handlers.WithClock(func() time.Time { return fixedNow }))
	r := chi.NewRouter()
	handlers.NewTaskHandler(svc, options...).Routes(r)
	return r
}

func doRequest(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

// applyOptions применяет опции, переданные в мок, к пустой задаче
func applyOptions(options []task.Option) task.Task {
	var t task.Task
	for _, opt := range options {
		if opt != nil {
			opt(&t)
		}
	}
	return t
}

func sample() task.Task {
	return task.Task{
		ID:         "1",
		Text:       "Buy milk",
		CreatedAt:  time.Unix(1_600_000_000, 0),
		Deadline:   task.UnixPtr(1_650_000_000),
		Importance: task.ImportanceImportant,
	}
}

// TestTaskHandler_GetTasks тестирует получение списка
func TestTaskHandler_GetTasks(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name:  "active only by default",
			query: "",
			setupMock: func(m *MockTaskService) {
				m.On("Tasks", false).Return([]task.Task{sample()})
				m.On("CompletedCount").Return(2)
				m.On("IsDirty").Return(true)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "include done",
			query: "?include_done=true",
			setupMock: func(m *MockTaskService) {
				m.On("Tasks", true).Return([]task.Task{sample()})
				m.On("CompletedCount").Return(2)
				m.On("IsDirty").Return(true)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad flag",
			query:          "?include_done=maybe",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTaskService)
			tt.setupMock(svc)

			rr := doRequest(newRouter(svc), http.MethodGet, "/tasks"+tt.query, "")
			assert.Equal(t, tt.expectedStatus, rr.Code)
			svc.AssertExpectations(t)

			if rr.Code != http.StatusOK {
				return
			}
			body := decode(t, rr)
			assert.Equal(t, float64(2), body["completed"])
			assert.Equal(t, true, body["dirty"])

			list := body["tasks"].([]any)
			require.Len(t, list, 1)
			item := list[0].(map[string]any)
			assert.Equal(t, "1", item["id"])
			assert.Equal(t, "important", item["importance"])
			assert.Equal(t, true, item["is_overdue"])
		})
	}
}

// TestTaskHandler_PostTask тестирует создание задачи
func TestTaskHandler_PostTask(t *testing.T) {
	created := sample()

	tests := []struct {
		name           string
		body           string
		contentType    string
		setupMock      func(*MockTaskService)
		expectedStatus int
		expectWarning  bool
	}{
		{
			name:        "synced",
			body:        `{"text":"Buy milk","deadline":"1650000000","importance":"important"}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("AddTask", mock.Anything, "Buy milk", mock.MatchedBy(func(opts []task.Option) bool {
					got := applyOptions(opts)
					return got.Importance == task.ImportanceImportant &&
						got.Deadline != nil && got.Deadline.Unix() == 1_650_000_000
				})).Return(service.Outcome{Task: created, Synced: true}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "saved locally only",
			body:        `{"text":"Buy milk"}`,
			contentType: "application/json; charset=utf-8",
			setupMock: func(m *MockTaskService) {
				m.On("AddTask", mock.Anything, "Buy milk", mock.Anything).
					Return(service.Outcome{Task: created, Synced: false}, nil)
				m.On("IsDirty").Return(true)
			},
			expectedStatus: http.StatusCreated,
			expectWarning:  true,
		},
		{
			name:           "wrong content type",
			body:           `{"text":"Buy milk"}`,
			contentType:    "text/plain",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:           "empty text",
			body:           `{"text":"   "}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown importance",
			body:           `{"text":"x","importance":"basic"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown deadline",
			body:           `{"text":"x","deadline":"когда-нибудь потом"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown field",
			body:           `{"title":"x"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "duplicate id",
			body:        `{"id":"1","text":"x"}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("AddTask", mock.Anything, "x", mock.Anything).
					Return(service.Outcome{}, service.NewValidationError("id", "задача с таким id уже существует"))
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "persist failed",
			body:        `{"text":"x"}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("AddTask", mock.Anything, "x", mock.Anything).
					Return(service.Outcome{}, service.NewPersistError("tasks", errors.New("disk full")))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTaskService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rr := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			svc.AssertExpectations(t)

			if rr.Code != http.StatusCreated {
				return
			}
			body := decode(t, rr)
			assert.Equal(t, "1", body["task"].(map[string]any)["id"])
			_, hasWarning := body["warning"]
			assert.Equal(t, tt.expectWarning, hasWarning)
		})
	}
}

// TestTaskHandler_UpdateTask тестирует изменение задачи
func TestTaskHandler_UpdateTask(t *testing.T) {
	t.Run("clears deadline and sets done", func(t *testing.T) {
		svc := new(MockTaskService)
		svc.On("EditTask", mock.Anything, "1", mock.MatchedBy(func(opts []task.Option) bool {
			start := sample()
			for _, opt := range opts {
				if opt != nil {
					opt(&start)
				}
			}
			return start.Deadline == nil && start.IsDone && start.Text == "new"
		})).Return(service.Outcome{Task: sample(), Synced: true}, nil)

		rr := doRequest(newRouter(svc), http.MethodPut, "/tasks/1", `{"text":"new","deadline":"","is_done":true}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockTaskService)
		svc.On("EditTask", mock.Anything, "42", mock.Anything).Return(service.Outcome{}, service.NewNotFound("42"))

		rr := doRequest(newRouter(svc), http.MethodPut, "/tasks/42", `{"text":"new"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, service.CodeNotFound, decode(t, rr)["error"])
	})

	t.Run("empty text", func(t *testing.T) {
		svc := new(MockTaskService)
		rr := doRequest(newRouter(svc), http.MethodPut, "/tasks/1", `{"text":""}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "EditTask", mock.Anything, mock.Anything, mock.Anything)
	})
}

// TestTaskHandler_ToggleDelete тестирует переключение и удаление
func TestTaskHandler_ToggleDelete(t *testing.T) {
	svc := new(MockTaskService)
	done := sample()
	done.IsDone = true
	svc.On("ToggleDone", mock.Anything, "1").Return(service.Outcome{Task: done, Synced: true}, nil)
	svc.On("DeleteTask", mock.Anything, "1").Return(service.Outcome{Task: done, Synced: true}, nil)
	svc.On("DeleteTask", mock.Anything, "2").Return(service.Outcome{}, service.NewNotFound("2"))

	router := newRouter(svc)

	rr := doRequest(router, http.MethodPost, "/tasks/1/toggle", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["task"].(map[string]any)["is_done"])

	rr = doRequest(router, http.MethodDelete, "/tasks/1", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(router, http.MethodDelete, "/tasks/2", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	svc.AssertExpectations(t)
}

// TestTaskHandler_Synchronize тестирует ручную синхронизацию
func TestTaskHandler_Synchronize(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockTaskService)
		svc.On("Synchronize", mock.Anything).Return(nil)
		svc.On("IsDirty").Return(false)

		rr := doRequest(newRouter(svc), http.MethodPost, "/sync", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, false, decode(t, rr)["dirty"])
	})

	t.Run("server unavailable", func(t *testing.T) {
		svc := new(MockTaskService)
		svc.On("Synchronize", mock.Anything).Return(service.NewSyncError(errors.New("connection refused")))

		rr := doRequest(newRouter(svc), http.MethodPost, "/sync", "")
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Equal(t, service.CodeSyncFailed, decode(t, rr)["error"])
	})
}

// TestTaskHandler_HealthCheck тестирует HealthCheck
func TestTaskHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		check          handlers.HealthChecker
		expectedStatus int
	}{
		{name: "no backend check", check: nil, expectedStatus: http.StatusOK},
		{name: "healthy", check: func(context.Context) error { return nil }, expectedStatus: http.StatusOK},
		{name: "unhealthy", check: func(context.Context) error { return errors.New("db down") }, expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTaskService)
			svc.On("IsDirty").Return(false).Maybe()

			rr := doRequest(newRouter(svc, handlers.WithHealthCheck(tt.check)), http.MethodGet, "/health", "")
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

// TestTaskHandler_WithRealService тестирует обработчики поверх настоящего сервиса без сервера
func TestTaskHandler_WithRealService(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))
	store := cache.New(filecache.New(fs, "/data"))
	t.Cleanup(store.Close)

	svc := service.NewSyncService(store, nil)
	router := newRouter(svc)

	rr := doRequest(router, http.MethodPost, "/tasks", `{"id":"a","text":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, false, body["synced"])
	_, hasWarning := body["warning"]
	assert.False(t, hasWarning)

	rr = doRequest(router, http.MethodPost, "/tasks/a/toggle", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(router, http.MethodGet, "/tasks", "")
	assert.Empty(t, decode(t, rr)["tasks"])

	rr = doRequest(router, http.MethodGet, "/tasks?include_done=1", "")
	body = decode(t, rr)
	assert.Len(t, body["tasks"], 1)
	assert.Equal(t, float64(1), body["completed"])

	exists, err := afero.Exists(fs, "/data/tasks.json")
	require.NoError(t, err)
	assert.True(t, exists)
}
