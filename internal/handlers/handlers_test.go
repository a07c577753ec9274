package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"taskManager/internal/handlers"
	"taskManager/internal/middleware"
	"taskManager/internal/models/task"
	"taskManager/internal/repository/task/inmemory"
	"taskManager/internal/service"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskService - мок сервиса
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskService) ListTasks(ctx context.Context) ([]*task.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskService) GetTaskByID(ctx context.Context, id int64) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) CreateTask(ctx context.Context, candidate task.Task) (*task.Task, error) {
	args := m.Called(ctx, candidate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) UpdateTask(ctx context.Context, id int64, candidate task.Task) (*task.Task, error) {
	args := m.Called(ctx, id, candidate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) DeleteTask(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskService) Stats(ctx context.Context) (task.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(task.Stats), args.Error(1)
}

var _ handlers.TaskService = (*MockTaskService)(nil)
var _ handlers.TaskService = (*service.TaskService)(nil)

func newRouter(svc handlers.TaskService) http.Handler {
	handler := handlers.NewTaskHandler(svc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	handler.Routes(r)
	r.Get("/health", handler.HealthCheck)
	return r
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

// TestTaskHandler_HealthCheck тестирует HealthCheck
func TestTaskHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name: "success - healthy",
			setupMock: func(m *MockTaskService) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "error - unhealthy",
			setupMock: func(m *MockTaskService) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("service unavailable"))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := doRequest(newRouter(mockService), http.MethodGet, "/health", "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.NotContains(t, w.Body.String(), "service unavailable")
			mockService.AssertExpectations(t)
		})
	}
}

// TestTaskHandler_PostTask тестирует создание задачи
func TestTaskHandler_PostTask(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		requestBody    string
		contentType    string
		setupMock      func(*MockTaskService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:        "success - create task",
			requestBody: `{"title": "Test Task", "description": "Test Description", "status": "InProgress"}`,
			contentType: "application/json; charset=utf-8",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, mock.MatchedBy(func(c task.Task) bool {
					return c.Title == "Test Task" &&
						c.Description != nil && *c.Description == "Test Description" &&
						c.Status == task.StatusInProgress
				})).Return(&task.Task{
					ID:        12,
					Title:     "Test Task",
					Status:    task.StatusInProgress,
					CreatedAt: createdAt,
				}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "success - trailing whitespace",
			requestBody: "{\"title\": \"Test Task\"}\n\t ",
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, mock.Anything).Return(&task.Task{
					ID:        12,
					Title:     "Test Task",
					Status:    task.StatusPending,
					CreatedAt: createdAt,
				}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "error - invalid content type",
			requestBody:    `{}`,
			contentType:    "text/plain",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnsupportedMediaType,
			expectedCode:   handlers.CodeUnsupportedMediaType,
		},
		{
			name:           "error - invalid JSON",
			requestBody:    `{invalid json}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   handlers.CodeBadRequest,
		},
		{
			name:           "error - trailing object",
			requestBody:    `{"title": "a"} {"title": "b"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   handlers.CodeBadRequest,
		},
		{
			name:           "error - trailing garbage",
			requestBody:    `{"title": "a"}garbage`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   handlers.CodeBadRequest,
		},
		{
			name:           "error - body too large",
			requestBody:    `{"title": "` + strings.Repeat("a", 1<<20) + `"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedCode:   handlers.CodePayloadTooLarge,
		},
		{
			name:           "error - large trailing data",
			requestBody:    `{"title": "a"}` + strings.Repeat(" ", 1<<20),
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedCode:   handlers.CodePayloadTooLarge,
		},
		{
			name:           "error - invalid completedAt",
			requestBody:    `{"title": "x", "completedAt": "yesterday"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   handlers.CodeBadRequest,
		},
		{
			name:        "error - validation",
			requestBody: `{"title": ""}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, mock.Anything).
					Return(nil, service.NewValidationError("title", string(task.CodeTitleRequired), "обязательное поле"))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.CodeValidation,
		},
		{
			name:        "error - service error",
			requestBody: `{"title": "Test Task"}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, mock.Anything).
					Return(nil, errors.New("pq: connection refused"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   handlers.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString(tt.requestBody))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()

			newRouter(mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusCreated {
				assert.Equal(t, "/tasks/12", w.Header().Get("Location"))

				var response task.Task
				require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
				assert.Equal(t, int64(12), response.ID)
				assert.Equal(t, "Test Task", response.Title)
				assert.Equal(t, createdAt, response.CreatedAt)
			} else {
				body := decodeError(t, w)
				assert.Equal(t, tt.expectedCode, body["error"])
				assert.NotEmpty(t, body["request_id"])
				assert.NotContains(t, body["message"], "pq:")
			}

			mockService.AssertExpectations(t)
		})
	}
}

// TestTaskHandler_GetTaskByID тестирует получение задачи по ID
func TestTaskHandler_GetTaskByID(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name: "success",
			path: "/tasks/7",
			setupMock: func(m *MockTaskService) {
				m.On("GetTaskByID", mock.Anything, int64(7)).
					Return(&task.Task{ID: 7, Title: "Found", Status: task.StatusPending}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "error - not a number",
			path:           "/tasks/abc",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - negative id",
			path:           "/tasks/-1",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "error - not found",
			path: "/tasks/404",
			setupMock: func(m *MockTaskService) {
				m.On("GetTaskByID", mock.Anything, int64(404)).Return(nil, service.NewNotFound(404))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "error - storage failure",
			path: "/tasks/5",
			setupMock: func(m *MockTaskService) {
				m.On("GetTaskByID", mock.Anything, int64(5)).Return(nil, errors.New("timeout"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := doRequest(newRouter(mockService), http.MethodGet, tt.path, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

// TestTaskHandler_UpdateTaskByID тестирует обновление задачи
func TestTaskHandler_UpdateTaskByID(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		requestBody    string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name:        "success",
			path:        "/tasks/3",
			requestBody: `{"id": 3, "title": "Updated", "status": "Completed", "createdAt": "2001-01-01T00:00:00Z"}`,
			setupMock: func(m *MockTaskService) {
				m.On("UpdateTask", mock.Anything, int64(3), mock.MatchedBy(func(c task.Task) bool {
					return c.Title == "Updated" && c.Status == task.StatusCompleted && c.CreatedAt.IsZero()
				})).Return(&task.Task{ID: 3}, nil)
			},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "error - id mismatch",
			path:           "/tasks/3",
			requestBody:    `{"id": 4, "title": "Updated"}`,
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - id missing in body",
			path:           "/tasks/3",
			requestBody:    `{"title": "Updated"}`,
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "error - not found",
			path:        "/tasks/3",
			requestBody: `{"id": 3, "title": "Updated"}`,
			setupMock: func(m *MockTaskService) {
				m.On("UpdateTask", mock.Anything, int64(3), mock.Anything).Return(nil, service.NewNotFound(3))
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := doRequest(newRouter(mockService), http.MethodPut, tt.path, tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusNoContent {
				assert.Empty(t, w.Body.String())
			}
			mockService.AssertExpectations(t)
		})
	}
}

// TestTaskHandler_DeleteTaskByID тестирует удаление задачи
func TestTaskHandler_DeleteTaskByID(t *testing.T) {
	mockService := new(MockTaskService)
	mockService.On("DeleteTask", mock.Anything, int64(1)).Return(nil)
	mockService.On("DeleteTask", mock.Anything, int64(2)).Return(service.NewNotFound(2))

	router := newRouter(mockService)

	w := doRequest(router, http.MethodDelete, "/tasks/1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodDelete, "/tasks/2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, service.CodeNotFound, body["error"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "task", details["resource"])

	mockService.AssertExpectations(t)
}

// TestTaskHandler_ListAndStats тестирует список и статистику
func TestTaskHandler_ListAndStats(t *testing.T) {
	mockService := new(MockTaskService)
	mockService.On("ListTasks", mock.Anything).Return([]*task.Task{}, nil)
	mockService.On("Stats", mock.Anything).Return(task.Stats{Total: 4, Completed: 1, CompletionPercent: 25}, nil)

	router := newRouter(mockService)

	w := doRequest(router, http.MethodGet, "/tasks", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doRequest(router, http.MethodGet, "/tasks/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":4,"pending":0,"inProgress":0,"completed":1,"completionPercent":25}`, w.Body.String())

	mockService.AssertExpectations(t)
}

// TestTaskHandler_Scenarios прогоняет HTTP сценарии на настоящем сервисе
func TestTaskHandler_Scenarios(t *testing.T) {
	router := newRouter(service.NewTaskService(inmemory.NewTaskStorage()))

	// создание
	w := doRequest(router, http.MethodPost, "/tasks", `{"title":"Buy milk","status":"Pending"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created task.Task
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, task.StatusPending, created.Status)
	assert.Nil(t, created.CompletedAt)
	path := fmt.Sprintf("/tasks/%d", created.ID)
	assert.Equal(t, path, w.Header().Get("Location"))

	// завершение без даты
	w = doRequest(router, http.MethodPut, path,
		fmt.Sprintf(`{"id":%d,"title":"Buy milk","status":"Completed"}`, created.ID))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	var completed task.Task
	require.NoError(t, json.NewDecoder(w.Body).Decode(&completed))
	require.NotNil(t, completed.CompletedAt)
	assert.False(t, completed.CompletedAt.Before(completed.CreatedAt))

	// дата завершения при статусе Pending
	w = doRequest(router, http.MethodPut, path,
		fmt.Sprintf(`{"id":%d,"title":"Buy milk","status":"Pending","completedAt":"%s"}`,
			created.ID, completed.CompletedAt.Format(time.RFC3339Nano)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, service.CodeValidation, body["error"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "completedAt", details["field"])

	// слишком длинное название
	w = doRequest(router, http.MethodPost, "/tasks",
		fmt.Sprintf(`{"title":"%s"}`, strings.Repeat("a", 101)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// удаление несуществующей
	w = doRequest(router, http.MethodDelete, "/tasks/9999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/tasks/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats task.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, task.Stats{Total: 1, Completed: 1, CompletionPercent: 100}, stats)

	w = doRequest(router, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodGet, "/tasks", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

// TestTaskHandler_ConcurrentRequests тестирует конкурентные запросы
func TestTaskHandler_ConcurrentRequests(t *testing.T) {
	router := newRouter(service.NewTaskService(inmemory.NewTaskStorage()))
	const requests = 50

	var wg sync.WaitGroup
	codes := make(chan int, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w := doRequest(router, http.MethodPost, "/tasks", fmt.Sprintf(`{"title":"Task %d"}`, n))
			codes <- w.Code
		}(i)
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusCreated, code)
	}

	w := doRequest(router, http.MethodGet, "/tasks", "")
	var tasks []task.Task
	require.NoError(t, json.NewDecoder(w.Body).Decode(&tasks))
	assert.Len(t, tasks, requests)
}
