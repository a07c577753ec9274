package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"taskManager/internal/handlers/dto"
	"taskManager/internal/logger"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errTrailingData = errors.New("после JSON объекта есть лишние данные")

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
	}
}

// Routes регистрирует ресурс /tasks
func (s *TaskHandler) Routes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.ListTasks)
		r.Post("/", s.PostTask)
		r.Get("/stats", s.GetStats)
		r.Get("/{id}", s.GetTaskByID)
		r.Put("/{id}", s.UpdateTaskByID)
		r.Delete("/{id}", s.DeleteTaskByID)
	})
}

func (s *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	tasks, err := s.TaskService.ListTasks(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "list_tasks")
		return
	}

	logger.Info("HTTP_OUT: Задачи получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithBody(w, http.StatusOK, tasks)
}

func (s *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	stats, err := s.TaskService.Stats(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "task_stats")
		return
	}

	logger.Info("HTTP_OUT: Статистика получена",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithBody(w, http.StatusOK, stats)
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !s.requireJSON(w, r) {
		return
	}

	var request dto.CreateTaskRequest
	if !s.decode(w, r, &request) {
		return
	}

	logger.Info("HTTP: Вызов сервиса создания задач")
	created, err := s.TaskService.CreateTask(r.Context(), request.ToTask())
	if err != nil {
		handleServiceError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.Int64("task_id", created.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	w.Header().Set("Location", fmt.Sprintf("/tasks/%d", created.ID))
	responseWithBody(w, http.StatusCreated, created)
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := s.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Сервис недоступен", err)
		responseWithError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "хранилище недоступно")
		return
	}

	responseWithJSON(w, http.StatusOK, toPayload("status", "ok"))
}

func (s *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	logger.Info("HTTP: Вызов сервиса для получения задачи")

	found, err := s.TaskService.GetTaskByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_task")
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.Int64("task_id", found.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithBody(w, http.StatusOK, found)
}

func (s *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if !s.requireJSON(w, r) {
		return
	}

	var request dto.UpdateTaskRequest
	if !s.decode(w, r, &request) {
		return
	}

	if !request.MatchesID(id) {
		logger.Warn("HTTP: id в теле не совпадает с id в пути",
			zap.Int64("path_id", id),
			zap.Any("body_id", request.ID),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, r, http.StatusBadRequest, CodeBadRequest,
			"id в теле запроса должен совпадать с id в пути",
			toPayload("path_id", id),
			toPayload("body_id", request.ID))
		return
	}

	logger.Info("HTTP: запрос к сервису обновления данных")

	if _, err := s.TaskService.UpdateTask(r.Context(), id, request.ToTask()); err != nil {
		handleServiceError(w, r, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.Int64("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

func (s *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	logger.Info("HTTP: Обращение к сервису для удаления задачи")

	if err := s.TaskService.DeleteTask(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.Int64("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

func (s *TaskHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(r)
	if err != nil {
		logger.Warn("HTTP: Не удалось получить id",
			zap.Error(err),
			zap.String("id", chi.URLParam(r, "id")),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, r, http.StatusBadRequest, CodeBadRequest,
			"id должен быть положительным целым числом",
			toPayload("id", chi.URLParam(r, "id")))
		return 0, false
	}
	return id, true
}

func (s *TaskHandler) requireJSON(w http.ResponseWriter, r *http.Request) bool {
	if checkContentType(r, "application/json") {
		return true
	}

	logger.Warn("HTTP: Неверный тип контента",
		zap.String("expected", "application/json"),
		zap.String("received", r.Header.Get("Content-Type")),
		zap.String("client_ip", r.RemoteAddr))

	responseWithError(w, r, http.StatusUnsupportedMediaType, CodeUnsupportedMediaType,
		"Content-Type должен быть application/json")
	return false
}

func (s *TaskHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(dst)
	if err == nil {
		err = ensureEOF(dec)
	}
	if err == nil {
		return true
	}

	logger.Warn("HTTP: ошибка чтения JSON",
		zap.Error(err),
		zap.String("client_ip", r.RemoteAddr))

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		responseWithError(w, r, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
			fmt.Sprintf("тело запроса больше %d байт", maxErr.Limit))
		return false
	}

	responseWithError(w, r, http.StatusBadRequest, CodeBadRequest, "неверное тело запроса: "+err.Error())
	return false
}

// в теле допускается ровно один JSON документ
func ensureEOF(dec *json.Decoder) error {
	err := dec.Decode(&json.RawMessage{})
	if errors.Is(err, io.EOF) {
		return nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return errTrailingData
}
