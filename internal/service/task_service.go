package service

import (
	"context"
	"errors"
	"fmt"
	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	repo "taskManager/internal/repository"
	"time"

	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики:
// валидация кандидата и проверка существования перед изменением

type TaskService struct {
	repo TaskRepository
	now  func() time.Time
}

func NewTaskService(repo TaskRepository, options ...Option) *TaskService {
	s := &TaskService{
		repo: repo,
		now:  systemClock,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func (s *TaskService) ListTasks(ctx context.Context) ([]*task.Task, error) {
	tasks, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTaskByID(ctx context.Context, id int64) (*task.Task, error) {
	return s.find(ctx, id)
}

func (s *TaskService) CreateTask(ctx context.Context, candidate task.Task) (*task.Task, error) {
	now := s.now()

	valid, err := s.validate(candidate, nil, now)
	if err != nil {
		return nil, err
	}
	valid.ID = 0

	stored, err := s.repo.Insert(ctx, &valid)
	if err != nil {
		return nil, fmt.Errorf("создание задачи: %w", err)
	}

	logger.Info("Service: Задача создана",
		zap.Int64("task_id", stored.ID),
		zap.String("status", stored.Status.String()))
	return stored, nil
}

// UpdateTask заменяет title, description, completedAt и status;
// id и createdAt всегда берутся из сохранённой записи
func (s *TaskService) UpdateTask(ctx context.Context, id int64, candidate task.Task) (*task.Task, error) {
	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	valid, err := s.validate(candidate, existing, s.now())
	if err != nil {
		return nil, err
	}
	valid.ID = existing.ID
	valid.CreatedAt = existing.CreatedAt

	replaced, err := s.repo.Replace(ctx, &valid)
	if err != nil {
		return nil, fmt.Errorf("обновление задачи: %w", err)
	}
	if !replaced {
		// удалена между чтением и записью
		logger.Info("Service: Задача исчезла до обновления", zap.Int64("target_id", id))
		return nil, NewNotFound(id)
	}

	logger.Info("Service: Задача обновлена",
		zap.Int64("task_id", id),
		zap.String("status", valid.Status.String()))
	return &valid, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if !deleted {
		return NewNotFound(id)
	}

	logger.Info("Service: Задача удалена", zap.Int64("task_id", id))
	return nil
}

func (s *TaskService) Stats(ctx context.Context) (task.Stats, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return task.Stats{}, err
	}
	return task.NewStats(tasks), nil
}

func (s *TaskService) find(ctx context.Context, id int64) (*task.Task, error) {
	found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.Int64("target_id", id))
			return nil, NewNotFound(id)
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return found, nil
}

func (s *TaskService) validate(candidate task.Task, existing *task.Task, now time.Time) (task.Task, error) {
	valid, err := task.Validate(candidate, existing, now)
	if err != nil {
		var vErr *task.ValidationError
		if errors.As(err, &vErr) {
			logger.Warn("Service: Ошибка валидации",
				zap.String("field", vErr.Field),
				zap.String("reason", string(vErr.Code)))
			return task.Task{}, fromValidation(vErr)
		}
		return task.Task{}, err
	}
	return valid, nil
}
