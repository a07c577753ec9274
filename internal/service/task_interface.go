package service

import (
	"context"
	"taskManager/internal/models/task"
)

// TaskRepository - шлюз хранения задач.
// FindByID возвращает repository.ErrNotFound, если записи нет;
// Replace и Delete возвращают false, если строки с таким id не было.
type TaskRepository interface {
	HealthCheck(context.Context) error
	Insert(context.Context, *task.Task) (*task.Task, error)
	FindByID(context.Context, int64) (*task.Task, error)
	FindAll(context.Context) ([]*task.Task, error)
	Replace(context.Context, *task.Task) (bool, error)
	Delete(context.Context, int64) (bool, error)
}
