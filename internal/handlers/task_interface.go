package handlers

import (
	"context"
	"taskManager/internal/models/task"
)

type TaskService interface {
	HealthCheck(context.Context) error
	ListTasks(context.Context) ([]*task.Task, error)
	GetTaskByID(context.Context, int64) (*task.Task, error)
	CreateTask(context.Context, task.Task) (*task.Task, error)
	UpdateTask(context.Context, int64, task.Task) (*task.Task, error)
	DeleteTask(context.Context, int64) error
	Stats(context.Context) (task.Stats, error)
}
