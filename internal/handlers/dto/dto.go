package dto

import (
	"taskManager/internal/models/task"
	"time"
)

// статус передаётся строкой: "Pending", "InProgress", "Completed"
type CreateTaskRequest struct {
	Title       string      `json:"title"`
	Description *string     `json:"description,omitempty"`
	Status      task.Status `json:"status,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

func (r CreateTaskRequest) ToTask() task.Task {
	return task.New(r.Title,
		task.WithDescription(r.Description),
		task.WithStatus(r.Status),
		task.WithCompletedAt(r.CompletedAt),
	)
}

// UpdateTaskRequest - задача целиком; createdAt принимается, но игнорируется
type UpdateTaskRequest struct {
	ID *int64 `json:"id"`
	CreateTaskRequest
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

func (r UpdateTaskRequest) MatchesID(id int64) bool {
	return r.ID != nil && *r.ID == id
}
