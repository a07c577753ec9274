package task

import (
	"time"
)

type TaskOption func(*Task)

// New собирает кандидата для создания или обновления; nil-опции пропускаются
func New(title string, options ...TaskOption) Task {
	t := Task{Title: title}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&t)
	}
	return t
}

func WithTitle(title string) TaskOption {
	return func(task *Task) {
		task.Title = title
	}
}

func WithDescription(description *string) TaskOption {
	if description == nil {
		return nil
	}
	d := *description
	return func(task *Task) {
		task.Description = &d
	}
}

func WithStatus(status Status) TaskOption {
	if status == "" {
		return nil
	}
	return func(task *Task) {
		task.Status = status
	}
}

func WithCompletedAt(completedAt *time.Time) TaskOption {
	if completedAt == nil || completedAt.IsZero() {
		return nil
	}
	ca := completedAt.UTC().Truncate(TimePrecision)
	return func(task *Task) {
		task.CompletedAt = &ca
	}
}
