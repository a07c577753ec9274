package service

import (
	"taskManager/internal/models/task"
	"time"
)

type Option func(*TaskService)

// WithClock подменяет источник текущего времени, нужен тестам
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		if now != nil {
			s.now = now
		}
	}
}

// postgres хранит микросекунды, поэтому время режется сразу
func systemClock() time.Time {
	return time.Now().UTC().Truncate(task.TimePrecision)
}
