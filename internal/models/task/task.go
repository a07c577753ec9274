package task

import (
	"encoding/json"
	"time"
)

type Task struct {
	ID          int64      `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	Status      Status     `json:"status" db:"status"`
}

type Status string

const StatusPending Status = "Pending"
const StatusInProgress Status = "InProgress"
const StatusCompleted Status = "Completed"

// единственная таблица допустимых статусов, порядок совпадает с порядковыми номерами
var statuses = [...]Status{StatusPending, StatusInProgress, StatusCompleted}

func Statuses() []Status {
	return statuses[:]
}

func (s Status) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// нестроковое значение статуса не ломает разбор запроса,
// оно превратится в Pending на этапе валидации
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = ""
		return nil
	}
	*s = Status(raw)
	return nil
}

// Clone возвращает глубокую копию, хранилища не должны отдавать свои указатели наружу
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	if t.CompletedAt != nil {
		ca := *t.CompletedAt
		c.CompletedAt = &ca
	}
	return &c
}

// Stats - сводка по статусам, как на панели статистики клиента
type Stats struct {
	Total             int `json:"total"`
	Pending           int `json:"pending"`
	InProgress        int `json:"inProgress"`
	Completed         int `json:"completed"`
	CompletionPercent int `json:"completionPercent"`
}

func NewStats(tasks []*Task) Stats {
	st := Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case StatusPending:
			st.Pending++
		case StatusInProgress:
			st.InProgress++
		case StatusCompleted:
			st.Completed++
		}
	}
	if st.Total > 0 {
		st.CompletionPercent = (st.Completed*100 + st.Total/2) / st.Total
	}
	return st
}
