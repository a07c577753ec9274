package task

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// горизонт для даты завершения
const CompletionHorizonYears = 10

// точность хранения дат: timestamptz в PostgreSQL хранит микросекунды
const TimePrecision = time.Microsecond

type Code string

const CodeTitleRequired Code = "TitleRequired"
const CodeTitleTooLong Code = "TitleTooLong"
const CodeDescriptionTooLong Code = "DescriptionTooLong"
const CodeCompletionBeforeCreation Code = "CompletionBeforeCreation"
const CodeCompletionTooFarInFuture Code = "CompletionTooFarInFuture"
const CodeCompletionDateWithoutCompletion Code = "CompletionDateWithoutCompletion"

type ValidationError struct {
	Field   string
	Code    Code
	Message string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

func violation(field string, code Code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// Validate проверяет кандидата по правилам сущности и возвращает исправленную копию.
// Правила применяются по порядку, возвращается первое нарушение.
// existing == nil означает создание: датой создания считается now.
func Validate(candidate Task, existing *Task, now time.Time) (Task, error) {
	now = now.UTC().Truncate(TimePrecision)

	if strings.TrimSpace(candidate.Title) == "" {
		return Task{}, violation("title", CodeTitleRequired, "название задачи обязательно")
	}

	if utf8.RuneCountInString(candidate.Title) > MaxTitleLength {
		return Task{}, violation("title", CodeTitleTooLong,
			fmt.Sprintf("название должно быть не длиннее %d символов", MaxTitleLength))
	}

	if candidate.Description != nil && utf8.RuneCountInString(*candidate.Description) > MaxDescriptionLength {
		return Task{}, violation("description", CodeDescriptionTooLong,
			fmt.Sprintf("описание должно быть не длиннее %d символов", MaxDescriptionLength))
	}

	createdAt := now
	if existing != nil {
		createdAt = existing.CreatedAt
	}
	candidate.CreatedAt = createdAt

	// исправление, а не отказ
	if !candidate.Status.Valid() {
		candidate.Status = StatusPending
	}

	if candidate.Status == StatusCompleted {
		completedAt := now
		if candidate.CompletedAt != nil {
			completedAt = candidate.CompletedAt.UTC().Truncate(TimePrecision)
		}
		candidate.CompletedAt = &completedAt

		if candidate.CompletedAt.Before(createdAt) {
			return Task{}, violation("completedAt", CodeCompletionBeforeCreation,
				"дата завершения не может быть раньше даты создания")
		}

		if candidate.CompletedAt.After(now.AddDate(CompletionHorizonYears, 0, 0)) {
			return Task{}, violation("completedAt", CodeCompletionTooFarInFuture,
				fmt.Sprintf("дата завершения не может быть позже чем через %d лет", CompletionHorizonYears))
		}

		return candidate, nil
	}

	if candidate.CompletedAt != nil {
		return Task{}, violation("completedAt", CodeCompletionDateWithoutCompletion,
			"у незавершённой задачи не может быть даты завершения")
	}

	return candidate, nil
}
