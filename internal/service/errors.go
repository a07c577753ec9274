package service

import (
	"errors"
	"fmt"
	"taskManager/internal/models/task"
)

const CodeNotFound = "NOT_FOUND"
const CodeValidation = "VALIDATION_ERROR"

// для errors.Is
var ErrNotFound = errors.New("not found")
var ErrValidation = errors.New("validation failed")

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func (b *BusinessError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return b.Code == CodeNotFound
	case ErrValidation:
		return b.Code == CodeValidation
	}
	return false
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewNotFound(id int64) *BusinessError {
	return NewBusinessError(CodeNotFound,
		fmt.Sprintf("задача %d не найдена", id),
		ToDetail("resource", "task"),
		ToDetail("id", id),
	)
}

func NewValidationError(field, reason, message string) *BusinessError {
	return NewBusinessError(CodeValidation,
		fmt.Sprintf("неверное значение поля '%s': %s", field, message),
		ToDetail("field", field),
		ToDetail("reason", reason),
	)
}

func fromValidation(vErr *task.ValidationError) *BusinessError {
	busErr := NewValidationError(vErr.Field, string(vErr.Code), vErr.Message)
	busErr.Err = vErr
	return busErr
}
