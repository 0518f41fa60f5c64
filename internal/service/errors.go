package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/jobboard/internal/repository"
)

var (
	// ErrNotFound: профиль или вакансия не существует.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict: профиль владельца уже создан параллельным запросом.
	ErrConflict = errors.New("конфликт: ресурс уже существует")
	// ErrForbidden: вакансия принадлежит другой компании.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrValidation: данные формы не прошли проверку; конкретная
	// ошибка: *ValidationError.
	ErrValidation = errors.New("ошибка валидации")
)

// ValidationError: ошибка в поле формы. errors.Is(err, ErrValidation) == true.
type ValidationError struct {
	// Field: имя поля формы; пустое, если ошибка относится к форме целиком.
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Message
}

// Is сопоставляет ValidationError с ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// writeErr переводит ошибку записи репозитория в ошибку сервиса.
// Нарушение CHECK-ограничения показывается как ошибка формы: правила
// схемы строже проверок сервиса только при рассинхронизации версий.
func writeErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	case errors.Is(err, repository.ErrInvalid):
		return invalid("", "данные отклонены хранилищем")
	}
	return fmt.Errorf("%s: %w", op, err)
}
