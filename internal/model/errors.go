package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound возвращается, если запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAvailabilityConflict возвращается, если место недоступно на запрошенный интервал.
	ErrAvailabilityConflict = errors.New("spot is not available")
	// ErrInvalidTransition возвращается при недопустимом переходе состояния бронирования.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStaleWrite возвращается, если запись изменилась после чтения.
	ErrStaleWrite = errors.New("record was modified concurrently")
	// ErrForbidden возвращается, если пользователь не владеет ресурсом.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError содержит все нарушенные правила запроса.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation error"
	}
	return "validation error: " + strings.Join(e.Errors, "; ")
}

// NewValidationError создаёт ошибку валидации из списка сообщений.
func NewValidationError(msgs ...string) *ValidationError {
	return &ValidationError{Errors: msgs}
}

// TransitionError описывает отклонённый переход состояния.
type TransitionError struct {
	Action string
	From   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s booking in state %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// PersistenceError оборачивает сбой хранилища.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure on %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PaymentError оборачивает сбой платёжного шлюза.
type PaymentError struct {
	Op  string
	Err error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failure on %s: %v", e.Op, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// IsValidation сообщает, является ли err ошибкой валидации.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
