package utils

import (
	"errors"
	"fmt"
)

var (
	ErrorRecordNotFound  = errors.New("record not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrUnbalancedEntry   = errors.New("journal entry is not balanced")
	ErrPeriodLocked      = errors.New("accounting period is locked")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// NewValidationError wraps ErrValidation with a user facing message.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NewConflictError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
