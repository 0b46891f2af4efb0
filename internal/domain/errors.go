package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the ledger. Wrap them with fmt.Errorf and test with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInternal          = errors.New("internal error")
)

// Validationf builds a validation error with a formatted message
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Internal marks a store failure. Errors that already carry a ledger kind are returned unchanged.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInternal) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
