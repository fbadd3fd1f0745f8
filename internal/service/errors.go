package service

import (
	"errors"
	"fmt"

	"recurring-planner/internal/repository"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidRange = errors.New("invalid date range")
)

// notFound lifts a store miss into ErrNotFound and passes other failures through.
func notFound(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
