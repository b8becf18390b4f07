package service

import (
	"errors"
	"fmt"

	"parkinghub/internal/repository"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage failure")
	ErrPersistence  = errors.New("persistence failure")
)

// repoError maps repository sentinels onto the service error kinds.
func repoError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %s: %v", ErrConflict, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
	}
}
