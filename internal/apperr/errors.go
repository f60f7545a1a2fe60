package apperr

import (
	"errors"

	"github.com/nikhilbhutani/ragdesk/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrPrecondition  = errors.New("precondition failed")
	ErrBadRequest    = errors.New("bad request")
	ErrUnrecoverable = errors.New("unrecoverable backend failure")
)

// ValidationError is returned when an upload fails one or more rules. The
// task is still recorded under TaskID.
type ValidationError struct {
	TaskID  string
	Message string
	Rules   []models.ValidationRule
}

func (e *ValidationError) Error() string {
	return e.Message
}
