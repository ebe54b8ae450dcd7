package booking

import (
	"errors"
	"fmt"
)

// ErrSlotUnavailable is returned when the requested interval overlaps an
// existing scheduled appointment for the same staff member. Under
// concurrent requests the database exclusion constraint guarantees at
// most one writer wins; the losers get this error.
var ErrSlotUnavailable = errors.New("slot unavailable")

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}
