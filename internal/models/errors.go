package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTruckUnavailable  = errors.New("truck unavailable")
	ErrConflict          = errors.New("conflict")
	ErrRoleMismatch      = errors.New("role mismatch")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError собирает все нарушения одной операции.
type ValidationError struct {
	Violations []Violation
	// Transition is set when one of the violations is an illegal status change.
	Transition *InvalidTransitionError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() []error {
	if e.Transition == nil {
		return nil
	}
	return []error{e.Transition}
}

func (e *ValidationError) Add(field, reason string) {
	e.Violations = append(e.Violations, Violation{Field: field, Reason: reason})
}

// Err returns nil when nothing was collected.
func (e *ValidationError) Err() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

type TruckUnavailableError struct {
	TruckID uint64
}

func (e *TruckUnavailableError) Error() string {
	return fmt.Sprintf("truck %d already has a journey in progress", e.TruckID)
}

func (e *TruckUnavailableError) Is(target error) bool { return target == ErrTruckUnavailable }

type NotFoundError struct {
	Entity string
	ID     uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(entity string, id uint64) error {
	return &NotFoundError{Entity: entity, ID: id}
}
