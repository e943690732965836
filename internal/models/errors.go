package models

import (
	"fmt"
	"strings"
)

// FieldError describes one violated input constraint
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a graph description cannot be ingested.
// It lists every violated constraint, not only the first one.
type ValidationError struct {
	Problems []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("%s: %s", p.Field, p.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a violated constraint
func (e *ValidationError) Add(field, format string, args ...interface{}) {
	e.Problems = append(e.Problems, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Field returns the first offending field
func (e *ValidationError) Field() string {
	if len(e.Problems) == 0 {
		return ""
	}
	return e.Problems[0].Field
}

// ErrOrNil returns e when it holds problems, nil otherwise
func (e *ValidationError) ErrOrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

// CapacityError is returned when the capacity is not a positive integer or
// when groups are required from an empty graph
type CapacityError struct {
	Field    string
	Capacity int
	Reason   string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity error: %s", e.Reason)
}

// InfeasibleError is returned when no partition honors the hard constraints
type InfeasibleError struct {
	Field      string
	Reason     string
	Capacity   int
	Unassigned []string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("assignment infeasible: %s", e.Reason)
}
