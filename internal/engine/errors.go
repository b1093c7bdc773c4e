package engine

import (
	"errors"
	"fmt"
)

// Expected business-rule outcomes. These come back as typed values so the
// caller can map each one to a precise message instead of a generic failure.

var (
	ErrMissingEmployee = errors.New("employee is required")
	ErrMissingRole     = errors.New("role is required")
)

// InvalidWorkloadError rejects percentages outside [1,100]. The narrower
// slider range advertised in config is a presentation concern, not ours.
type InvalidWorkloadError struct {
	Percent int
}

func (e InvalidWorkloadError) Error() string {
	return fmt.Sprintf("workload percent %d outside [1,100]", e.Percent)
}

// DuplicateAssignmentError means the employee already holds an active
// assignment on this project.
type DuplicateAssignmentError struct {
	ProjectID  string
	EmployeeID string
}

func (e DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("employee %s already actively assigned to project %s", e.EmployeeID, e.ProjectID)
}

// CapacityExceededError carries the current total and the attempted delta so
// the caller can render a precise message.
type CapacityExceededError struct {
	Current   int
	Requested int
	Limit     int
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: current %d%%, requested %d%%, limit %d%%", e.Current, e.Requested, e.Limit)
}

// InactiveEmployeeError is returned only when the org policy enables
// engine-side employment-status enforcement.
type InactiveEmployeeError struct {
	EmployeeID string
}

func (e InactiveEmployeeError) Error() string {
	return fmt.Sprintf("employee %s is not actively employed", e.EmployeeID)
}

// UnknownReferenceError flags a missing employee or project reference.
type UnknownReferenceError struct {
	Kind string
	ID   string
}

func (e UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown %s %s", e.Kind, e.ID)
}

// UnknownAssignmentError is the distinct removal-target-missing failure;
// idempotent callers may treat it as already satisfied but we never swallow it.
type UnknownAssignmentError struct {
	ID string
}

func (e UnknownAssignmentError) Error() string {
	return fmt.Sprintf("unknown assignment %s", e.ID)
}
