package entities

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors so adapters can translate them.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindPersistence ErrorKind = "persistence"
)

// Error is the typed error returned by the engine. Two errors match under
// errors.Is when their kind and code are equal.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

// Withf returns a copy of e with a more specific message.
func (e *Error) Withf(format string, args ...interface{}) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

func NewValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NewNotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func NewConflictError(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// NewPersistenceError wraps an opaque storage failure.
func NewPersistenceError(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: "persistence_failure", Message: op, Err: err}
}

// Common errors
var (
	ErrTaskNotFound       = NewNotFoundError("task_not_found", "task not found")
	ErrProjectNotFound    = NewNotFoundError("project_not_found", "project not found")
	ErrTimesheetNotFound  = NewNotFoundError("timesheet_not_found", "timesheet line not found")
	ErrCorrectionNotFound = NewNotFoundError("correction_not_found", "timesheet correction request not found")
	ErrAttachmentNotFound = NewNotFoundError("attachment_not_found", "attachment not found")

	ErrEmployeeNotFound   = NewValidationError("employee_not_found", "no employee is linked to the current user")
	ErrMissingDescription = NewValidationError("missing_description", "a description is required to stop the timer")
	ErrIncompleteSubtasks = NewValidationError("incomplete_subtasks", "there are still unfinished subtasks")
	ErrHierarchyCycle     = NewValidationError("hierarchy_cycle", "task hierarchy contains a cycle")
	ErrInvalidTimeRange   = NewValidationError("invalid_time_range", "end time must not be before start time")
	ErrLineNotOnTask      = NewValidationError("timesheet_task_mismatch", "timesheet line does not belong to this task")
	ErrParentProject      = NewValidationError("parent_project_mismatch", "parent task belongs to another project")
	ErrAttachmentTooLarge = NewValidationError("attachment_too_large", "attachment exceeds the size limit")
	ErrInvalidInput       = NewValidationError("invalid_input", "invalid input")

	ErrNoActiveTimer         = NewConflictError("no_active_timer", "no active timer for this task")
	ErrNoPausedTimer         = NewConflictError("no_paused_timer", "no paused timer for this task")
	ErrTimerAlreadyPaused    = NewConflictError("timer_already_paused", "timer is already paused")
	ErrTimerConflict         = NewConflictError("timer_conflict", "an open timer already exists for this task and employee")
	ErrTimesheetOpen         = NewConflictError("timesheet_open", "timesheet line is still running")
	ErrInvalidTaskTransition = NewConflictError("invalid_task_transition", "task cannot move to the requested status")
	ErrCorrectionApproved    = NewConflictError("correction_already_approved", "correction request is already approved")
)

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool  { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool    { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool    { return KindOf(err) == KindConflict }
func IsPersistence(err error) bool { return KindOf(err) == KindPersistence }
