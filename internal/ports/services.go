package ports

import (
	"time"

	"github.com/google/uuid"
	"github.com/taskmaster/tracker/internal/domain/entities"
)

// Request/Response Types

// Project related types
type CreateProjectRequest struct {
	Code          string  `json:"code" validate:"required,max=64"`
	Label         string  `json:"label" validate:"omitempty,max=200"`
	MandaysBudget float64 `json:"mandays_budget" validate:"gte=0"`
}

// UpdateProjectRequest edits a project's plain fields. Nil fields are left
// as they are.
type UpdateProjectRequest struct {
	Label         *string  `json:"label" validate:"omitempty,max=200"`
	MandaysBudget *float64 `json:"mandays_budget" validate:"omitempty,gte=0"`
}

type ProjectFilter struct {
	Status *entities.ProjectStatus
	Search *string
	Limit  int
	Offset int
}

// Task related types
type NewTask struct {
	Title        string     `json:"title" validate:"omitempty,max=500"`
	Description  *string    `json:"description" validate:"omitempty,max=2000"`
	PlannedStart *time.Time `json:"planned_start"`
	PlannedEnd   *time.Time `json:"planned_end"`
}

// CreateTasksRequest creates sibling tasks under one project or parent task.
type CreateTasksRequest struct {
	ProjectID int       `json:"project_id" validate:"required,gt=0"`
	ParentID  *int      `json:"parent_id" validate:"omitempty,gt=0"`
	Tasks     []NewTask `json:"tasks" validate:"required,min=1,dive"`
}

// UpdateTaskRequest edits a task's plain fields. Nil fields are left as
// they are. Name, weight and mandays budget are never touched.
type UpdateTaskRequest struct {
	Title        *string    `json:"title" validate:"omitempty,max=500"`
	Description  *string    `json:"description" validate:"omitempty,max=2000"`
	PlannedStart *time.Time `json:"planned_start"`
	PlannedEnd   *time.Time `json:"planned_end"`
}

type TaskFilter struct {
	ProjectID *int
	ParentID  *int
	TopLevel  bool
	Status    *entities.TaskStatus
	Search    *string
	Limit     int
	Offset    int
}

// TaskAction names a lifecycle transition
type TaskAction string

const (
	TaskActionStartProgress TaskAction = "start_progress"
	TaskActionFinish        TaskAction = "finish"
	TaskActionCancel        TaskAction = "cancel"
	TaskActionSetToDraft    TaskAction = "set_to_draft"
)

// TaskSummary is the per-task overview shown next to the timer
type TaskSummary struct {
	Task                 *entities.Task `json:"task"`
	SubtaskCount         int            `json:"subtask_count"`
	SubtaskDonePercent   float64        `json:"subtask_done_percent"`
	TimesheetCount       int            `json:"timesheet_count"`
	TimesheetApprovedPct float64        `json:"timesheet_approved_percent"`
	TimerStart           *time.Time     `json:"timer_start,omitempty"`
	TimerPaused          bool           `json:"timer_paused"`
	RunningDuration      string         `json:"running_duration"`
}

// Timer related types
type TimerAction string

const (
	TimerStarted        TimerAction = "started"
	TimerResumed        TimerAction = "resumed"
	TimerAlreadyRunning TimerAction = "already_running"
	TimerPaused         TimerAction = "paused"
	TimerStopped        TimerAction = "stopped"
)

type TimerResult struct {
	Action      TimerAction             `json:"action"`
	Line        *entities.TimesheetLine `json:"line"`
	StartedAt   time.Time               `json:"started_at"`
	Hours       float64                 `json:"hours"`
	Attachments int                     `json:"attachments"`
}

type StopTimerRequest struct {
	TaskID      int
	UserID      uuid.UUID
	Description string
	Uploads     []Upload
}

type TimerStatus struct {
	Running         bool                    `json:"running"`
	Paused          bool                    `json:"paused"`
	Line            *entities.TimesheetLine `json:"line,omitempty"`
	RunningDuration string                  `json:"running_duration"`
}

// Timesheet related types
type SaveTimesheetRequest struct {
	ID          *int      `json:"id" validate:"omitempty,gt=0"`
	TaskID      int       `json:"task_id" validate:"required,gt=0"`
	UserID      uuid.UUID `json:"-"`
	EmployeeID  *int      `json:"employee_id" validate:"omitempty,gt=0"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required"`
	Hours       *float64  `json:"hours" validate:"omitempty,gte=0"`
	Description string    `json:"description" validate:"required,max=2000"`
}

type CorrectionRequestInput struct {
	LineID      int       `json:"line_id" validate:"required,gt=0"`
	UserID      uuid.UUID `json:"-"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required"`
	Description string    `json:"description" validate:"required,max=2000"`
}

// Employee and auth types
type CreateEmployeeRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name" validate:"required,max=200"`
}

type TokenResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	ExpiresIn   int64              `json:"expires_in"`
	Employee    *entities.Employee `json:"employee"`
}
