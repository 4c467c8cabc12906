package entities

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Enums and types
type TaskStatus string

const (
	TaskStatusNew        TaskStatus = "new"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusApproved1  TaskStatus = "approved1"
	TaskStatusApproved2  TaskStatus = "approved2"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusReject     TaskStatus = "reject"
	TaskStatusCancel     TaskStatus = "cancel"
)

type LineState string

const (
	LineStateWaitingApproval LineState = "waiting_approval"
	LineStateApproved        LineState = "approved"
)

// Audit note targets
const (
	ModelTask          = "task"
	ModelTimesheetLine = "timesheet_line"
	ModelProject       = "project"
)

const pauseLogLayout = "2006-01-02 15:04:05"

// Employee is the worker a timesheet line is attributed to.
type Employee struct {
	ID        int       `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Task represents a node of the project work breakdown
type Task struct {
	ID            int        `json:"id" db:"id"`
	ProjectID     int        `json:"project_id" db:"project_id"`
	ParentID      *int       `json:"parent_id" db:"parent_id"`
	Name          string     `json:"name" db:"name"`
	Title         string     `json:"title" db:"title"`
	Description   *string    `json:"description" db:"description"`
	Status        TaskStatus `json:"status" db:"status"`
	Weight        float64    `json:"weight" db:"weight"`
	MandaysBudget float64    `json:"mandays_budget" db:"mandays_budget"`
	ActualMandays int        `json:"actual_mandays" db:"actual_mandays"`
	Progress      float64    `json:"progress" db:"progress"`
	PlannedStart  *time.Time `json:"planned_start" db:"planned_start"`
	PlannedEnd    *time.Time `json:"planned_end" db:"planned_end"`
	ActualStart   *time.Time `json:"actual_start" db:"actual_start"`
	ActualEnd     *time.Time `json:"actual_end" db:"actual_end"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// TimesheetLine is one tracked work interval for a (task, employee) pair.
type TimesheetLine struct {
	ID            int         `json:"id" db:"id"`
	TaskID        int         `json:"task_id" db:"task_id"`
	EmployeeID    int         `json:"employee_id" db:"employee_id"`
	Start         time.Time   `json:"start" db:"start_time"`
	End           *time.Time  `json:"end" db:"end_time"`
	UnitAmount    float64     `json:"unit_amount" db:"unit_amount"`
	IsPaused      bool        `json:"is_paused" db:"is_paused"`
	PauseStart    *time.Time  `json:"pause_start" db:"pause_start"`
	PausedSeconds float64     `json:"paused_seconds" db:"paused_seconds"`
	PauseEvents   PauseEvents `json:"pause_events" db:"pause_events"`
	PauseLog      string      `json:"pause_log" db:"pause_log"`
	Description   string      `json:"description" db:"description"`
	State         LineState   `json:"state" db:"state"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// CorrectionRequest asks to replace the recorded interval of a closed line.
type CorrectionRequest struct {
	ID             int       `json:"id" db:"id"`
	LineID         int       `json:"line_id" db:"line_id"`
	EmployeeID     int       `json:"employee_id" db:"employee_id"`
	Description    string    `json:"description" db:"description"`
	CurrentStart   time.Time `json:"current_start" db:"current_start"`
	CurrentEnd     time.Time `json:"current_end" db:"current_end"`
	RequestedStart time.Time `json:"requested_start" db:"requested_start"`
	RequestedEnd   time.Time `json:"requested_end" db:"requested_end"`
	Hours          float64   `json:"hours" db:"hours"`
	State          LineState `json:"state" db:"state"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// AuditNote is a human-readable entry in an entity's activity log.
type AuditNote struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	Model         string      `json:"model" db:"model"`
	ResID         int         `json:"res_id" db:"res_id"`
	Body          string      `json:"body" db:"body"`
	AttachmentIDs []uuid.UUID `json:"attachment_ids" db:"-"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// Attachment is a stored upload.
type Attachment struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	Checksum    string    `json:"checksum" db:"checksum"`
	Data        []byte    `json:"-" db:"data"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewAttachment builds an attachment with a fresh id and a BLAKE2b-256 content checksum.
func NewAttachment(name, contentType string, data []byte, now time.Time) *Attachment {
	sum := blake2b.Sum256(data)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Attachment{
		ID:          uuid.New(),
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Checksum:    hex.EncodeToString(sum[:]),
		Data:        data,
		CreatedAt:   now,
	}
}

// Business logic methods for Task
func (t *Task) IsTopLevel() bool {
	return t.ParentID == nil
}

func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

func (t *Task) DisplayName() string {
	if t.Title == "" {
		return t.Name
	}
	return fmt.Sprintf("%s %s", t.Name, t.Title)
}

// StartProgress moves a new task into progress.
func (t *Task) StartProgress() error {
	if t.Status != TaskStatusNew {
		return ErrInvalidTaskTransition.Withf("cannot start task in status %s", t.Status)
	}
	t.Status = TaskStatusInProgress
	return nil
}

// Finish marks the task done. Every direct child must already be done.
func (t *Task) Finish(children []*Task) error {
	switch t.Status {
	case TaskStatusInProgress, TaskStatusApproved1, TaskStatusApproved2:
	default:
		return ErrInvalidTaskTransition.Withf("cannot finish task in status %s", t.Status)
	}
	for _, child := range children {
		if !child.IsDone() {
			return ErrIncompleteSubtasks
		}
	}
	t.Status = TaskStatusDone
	return nil
}

// IsTerminal reports whether only set_to_draft can move the task on.
// A rejected task is still open for cancellation.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusDone || t.Status == TaskStatusCancel
}

func (t *Task) Cancel() error {
	if t.IsTerminal() {
		return ErrInvalidTaskTransition.Withf("cannot cancel task in status %s", t.Status)
	}
	t.Status = TaskStatusCancel
	return nil
}

func (t *Task) SetToDraft() error {
	if !t.IsTerminal() {
		return ErrInvalidTaskTransition.Withf("cannot reset task in status %s", t.Status)
	}
	t.Status = TaskStatusNew
	return nil
}

// Business logic methods for TimesheetLine
func (l *TimesheetLine) IsOpen() bool {
	return l.End == nil
}

func (l *TimesheetLine) IsClosed() bool {
	return l.End != nil
}

// Elapsed is the worked time so far, or the final worked time once closed.
func (l *TimesheetLine) Elapsed(now time.Time) time.Duration {
	end := now
	if l.End != nil {
		end = *l.End
	}
	return ActiveDuration(l.Start, &end, l.PauseEvents)
}

// Pause suspends a running line and snapshots the hours worked so far.
func (l *TimesheetLine) Pause(now time.Time) error {
	if !l.IsOpen() {
		return ErrNoActiveTimer
	}
	if l.IsPaused {
		return ErrTimerAlreadyPaused
	}
	l.IsPaused = true
	l.PauseStart = &now
	l.PauseEvents = append(l.PauseEvents, PauseEvent{Kind: PauseEventPause, At: now})
	l.PauseLog += fmt.Sprintf("Paused at %s\n", now.Format(pauseLogLayout))
	l.UnitAmount = RoundHours(ActiveHours(l.Start, &now, l.PauseEvents))
	return nil
}

// Resume restarts a paused line and returns how long it was paused.
func (l *TimesheetLine) Resume(now time.Time) (time.Duration, error) {
	if !l.IsOpen() || !l.IsPaused {
		return 0, ErrNoPausedTimer
	}
	pausedFor := l.closePause(now)
	l.PauseEvents = append(l.PauseEvents, PauseEvent{Kind: PauseEventResume, At: now})
	l.PauseLog += fmt.Sprintf("Resumed at %s (paused for %.1fs)\n", now.Format(pauseLogLayout), pausedFor.Seconds())
	return pausedFor, nil
}

// Close ends the line at now. A pending pause is folded into the paused total
// and the trailing pause event stays unresolved, so it adds no worked time.
func (l *TimesheetLine) Close(now time.Time, description string, state LineState) error {
	if !l.IsOpen() {
		return ErrNoActiveTimer
	}
	if l.IsPaused {
		l.closePause(now)
		l.PauseLog += fmt.Sprintf("Stopped while paused at %s\n", now.Format(pauseLogLayout))
	}
	l.End = &now
	l.Description = description
	l.State = state
	l.UnitAmount = RoundHours(ActiveHours(l.Start, l.End, l.PauseEvents))
	return nil
}

func (l *TimesheetLine) closePause(now time.Time) time.Duration {
	var pausedFor time.Duration
	if l.PauseStart != nil {
		pausedFor = now.Sub(*l.PauseStart)
		if pausedFor < 0 {
			pausedFor = 0
		}
	}
	l.PausedSeconds += pausedFor.Seconds()
	l.IsPaused = false
	l.PauseStart = nil
	return pausedFor
}

// Business logic methods for CorrectionRequest
func (r *CorrectionRequest) IsApproved() bool {
	return r.State == LineStateApproved
}

// ApplyTo writes the requested interval onto the line.
func (r *CorrectionRequest) ApplyTo(line *TimesheetLine) {
	start, end := r.RequestedStart, r.RequestedEnd
	line.Start = start
	line.End = &end
	line.PauseEvents = PauseEvents{}
	line.PausedSeconds = 0
	line.UnitAmount = RoundHours(r.Hours)
	if desc := strings.TrimSpace(r.Description); desc != "" {
		line.Description = desc
	}
}
