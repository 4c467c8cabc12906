package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskmaster/tracker/internal/domain/entities"
)

// Rollup holds the derived figures of a task subtree or a whole project
type Rollup struct {
	Progress      float64
	ActualMandays int
	ActualStart   *time.Time
	ActualEnd     *time.Time
}

// TaskRepository defines the interface for task data operations
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetByID(ctx context.Context, id int) (*entities.Task, error)
	Update(ctx context.Context, task *entities.Task) error
	Delete(ctx context.Context, id int) error
	Search(ctx context.Context, q Query) ([]*entities.Task, error)
	// UpdateRollup writes only the derived columns
	UpdateRollup(ctx context.Context, id int, r Rollup) error
}

// TimesheetRepository defines the interface for timesheet line data operations.
// Create fails with entities.ErrTimerConflict when a second open line would
// exist for the same task and employee.
type TimesheetRepository interface {
	Create(ctx context.Context, line *entities.TimesheetLine) error
	GetByID(ctx context.Context, id int) (*entities.TimesheetLine, error)
	Update(ctx context.Context, line *entities.TimesheetLine) error
	Delete(ctx context.Context, id int) error
	Search(ctx context.Context, q Query) ([]*entities.TimesheetLine, error)
}

// ProjectRepository defines the interface for project data operations
type ProjectRepository interface {
	Create(ctx context.Context, project *entities.Project) error
	GetByID(ctx context.Context, id int) (*entities.Project, error)
	Update(ctx context.Context, project *entities.Project) error
	Delete(ctx context.Context, id int) error
	Search(ctx context.Context, q Query) ([]*entities.Project, error)
	UpdateRollup(ctx context.Context, id int, r Rollup) error
}

// CorrectionRepository stores timesheet correction requests
type CorrectionRepository interface {
	Create(ctx context.Context, req *entities.CorrectionRequest) error
	GetByID(ctx context.Context, id int) (*entities.CorrectionRequest, error)
	Update(ctx context.Context, req *entities.CorrectionRequest) error
	Delete(ctx context.Context, id int) error
	Search(ctx context.Context, q Query) ([]*entities.CorrectionRequest, error)
}

// EmployeeResolver maps an acting user to their employee record. It returns
// (nil, nil) when the user has no employee.
type EmployeeResolver interface {
	EmployeeByUser(ctx context.Context, userID uuid.UUID) (*entities.Employee, error)
}

// EmployeeRepository is the employee directory backing EmployeeResolver.
type EmployeeRepository interface {
	EmployeeResolver
	Create(ctx context.Context, employee *entities.Employee) error
	GetByID(ctx context.Context, id int) (*entities.Employee, error)
}

// AuditSink appends notes to an entity's activity log
type AuditSink interface {
	Post(ctx context.Context, note *entities.AuditNote) error
}

// AuditRepository is an AuditSink that can also read the log back.
type AuditRepository interface {
	AuditSink
	List(ctx context.Context, model string, resID int) ([]*entities.AuditNote, error)
}

// Upload is a file received from a client
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// AttachmentStore persists uploads and returns their identifier
type AttachmentStore interface {
	Save(ctx context.Context, upload Upload) (uuid.UUID, error)
}

// AttachmentRepository is an AttachmentStore that can also serve stored files.
type AttachmentRepository interface {
	AttachmentStore
	Get(ctx context.Context, id uuid.UUID) (*entities.Attachment, error)
}

// TimerLocker serialises timer operations on one task and employee pair.
// The returned func releases the lock.
type TimerLocker interface {
	Lock(ctx context.Context, taskID, employeeID int) (func(), error)
}
