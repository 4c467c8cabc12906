package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/infrastructure/metrics"
	"github.com/taskmaster/tracker/internal/ports"
)

// TimerService runs the per-employee task timer
type TimerService struct {
	taskRepo    ports.TaskRepository
	lineRepo    ports.TimesheetRepository
	employees   ports.EmployeeResolver
	attachments ports.AttachmentStore
	audit       ports.AuditSink
	hierarchy   *HierarchyService
	clock       ports.Clock
	metrics     *metrics.Timer
	cfg         config.TimerConfig
	logger      *logger.Logger
	locker      ports.TimerLocker
}

// NewTimerService creates a new timer service. m may be nil.
func NewTimerService(
	taskRepo ports.TaskRepository,
	lineRepo ports.TimesheetRepository,
	employees ports.EmployeeResolver,
	attachments ports.AttachmentStore,
	audit ports.AuditSink,
	hierarchy *HierarchyService,
	clock ports.Clock,
	m *metrics.Timer,
	cfg config.TimerConfig,
	logger *logger.Logger,
) *TimerService {
	return &TimerService{
		taskRepo:    taskRepo,
		lineRepo:    lineRepo,
		employees:   employees,
		attachments: attachments,
		audit:       audit,
		hierarchy:   hierarchy,
		clock:       clock,
		metrics:     m,
		cfg:         cfg,
		logger:      logger.WithComponent("timer"),
		locker:      &pairLocks{},
	}
}

// UseLocker replaces the in-process pair lock, typically with one shared
// between instances.
func (s *TimerService) UseLocker(l ports.TimerLocker) {
	s.locker = l
}

// Start opens a timer for the acting user. A paused timer is resumed and a
// running one is returned unchanged, both with their original start.
func (s *TimerService) Start(ctx context.Context, taskID int, userID uuid.UUID) (*ports.TimerResult, error) {
	task, employee, err := s.resolve(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, task.ID, employee.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock timer: %w", err)
	}
	defer unlock()

	line, err := s.openLine(ctx, task.ID, employee.ID)
	if err != nil {
		return nil, err
	}
	if line != nil {
		if line.IsPaused {
			return s.resumeLine(ctx, task, line)
		}
		s.metrics.Transition(string(ports.TimerAlreadyRunning))
		return &ports.TimerResult{Action: ports.TimerAlreadyRunning, Line: line, StartedAt: line.Start}, nil
	}

	line = &entities.TimesheetLine{
		TaskID:      task.ID,
		EmployeeID:  employee.ID,
		Start:       s.clock.Now(),
		State:       entities.LineStateWaitingApproval,
		PauseEvents: entities.PauseEvents{},
	}
	if err := s.lineRepo.Create(ctx, line); err != nil {
		// Another process won the race for this pair.
		if errors.Is(err, entities.ErrTimerConflict) {
			existing, ferr := s.openLine(ctx, task.ID, employee.ID)
			if ferr == nil && existing != nil {
				s.metrics.Transition(string(ports.TimerAlreadyRunning))
				return &ports.TimerResult{Action: ports.TimerAlreadyRunning, Line: existing, StartedAt: existing.Start}, nil
			}
		}
		return nil, fmt.Errorf("failed to start timer: %w", err)
	}

	if err := s.markInProgress(ctx, task); err != nil {
		s.logger.WithLine(line.ID, task.ID, employee.ID).Warnw("Timer started but task status not updated", "error", err)
	}

	s.metrics.Transition(string(ports.TimerStarted))
	s.logger.WithLine(line.ID, task.ID, employee.ID).Infow("Timer started", "start", line.Start)

	return &ports.TimerResult{Action: ports.TimerStarted, Line: line, StartedAt: line.Start}, nil
}

// Pause suspends the acting user's running timer
func (s *TimerService) Pause(ctx context.Context, taskID int, userID uuid.UUID) (*ports.TimerResult, error) {
	task, employee, err := s.resolve(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, task.ID, employee.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock timer: %w", err)
	}
	defer unlock()

	line, err := s.openLine(ctx, task.ID, employee.ID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, entities.ErrNoActiveTimer
	}

	if err := line.Pause(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.lineRepo.Update(ctx, line); err != nil {
		return nil, fmt.Errorf("failed to pause timer: %w", err)
	}

	s.metrics.Transition(string(ports.TimerPaused))
	s.logger.WithLine(line.ID, task.ID, employee.ID).Infow("Timer paused", "hours_so_far", line.UnitAmount)

	return &ports.TimerResult{Action: ports.TimerPaused, Line: line, StartedAt: line.Start, Hours: line.UnitAmount}, nil
}

// Resume restarts the acting user's paused timer
func (s *TimerService) Resume(ctx context.Context, taskID int, userID uuid.UUID) (*ports.TimerResult, error) {
	task, employee, err := s.resolve(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, task.ID, employee.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock timer: %w", err)
	}
	defer unlock()

	line, err := s.openLine(ctx, task.ID, employee.ID)
	if err != nil {
		return nil, err
	}
	if line == nil || !line.IsPaused {
		return nil, entities.ErrNoPausedTimer
	}

	return s.resumeLine(ctx, task, line)
}

func (s *TimerService) resumeLine(ctx context.Context, task *entities.Task, line *entities.TimesheetLine) (*ports.TimerResult, error) {
	pausedFor, err := line.Resume(s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.lineRepo.Update(ctx, line); err != nil {
		return nil, fmt.Errorf("failed to resume timer: %w", err)
	}
	if err := s.markInProgress(ctx, task); err != nil {
		s.logger.WithLine(line.ID, task.ID, line.EmployeeID).Warnw("Timer resumed but task status not updated", "error", err)
	}

	s.metrics.Transition(string(ports.TimerResumed))
	s.logger.WithLine(line.ID, task.ID, line.EmployeeID).Infow("Timer resumed", "paused_seconds", pausedFor.Seconds())

	return &ports.TimerResult{Action: ports.TimerResumed, Line: line, StartedAt: line.Start}, nil
}

// Stop closes the acting user's timer with a description. Uploads that
// cannot be stored are logged and skipped.
func (s *TimerService) Stop(ctx context.Context, req ports.StopTimerRequest) (*ports.TimerResult, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, entities.ErrMissingDescription
	}
	if s.cfg.MaxAttachments > 0 && len(req.Uploads) > s.cfg.MaxAttachments {
		return nil, entities.ErrInvalidInput.Withf("at most %d attachments are allowed", s.cfg.MaxAttachments)
	}

	task, employee, err := s.resolve(ctx, req.TaskID, req.UserID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, task.ID, employee.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock timer: %w", err)
	}
	defer unlock()

	line, err := s.openLine(ctx, task.ID, employee.ID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, entities.ErrNoActiveTimer
	}

	state := entities.LineStateWaitingApproval
	if s.cfg.AutoApprove {
		state = entities.LineStateApproved
	}
	if err := line.Close(s.clock.Now(), description, state); err != nil {
		return nil, err
	}
	if err := s.lineRepo.Update(ctx, line); err != nil {
		return nil, fmt.Errorf("failed to stop timer: %w", err)
	}

	stored := s.storeUploads(ctx, line, req.Uploads)

	// The line is closed at this point. A failed rollup is repaired by the
	// next refresh of the project.
	if _, err := s.hierarchy.RefreshProject(ctx, task.ProjectID); err != nil {
		s.logger.WithLine(line.ID, task.ID, employee.ID).Warnw("Timer stopped but project rollup failed", "error", err)
	}

	s.metrics.Transition(string(ports.TimerStopped))
	s.metrics.Stopped(line.UnitAmount)
	s.logger.WithLine(line.ID, task.ID, employee.ID).Infow("Timer stopped",
		"hours", line.UnitAmount,
		"state", line.State,
		"attachments", stored,
	)

	return &ports.TimerResult{
		Action:      ports.TimerStopped,
		Line:        line,
		StartedAt:   line.Start,
		Hours:       line.UnitAmount,
		Attachments: stored,
	}, nil
}

func (s *TimerService) storeUploads(ctx context.Context, line *entities.TimesheetLine, uploads []ports.Upload) int {
	if len(uploads) == 0 || s.attachments == nil {
		return 0
	}

	ids := make([]uuid.UUID, 0, len(uploads))
	for _, upload := range uploads {
		id, err := s.attachments.Save(ctx, upload)
		if err != nil {
			s.metrics.AttachmentFailed()
			s.logger.Warnw("Failed to store timer attachment",
				"line_id", line.ID,
				"file", upload.Name,
				"error", err,
			)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0
	}

	note := &entities.AuditNote{
		Model:         entities.ModelTimesheetLine,
		ResID:         line.ID,
		Body:          fmt.Sprintf("Timer stopped with %d attachment(s)", len(ids)),
		AttachmentIDs: ids,
	}
	if err := s.audit.Post(ctx, note); err != nil {
		s.logger.Warnw("Failed to post attachment note", "line_id", line.ID, "error", err)
	}
	return len(ids)
}

// Status reports the acting user's open timer on a task, if any
func (s *TimerService) Status(ctx context.Context, taskID int, userID uuid.UUID) (*ports.TimerStatus, error) {
	task, employee, err := s.resolve(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	line, err := s.openLine(ctx, task.ID, employee.ID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return &ports.TimerStatus{RunningDuration: entities.FormatClock(0)}, nil
	}

	return &ports.TimerStatus{
		Running:         !line.IsPaused,
		Paused:          line.IsPaused,
		Line:            line,
		RunningDuration: entities.FormatClock(line.Elapsed(s.clock.Now())),
	}, nil
}

func (s *TimerService) resolve(ctx context.Context, taskID int, userID uuid.UUID) (*entities.Task, *entities.Employee, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, fmt.Errorf("task not found: %w", err)
	}

	employee, err := s.employees.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve employee: %w", err)
	}
	if employee == nil {
		return nil, nil, entities.ErrEmployeeNotFound
	}

	return task, employee, nil
}

// openLine returns the newest open line of the pair, or nil.
func (s *TimerService) openLine(ctx context.Context, taskID, employeeID int) (*entities.TimesheetLine, error) {
	lines, err := s.lineRepo.Search(ctx, ports.Where(
		ports.Eq(ports.FieldTaskID, taskID),
		ports.Eq(ports.FieldEmployeeID, employeeID),
		ports.IsNull(ports.FieldEnd),
	).OrderBy(ports.FieldStart, true).Page(1, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to look up open timesheet: %w", err)
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return lines[0], nil
}

func (s *TimerService) markInProgress(ctx context.Context, task *entities.Task) error {
	if task.Status != entities.TaskStatusNew {
		return nil
	}
	if err := task.StartProgress(); err != nil {
		return err
	}
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	s.logger.Debugw("Task moved to in progress by timer", "task_id", task.ID)
	return nil
}
