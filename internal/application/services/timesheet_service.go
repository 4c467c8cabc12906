package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// TimesheetService handles manual timesheet entries and their corrections
type TimesheetService struct {
	taskRepo       ports.TaskRepository
	lineRepo       ports.TimesheetRepository
	correctionRepo ports.CorrectionRepository
	employees      ports.EmployeeRepository
	audit          ports.AuditSink
	hierarchy      *HierarchyService
	cfg            config.TimerConfig
	logger         *logger.Logger
}

// NewTimesheetService creates a new timesheet service
func NewTimesheetService(
	taskRepo ports.TaskRepository,
	lineRepo ports.TimesheetRepository,
	correctionRepo ports.CorrectionRepository,
	employees ports.EmployeeRepository,
	audit ports.AuditSink,
	hierarchy *HierarchyService,
	cfg config.TimerConfig,
	logger *logger.Logger,
) *TimesheetService {
	return &TimesheetService{
		taskRepo:       taskRepo,
		lineRepo:       lineRepo,
		correctionRepo: correctionRepo,
		employees:      employees,
		audit:          audit,
		hierarchy:      hierarchy,
		cfg:            cfg,
		logger:         logger.WithComponent("timesheet"),
	}
}

// SaveLine creates or rewrites a closed timesheet line. Hours default to the
// length of the interval.
func (s *TimesheetService) SaveLine(ctx context.Context, req ports.SaveTimesheetRequest) (*entities.TimesheetLine, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.End.Before(req.Start) {
		return nil, entities.ErrInvalidTimeRange
	}

	task, err := s.taskRepo.GetByID(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	employee, err := s.employeeFor(ctx, req.EmployeeID, req.UserID)
	if err != nil {
		return nil, err
	}

	hours := entities.ActiveHours(req.Start, &req.End, nil)
	if req.Hours != nil {
		hours = *req.Hours
	}

	var line *entities.TimesheetLine
	if req.ID != nil {
		line, err = s.lineRepo.GetByID(ctx, *req.ID)
		if err != nil {
			return nil, fmt.Errorf("timesheet not found: %w", err)
		}
		if line.TaskID != task.ID {
			return nil, entities.ErrLineNotOnTask
		}
		if line.IsOpen() {
			return nil, entities.ErrTimesheetOpen
		}
	} else {
		line = &entities.TimesheetLine{
			TaskID: task.ID,
			State:  entities.LineStateWaitingApproval,
		}
		if s.cfg.AutoApprove {
			line.State = entities.LineStateApproved
		}
	}

	end := req.End
	line.EmployeeID = employee.ID
	line.Start = req.Start
	line.End = &end
	line.UnitAmount = entities.RoundHours(hours)
	line.Description = req.Description
	line.PauseEvents = entities.PauseEvents{}
	line.PausedSeconds = 0

	if line.ID == 0 {
		err = s.lineRepo.Create(ctx, line)
	} else {
		err = s.lineRepo.Update(ctx, line)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save timesheet: %w", err)
	}

	s.logger.Infow("Timesheet saved",
		"line_id", line.ID,
		"task_id", task.ID,
		"employee_id", employee.ID,
		"hours", line.UnitAmount,
	)

	if _, err := s.hierarchy.RefreshProject(ctx, task.ProjectID); err != nil {
		return nil, err
	}

	return line, nil
}

// ListLines lists a task's timesheet lines, newest first
func (s *TimesheetService) ListLines(ctx context.Context, taskID int) ([]*entities.TimesheetLine, error) {
	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	lines, err := s.lineRepo.Search(ctx, ports.Where(ports.Eq(ports.FieldTaskID, taskID)).
		OrderBy(ports.FieldStart, true).
		OrderBy(ports.FieldID, true))
	if err != nil {
		return nil, fmt.Errorf("failed to list timesheets: %w", err)
	}

	return lines, nil
}

// DeleteLine removes a line from a task
func (s *TimesheetService) DeleteLine(ctx context.Context, taskID, lineID int) error {
	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return fmt.Errorf("timesheet not found: %w", err)
	}
	if line.TaskID != taskID {
		return entities.ErrLineNotOnTask
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("task not found: %w", err)
	}

	if err := s.lineRepo.Delete(ctx, lineID); err != nil {
		return fmt.Errorf("failed to delete timesheet: %w", err)
	}

	s.logger.Infow("Timesheet deleted", "line_id", lineID, "task_id", taskID)

	if _, err := s.hierarchy.RefreshProject(ctx, task.ProjectID); err != nil {
		return err
	}

	return nil
}

// ApproveLine approves a closed line. Approving twice is a no-op.
func (s *TimesheetService) ApproveLine(ctx context.Context, lineID int, userID uuid.UUID) (*entities.TimesheetLine, error) {
	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("timesheet not found: %w", err)
	}
	if line.IsOpen() {
		return nil, entities.ErrTimesheetOpen
	}
	if line.State == entities.LineStateApproved {
		return line, nil
	}

	line.State = entities.LineStateApproved
	if err := s.lineRepo.Update(ctx, line); err != nil {
		return nil, fmt.Errorf("failed to approve timesheet: %w", err)
	}

	s.logger.LogUserAction(userID.String(), "approve_timesheet", map[string]interface{}{
		"line_id": line.ID,
		"task_id": line.TaskID,
	})

	return line, nil
}

// RequestCorrection files a request to change the interval of a closed line
func (s *TimesheetService) RequestCorrection(ctx context.Context, in ports.CorrectionRequestInput) (*entities.CorrectionRequest, error) {
	if err := validateRequest(in); err != nil {
		return nil, err
	}
	if in.End.Before(in.Start) {
		return nil, entities.ErrInvalidTimeRange
	}

	line, err := s.lineRepo.GetByID(ctx, in.LineID)
	if err != nil {
		return nil, fmt.Errorf("timesheet not found: %w", err)
	}
	if line.IsOpen() {
		return nil, entities.ErrTimesheetOpen
	}

	employee, err := s.employeeFor(ctx, nil, in.UserID)
	if err != nil {
		return nil, err
	}

	req := &entities.CorrectionRequest{
		LineID:         line.ID,
		EmployeeID:     employee.ID,
		Description:    in.Description,
		CurrentStart:   line.Start,
		CurrentEnd:     *line.End,
		RequestedStart: in.Start,
		RequestedEnd:   in.End,
		Hours:          entities.RoundHours(entities.ActiveHours(in.Start, &in.End, nil)),
		State:          entities.LineStateWaitingApproval,
	}
	if err := s.correctionRepo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create correction request: %w", err)
	}

	s.postNote(ctx, line.ID, fmt.Sprintf("Correction requested: %s - %s",
		in.Start.Format("2006-01-02 15:04"), in.End.Format("2006-01-02 15:04")))

	s.logger.Infow("Timesheet correction requested",
		"correction_id", req.ID,
		"line_id", line.ID,
		"employee_id", employee.ID,
		"hours", req.Hours,
	)

	return req, nil
}

// ListCorrections lists the correction requests filed against a line
func (s *TimesheetService) ListCorrections(ctx context.Context, lineID int) ([]*entities.CorrectionRequest, error) {
	if _, err := s.lineRepo.GetByID(ctx, lineID); err != nil {
		return nil, fmt.Errorf("timesheet not found: %w", err)
	}

	reqs, err := s.correctionRepo.Search(ctx, ports.Where(ports.Eq(ports.FieldLineID, lineID)).
		OrderBy(ports.FieldCreatedAt, true).
		OrderBy(ports.FieldID, true))
	if err != nil {
		return nil, fmt.Errorf("failed to list correction requests: %w", err)
	}

	return reqs, nil
}

// ApproveCorrection writes the requested interval onto the line
func (s *TimesheetService) ApproveCorrection(ctx context.Context, id int, userID uuid.UUID) (*entities.CorrectionRequest, error) {
	req, err := s.correctionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("correction request not found: %w", err)
	}
	if req.IsApproved() {
		return nil, entities.ErrCorrectionApproved
	}

	line, err := s.lineRepo.GetByID(ctx, req.LineID)
	if err != nil {
		return nil, fmt.Errorf("timesheet not found: %w", err)
	}
	task, err := s.taskRepo.GetByID(ctx, line.TaskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	req.ApplyTo(line)
	if err := s.lineRepo.Update(ctx, line); err != nil {
		return nil, fmt.Errorf("failed to apply correction: %w", err)
	}

	req.State = entities.LineStateApproved
	if err := s.correctionRepo.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to approve correction request: %w", err)
	}

	s.postNote(ctx, line.ID, fmt.Sprintf("Correction approved: %.2f hours", line.UnitAmount))
	s.logger.LogUserAction(userID.String(), "approve_correction", map[string]interface{}{
		"correction_id": req.ID,
		"line_id":       line.ID,
		"hours":         line.UnitAmount,
	})

	if _, err := s.hierarchy.RefreshProject(ctx, task.ProjectID); err != nil {
		return nil, err
	}

	return req, nil
}

func (s *TimesheetService) employeeFor(ctx context.Context, employeeID *int, userID uuid.UUID) (*entities.Employee, error) {
	if employeeID != nil {
		employee, err := s.employees.GetByID(ctx, *employeeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load employee: %w", err)
		}
		return employee, nil
	}

	employee, err := s.employees.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve employee: %w", err)
	}
	if employee == nil {
		return nil, entities.ErrEmployeeNotFound
	}
	return employee, nil
}

func (s *TimesheetService) postNote(ctx context.Context, lineID int, body string) {
	note := &entities.AuditNote{Model: entities.ModelTimesheetLine, ResID: lineID, Body: body}
	if err := s.audit.Post(ctx, note); err != nil {
		s.logger.Warnw("Failed to post timesheet note", "line_id", lineID, "error", err)
	}
}
