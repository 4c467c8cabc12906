package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// TaskService handles task-related operations
type TaskService struct {
	taskRepo    ports.TaskRepository
	lineRepo    ports.TimesheetRepository
	projectRepo ports.ProjectRepository
	employees   ports.EmployeeResolver
	audit       ports.AuditRepository
	hierarchy   *HierarchyService
	namer       *SequenceNamer
	clock       ports.Clock
	logger      *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(
	taskRepo ports.TaskRepository,
	lineRepo ports.TimesheetRepository,
	projectRepo ports.ProjectRepository,
	employees ports.EmployeeResolver,
	audit ports.AuditRepository,
	hierarchy *HierarchyService,
	clock ports.Clock,
	logger *logger.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		lineRepo:    lineRepo,
		projectRepo: projectRepo,
		employees:   employees,
		audit:       audit,
		hierarchy:   hierarchy,
		namer:       NewSequenceNamer(taskRepo),
		clock:       clock,
		logger:      logger,
	}
}

// CreateTask creates a single task under a project or parent task
func (s *TaskService) CreateTask(ctx context.Context, projectID int, parentID *int, task ports.NewTask) (*entities.Task, error) {
	created, err := s.CreateTasks(ctx, ports.CreateTasksRequest{
		ProjectID: projectID,
		ParentID:  parentID,
		Tasks:     []ports.NewTask{task},
	})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// CreateTasks creates sibling tasks in one batch. Each task is named after
// the highest existing sibling. Once all are stored, every new task gets an
// even share of the parent's (or project's) weight and mandays computed
// against the resulting sibling count. Existing siblings keep their shares.
func (s *TaskService) CreateTasks(ctx context.Context, req ports.CreateTasksRequest) ([]*entities.Task, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	var parent *entities.Task
	if req.ParentID != nil {
		parent, err = s.taskRepo.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parent task not found: %w", err)
		}
		if parent.ProjectID != project.ID {
			return nil, entities.ErrParentProject
		}
	}

	created := make([]*entities.Task, 0, len(req.Tasks))
	for _, nt := range req.Tasks {
		name, missing, err := s.namer.Next(ctx, project.ID, parent)
		if err != nil {
			return nil, err
		}
		if missing != nil {
			s.logger.Debugw("Task sequence has a gap", "project_id", project.ID, "name", name, "missing", *missing)
		}

		task := &entities.Task{
			ProjectID:    project.ID,
			ParentID:     req.ParentID,
			Name:         name,
			Title:        nt.Title,
			Description:  nt.Description,
			Status:       entities.TaskStatusNew,
			PlannedStart: nt.PlannedStart,
			PlannedEnd:   nt.PlannedEnd,
		}
		if err := s.taskRepo.Create(ctx, task); err != nil {
			return nil, fmt.Errorf("failed to create task: %w", err)
		}
		created = append(created, task)
	}

	siblings, err := s.taskRepo.Search(ctx, siblingQuery(project.ID, req.ParentID))
	if err != nil {
		return nil, fmt.Errorf("failed to count sibling tasks: %w", err)
	}

	weightBase, mandaysBase := 100.0, project.MandaysBudget
	if parent != nil {
		weightBase, mandaysBase = parent.Weight, parent.MandaysBudget
	}
	for _, task := range created {
		task.Weight = ShareOf(weightBase, len(siblings))
		task.MandaysBudget = ShareOf(mandaysBase, len(siblings))
		if err := s.taskRepo.Update(ctx, task); err != nil {
			return nil, fmt.Errorf("failed to allocate task budget: %w", err)
		}

		if parent != nil {
			s.postNote(ctx, entities.ModelTask, parent.ID, fmt.Sprintf("Subtask %s created under %s", task.Name, parent.Name))
		}
		s.logger.Infow("Task created successfully",
			"task_id", task.ID,
			"name", task.Name,
			"project_id", task.ProjectID,
			"weight", task.Weight,
			"mandays_budget", task.MandaysBudget,
		)
	}

	if _, err := s.hierarchy.RefreshProject(ctx, project.ID); err != nil {
		return nil, err
	}

	return created, nil
}

// GetTask retrieves a task by ID
func (s *TaskService) GetTask(ctx context.Context, id int) (*entities.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	return task, nil
}

// UpdateTask writes the plain fields of a task. The hierarchical name and
// the allocated weight and mandays budget stay as they are.
func (s *TaskService) UpdateTask(ctx context.Context, id int, req ports.UpdateTaskRequest) (*entities.Task, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = req.Description
	}
	if req.PlannedStart != nil {
		task.PlannedStart = req.PlannedStart
	}
	if req.PlannedEnd != nil {
		task.PlannedEnd = req.PlannedEnd
	}
	if task.PlannedStart != nil && task.PlannedEnd != nil && task.PlannedEnd.Before(*task.PlannedStart) {
		return nil, entities.ErrInvalidInput.Withf("planned end %s is before planned start %s",
			task.PlannedEnd.Format(time.RFC3339), task.PlannedStart.Format(time.RFC3339))
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.logger.Infow("Task updated successfully", "task_id", task.ID, "name", task.Name)

	if _, err := s.hierarchy.RefreshProject(ctx, task.ProjectID); err != nil {
		return nil, err
	}

	return s.taskRepo.GetByID(ctx, task.ID)
}

// ListTasks retrieves tasks with filtering and pagination
func (s *TaskService) ListTasks(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	q := ports.Query{}
	if filter.ProjectID != nil {
		q = q.And(ports.Eq(ports.FieldProjectID, *filter.ProjectID))
	}
	if filter.ParentID != nil {
		q = q.And(ports.Eq(ports.FieldParentID, *filter.ParentID))
	} else if filter.TopLevel {
		q = q.And(ports.IsNull(ports.FieldParentID))
	}
	if filter.Status != nil {
		q = q.And(ports.Eq(ports.FieldStatus, *filter.Status))
	}
	if filter.Search != nil && *filter.Search != "" {
		q = q.And(ports.ILike(ports.FieldTitle, *filter.Search))
	}
	q = q.OrderBy(ports.FieldName, false).OrderBy(ports.FieldID, false).Page(filter.Limit, filter.Offset)

	tasks, err := s.taskRepo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

// DeleteTask deletes a task with its subtasks and timesheets
func (s *TaskService) DeleteTask(ctx context.Context, id int) error {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("task not found: %w", err)
	}

	var parent *entities.Task
	if task.ParentID != nil {
		parent, err = s.taskRepo.GetByID(ctx, *task.ParentID)
		if err != nil && !entities.IsNotFound(err) {
			return fmt.Errorf("failed to load parent task: %w", err)
		}
	}

	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if parent != nil {
		s.postNote(ctx, entities.ModelTask, parent.ID, fmt.Sprintf("Subtask %s deleted from parent %s", task.Name, parent.Name))
	}

	s.logger.Infow("Task deleted successfully", "task_id", id, "name", task.Name)

	if _, err := s.hierarchy.RefreshProject(ctx, task.ProjectID); err != nil {
		return err
	}

	return nil
}

// Transition applies a lifecycle action to a task
func (s *TaskService) Transition(ctx context.Context, id int, action ports.TaskAction, userID uuid.UUID) (*entities.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	from := task.Status
	switch action {
	case ports.TaskActionStartProgress:
		err = task.StartProgress()
	case ports.TaskActionFinish:
		var children []*entities.Task
		children, err = s.taskRepo.Search(ctx, ports.Where(ports.Eq(ports.FieldParentID, task.ID)))
		if err != nil {
			return nil, fmt.Errorf("failed to load subtasks: %w", err)
		}
		err = task.Finish(children)
	case ports.TaskActionCancel:
		err = task.Cancel()
	case ports.TaskActionSetToDraft:
		err = task.SetToDraft()
	default:
		return nil, entities.ErrInvalidInput.Withf("unknown task action %q", action)
	}
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	s.logger.LogUserAction(userID.String(), string(action), map[string]interface{}{
		"task_id": task.ID,
		"from":    from,
		"to":      task.Status,
	})

	if _, err := s.hierarchy.RefreshProject(ctx, task.ProjectID); err != nil {
		return nil, err
	}

	return s.taskRepo.GetByID(ctx, task.ID)
}

// Reindex renames the subtasks under a task in creation order
func (s *TaskService) Reindex(ctx context.Context, id int) (int, error) {
	renamed, err := s.namer.Reindex(ctx, id)
	if err != nil {
		return renamed, err
	}

	s.logger.Infow("Subtasks reindexed", "task_id", id, "renamed", renamed)

	return renamed, nil
}

// Summary reports subtask and timesheet figures for a task along with the
// acting user's timer, if any.
func (s *TaskService) Summary(ctx context.Context, id int, userID uuid.UUID) (*ports.TaskSummary, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	summary := &ports.TaskSummary{Task: task, RunningDuration: entities.FormatClock(0)}

	children, err := s.taskRepo.Search(ctx, ports.Where(ports.Eq(ports.FieldParentID, id)))
	if err != nil {
		return nil, fmt.Errorf("failed to load subtasks: %w", err)
	}
	summary.SubtaskCount = len(children)
	if len(children) > 0 {
		done := 0
		for _, c := range children {
			if c.IsDone() {
				done++
			}
		}
		summary.SubtaskDonePercent = percent(done, len(children))
	}

	lines, err := s.lineRepo.Search(ctx, ports.Where(ports.Eq(ports.FieldTaskID, id)))
	if err != nil {
		return nil, fmt.Errorf("failed to load timesheets: %w", err)
	}
	summary.TimesheetCount = len(lines)
	if len(lines) > 0 {
		approved := 0
		for _, l := range lines {
			if l.State == entities.LineStateApproved {
				approved++
			}
		}
		summary.TimesheetApprovedPct = percent(approved, len(lines))
	}

	if userID == uuid.Nil {
		return summary, nil
	}
	employee, err := s.employees.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve employee: %w", err)
	}
	if employee == nil {
		return summary, nil
	}
	for _, l := range lines {
		if l.EmployeeID == employee.ID && l.IsOpen() {
			start := l.Start
			summary.TimerStart = &start
			summary.TimerPaused = l.IsPaused
			summary.RunningDuration = entities.FormatClock(l.Elapsed(s.clock.Now()))
			break
		}
	}

	return summary, nil
}

// Notes lists the activity log of a task
func (s *TaskService) Notes(ctx context.Context, id int) ([]*entities.AuditNote, error) {
	if _, err := s.taskRepo.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	return s.audit.List(ctx, entities.ModelTask, id)
}

func (s *TaskService) postNote(ctx context.Context, model string, resID int, body string) {
	if err := s.audit.Post(ctx, &entities.AuditNote{Model: model, ResID: resID, Body: body}); err != nil {
		s.logger.Warnw("Failed to post audit note", "model", model, "res_id", resID, "error", err)
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
