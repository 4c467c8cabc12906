package services

import (
	"context"
	"fmt"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// ProjectService handles project-related operations
type ProjectService struct {
	projectRepo ports.ProjectRepository
	hierarchy   *HierarchyService
	audit       ports.AuditSink
	logger      *logger.Logger
}

// NewProjectService creates a new project service
func NewProjectService(projectRepo ports.ProjectRepository, hierarchy *HierarchyService, audit ports.AuditSink, logger *logger.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		hierarchy:   hierarchy,
		audit:       audit,
		logger:      logger,
	}
}

// CreateProject creates a new project in the draft state
func (s *ProjectService) CreateProject(ctx context.Context, req ports.CreateProjectRequest) (*entities.Project, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	project := &entities.Project{
		Code:          req.Code,
		Label:         req.Label,
		Status:        entities.ProjectStatusNew,
		MandaysBudget: req.MandaysBudget,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Infow("Project created successfully", "project_id", project.ID, "code", project.Code)

	return project, nil
}

// GetProject retrieves a project by ID
func (s *ProjectService) GetProject(ctx context.Context, id int) (*entities.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	return project, nil
}

// UpdateProject edits the label and mandays budget. Budgets already
// allocated to existing tasks are kept.
func (s *ProjectService) UpdateProject(ctx context.Context, id int, req ports.UpdateProjectRequest) (*entities.Project, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	if req.Label != nil {
		project.Label = *req.Label
	}
	if req.MandaysBudget != nil {
		project.MandaysBudget = *req.MandaysBudget
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.logger.Infow("Project updated successfully", "project_id", project.ID, "mandays_budget", project.MandaysBudget)

	return project, nil
}

// ListProjects retrieves projects with filtering and pagination
func (s *ProjectService) ListProjects(ctx context.Context, filter ports.ProjectFilter) ([]*entities.Project, error) {
	q := ports.Query{}
	if filter.Status != nil {
		q = q.And(ports.Eq(ports.FieldStatus, *filter.Status))
	}
	if filter.Search != nil && *filter.Search != "" {
		q = q.And(ports.ILike(ports.FieldCode, *filter.Search))
	}
	q = q.OrderBy(ports.FieldCreatedAt, true).OrderBy(ports.FieldID, true).Page(filter.Limit, filter.Offset)

	projects, err := s.projectRepo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

// DeleteProject deletes a project together with its tasks and timesheets
func (s *ProjectService) DeleteProject(ctx context.Context, id int) error {
	if _, err := s.projectRepo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("project not found: %w", err)
	}

	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.logger.Infow("Project deleted successfully", "project_id", id)

	return nil
}

// Confirm advances the project one approval step. Confirming a closed or
// failed project leaves it unchanged.
func (s *ProjectService) Confirm(ctx context.Context, id int) (*entities.Project, error) {
	return s.transition(ctx, id, "confirm", func(p *entities.Project) bool {
		return p.Confirm()
	})
}

// Fail marks the project failed from any state
func (s *ProjectService) Fail(ctx context.Context, id int) (*entities.Project, error) {
	return s.transition(ctx, id, "fail", func(p *entities.Project) bool {
		changed := p.Status != entities.ProjectStatusFailed
		p.Fail()
		return changed
	})
}

// ResetToDraft puts the project back to new from any state
func (s *ProjectService) ResetToDraft(ctx context.Context, id int) (*entities.Project, error) {
	return s.transition(ctx, id, "reset_to_draft", func(p *entities.Project) bool {
		changed := p.Status != entities.ProjectStatusNew
		p.ResetToDraft()
		return changed
	})
}

func (s *ProjectService) transition(ctx context.Context, id int, action string, apply func(*entities.Project) bool) (*entities.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	from := project.Status
	if !apply(project) {
		s.logger.Debugw("Project status unchanged", "project_id", id, "action", action, "status", from)
		return project, nil
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}

	note := &entities.AuditNote{
		Model: entities.ModelProject,
		ResID: project.ID,
		Body:  fmt.Sprintf("Status changed from %s to %s", from, project.Status),
	}
	if err := s.audit.Post(ctx, note); err != nil {
		s.logger.Warnw("Failed to post project status note", "project_id", id, "error", err)
	}

	s.logger.Infow("Project status changed", "project_id", id, "action", action, "from", from, "to", project.Status)

	return project, nil
}

// Refresh recomputes the project's derived fields on demand
func (s *ProjectService) Refresh(ctx context.Context, id int) (*entities.Project, error) {
	return s.hierarchy.RefreshProject(ctx, id)
}
