package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/ports"
)

func (s *ServiceSuite) TestProjectConfirmWalksWorkflow() {
	p := s.newProject(10)
	s.Equal(entities.ProjectStatusNew, p.Status)

	visited := []entities.ProjectStatus{p.Status}
	for i := 0; i < len(entities.ProjectWorkflow)-1; i++ {
		next, err := s.projects.Confirm(s.ctx, p.ID)
		s.Require().NoError(err)
		visited = append(visited, next.Status)
	}
	s.Equal(entities.ProjectWorkflow, visited)

	closed, err := s.projects.Confirm(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(entities.ProjectStatusClosed, closed.Status)

	notes, err := s.store.Audit().List(s.ctx, entities.ModelProject, p.ID)
	s.Require().NoError(err)
	s.Len(notes, 9)
	s.Equal("Status changed from new to waiting", notes[0].Body)
}

func (s *ServiceSuite) TestProjectFailAndReset() {
	p := s.newProject(10)

	failed, err := s.projects.Fail(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(entities.ProjectStatusFailed, failed.Status)

	same, err := s.projects.Confirm(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(entities.ProjectStatusFailed, same.Status)

	reset, err := s.projects.ResetToDraft(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(entities.ProjectStatusNew, reset.Status)
}

func (s *ServiceSuite) TestListAndDeleteProjects() {
	alpha, err := s.projects.CreateProject(s.ctx, ports.CreateProjectRequest{Code: "ALPHA"})
	s.Require().NoError(err)
	s.clock.Advance(time.Minute)
	_, err = s.projects.CreateProject(s.ctx, ports.CreateProjectRequest{Code: "BETA"})
	s.Require().NoError(err)

	all, err := s.projects.ListProjects(s.ctx, ports.ProjectFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("BETA", all[0].Code)

	search := "alp"
	found, err := s.projects.ListProjects(s.ctx, ports.ProjectFilter{Search: &search})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(alpha.ID, found[0].ID)

	task := s.newTask(alpha.ID, nil, "x")
	s.Require().NoError(s.projects.DeleteProject(s.ctx, alpha.ID))
	_, err = s.tasks.GetTask(s.ctx, task.ID)
	s.ErrorIs(err, entities.ErrTaskNotFound)

	_, err = s.projects.CreateProject(s.ctx, ports.CreateProjectRequest{MandaysBudget: -1})
	s.ErrorIs(err, entities.ErrInvalidInput)
}

func (s *ServiceSuite) TestIssueAndValidateToken() {
	jwtCfg := config.JWTConfig{Secret: "test-secret", ExpiresIn: time.Hour, Issuer: "tracker-test"}
	auth := NewAuthService(s.store.Employees(), jwtCfg, s.clock, s.log)

	resp, err := auth.IssueToken(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal("Bearer", resp.TokenType)
	s.Equal(s.employee.ID, resp.Employee.ID)

	userID, err := auth.ValidateToken(resp.AccessToken)
	s.Require().NoError(err)
	s.Equal(s.userID, userID)

	_, err = auth.IssueToken(s.ctx, uuid.New())
	s.ErrorIs(err, entities.ErrEmployeeNotFound)

	other := NewAuthService(s.store.Employees(), config.JWTConfig{Secret: "other", ExpiresIn: time.Hour, Issuer: "tracker-test"}, s.clock, s.log)
	_, err = other.ValidateToken(resp.AccessToken)
	s.Error(err)

	s.clock.Advance(2 * time.Hour)
	_, err = auth.ValidateToken(resp.AccessToken)
	s.Error(err)
}

func (s *ServiceSuite) TestEmployeeDirectory() {
	current, err := s.employees.CurrentEmployee(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(s.employee.ID, current.ID)

	_, err = s.employees.CurrentEmployee(s.ctx, uuid.New())
	s.ErrorIs(err, entities.ErrEmployeeNotFound)

	_, err = s.employees.CreateEmployee(s.ctx, ports.CreateEmployeeRequest{UserID: s.userID, Name: "Dup"})
	s.True(entities.IsConflict(err))

	fresh, err := s.employees.CreateEmployee(s.ctx, ports.CreateEmployeeRequest{Name: "Sari"})
	s.Require().NoError(err)
	s.NotEqual(uuid.Nil, fresh.UserID)
}

func (s *ServiceSuite) TestUpdateProjectKeepsTaskBudgets() {
	p := s.newProject(100)
	a := s.newTask(p.ID, nil, "A")
	s.newTask(p.ID, nil, "B")

	label, budget := "Customer portal", 200.0
	updated, err := s.projects.UpdateProject(s.ctx, p.ID, ports.UpdateProjectRequest{Label: &label, MandaysBudget: &budget})
	s.Require().NoError(err)
	s.Equal(label, updated.Label)
	s.Equal(200.0, updated.MandaysBudget)
	s.Equal("PRJ", updated.Code)
	s.Equal(entities.ProjectStatusNew, updated.Status)

	s.Equal(50.0, s.reload(a.ID).MandaysBudget)

	// only tasks created afterwards see the new budget
	c := s.newTask(p.ID, nil, "C")
	s.InDelta(200.0/3, c.MandaysBudget, 1e-9)
	s.Equal(50.0, s.reload(a.ID).MandaysBudget)

	negative := -1.0
	_, err = s.projects.UpdateProject(s.ctx, p.ID, ports.UpdateProjectRequest{MandaysBudget: &negative})
	s.ErrorIs(err, entities.ErrInvalidInput)

	_, err = s.projects.UpdateProject(s.ctx, p.ID+100, ports.UpdateProjectRequest{Label: &label})
	s.ErrorIs(err, entities.ErrProjectNotFound)
}
