package server

import (
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskmaster/tracker/internal/adapters/memory"
	"github.com/taskmaster/tracker/internal/adapters/repository"
	"github.com/taskmaster/tracker/internal/application/services"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/infrastructure/metrics"
	"github.com/taskmaster/tracker/internal/ports"
)

// Repositories is one storage backend seen through the ports
type Repositories struct {
	Projects    ports.ProjectRepository
	Tasks       ports.TaskRepository
	Timesheets  ports.TimesheetRepository
	Corrections ports.CorrectionRepository
	Employees   ports.EmployeeRepository
	Audit       ports.AuditRepository
	Attachments ports.AttachmentRepository
}

// PostgresRepositories builds the sqlx-backed repositories
func PostgresRepositories(db *sqlx.DB, cfg config.TimerConfig, clock ports.Clock) Repositories {
	return Repositories{
		Projects:    repository.NewProjectRepository(db),
		Tasks:       repository.NewTaskRepository(db),
		Timesheets:  repository.NewTimesheetRepository(db),
		Corrections: repository.NewCorrectionRepository(db),
		Employees:   repository.NewEmployeeRepository(db),
		Audit:       repository.NewAuditRepository(db),
		Attachments: repository.NewAttachmentRepository(db, cfg.MaxAttachmentBytes, clock),
	}
}

// MemoryRepositories builds a process-local store, used for demos and tests
func MemoryRepositories(cfg config.TimerConfig, clock ports.Clock) Repositories {
	store := memory.NewStore(clock, cfg.MaxAttachmentBytes)
	return Repositories{
		Projects:    store.Projects(),
		Tasks:       store.Tasks(),
		Timesheets:  store.Timesheets(),
		Corrections: store.Corrections(),
		Employees:   store.Employees(),
		Audit:       store.Audit(),
		Attachments: store.Attachments(),
	}
}

// Services wires the application services over one set of repositories
type Services struct {
	Repos      Repositories
	Hierarchy  *services.HierarchyService
	Projects   *services.ProjectService
	Tasks      *services.TaskService
	Timer      *services.TimerService
	Timesheets *services.TimesheetService
	Employees  *services.EmployeeService
	Auth       *services.AuthService
	// Locker is set when timers lock through a shared store
	Locker ports.TimerLocker
}

// UseLocker routes timer locking through l
func (s *Services) UseLocker(l ports.TimerLocker) {
	s.Locker = l
	s.Timer.UseLocker(l)
}

// NewServices creates every service. reg receives the timer collectors and
// may be nil to skip them.
func NewServices(cfg *config.Config, repos Repositories, clock ports.Clock, reg prometheus.Registerer, appLogger *logger.Logger) *Services {
	var timerMetrics *metrics.Timer
	if reg != nil {
		timerMetrics = metrics.NewTimer(reg)
	}

	hierarchy := services.NewHierarchyService(repos.Tasks, repos.Timesheets, repos.Projects, appLogger)
	return &Services{
		Repos:     repos,
		Hierarchy: hierarchy,
		Projects:  services.NewProjectService(repos.Projects, hierarchy, repos.Audit, appLogger),
		Tasks: services.NewTaskService(repos.Tasks, repos.Timesheets, repos.Projects,
			repos.Employees, repos.Audit, hierarchy, clock, appLogger),
		Timer: services.NewTimerService(repos.Tasks, repos.Timesheets, repos.Employees,
			repos.Attachments, repos.Audit, hierarchy, clock, timerMetrics, cfg.Timer, appLogger),
		Timesheets: services.NewTimesheetService(repos.Tasks, repos.Timesheets, repos.Corrections,
			repos.Employees, repos.Audit, hierarchy, cfg.Timer, appLogger),
		Employees: services.NewEmployeeService(repos.Employees, appLogger),
		Auth:      services.NewAuthService(repos.Employees, cfg.JWT, clock, appLogger),
	}
}
