package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// EmployeeService manages the employee directory
type EmployeeService struct {
	employeeRepo ports.EmployeeRepository
	logger       *logger.Logger
}

// NewEmployeeService creates a new employee service
func NewEmployeeService(employeeRepo ports.EmployeeRepository, logger *logger.Logger) *EmployeeService {
	return &EmployeeService{
		employeeRepo: employeeRepo,
		logger:       logger,
	}
}

// CreateEmployee links a new employee to a user. A nil user id gets a fresh one.
func (s *EmployeeService) CreateEmployee(ctx context.Context, req ports.CreateEmployeeRequest) (*entities.Employee, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	userID := req.UserID
	if userID == uuid.Nil {
		userID = uuid.New()
	}

	employee := &entities.Employee{
		UserID: userID,
		Name:   req.Name,
	}
	if err := s.employeeRepo.Create(ctx, employee); err != nil {
		return nil, fmt.Errorf("failed to create employee: %w", err)
	}

	s.logger.Infow("Employee created successfully", "employee_id", employee.ID, "user_id", employee.UserID)

	return employee, nil
}

// GetEmployee retrieves an employee by ID
func (s *EmployeeService) GetEmployee(ctx context.Context, id int) (*entities.Employee, error) {
	employee, err := s.employeeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("employee not found: %w", err)
	}

	return employee, nil
}

// CurrentEmployee returns the employee linked to the acting user
func (s *EmployeeService) CurrentEmployee(ctx context.Context, userID uuid.UUID) (*entities.Employee, error) {
	employee, err := s.employeeRepo.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve employee: %w", err)
	}
	if employee == nil {
		return nil, entities.ErrEmployeeNotFound
	}

	return employee, nil
}
