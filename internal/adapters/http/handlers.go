package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/application/services"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// ContextUserKey is where the auth middleware stores the acting user's uuid.
const ContextUserKey = "user"

// EmployeeHandler handles employee directory requests
type EmployeeHandler struct {
	employeeService *services.EmployeeService
	logger          *logger.Logger
}

// NewEmployeeHandler creates a new employee handler
func NewEmployeeHandler(employeeService *services.EmployeeService, logger *logger.Logger) *EmployeeHandler {
	return &EmployeeHandler{
		employeeService: employeeService,
		logger:          logger,
	}
}

// GetCurrentEmployee godoc
// @Summary Current employee
// @Description Employee record linked to the authenticated user
// @Tags employees
// @Produce json
// @Success 200 {object} entities.Employee
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /employees/me [get]
func (h *EmployeeHandler) GetCurrentEmployee(c echo.Context) error {
	userID := getUserIDFromContext(c)

	employee, err := h.employeeService.CurrentEmployee(c.Request().Context(), userID)
	if err != nil {
		return fail(h.logger, "Get current employee failed", err, "user_id", userID)
	}
	return c.JSON(http.StatusOK, employee)
}

func (h *EmployeeHandler) GetEmployee(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	employee, err := h.employeeService.GetEmployee(c.Request().Context(), id)
	if err != nil {
		return fail(h.logger, "Get employee failed", err, "employee_id", id)
	}
	return c.JSON(http.StatusOK, employee)
}

func (h *EmployeeHandler) CreateEmployee(c echo.Context) error {
	var req ports.CreateEmployeeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	employee, err := h.employeeService.CreateEmployee(c.Request().Context(), req)
	if err != nil {
		return fail(h.logger, "Create employee failed", err)
	}
	return c.JSON(http.StatusCreated, employee)
}

// Utility functions and helper types

func getUserIDFromContext(c echo.Context) uuid.UUID {
	switch v := c.Get(ContextUserKey).(type) {
	case uuid.UUID:
		return v
	case string:
		id, _ := uuid.Parse(v)
		return id
	}
	return uuid.Nil
}

func paramID(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

func queryInt(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name+" parameter")
	}
	return &v, nil
}

func queryString(c echo.Context, name string) *string {
	if v := strings.TrimSpace(c.QueryParam(name)); v != "" {
		return &v
	}
	return nil
}

// localLayouts are the wall-clock forms accepted besides RFC 3339.
var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseClientTime reads an RFC 3339 timestamp, or a datetime-local value
// interpreted in loc, and returns it in UTC.
func ParseClientTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, entities.ErrInvalidInput.Withf("cannot parse time %q", s)
}

// statusFor maps a domain error kind onto an HTTP status.
func statusFor(err error) int {
	var de *entities.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Kind {
	case entities.KindValidation:
		return http.StatusBadRequest
	case entities.KindNotFound:
		return http.StatusNotFound
	case entities.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and converts it into an HTTP error carrying the domain code.
func fail(log *logger.Logger, msg string, err error, keysAndValues ...interface{}) error {
	status := statusFor(err)
	fields := append([]interface{}{"error", err, "status", status}, keysAndValues...)
	if status >= http.StatusInternalServerError {
		log.Errorw(msg, fields...)
		return echo.NewHTTPError(status, ErrorResponse{Error: "internal_error", Details: http.StatusText(status)}).SetInternal(err)
	}
	log.Warnw(msg, fields...)

	resp := ErrorResponse{Error: "error", Details: err.Error()}
	var de *entities.Error
	if errors.As(err, &de) {
		resp = ErrorResponse{Error: de.Code, Details: de.Message}
	}
	return echo.NewHTTPError(status, resp).SetInternal(err)
}

// Request/Response types

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ListResponse[T any] struct {
	Data   []T `json:"data"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}
