package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/application/services"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// ProjectHandler handles project-related requests
type ProjectHandler struct {
	projectService *services.ProjectService
	taskService    *services.TaskService
	logger         *logger.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectService *services.ProjectService, taskService *services.TaskService, logger *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		taskService:    taskService,
		logger:         logger,
	}
}

// CreateProject godoc
// @Summary Create a new project
// @Description Create a new project with a mandays budget
// @Tags projects
// @Accept json
// @Produce json
// @Param request body ports.CreateProjectRequest true "Project data"
// @Success 201 {object} entities.Project
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects [post]
func (h *ProjectHandler) CreateProject(c echo.Context) error {
	var req ports.CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	project, err := h.projectService.CreateProject(c.Request().Context(), req)
	if err != nil {
		return fail(h.logger, "Create project failed", err, "user_id", getUserIDFromContext(c))
	}

	return c.JSON(http.StatusCreated, project)
}

// GetProject godoc
// @Summary Get project by ID
// @Description Get project information including progress and actual mandays
// @Tags projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} entities.Project
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetProject(c echo.Context) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	project, err := h.projectService.GetProject(c.Request().Context(), projectID)
	if err != nil {
		return fail(h.logger, "Get project failed", err, "project_id", projectID)
	}

	return c.JSON(http.StatusOK, project)
}

// UpdateProject godoc
// @Summary Update a project
// @Description Edit the label and mandays budget. Existing task budgets are kept.
// @Tags projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body ports.UpdateProjectRequest true "Project fields"
// @Success 200 {object} entities.Project
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c echo.Context) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	project, err := h.projectService.UpdateProject(c.Request().Context(), projectID, req)
	if err != nil {
		return fail(h.logger, "Update project failed", err, "project_id", projectID)
	}

	return c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) ListProjects(c echo.Context) error {
	filter := ports.ProjectFilter{Search: queryString(c, "search")}
	if status := queryString(c, "status"); status != nil {
		s := entities.ProjectStatus(*status)
		filter.Status = &s
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}
	if limit != nil {
		filter.Limit = *limit
	}
	if offset != nil {
		filter.Offset = *offset
	}

	projects, err := h.projectService.ListProjects(c.Request().Context(), filter)
	if err != nil {
		return fail(h.logger, "List projects failed", err)
	}

	return c.JSON(http.StatusOK, ListResponse[*entities.Project]{Data: projects, Limit: filter.Limit, Offset: filter.Offset})
}

func (h *ProjectHandler) DeleteProject(c echo.Context) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.projectService.DeleteProject(c.Request().Context(), projectID); err != nil {
		return fail(h.logger, "Delete project failed", err, "project_id", projectID)
	}
	return c.NoContent(http.StatusNoContent)
}

// Transition applies a workflow action: confirm, fail or reset.
func (h *ProjectHandler) Transition(c echo.Context) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var project *entities.Project
	switch action := c.Param("action"); action {
	case "confirm":
		project, err = h.projectService.Confirm(ctx, projectID)
	case "fail":
		project, err = h.projectService.Fail(ctx, projectID)
	case "reset":
		project, err = h.projectService.ResetToDraft(ctx, projectID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown project action "+action)
	}
	if err != nil {
		return fail(h.logger, "Project transition failed", err, "project_id", projectID)
	}

	return c.JSON(http.StatusOK, project)
}

// Refresh recomputes progress, actual mandays and dates for the project.
func (h *ProjectHandler) Refresh(c echo.Context) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	project, err := h.projectService.Refresh(c.Request().Context(), projectID)
	if err != nil {
		return fail(h.logger, "Refresh project failed", err, "project_id", projectID)
	}
	return c.JSON(http.StatusOK, project)
}

// GetProjectTasks lists the top-level tasks of a project.
func (h *ProjectHandler) GetProjectTasks(c echo.Context) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	tasks, err := h.taskService.ListTasks(c.Request().Context(), ports.TaskFilter{ProjectID: &projectID, TopLevel: true})
	if err != nil {
		return fail(h.logger, "List project tasks failed", err, "project_id", projectID)
	}
	return c.JSON(http.StatusOK, ListResponse[*entities.Task]{Data: tasks})
}
