package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/application/services"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService *services.TaskService
	location    *time.Location
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler. loc is used to read
// datetime-local planned dates.
func NewTaskHandler(taskService *services.TaskService, loc *time.Location, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		location:    loc,
		logger:      logger,
	}
}

type newTaskBody struct {
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	PlannedStart string  `json:"planned_start"`
	PlannedEnd   string  `json:"planned_end"`
}

type createTasksBody struct {
	ProjectID int           `json:"project_id"`
	ParentID  *int          `json:"parent_id"`
	Tasks     []newTaskBody `json:"tasks"`
}

func (h *TaskHandler) optionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := ParseClientTime(raw, h.location)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTasks godoc
// @Summary Create tasks
// @Description Create one or more sibling tasks under a project or a parent task. Names, weights and mandays budgets are assigned automatically.
// @Tags tasks
// @Accept json
// @Produce json
// @Success 201 {array} entities.Task
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) CreateTasks(c echo.Context) error {
	var body createTasksBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	req := ports.CreateTasksRequest{ProjectID: body.ProjectID, ParentID: body.ParentID}
	for _, t := range body.Tasks {
		start, err := h.optionalTime(t.PlannedStart)
		if err != nil {
			return fail(h.logger, "Invalid planned start", err)
		}
		end, err := h.optionalTime(t.PlannedEnd)
		if err != nil {
			return fail(h.logger, "Invalid planned end", err)
		}
		req.Tasks = append(req.Tasks, ports.NewTask{
			Title:        t.Title,
			Description:  t.Description,
			PlannedStart: start,
			PlannedEnd:   end,
		})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tasks, err := h.taskService.CreateTasks(c.Request().Context(), req)
	if err != nil {
		return fail(h.logger, "Create tasks failed", err, "project_id", body.ProjectID)
	}
	return c.JSON(http.StatusCreated, tasks)
}

type updateTaskBody struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	PlannedStart string  `json:"planned_start"`
	PlannedEnd   string  `json:"planned_end"`
}

// UpdateTask godoc
// @Summary Update a task
// @Description Edit the title, description and planned dates of a task. Omitted fields are unchanged.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var body updateTaskBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	req := ports.UpdateTaskRequest{Title: body.Title, Description: body.Description}
	if req.PlannedStart, err = h.optionalTime(body.PlannedStart); err != nil {
		return fail(h.logger, "Invalid planned start", err)
	}
	if req.PlannedEnd, err = h.optionalTime(body.PlannedEnd); err != nil {
		return fail(h.logger, "Invalid planned end", err)
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), id, req)
	if err != nil {
		return fail(h.logger, "Update task failed", err, "task_id", id)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) GetTask(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	task, err := h.taskService.GetTask(c.Request().Context(), id)
	if err != nil {
		return fail(h.logger, "Get task failed", err, "task_id", id)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ListTasks(c echo.Context) error {
	filter := ports.TaskFilter{
		TopLevel: c.QueryParam("top_level") == "true",
		Search:   queryString(c, "search"),
	}
	var err error
	if filter.ProjectID, err = queryInt(c, "project_id"); err != nil {
		return err
	}
	if filter.ParentID, err = queryInt(c, "parent_id"); err != nil {
		return err
	}
	if status := queryString(c, "status"); status != nil {
		s := entities.TaskStatus(*status)
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

	tasks, err := h.taskService.ListTasks(c.Request().Context(), filter)
	if err != nil {
		return fail(h.logger, "List tasks failed", err)
	}
	return c.JSON(http.StatusOK, ListResponse[*entities.Task]{Data: tasks, Limit: filter.Limit, Offset: filter.Offset})
}

func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.taskService.DeleteTask(c.Request().Context(), id); err != nil {
		return fail(h.logger, "Delete task failed", err, "task_id", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// Transition godoc
// @Summary Change task status
// @Description Apply start_progress, finish, cancel or set_to_draft to a task
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Param action path string true "Lifecycle action"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/actions/{action} [post]
func (h *TaskHandler) Transition(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID := getUserIDFromContext(c)
	action := ports.TaskAction(c.Param("action"))

	task, err := h.taskService.Transition(c.Request().Context(), id, action, userID)
	if err != nil {
		return fail(h.logger, "Task transition failed", err, "task_id", id, "action", action)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Reindex(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	renamed, err := h.taskService.Reindex(c.Request().Context(), id)
	if err != nil {
		return fail(h.logger, "Reindex subtasks failed", err, "task_id", id)
	}
	return c.JSON(http.StatusOK, map[string]int{"renamed": renamed})
}

func (h *TaskHandler) Summary(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	summary, err := h.taskService.Summary(c.Request().Context(), id, getUserIDFromContext(c))
	if err != nil {
		return fail(h.logger, "Task summary failed", err, "task_id", id)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *TaskHandler) Notes(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	notes, err := h.taskService.Notes(c.Request().Context(), id)
	if err != nil {
		return fail(h.logger, "List task notes failed", err, "task_id", id)
	}
	return c.JSON(http.StatusOK, ListResponse[*entities.AuditNote]{Data: notes})
}
