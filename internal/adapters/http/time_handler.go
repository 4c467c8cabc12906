package http

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/application/services"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// TimeHandler drives the per-task timer
type TimeHandler struct {
	timerService *services.TimerService
	maxUpload    int64
	logger       *logger.Logger
}

// NewTimeHandler creates a new time handler. Uploaded files are read up to
// maxUpload+1 bytes so oversized ones still reach the size check.
func NewTimeHandler(timerService *services.TimerService, maxUpload int64, logger *logger.Logger) *TimeHandler {
	return &TimeHandler{
		timerService: timerService,
		maxUpload:    maxUpload,
		logger:       logger,
	}
}

// StartTimer godoc
// @Summary Start or resume the timer
// @Description Opens a timesheet line for the current employee, resumes a paused one, or reports the running one
// @Tags timer
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} ports.TimerResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/timer/start [post]
func (h *TimeHandler) StartTimer(c echo.Context) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID := getUserIDFromContext(c)

	res, err := h.timerService.Start(c.Request().Context(), taskID, userID)
	if err != nil {
		return fail(h.logger, "Start timer failed", err, "task_id", taskID, "user_id", userID)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *TimeHandler) PauseTimer(c echo.Context) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID := getUserIDFromContext(c)

	res, err := h.timerService.Pause(c.Request().Context(), taskID, userID)
	if err != nil {
		return fail(h.logger, "Pause timer failed", err, "task_id", taskID, "user_id", userID)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *TimeHandler) ResumeTimer(c echo.Context) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID := getUserIDFromContext(c)

	res, err := h.timerService.Resume(c.Request().Context(), taskID, userID)
	if err != nil {
		return fail(h.logger, "Resume timer failed", err, "task_id", taskID, "user_id", userID)
	}
	return c.JSON(http.StatusOK, res)
}

type stopTimerBody struct {
	Description string `json:"description" form:"description"`
}

// StopTimer godoc
// @Summary Stop the timer
// @Description Closes the open line with a description. Accepts JSON or multipart/form-data with files under "attachments".
// @Tags timer
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} ports.TimerResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/timer/stop [post]
func (h *TimeHandler) StopTimer(c echo.Context) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID := getUserIDFromContext(c)

	req := ports.StopTimerRequest{TaskID: taskID, UserID: userID}
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		req.Description = c.FormValue("description")
		uploads, err := h.readUploads(c)
		if err != nil {
			return err
		}
		req.Uploads = uploads
	} else {
		var body stopTimerBody
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
		}
		req.Description = body.Description
	}

	res, err := h.timerService.Stop(c.Request().Context(), req)
	if err != nil {
		return fail(h.logger, "Stop timer failed", err, "task_id", taskID, "user_id", userID)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *TimeHandler) readUploads(c echo.Context) ([]ports.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
	}

	var uploads []ports.Upload
	for _, fh := range form.File["attachments"] {
		f, err := fh.Open()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "Unreadable attachment "+fh.Filename)
		}
		var r io.Reader = f
		if h.maxUpload > 0 {
			r = io.LimitReader(f, h.maxUpload+1)
		}
		data, err := io.ReadAll(r)
		f.Close()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "Unreadable attachment "+fh.Filename)
		}
		uploads = append(uploads, ports.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Data:        data,
		})
	}
	return uploads, nil
}

func (h *TimeHandler) TimerStatus(c echo.Context) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID := getUserIDFromContext(c)

	status, err := h.timerService.Status(c.Request().Context(), taskID, userID)
	if err != nil {
		return fail(h.logger, "Timer status failed", err, "task_id", taskID, "user_id", userID)
	}
	return c.JSON(http.StatusOK, status)
}

// TimesheetHandler handles manual timesheet lines and their corrections
type TimesheetHandler struct {
	timesheetService *services.TimesheetService
	location         *time.Location
	logger           *logger.Logger
}

// NewTimesheetHandler creates a new timesheet handler
func NewTimesheetHandler(timesheetService *services.TimesheetService, loc *time.Location, logger *logger.Logger) *TimesheetHandler {
	return &TimesheetHandler{
		timesheetService: timesheetService,
		location:         loc,
		logger:           logger,
	}
}

type timesheetBody struct {
	EmployeeID  *int     `json:"employee_id"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Hours       *float64 `json:"hours"`
	Description string   `json:"description"`
}

func (h *TimesheetHandler) bindRange(start, end string) (time.Time, time.Time, error) {
	s, err := ParseClientTime(start, h.location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := ParseClientTime(end, h.location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s, e, nil
}

// SaveLine creates a line on a task, or updates one when :line_id is set.
func (h *TimesheetHandler) SaveLine(c echo.Context) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var body timesheetBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	start, end, err := h.bindRange(body.Start, body.End)
	if err != nil {
		return fail(h.logger, "Invalid timesheet range", err, "task_id", taskID)
	}

	req := ports.SaveTimesheetRequest{
		TaskID:      taskID,
		UserID:      getUserIDFromContext(c),
		EmployeeID:  body.EmployeeID,
		Start:       start,
		End:         end,
		Hours:       body.Hours,
		Description: body.Description,
	}
	status := http.StatusCreated
	if c.Param("line_id") != "" {
		lineID, err := paramID(c, "line_id")
		if err != nil {
			return err
		}
		req.ID = &lineID
		status = http.StatusOK
	}

	line, err := h.timesheetService.SaveLine(c.Request().Context(), req)
	if err != nil {
		return fail(h.logger, "Save timesheet failed", err, "task_id", taskID)
	}
	return c.JSON(status, line)
}

func (h *TimesheetHandler) ListLines(c echo.Context) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	lines, err := h.timesheetService.ListLines(c.Request().Context(), taskID)
	if err != nil {
		return fail(h.logger, "List timesheets failed", err, "task_id", taskID)
	}
	return c.JSON(http.StatusOK, ListResponse[*entities.TimesheetLine]{Data: lines})
}

func (h *TimesheetHandler) DeleteLine(c echo.Context) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	lineID, err := paramID(c, "line_id")
	if err != nil {
		return err
	}

	if err := h.timesheetService.DeleteLine(c.Request().Context(), taskID, lineID); err != nil {
		return fail(h.logger, "Delete timesheet failed", err, "task_id", taskID, "line_id", lineID)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TimesheetHandler) ApproveLine(c echo.Context) error {
	lineID, err := paramID(c, "line_id")
	if err != nil {
		return err
	}

	line, err := h.timesheetService.ApproveLine(c.Request().Context(), lineID, getUserIDFromContext(c))
	if err != nil {
		return fail(h.logger, "Approve timesheet failed", err, "line_id", lineID)
	}
	return c.JSON(http.StatusOK, line)
}

type correctionBody struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
}

func (h *TimesheetHandler) RequestCorrection(c echo.Context) error {
	lineID, err := paramID(c, "line_id")
	if err != nil {
		return err
	}

	var body correctionBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	start, end, err := h.bindRange(body.Start, body.End)
	if err != nil {
		return fail(h.logger, "Invalid correction range", err, "line_id", lineID)
	}

	req, err := h.timesheetService.RequestCorrection(c.Request().Context(), ports.CorrectionRequestInput{
		LineID:      lineID,
		UserID:      getUserIDFromContext(c),
		Start:       start,
		End:         end,
		Description: body.Description,
	})
	if err != nil {
		return fail(h.logger, "Request correction failed", err, "line_id", lineID)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *TimesheetHandler) ListCorrections(c echo.Context) error {
	lineID, err := paramID(c, "line_id")
	if err != nil {
		return err
	}

	reqs, err := h.timesheetService.ListCorrections(c.Request().Context(), lineID)
	if err != nil {
		return fail(h.logger, "List corrections failed", err, "line_id", lineID)
	}
	return c.JSON(http.StatusOK, ListResponse[*entities.CorrectionRequest]{Data: reqs})
}

func (h *TimesheetHandler) ApproveCorrection(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	req, err := h.timesheetService.ApproveCorrection(c.Request().Context(), id, getUserIDFromContext(c))
	if err != nil {
		return fail(h.logger, "Approve correction failed", err, "correction_id", id)
	}
	return c.JSON(http.StatusOK, req)
}

// AttachmentHandler serves files stored while stopping timers
type AttachmentHandler struct {
	attachments ports.AttachmentRepository
	logger      *logger.Logger
}

func NewAttachmentHandler(attachments ports.AttachmentRepository, logger *logger.Logger) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, logger: logger}
}

func (h *AttachmentHandler) GetAttachment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid attachment id")
	}

	att, err := h.attachments.Get(c.Request().Context(), id)
	if err != nil {
		return fail(h.logger, "Get attachment failed", err, "attachment_id", id)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", att.Name))
	c.Response().Header().Set("X-Checksum-Blake2b", att.Checksum)
	return c.Blob(http.StatusOK, att.ContentType, att.Data)
}
