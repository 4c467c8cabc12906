package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

const lineColumns = `id, task_id, employee_id, start_time, end_time, unit_amount, is_paused,
	pause_start, paused_seconds, pause_events, pause_log, description, state, created_at, updated_at`

var lineFields = columns{
	ports.FieldID:          "id",
	ports.FieldTaskID:      "task_id",
	ports.FieldEmployeeID:  "employee_id",
	ports.FieldStart:       "start_time",
	ports.FieldEnd:         "end_time",
	ports.FieldState:       "state",
	ports.FieldDescription: "description",
	ports.FieldCreatedAt:   "created_at",
}

// TimesheetRepositoryImpl implements ports.TimesheetRepository on PostgreSQL.
// At most one open line per task and employee is enforced by the
// timesheet_lines_one_open partial unique index.
type TimesheetRepositoryImpl struct {
	db *sqlx.DB
}

// NewTimesheetRepository creates a new timesheet line repository
func NewTimesheetRepository(db *sqlx.DB) ports.TimesheetRepository {
	return &TimesheetRepositoryImpl{db: db}
}

func (r *TimesheetRepositoryImpl) Create(ctx context.Context, line *entities.TimesheetLine) error {
	if line.PauseEvents == nil {
		line.PauseEvents = entities.PauseEvents{}
	}
	query := `
		INSERT INTO timesheet_lines (task_id, employee_id, start_time, end_time, unit_amount, is_paused,
			pause_start, paused_seconds, pause_events, pause_log, description, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		line.TaskID, line.EmployeeID, line.Start, line.End, line.UnitAmount, line.IsPaused,
		line.PauseStart, line.PausedSeconds, line.PauseEvents, line.PauseLog, line.Description, line.State,
	).Scan(&line.ID, &line.CreatedAt, &line.UpdatedAt)
	return translate("create timesheet line", err, nil)
}

func (r *TimesheetRepositoryImpl) GetByID(ctx context.Context, id int) (*entities.TimesheetLine, error) {
	var line entities.TimesheetLine
	err := r.db.GetContext(ctx, &line, `SELECT `+lineColumns+` FROM timesheet_lines WHERE id = $1`, id)
	if err != nil {
		return nil, translate("get timesheet line", err, entities.ErrTimesheetNotFound)
	}
	return &line, nil
}

func (r *TimesheetRepositoryImpl) Update(ctx context.Context, line *entities.TimesheetLine) error {
	query := `
		UPDATE timesheet_lines
		SET task_id = $2, employee_id = $3, start_time = $4, end_time = $5, unit_amount = $6,
			is_paused = $7, pause_start = $8, paused_seconds = $9, pause_events = $10,
			pause_log = $11, description = $12, state = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		line.ID, line.TaskID, line.EmployeeID, line.Start, line.End, line.UnitAmount,
		line.IsPaused, line.PauseStart, line.PausedSeconds, line.PauseEvents,
		line.PauseLog, line.Description, line.State,
	).Scan(&line.UpdatedAt)
	return translate("update timesheet line", err, entities.ErrTimesheetNotFound)
}

func (r *TimesheetRepositoryImpl) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timesheet_lines WHERE id = $1`, id)
	if err != nil {
		return translate("delete timesheet line", err, nil)
	}
	return expectRow("delete timesheet line", res, entities.ErrTimesheetNotFound)
}

func (r *TimesheetRepositoryImpl) Search(ctx context.Context, q ports.Query) ([]*entities.TimesheetLine, error) {
	query, args, err := selectQuery(`SELECT `+lineColumns+` FROM timesheet_lines`, lineFields, q)
	if err != nil {
		return nil, err
	}
	lines := []*entities.TimesheetLine{}
	if err := r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, translate("search timesheet lines", err, nil)
	}
	return lines, nil
}

const correctionColumns = `id, line_id, employee_id, description, current_start, current_end,
	requested_start, requested_end, hours, state, created_at, updated_at`

var correctionFields = columns{
	ports.FieldID:         "id",
	ports.FieldLineID:     "line_id",
	ports.FieldEmployeeID: "employee_id",
	ports.FieldState:      "state",
	ports.FieldCreatedAt:  "created_at",
}

// CorrectionRepositoryImpl implements ports.CorrectionRepository on PostgreSQL
type CorrectionRepositoryImpl struct {
	db *sqlx.DB
}

// NewCorrectionRepository creates a new correction request repository
func NewCorrectionRepository(db *sqlx.DB) ports.CorrectionRepository {
	return &CorrectionRepositoryImpl{db: db}
}

func (r *CorrectionRepositoryImpl) Create(ctx context.Context, req *entities.CorrectionRequest) error {
	query := `
		INSERT INTO timesheet_corrections (line_id, employee_id, description, current_start, current_end,
			requested_start, requested_end, hours, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		req.LineID, req.EmployeeID, req.Description, req.CurrentStart, req.CurrentEnd,
		req.RequestedStart, req.RequestedEnd, req.Hours, req.State,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	return translate("create correction request", err, nil)
}

func (r *CorrectionRepositoryImpl) GetByID(ctx context.Context, id int) (*entities.CorrectionRequest, error) {
	var req entities.CorrectionRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+correctionColumns+` FROM timesheet_corrections WHERE id = $1`, id)
	if err != nil {
		return nil, translate("get correction request", err, entities.ErrCorrectionNotFound)
	}
	return &req, nil
}

func (r *CorrectionRepositoryImpl) Update(ctx context.Context, req *entities.CorrectionRequest) error {
	query := `
		UPDATE timesheet_corrections
		SET description = $2, current_start = $3, current_end = $4, requested_start = $5,
			requested_end = $6, hours = $7, state = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		req.ID, req.Description, req.CurrentStart, req.CurrentEnd,
		req.RequestedStart, req.RequestedEnd, req.Hours, req.State,
	).Scan(&req.UpdatedAt)
	return translate("update correction request", err, entities.ErrCorrectionNotFound)
}

func (r *CorrectionRepositoryImpl) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timesheet_corrections WHERE id = $1`, id)
	if err != nil {
		return translate("delete correction request", err, nil)
	}
	return expectRow("delete correction request", res, entities.ErrCorrectionNotFound)
}

func (r *CorrectionRepositoryImpl) Search(ctx context.Context, q ports.Query) ([]*entities.CorrectionRequest, error) {
	query, args, err := selectQuery(`SELECT `+correctionColumns+` FROM timesheet_corrections`, correctionFields, q)
	if err != nil {
		return nil, err
	}
	reqs := []*entities.CorrectionRequest{}
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, translate("search correction requests", err, nil)
	}
	return reqs, nil
}
