package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func TestSelectQuery(t *testing.T) {
	q := ports.Where(
		ports.Eq(ports.FieldProjectID, 3),
		ports.In(ports.FieldStatus, []string{"new", "done"}),
		ports.ILike(ports.FieldTitle, "50%_off"),
		ports.IsNull(ports.FieldParentID),
	).OrderBy(ports.FieldName, true).Page(10, 20)

	query, args, err := selectQuery("SELECT id FROM tasks", taskFields, q)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id FROM tasks WHERE project_id = $1 AND status = ANY($2) AND title ILIKE $3 AND parent_id IS NULL"+
			" ORDER BY name DESC NULLS LAST, id ASC LIMIT $4 OFFSET $5",
		query)
	require.Len(t, args, 5)
	assert.Equal(t, 3, args[0])
	assert.Equal(t, `%50\%\_off%`, args[2])
	assert.Equal(t, 10, args[3])
	assert.Equal(t, 20, args[4])

	query, args, err = selectQuery("SELECT id FROM tasks", taskFields, ports.Query{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM tasks ORDER BY id ASC", query)
	assert.Empty(t, args)
}

func TestSelectQueryRejectsUnknownFields(t *testing.T) {
	_, _, err := selectQuery("SELECT id FROM tasks", taskFields, ports.Where(ports.Eq("password", "x")))
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	_, _, err = selectQuery("SELECT id FROM tasks", taskFields, ports.Query{}.OrderBy("1; DROP TABLE tasks", false))
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	_, _, err = selectQuery("SELECT id FROM tasks", taskFields, ports.Where(ports.In(ports.FieldID, 4)))
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate("op", nil, entities.ErrTaskNotFound))

	err := translate("op", &pq.Error{Code: uniqueViolation, Constraint: openLineIndex}, nil)
	assert.ErrorIs(t, err, entities.ErrTimerConflict)

	err = translate("op", &pq.Error{Code: foreignKeyViolation, Constraint: "tasks_project_id_fkey"}, nil)
	assert.ErrorIs(t, err, entities.ErrProjectNotFound)

	err = translate("op", &pq.Error{Code: uniqueViolation, Constraint: "something_else"}, nil)
	assert.True(t, entities.IsConflict(err))

	err = translate("op", errors.New("connection reset"), nil)
	var domainErr *entities.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, entities.KindPersistence, domainErr.Kind)
}

func TestTaskRepositoryCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	parent := 4
	task := &entities.Task{ProjectID: 1, ParentID: &parent, Name: "T-01.01", Title: "Sub", Status: entities.TaskStatusNew, Weight: 50}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tasks")).
		WithArgs(1, 4, "T-01.01", "Sub", nil, "new", 50.0, 0.0, 0, 0.0, nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(9, t0, t0))

	require.NoError(t, repo.Create(context.Background(), task))
	assert.Equal(t, 9, task.ID)
	assert.Equal(t, t0, task.CreatedAt)
}

func TestTaskRepositoryCreateUnknownProject(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tasks")).
		WillReturnError(&pq.Error{Code: foreignKeyViolation, Constraint: "tasks_project_id_fkey"})

	err := repo.Create(context.Background(), &entities.Task{ProjectID: 99})
	assert.ErrorIs(t, err, entities.ErrProjectNotFound)
}

func TestTaskRepositoryGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	cols := []string{"id", "project_id", "parent_id", "name", "title", "description", "status", "weight",
		"mandays_budget", "actual_mandays", "progress", "planned_start", "planned_end",
		"actual_start", "actual_end", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, 1, nil, "T-01", "Root", nil, "in_progress", 100.0, 4.0, 1, 25.0, nil, nil, t0, nil, t0, t0))

	task, err := repo.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, task.ParentID)
	assert.Equal(t, entities.TaskStatusInProgress, task.Status)
	assert.Equal(t, t0, *task.ActualStart)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(cols))

	_, err = repo.GetByID(context.Background(), 3)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestTaskRepositorySearch(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE parent_id = $1 ORDER BY name ASC NULLS FIRST, id ASC")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "parent_id", "name"}).
			AddRow(2, 1, "T-01.01").
			AddRow(3, 1, "T-01.02"))

	tasks, err := repo.Search(context.Background(), ports.Where(ports.Eq(ports.FieldParentID, 1)).OrderBy(ports.FieldName, false))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "T-01.02", tasks[1].Name)
	assert.Equal(t, 1, *tasks[1].ParentID)
}

func TestUpdateRollup(t *testing.T) {
	db, mock := newMock(t)
	tasks := NewTaskRepository(db)
	projects := NewProjectRepository(db)
	roll := ports.Rollup{Progress: 50, ActualMandays: 2, ActualStart: &t0}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs(5, 50.0, 2, t0, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs(6, 50.0, 2, t0, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE projects")).
		WithArgs(1, 50.0, 2, t0, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, tasks.UpdateRollup(ctx, 5, roll))
	assert.ErrorIs(t, tasks.UpdateRollup(ctx, 6, roll), entities.ErrTaskNotFound)
	require.NoError(t, projects.UpdateRollup(ctx, 1, roll))
}

func TestProjectRepositoryDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects WHERE id = $1")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects WHERE id = $1")).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 1))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), entities.ErrProjectNotFound)
}

func TestTimesheetRepositoryOpenLineConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTimesheetRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO timesheet_lines")).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: openLineIndex})

	line := &entities.TimesheetLine{TaskID: 1, EmployeeID: 1, Start: t0}
	err := repo.Create(context.Background(), line)
	assert.ErrorIs(t, err, entities.ErrTimerConflict)
	assert.NotNil(t, line.PauseEvents)
}

func TestTimesheetRepositoryDecodesPauseEvents(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTimesheetRepository(db)

	events := `[{"kind":"pause","at":"2024-01-02T10:00:00Z"},{"kind":"resume","at":"2024-01-02T10:15:00Z"}]`
	mock.ExpectQuery(regexp.QuoteMeta("FROM timesheet_lines WHERE id = $1")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "employee_id", "start_time", "end_time", "pause_events", "state"}).
			AddRow(7, 1, 1, t0, nil, []byte(events), "waiting_approval"))

	line, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, line.IsOpen())
	require.Len(t, line.PauseEvents, 2)
	assert.Equal(t, entities.PauseEventResume, line.PauseEvents[1].Kind)
	assert.Equal(t, t0.Add(75*time.Minute), line.PauseEvents[1].At)
}

func TestCorrectionRepositoryNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCorrectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE timesheet_corrections")).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

	err := repo.Update(context.Background(), &entities.CorrectionRequest{ID: 3})
	assert.ErrorIs(t, err, entities.ErrCorrectionNotFound)
}

func TestEmployeeRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEmployeeRepository(db)
	ctx := context.Background()
	user := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM employees WHERE user_id = $1")).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "created_at"}).AddRow(4, user.String(), "Rina", t0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM employees WHERE user_id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO employees")).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "employees_user_id_key"})

	emp, err := repo.EmployeeByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 4, emp.ID)
	assert.Equal(t, user, emp.UserID)

	none, err := repo.EmployeeByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)

	err = repo.Create(ctx, &entities.Employee{UserID: user, Name: "Dup"})
	assert.True(t, entities.IsConflict(err))
}

func TestAuditRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()
	att := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO audit_notes")).
		WithArgs(sqlmock.AnyArg(), entities.ModelTimesheetLine, 3, "stopped", "{\""+att.String()+"\"}").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(t0))

	note := &entities.AuditNote{Model: entities.ModelTimesheetLine, ResID: 3, Body: "stopped", AttachmentIDs: []uuid.UUID{att}}
	require.NoError(t, repo.Post(ctx, note))
	assert.NotEqual(t, uuid.Nil, note.ID)
	assert.Equal(t, t0, note.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_notes")).
		WithArgs(entities.ModelTimesheetLine, 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "model", "res_id", "body", "attachment_ids", "created_at"}).
			AddRow(note.ID.String(), entities.ModelTimesheetLine, 3, "stopped", "{"+att.String()+"}", t0).
			AddRow(uuid.NewString(), entities.ModelTimesheetLine, 3, "plain", "{}", t0))

	notes, err := repo.List(ctx, entities.ModelTimesheetLine, 3)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, []uuid.UUID{att}, notes[0].AttachmentIDs)
	assert.Empty(t, notes[1].AttachmentIDs)
}

func TestAttachmentRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttachmentRepository(db, 4, ports.ClockFunc(func() time.Time { return t0 }))
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attachments")).
		WithArgs(sqlmock.AnyArg(), "a.txt", "text/plain", int64(4), sqlmock.AnyArg(), []byte("abcd"), t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Save(ctx, ports.Upload{Name: "a.txt", ContentType: "text/plain", Data: []byte("abcd")})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	_, err = repo.Save(ctx, ports.Upload{Name: "b.txt", Data: []byte("abcde")})
	assert.ErrorIs(t, err, entities.ErrAttachmentTooLarge)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attachments WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, entities.ErrAttachmentNotFound)
}
