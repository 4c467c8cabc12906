package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func fixedClock() ports.Clock {
	return ports.ClockFunc(func() time.Time { return t0 })
}

func seed(t *testing.T) (*Store, *entities.Project, *entities.Task) {
	t.Helper()
	s := NewStore(fixedClock(), 16)
	ctx := context.Background()

	p := &entities.Project{Code: "P", Status: entities.ProjectStatusNew}
	require.NoError(t, s.Projects().Create(ctx, p))

	task := &entities.Task{ProjectID: p.ID, Name: "T-01", Title: "Root"}
	require.NoError(t, s.Tasks().Create(ctx, task))
	return s, p, task
}

func TestStoreReturnsCopies(t *testing.T) {
	s, _, task := seed(t)
	ctx := context.Background()

	got, err := s.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	got.Title = "changed"

	again, err := s.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Root", again.Title)
	assert.Equal(t, t0, again.CreatedAt)
}

func TestStoreDoesNotSharePointers(t *testing.T) {
	s, p, root := seed(t)
	ctx := context.Background()

	parentID := root.ID
	desc := "original"
	planned := t0.Add(24 * time.Hour)
	child := &entities.Task{ProjectID: p.ID, ParentID: &parentID, Name: "T-01.01", Description: &desc, PlannedStart: &planned}
	require.NoError(t, s.Tasks().Create(ctx, child))

	// the caller's values after Create
	parentID, desc, planned = 42, "edited by caller", t0

	got, err := s.Tasks().GetByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, *got.ParentID)
	assert.Equal(t, "original", *got.Description)
	assert.Equal(t, t0.Add(24*time.Hour), *got.PlannedStart)

	// the returned values after a read
	*got.ParentID = 42
	*got.Description = "edited after read"
	*got.PlannedStart = t0

	found, err := s.Tasks().Search(ctx, ports.Where(ports.Eq(ports.FieldParentID, root.ID)))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "original", *found[0].Description)
	*found[0].Description = "edited after search"

	again, err := s.Tasks().GetByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, *again.ParentID)
	assert.Equal(t, "original", *again.Description)
	assert.Equal(t, t0.Add(24*time.Hour), *again.PlannedStart)

	end := t0.Add(time.Hour)
	line := &entities.TimesheetLine{TaskID: root.ID, EmployeeID: 1, Start: t0, End: &end}
	require.NoError(t, s.Timesheets().Create(ctx, line))
	end = t0.Add(5 * time.Hour)
	storedLine, err := s.Timesheets().GetByID(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), *storedLine.End)

	start := t0
	require.NoError(t, s.Projects().UpdateRollup(ctx, p.ID, ports.Rollup{ActualStart: &start}))
	project, err := s.Projects().GetByID(ctx, p.ID)
	require.NoError(t, err)
	*project.ActualStart = t0.Add(time.Hour)
	project, err = s.Projects().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, t0, *project.ActualStart)
}

func TestStoreNotFound(t *testing.T) {
	s, _, _ := seed(t)
	ctx := context.Background()

	_, err := s.Tasks().GetByID(ctx, 99)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
	_, err = s.Projects().GetByID(ctx, 99)
	assert.ErrorIs(t, err, entities.ErrProjectNotFound)
	_, err = s.Timesheets().GetByID(ctx, 99)
	assert.ErrorIs(t, err, entities.ErrTimesheetNotFound)
	_, err = s.Corrections().GetByID(ctx, 99)
	assert.ErrorIs(t, err, entities.ErrCorrectionNotFound)
	_, err = s.Attachments().Get(ctx, uuid.New())
	assert.ErrorIs(t, err, entities.ErrAttachmentNotFound)

	err = s.Tasks().Create(ctx, &entities.Task{ProjectID: 99})
	assert.ErrorIs(t, err, entities.ErrProjectNotFound)
}

func TestStoreSearch(t *testing.T) {
	s, p, root := seed(t)
	ctx := context.Background()

	for _, name := range []string{"T-01.02", "T-01.01", "T-01.03"} {
		require.NoError(t, s.Tasks().Create(ctx, &entities.Task{ProjectID: p.ID, ParentID: &root.ID, Name: name, Title: "Sub " + name}))
	}

	kids, err := s.Tasks().Search(ctx, ports.Where(ports.Eq(ports.FieldParentID, root.ID)).OrderBy(ports.FieldName, false))
	require.NoError(t, err)
	require.Len(t, kids, 3)
	assert.Equal(t, "T-01.01", kids[0].Name)
	assert.Equal(t, "T-01.03", kids[2].Name)

	top, err := s.Tasks().Search(ctx, ports.Where(ports.IsNull(ports.FieldParentID)))
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, root.ID, top[0].ID)

	in, err := s.Tasks().Search(ctx, ports.Where(ports.In(ports.FieldID, []int{root.ID, kids[0].ID})))
	require.NoError(t, err)
	assert.Len(t, in, 2)

	like, err := s.Tasks().Search(ctx, ports.Where(ports.ILike(ports.FieldTitle, "sub t-01.0")).
		OrderBy(ports.FieldName, true).Page(1, 1))
	require.NoError(t, err)
	require.Len(t, like, 1)
	assert.Equal(t, "T-01.02", like[0].Name)

	_, err = s.Tasks().Search(ctx, ports.Where(ports.Eq("password", "x")))
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}

func TestStoreSingleOpenLine(t *testing.T) {
	s, _, task := seed(t)
	ctx := context.Background()

	open := &entities.TimesheetLine{TaskID: task.ID, EmployeeID: 1, Start: t0}
	require.NoError(t, s.Timesheets().Create(ctx, open))
	assert.NotNil(t, open.PauseEvents)

	err := s.Timesheets().Create(ctx, &entities.TimesheetLine{TaskID: task.ID, EmployeeID: 1, Start: t0})
	assert.ErrorIs(t, err, entities.ErrTimerConflict)

	// another employee or a closed line is fine
	require.NoError(t, s.Timesheets().Create(ctx, &entities.TimesheetLine{TaskID: task.ID, EmployeeID: 2, Start: t0}))
	end := t0.Add(time.Hour)
	closed := &entities.TimesheetLine{TaskID: task.ID, EmployeeID: 1, Start: t0, End: &end}
	require.NoError(t, s.Timesheets().Create(ctx, closed))

	closed.End = nil
	assert.ErrorIs(t, s.Timesheets().Update(ctx, closed), entities.ErrTimerConflict)
}

func TestStoreCascades(t *testing.T) {
	s, p, root := seed(t)
	ctx := context.Background()

	child := &entities.Task{ProjectID: p.ID, ParentID: &root.ID, Name: "T-01.01"}
	require.NoError(t, s.Tasks().Create(ctx, child))
	end := t0.Add(time.Hour)
	line := &entities.TimesheetLine{TaskID: child.ID, EmployeeID: 1, Start: t0, End: &end}
	require.NoError(t, s.Timesheets().Create(ctx, line))
	corr := &entities.CorrectionRequest{LineID: line.ID}
	require.NoError(t, s.Corrections().Create(ctx, corr))

	require.NoError(t, s.Projects().Delete(ctx, p.ID))

	_, err := s.Tasks().GetByID(ctx, child.ID)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
	_, err = s.Timesheets().GetByID(ctx, line.ID)
	assert.ErrorIs(t, err, entities.ErrTimesheetNotFound)
	_, err = s.Corrections().GetByID(ctx, corr.ID)
	assert.ErrorIs(t, err, entities.ErrCorrectionNotFound)
}

func TestStoreUpdateRollup(t *testing.T) {
	s, p, task := seed(t)
	ctx := context.Background()

	start := t0
	roll := ports.Rollup{Progress: 50, ActualMandays: 2, ActualStart: &start}
	require.NoError(t, s.Tasks().UpdateRollup(ctx, task.ID, roll))
	require.NoError(t, s.Projects().UpdateRollup(ctx, p.ID, roll))
	start = t0.Add(time.Hour)

	got, err := s.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Progress)
	assert.Equal(t, t0, *got.ActualStart)
	assert.Equal(t, "T-01", got.Name)

	project, err := s.Projects().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, project.ActualMandays)

	assert.ErrorIs(t, s.Tasks().UpdateRollup(ctx, 99, roll), entities.ErrTaskNotFound)
}

func TestStoreEmployeesAndAudit(t *testing.T) {
	s := NewStore(fixedClock(), 0)
	ctx := context.Background()

	user := uuid.New()
	emp := &entities.Employee{UserID: user, Name: "Rina"}
	require.NoError(t, s.Employees().Create(ctx, emp))
	assert.True(t, entities.IsConflict(s.Employees().Create(ctx, &entities.Employee{UserID: user})))

	got, err := s.Employees().EmployeeByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, emp.ID, got.ID)

	none, err := s.Employees().EmployeeByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, s.Audit().Post(ctx, &entities.AuditNote{Model: entities.ModelTask, ResID: 1, Body: "a"}))
	require.NoError(t, s.Audit().Post(ctx, &entities.AuditNote{Model: entities.ModelProject, ResID: 1, Body: "b"}))
	notes, err := s.Audit().List(ctx, entities.ModelTask, 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.NotEqual(t, uuid.Nil, notes[0].ID)
	assert.Equal(t, t0, notes[0].CreatedAt)
}

func TestAttachmentLimits(t *testing.T) {
	s := NewStore(fixedClock(), 4)
	ctx := context.Background()

	id, err := s.Attachments().Save(ctx, ports.Upload{Name: "a.txt", Data: []byte("abcd")})
	require.NoError(t, err)

	att, err := s.Attachments().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), att.Size)
	assert.Equal(t, "application/octet-stream", att.ContentType)
	assert.Len(t, att.Checksum, 64)

	_, err = s.Attachments().Save(ctx, ports.Upload{Name: "b.txt", Data: []byte("abcde")})
	assert.ErrorIs(t, err, entities.ErrAttachmentTooLarge)

	_, err = s.Attachments().Save(ctx, ports.Upload{Name: "  ", Data: []byte("a")})
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}
