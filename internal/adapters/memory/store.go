// Package memory keeps every repository in process memory. It honours the
// same invariants as the PostgreSQL schema, including the single open
// timesheet line per task and employee, and cascades deletes the way the
// foreign keys do.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

// Store holds all records
type Store struct {
	mu    sync.RWMutex
	clock ports.Clock

	seq         map[string]int
	projects    map[int]*entities.Project
	tasks       map[int]*entities.Task
	lines       map[int]*entities.TimesheetLine
	corrections map[int]*entities.CorrectionRequest
	employees   map[int]*entities.Employee
	notes       []*entities.AuditNote
	attachments map[uuid.UUID]*entities.Attachment

	maxAttachmentBytes int64
}

// NewStore creates an empty store. maxAttachmentBytes <= 0 disables the size check.
func NewStore(clock ports.Clock, maxAttachmentBytes int64) *Store {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Store{
		clock:              clock,
		seq:                make(map[string]int),
		projects:           make(map[int]*entities.Project),
		tasks:              make(map[int]*entities.Task),
		lines:              make(map[int]*entities.TimesheetLine),
		corrections:        make(map[int]*entities.CorrectionRequest),
		employees:          make(map[int]*entities.Employee),
		attachments:        make(map[uuid.UUID]*entities.Attachment),
		maxAttachmentBytes: maxAttachmentBytes,
	}
}

func (s *Store) Projects() ports.ProjectRepository       { return &projectRepository{s} }
func (s *Store) Tasks() ports.TaskRepository             { return &taskRepository{s} }
func (s *Store) Timesheets() ports.TimesheetRepository   { return &timesheetRepository{s} }
func (s *Store) Corrections() ports.CorrectionRepository { return &correctionRepository{s} }
func (s *Store) Employees() ports.EmployeeRepository     { return &employeeRepository{s} }
func (s *Store) Audit() ports.AuditRepository            { return &auditRepository{s} }
func (s *Store) Attachments() ports.AttachmentRepository { return &AttachmentStore{s} }

func (s *Store) nextID(table string) int {
	s.seq[table]++
	return s.seq[table]
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Records are copied on the way in and out so callers never share pointer
// or slice fields with the store.

func cloneProject(p *entities.Project) *entities.Project {
	cp := *p
	cp.ActualStart = copyPtr(p.ActualStart)
	cp.ActualEnd = copyPtr(p.ActualEnd)
	return &cp
}

func cloneTask(t *entities.Task) *entities.Task {
	cp := *t
	cp.ParentID = copyPtr(t.ParentID)
	cp.Description = copyPtr(t.Description)
	cp.PlannedStart = copyPtr(t.PlannedStart)
	cp.PlannedEnd = copyPtr(t.PlannedEnd)
	cp.ActualStart = copyPtr(t.ActualStart)
	cp.ActualEnd = copyPtr(t.ActualEnd)
	return &cp
}

func cloneNote(n *entities.AuditNote) *entities.AuditNote {
	cp := *n
	cp.AttachmentIDs = append([]uuid.UUID{}, n.AttachmentIDs...)
	return &cp
}

func sortedByID[T any](m map[int]T) []T {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// Projects

var projectFields = fieldSet[*entities.Project]{
	ports.FieldID:        func(p *entities.Project) interface{} { return p.ID },
	ports.FieldCode:      func(p *entities.Project) interface{} { return p.Code },
	"label":              func(p *entities.Project) interface{} { return p.Label },
	ports.FieldStatus:    func(p *entities.Project) interface{} { return p.Status },
	ports.FieldCreatedAt: func(p *entities.Project) interface{} { return p.CreatedAt },
}

type projectRepository struct{ s *Store }

func (r *projectRepository) Create(ctx context.Context, project *entities.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.clock.Now()
	project.ID = r.s.nextID("projects")
	project.CreatedAt, project.UpdatedAt = now, now
	r.s.projects[project.ID] = cloneProject(project)
	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, id int) (*entities.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.projects[id]
	if !ok {
		return nil, entities.ErrProjectNotFound
	}
	return cloneProject(p), nil
}

func (r *projectRepository) Update(ctx context.Context, project *entities.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[project.ID]; !ok {
		return entities.ErrProjectNotFound
	}
	project.UpdatedAt = r.s.clock.Now()
	r.s.projects[project.ID] = cloneProject(project)
	return nil
}

func (r *projectRepository) UpdateRollup(ctx context.Context, id int, roll ports.Rollup) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.projects[id]
	if !ok {
		return entities.ErrProjectNotFound
	}
	p.Progress = roll.Progress
	p.ActualMandays = roll.ActualMandays
	p.ActualStart = copyPtr(roll.ActualStart)
	p.ActualEnd = copyPtr(roll.ActualEnd)
	p.UpdatedAt = r.s.clock.Now()
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[id]; !ok {
		return entities.ErrProjectNotFound
	}
	for _, t := range r.s.tasks {
		if t.ProjectID == id {
			r.s.deleteTaskTree(t.ID)
		}
	}
	delete(r.s.projects, id)
	return nil
}

func (r *projectRepository) Search(ctx context.Context, q ports.Query) ([]*entities.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	found, err := search(sortedByID(r.s.projects), projectFields, q)
	if err != nil {
		return nil, err
	}
	out := make([]*entities.Project, len(found))
	for i, p := range found {
		out[i] = cloneProject(p)
	}
	return out, nil
}

// Tasks

var taskFields = fieldSet[*entities.Task]{
	ports.FieldID:          func(t *entities.Task) interface{} { return t.ID },
	ports.FieldProjectID:   func(t *entities.Task) interface{} { return t.ProjectID },
	ports.FieldParentID:    func(t *entities.Task) interface{} { return t.ParentID },
	ports.FieldName:        func(t *entities.Task) interface{} { return t.Name },
	ports.FieldTitle:       func(t *entities.Task) interface{} { return t.Title },
	ports.FieldDescription: func(t *entities.Task) interface{} { return t.Description },
	ports.FieldStatus:      func(t *entities.Task) interface{} { return t.Status },
	ports.FieldCreatedAt:   func(t *entities.Task) interface{} { return t.CreatedAt },
}

type taskRepository struct{ s *Store }

func (r *taskRepository) Create(ctx context.Context, task *entities.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[task.ProjectID]; !ok {
		return entities.ErrProjectNotFound
	}
	if task.ParentID != nil {
		if _, ok := r.s.tasks[*task.ParentID]; !ok {
			return entities.ErrTaskNotFound.Withf("parent task %d not found", *task.ParentID)
		}
	}
	now := r.s.clock.Now()
	task.ID = r.s.nextID("tasks")
	task.CreatedAt, task.UpdatedAt = now, now
	r.s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id int) (*entities.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (r *taskRepository) Update(ctx context.Context, task *entities.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[task.ID]; !ok {
		return entities.ErrTaskNotFound
	}
	task.UpdatedAt = r.s.clock.Now()
	r.s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (r *taskRepository) UpdateRollup(ctx context.Context, id int, roll ports.Rollup) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return entities.ErrTaskNotFound
	}
	t.Progress = roll.Progress
	t.ActualMandays = roll.ActualMandays
	t.ActualStart = copyPtr(roll.ActualStart)
	t.ActualEnd = copyPtr(roll.ActualEnd)
	t.UpdatedAt = r.s.clock.Now()
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[id]; !ok {
		return entities.ErrTaskNotFound
	}
	r.s.deleteTaskTree(id)
	return nil
}

func (r *taskRepository) Search(ctx context.Context, q ports.Query) ([]*entities.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	found, err := search(sortedByID(r.s.tasks), taskFields, q)
	if err != nil {
		return nil, err
	}
	out := make([]*entities.Task, len(found))
	for i, t := range found {
		out[i] = cloneTask(t)
	}
	return out, nil
}

// deleteTaskTree removes a task, its descendants and their timesheet lines.
// Callers hold the write lock.
func (s *Store) deleteTaskTree(rootID int) {
	doomed := map[int]bool{rootID: true}
	queue := []int{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, t := range s.tasks {
			if t.ParentID != nil && *t.ParentID == id && !doomed[t.ID] {
				doomed[t.ID] = true
				queue = append(queue, t.ID)
			}
		}
	}
	for id := range doomed {
		delete(s.tasks, id)
	}
	for id, l := range s.lines {
		if doomed[l.TaskID] {
			s.deleteLine(id)
		}
	}
}

// Timesheet lines

var lineFields = fieldSet[*entities.TimesheetLine]{
	ports.FieldID:          func(l *entities.TimesheetLine) interface{} { return l.ID },
	ports.FieldTaskID:      func(l *entities.TimesheetLine) interface{} { return l.TaskID },
	ports.FieldEmployeeID:  func(l *entities.TimesheetLine) interface{} { return l.EmployeeID },
	ports.FieldStart:       func(l *entities.TimesheetLine) interface{} { return l.Start },
	ports.FieldEnd:         func(l *entities.TimesheetLine) interface{} { return l.End },
	ports.FieldState:       func(l *entities.TimesheetLine) interface{} { return l.State },
	ports.FieldDescription: func(l *entities.TimesheetLine) interface{} { return l.Description },
	ports.FieldCreatedAt:   func(l *entities.TimesheetLine) interface{} { return l.CreatedAt },
}

func cloneLine(l *entities.TimesheetLine) *entities.TimesheetLine {
	cp := *l
	cp.End = copyPtr(l.End)
	cp.PauseStart = copyPtr(l.PauseStart)
	cp.PauseEvents = append(entities.PauseEvents{}, l.PauseEvents...)
	return &cp
}

type timesheetRepository struct{ s *Store }

// openConflict reports whether another open line exists for the pair.
// Callers hold the lock.
func (s *Store) openConflict(line *entities.TimesheetLine) bool {
	if line.End != nil {
		return false
	}
	for _, other := range s.lines {
		if other.ID != line.ID && other.End == nil &&
			other.TaskID == line.TaskID && other.EmployeeID == line.EmployeeID {
			return true
		}
	}
	return false
}

func (r *timesheetRepository) Create(ctx context.Context, line *entities.TimesheetLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[line.TaskID]; !ok {
		return entities.ErrTaskNotFound
	}
	if r.s.openConflict(line) {
		return entities.ErrTimerConflict
	}
	now := r.s.clock.Now()
	line.ID = r.s.nextID("timesheet_lines")
	line.CreatedAt, line.UpdatedAt = now, now
	if line.PauseEvents == nil {
		line.PauseEvents = entities.PauseEvents{}
	}
	r.s.lines[line.ID] = cloneLine(line)
	return nil
}

func (r *timesheetRepository) GetByID(ctx context.Context, id int) (*entities.TimesheetLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.lines[id]
	if !ok {
		return nil, entities.ErrTimesheetNotFound
	}
	return cloneLine(l), nil
}

func (r *timesheetRepository) Update(ctx context.Context, line *entities.TimesheetLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.lines[line.ID]; !ok {
		return entities.ErrTimesheetNotFound
	}
	if r.s.openConflict(line) {
		return entities.ErrTimerConflict
	}
	line.UpdatedAt = r.s.clock.Now()
	r.s.lines[line.ID] = cloneLine(line)
	return nil
}

func (r *timesheetRepository) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.lines[id]; !ok {
		return entities.ErrTimesheetNotFound
	}
	r.s.deleteLine(id)
	return nil
}

func (s *Store) deleteLine(id int) {
	delete(s.lines, id)
	for cid, c := range s.corrections {
		if c.LineID == id {
			delete(s.corrections, cid)
		}
	}
}

func (r *timesheetRepository) Search(ctx context.Context, q ports.Query) ([]*entities.TimesheetLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	found, err := search(sortedByID(r.s.lines), lineFields, q)
	if err != nil {
		return nil, err
	}
	out := make([]*entities.TimesheetLine, len(found))
	for i, l := range found {
		out[i] = cloneLine(l)
	}
	return out, nil
}

// Correction requests

var correctionFields = fieldSet[*entities.CorrectionRequest]{
	ports.FieldID:         func(c *entities.CorrectionRequest) interface{} { return c.ID },
	ports.FieldLineID:     func(c *entities.CorrectionRequest) interface{} { return c.LineID },
	ports.FieldEmployeeID: func(c *entities.CorrectionRequest) interface{} { return c.EmployeeID },
	ports.FieldState:      func(c *entities.CorrectionRequest) interface{} { return c.State },
	ports.FieldCreatedAt:  func(c *entities.CorrectionRequest) interface{} { return c.CreatedAt },
}

type correctionRepository struct{ s *Store }

func (r *correctionRepository) Create(ctx context.Context, req *entities.CorrectionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.lines[req.LineID]; !ok {
		return entities.ErrTimesheetNotFound
	}
	now := r.s.clock.Now()
	req.ID = r.s.nextID("corrections")
	req.CreatedAt, req.UpdatedAt = now, now
	cp := *req
	r.s.corrections[req.ID] = &cp
	return nil
}

func (r *correctionRepository) GetByID(ctx context.Context, id int) (*entities.CorrectionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.corrections[id]
	if !ok {
		return nil, entities.ErrCorrectionNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *correctionRepository) Update(ctx context.Context, req *entities.CorrectionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.corrections[req.ID]; !ok {
		return entities.ErrCorrectionNotFound
	}
	req.UpdatedAt = r.s.clock.Now()
	cp := *req
	r.s.corrections[req.ID] = &cp
	return nil
}

func (r *correctionRepository) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.corrections[id]; !ok {
		return entities.ErrCorrectionNotFound
	}
	delete(r.s.corrections, id)
	return nil
}

func (r *correctionRepository) Search(ctx context.Context, q ports.Query) ([]*entities.CorrectionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	found, err := search(sortedByID(r.s.corrections), correctionFields, q)
	if err != nil {
		return nil, err
	}
	out := make([]*entities.CorrectionRequest, len(found))
	for i, c := range found {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

// Employees

type employeeRepository struct{ s *Store }

func (r *employeeRepository) Create(ctx context.Context, employee *entities.Employee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.employees {
		if e.UserID == employee.UserID {
			return entities.NewConflictError("employee_exists", "an employee is already linked to this user")
		}
	}
	employee.ID = r.s.nextID("employees")
	employee.CreatedAt = r.s.clock.Now()
	cp := *employee
	r.s.employees[employee.ID] = &cp
	return nil
}

func (r *employeeRepository) GetByID(ctx context.Context, id int) (*entities.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.employees[id]
	if !ok {
		return nil, entities.ErrEmployeeNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *employeeRepository) EmployeeByUser(ctx context.Context, userID uuid.UUID) (*entities.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, e := range sortedByID(r.s.employees) {
		if e.UserID == userID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

// Audit log

type auditRepository struct{ s *Store }

func (r *auditRepository) Post(ctx context.Context, note *entities.AuditNote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	note.CreatedAt = r.s.clock.Now()
	r.s.notes = append(r.s.notes, cloneNote(note))
	return nil
}

func (r *auditRepository) List(ctx context.Context, model string, resID int) ([]*entities.AuditNote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entities.AuditNote
	for _, n := range r.s.notes {
		if n.Model == model && n.ResID == resID {
			out = append(out, cloneNote(n))
		}
	}
	return out, nil
}

// AttachmentStore keeps uploads in memory
type AttachmentStore struct{ s *Store }

func (a *AttachmentStore) Save(ctx context.Context, upload ports.Upload) (uuid.UUID, error) {
	if strings.TrimSpace(upload.Name) == "" {
		return uuid.Nil, entities.ErrInvalidInput.Withf("attachment name is required")
	}
	if a.s.maxAttachmentBytes > 0 && int64(len(upload.Data)) > a.s.maxAttachmentBytes {
		return uuid.Nil, entities.ErrAttachmentTooLarge.Withf("attachment %s exceeds %d bytes", upload.Name, a.s.maxAttachmentBytes)
	}

	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	att := entities.NewAttachment(upload.Name, upload.ContentType, append([]byte{}, upload.Data...), a.s.clock.Now())
	a.s.attachments[att.ID] = att
	return att.ID, nil
}

func (a *AttachmentStore) Get(ctx context.Context, id uuid.UUID) (*entities.Attachment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	att, ok := a.s.attachments[id]
	if !ok {
		return nil, entities.ErrAttachmentNotFound
	}
	cp := *att
	cp.Data = append([]byte{}, att.Data...)
	return &cp, nil
}
