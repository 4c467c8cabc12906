package services

import (
	"context"
	"fmt"
	"time"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// Tree is an id-indexed snapshot of one project's tasks and timesheet lines.
type Tree struct {
	tasks    map[int]*entities.Task
	children map[int][]int
	roots    []int
	lines    map[int][]*entities.TimesheetLine
}

// NewTree indexes tasks by parent. Tasks whose parent is not in the set are
// treated as roots. Child order follows the order of tasks.
func NewTree(tasks []*entities.Task, lines []*entities.TimesheetLine) *Tree {
	t := &Tree{
		tasks:    make(map[int]*entities.Task, len(tasks)),
		children: make(map[int][]int),
		lines:    make(map[int][]*entities.TimesheetLine),
	}
	for _, task := range tasks {
		t.tasks[task.ID] = task
	}
	for _, task := range tasks {
		if task.ParentID != nil {
			if _, ok := t.tasks[*task.ParentID]; ok {
				t.children[*task.ParentID] = append(t.children[*task.ParentID], task.ID)
				continue
			}
		}
		t.roots = append(t.roots, task.ID)
	}
	for _, line := range lines {
		t.lines[line.TaskID] = append(t.lines[line.TaskID], line)
	}
	return t
}

func (t *Tree) Task(id int) *entities.Task {
	return t.tasks[id]
}

func (t *Tree) Roots() []int {
	return t.roots
}

func (t *Tree) Children(id int) []int {
	return t.children[id]
}

// Subtree returns id and all of its descendants, parents before children.
func (t *Tree) Subtree(id int) ([]int, error) {
	if _, ok := t.tasks[id]; !ok {
		return nil, entities.ErrTaskNotFound
	}
	seen := map[int]bool{}
	var out []int
	stack := []int{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			return nil, entities.ErrHierarchyCycle.Withf("task %d is its own ancestor", cur)
		}
		seen[cur] = true
		out = append(out, cur)
		kids := t.children[cur]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out, nil
}

// Rollup computes derived figures for every task with an iterative
// post-order walk. Tasks unreachable from a root sit on a parent cycle.
func (t *Tree) Rollup() (map[int]ports.Rollup, error) {
	type frame struct {
		id       int
		expanded bool
	}

	out := make(map[int]ports.Rollup, len(t.tasks))
	seen := make(map[int]bool, len(t.tasks))
	stack := make([]frame, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: t.roots[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !f.expanded {
			if seen[f.id] {
				return nil, entities.ErrHierarchyCycle.Withf("task %d reached twice", f.id)
			}
			seen[f.id] = true
			stack = append(stack, frame{id: f.id, expanded: true})
			for _, child := range t.children[f.id] {
				stack = append(stack, frame{id: child})
			}
			continue
		}

		out[f.id] = t.rollupOne(f.id, out)
	}

	if len(seen) != len(t.tasks) {
		for id := range t.tasks {
			if !seen[id] {
				return nil, entities.ErrHierarchyCycle.Withf("task %d is its own ancestor", id)
			}
		}
	}
	return out, nil
}

// rollupOne combines a task's own lines with its already computed children.
func (t *Tree) rollupOne(id int, done map[int]ports.Rollup) ports.Rollup {
	var r ports.Rollup
	for _, line := range t.lines[id] {
		if line.Start.IsZero() || line.End == nil {
			continue
		}
		r.ActualMandays++
		r.ActualStart = minTime(r.ActualStart, &line.Start)
		r.ActualEnd = maxTime(r.ActualEnd, line.End)
	}

	kids := t.children[id]
	if len(kids) == 0 {
		if t.tasks[id].IsDone() {
			r.Progress = 100
		}
		return r
	}

	var sum float64
	for _, child := range kids {
		c := done[child]
		sum += c.Progress
		r.ActualMandays += c.ActualMandays
		r.ActualStart = minTime(r.ActualStart, c.ActualStart)
		r.ActualEnd = maxTime(r.ActualEnd, c.ActualEnd)
	}
	r.Progress = sum / float64(len(kids))
	return r
}

// ProjectRollup aggregates top-level progress and all-task dates and counts.
func (t *Tree) ProjectRollup(rollups map[int]ports.Rollup) ports.Rollup {
	var p ports.Rollup
	var sum float64
	var topLevel int
	for _, id := range t.roots {
		r := rollups[id]
		p.ActualMandays += r.ActualMandays
		p.ActualStart = minTime(p.ActualStart, r.ActualStart)
		p.ActualEnd = maxTime(p.ActualEnd, r.ActualEnd)
		if t.tasks[id].IsTopLevel() {
			sum += r.Progress
			topLevel++
		}
	}
	if topLevel > 0 {
		p.Progress = sum / float64(topLevel)
	}
	return p
}

func minTime(a, b *time.Time) *time.Time {
	if b == nil {
		return a
	}
	if a == nil || b.Before(*a) {
		v := *b
		return &v
	}
	return a
}

func maxTime(a, b *time.Time) *time.Time {
	if b == nil {
		return a
	}
	if a == nil || b.After(*a) {
		v := *b
		return &v
	}
	return a
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// ShareOf splits a parent's allocation evenly across siblings.
func ShareOf(total float64, siblings int) float64 {
	if siblings <= 0 {
		return 0
	}
	return total / float64(siblings)
}

// HierarchyService recomputes derived task and project fields
type HierarchyService struct {
	taskRepo    ports.TaskRepository
	lineRepo    ports.TimesheetRepository
	projectRepo ports.ProjectRepository
	logger      *logger.Logger
}

// NewHierarchyService creates a new hierarchy service
func NewHierarchyService(taskRepo ports.TaskRepository, lineRepo ports.TimesheetRepository, projectRepo ports.ProjectRepository, logger *logger.Logger) *HierarchyService {
	return &HierarchyService{
		taskRepo:    taskRepo,
		lineRepo:    lineRepo,
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// LoadTree reads a project's tasks, ordered by creation, and their lines.
func (s *HierarchyService) LoadTree(ctx context.Context, projectID int) (*Tree, error) {
	tasks, err := s.taskRepo.Search(ctx, ports.Where(ports.Eq(ports.FieldProjectID, projectID)).
		OrderBy(ports.FieldCreatedAt, false).
		OrderBy(ports.FieldID, false))
	if err != nil {
		return nil, fmt.Errorf("failed to load project tasks: %w", err)
	}

	var lines []*entities.TimesheetLine
	if len(tasks) > 0 {
		ids := make([]int, len(tasks))
		for i, task := range tasks {
			ids[i] = task.ID
		}
		lines, err = s.lineRepo.Search(ctx, ports.Where(ports.In(ports.FieldTaskID, ids)))
		if err != nil {
			return nil, fmt.Errorf("failed to load project timesheets: %w", err)
		}
	}
	return NewTree(tasks, lines), nil
}

// RefreshProject recomputes progress, actual dates and actual mandays for
// every task of the project and for the project itself. Only records whose
// figures changed are written.
func (s *HierarchyService) RefreshProject(ctx context.Context, projectID int) (*entities.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	tree, err := s.LoadTree(ctx, projectID)
	if err != nil {
		return nil, err
	}
	rollups, err := tree.Rollup()
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate project %d: %w", projectID, err)
	}

	updated := 0
	for id, r := range rollups {
		task := tree.Task(id)
		if task.Progress == r.Progress && task.ActualMandays == r.ActualMandays &&
			sameTime(task.ActualStart, r.ActualStart) && sameTime(task.ActualEnd, r.ActualEnd) {
			continue
		}
		if err := s.taskRepo.UpdateRollup(ctx, id, r); err != nil {
			return nil, fmt.Errorf("failed to update task %d rollup: %w", id, err)
		}
		updated++
	}

	p := tree.ProjectRollup(rollups)
	if err := s.projectRepo.UpdateRollup(ctx, projectID, p); err != nil {
		return nil, fmt.Errorf("failed to update project rollup: %w", err)
	}
	project.Progress = p.Progress
	project.ActualMandays = p.ActualMandays
	project.ActualStart = p.ActualStart
	project.ActualEnd = p.ActualEnd

	s.logger.Debugw("Project rollup refreshed",
		"project_id", projectID,
		"tasks_updated", updated,
		"progress", project.Progress,
		"actual_mandays", project.ActualMandays,
	)
	return project, nil
}
