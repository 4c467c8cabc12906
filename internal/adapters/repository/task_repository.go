package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

const taskColumns = `id, project_id, parent_id, name, title, description, status, weight,
	mandays_budget, actual_mandays, progress, planned_start, planned_end,
	actual_start, actual_end, created_at, updated_at`

var taskFields = columns{
	ports.FieldID:          "id",
	ports.FieldProjectID:   "project_id",
	ports.FieldParentID:    "parent_id",
	ports.FieldName:        "name",
	ports.FieldTitle:       "title",
	ports.FieldDescription: "description",
	ports.FieldStatus:      "status",
	ports.FieldCreatedAt:   "created_at",
}

// TaskRepositoryImpl implements ports.TaskRepository on PostgreSQL
type TaskRepositoryImpl struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlx.DB) ports.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (project_id, parent_id, name, title, description, status, weight,
			mandays_budget, actual_mandays, progress, planned_start, planned_end, actual_start, actual_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		task.ProjectID, task.ParentID, task.Name, task.Title, task.Description, task.Status,
		task.Weight, task.MandaysBudget, task.ActualMandays, task.Progress,
		task.PlannedStart, task.PlannedEnd, task.ActualStart, task.ActualEnd,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	return translate("create task", err, nil)
}

func (r *TaskRepositoryImpl) GetByID(ctx context.Context, id int) (*entities.Task, error) {
	var task entities.Task
	err := r.db.GetContext(ctx, &task, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if err != nil {
		return nil, translate("get task", err, entities.ErrTaskNotFound)
	}
	return &task, nil
}

func (r *TaskRepositoryImpl) Update(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET parent_id = $2, name = $3, title = $4, description = $5, status = $6, weight = $7,
			mandays_budget = $8, actual_mandays = $9, progress = $10, planned_start = $11,
			planned_end = $12, actual_start = $13, actual_end = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		task.ID, task.ParentID, task.Name, task.Title, task.Description, task.Status, task.Weight,
		task.MandaysBudget, task.ActualMandays, task.Progress, task.PlannedStart,
		task.PlannedEnd, task.ActualStart, task.ActualEnd,
	).Scan(&task.UpdatedAt)
	return translate("update task", err, entities.ErrTaskNotFound)
}

func (r *TaskRepositoryImpl) UpdateRollup(ctx context.Context, id int, roll ports.Rollup) error {
	query := `
		UPDATE tasks
		SET progress = $2, actual_mandays = $3, actual_start = $4, actual_end = $5, updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, roll.Progress, roll.ActualMandays, roll.ActualStart, roll.ActualEnd)
	if err != nil {
		return translate("update task rollup", err, nil)
	}
	return expectRow("update task rollup", res, entities.ErrTaskNotFound)
}

// Delete removes the task and, through the parent foreign key, its subtree.
func (r *TaskRepositoryImpl) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return translate("delete task", err, nil)
	}
	return expectRow("delete task", res, entities.ErrTaskNotFound)
}

func (r *TaskRepositoryImpl) Search(ctx context.Context, q ports.Query) ([]*entities.Task, error) {
	query, args, err := selectQuery(`SELECT `+taskColumns+` FROM tasks`, taskFields, q)
	if err != nil {
		return nil, err
	}
	tasks := []*entities.Task{}
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, translate("search tasks", err, nil)
	}
	return tasks, nil
}
