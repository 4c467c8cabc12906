package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

const projectColumns = `id, code, label, status, mandays_budget, actual_mandays, progress,
	actual_start, actual_end, created_at, updated_at`

var projectFields = columns{
	ports.FieldID:        "id",
	ports.FieldCode:      "code",
	"label":              "label",
	ports.FieldStatus:    "status",
	ports.FieldCreatedAt: "created_at",
}

// ProjectRepositoryImpl implements ports.ProjectRepository on PostgreSQL
type ProjectRepositoryImpl struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sqlx.DB) ports.ProjectRepository {
	return &ProjectRepositoryImpl{db: db}
}

func (r *ProjectRepositoryImpl) Create(ctx context.Context, project *entities.Project) error {
	query := `
		INSERT INTO projects (code, label, status, mandays_budget, actual_mandays, progress, actual_start, actual_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		project.Code, project.Label, project.Status, project.MandaysBudget,
		project.ActualMandays, project.Progress, project.ActualStart, project.ActualEnd,
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	return translate("create project", err, nil)
}

func (r *ProjectRepositoryImpl) GetByID(ctx context.Context, id int) (*entities.Project, error) {
	var project entities.Project
	err := r.db.GetContext(ctx, &project, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	if err != nil {
		return nil, translate("get project", err, entities.ErrProjectNotFound)
	}
	return &project, nil
}

func (r *ProjectRepositoryImpl) Update(ctx context.Context, project *entities.Project) error {
	query := `
		UPDATE projects
		SET code = $2, label = $3, status = $4, mandays_budget = $5, actual_mandays = $6,
			progress = $7, actual_start = $8, actual_end = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		project.ID, project.Code, project.Label, project.Status, project.MandaysBudget,
		project.ActualMandays, project.Progress, project.ActualStart, project.ActualEnd,
	).Scan(&project.UpdatedAt)
	return translate("update project", err, entities.ErrProjectNotFound)
}

func (r *ProjectRepositoryImpl) UpdateRollup(ctx context.Context, id int, roll ports.Rollup) error {
	query := `
		UPDATE projects
		SET progress = $2, actual_mandays = $3, actual_start = $4, actual_end = $5, updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, roll.Progress, roll.ActualMandays, roll.ActualStart, roll.ActualEnd)
	if err != nil {
		return translate("update project rollup", err, nil)
	}
	return expectRow("update project rollup", res, entities.ErrProjectNotFound)
}

// Delete removes the project. Tasks, lines and corrections go with it
// through ON DELETE CASCADE.
func (r *ProjectRepositoryImpl) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return translate("delete project", err, nil)
	}
	return expectRow("delete project", res, entities.ErrProjectNotFound)
}

func (r *ProjectRepositoryImpl) Search(ctx context.Context, q ports.Query) ([]*entities.Project, error) {
	query, args, err := selectQuery(`SELECT `+projectColumns+` FROM projects`, projectFields, q)
	if err != nil {
		return nil, err
	}
	projects := []*entities.Project{}
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, translate("search projects", err, nil)
	}
	return projects, nil
}
