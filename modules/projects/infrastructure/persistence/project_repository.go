package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/aggregates/project"
	"github.com/planora/planora/modules/projects/infrastructure/persistence/models"
	"github.com/planora/planora/pkg/composables"
)

const projectFindQuery = `SELECT id, workspace_id, name, archived, created_at, updated_at FROM projects`

type ProjectRepository struct{}

func NewProjectRepository() project.Repository {
	return &ProjectRepository{}
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (project.Project, error) {
	projects, err := r.queryProjects(ctx, projectFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, project.ErrProjectNotFound
	}
	return projects[0], nil
}

func (r *ProjectRepository) GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]project.Project, error) {
	return r.queryProjects(
		ctx,
		projectFindQuery+" WHERE workspace_id = $1 ORDER BY created_at",
		workspaceID.String(),
	)
}

func (r *ProjectRepository) Create(ctx context.Context, p project.Project) (project.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO projects (id, workspace_id, name, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(
		ctx,
		query,
		p.ID().String(),
		p.WorkspaceID().String(),
		p.Name(),
		p.Archived(),
		p.CreatedAt(),
		p.UpdatedAt(),
	); err != nil {
		return nil, errors.Wrap(err, "failed to insert project")
	}
	return r.GetByID(ctx, p.ID())
}

func (r *ProjectRepository) Update(ctx context.Context, p project.Project) (project.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `UPDATE projects SET name = $1, archived = $2, updated_at = $3 WHERE id = $4`
	if _, err := tx.Exec(ctx, query, p.Name(), p.Archived(), p.UpdatedAt(), p.ID().String()); err != nil {
		return nil, errors.Wrap(err, "failed to update project")
	}
	return r.GetByID(ctx, p.ID())
}

func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id.String())
	return err
}

func (r *ProjectRepository) queryProjects(ctx context.Context, query string, args ...interface{}) ([]project.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var projects []project.Project
	for rows.Next() {
		var m models.Project
		if err := rows.Scan(
			&m.ID,
			&m.WorkspaceID,
			&m.Name,
			&m.Archived,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan project row")
		}
		p, err := toDomainProject(&m)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
