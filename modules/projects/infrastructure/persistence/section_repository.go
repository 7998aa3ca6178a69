package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/entities/section"
	"github.com/planora/planora/modules/projects/infrastructure/persistence/models"
	"github.com/planora/planora/pkg/composables"
)

const sectionFindQuery = `
	SELECT id, project_id, workspace_id, title, position, created_at, updated_at
	FROM sections`

type SectionRepository struct{}

func NewSectionRepository() section.Repository {
	return &SectionRepository{}
}

func (r *SectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*section.Section, error) {
	sections, err := r.querySections(ctx, sectionFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, section.ErrSectionNotFound
	}
	return sections[0], nil
}

func (r *SectionRepository) GetByProject(ctx context.Context, projectID uuid.UUID) ([]*section.Section, error) {
	return r.querySections(
		ctx,
		sectionFindQuery+" WHERE project_id = $1 ORDER BY position",
		projectID.String(),
	)
}

// Create appends the section at the tail of its project's collection. The
// position subquery runs under the sibling lock taken by the caller's
// transaction, so concurrent creations cannot collide.
func (r *SectionRepository) Create(ctx context.Context, s *section.Section) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sections (id, project_id, workspace_id, title, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, (SELECT COUNT(*) FROM sections WHERE project_id = $2), $5, $6)
		RETURNING position
	`
	if err := tx.QueryRow(
		ctx,
		query,
		s.ID.String(),
		s.ProjectID.String(),
		s.WorkspaceID.String(),
		s.Title,
		s.CreatedAt,
		s.UpdatedAt,
	).Scan(&s.Position); err != nil {
		return errors.Wrap(err, "failed to insert section")
	}
	return nil
}

func (r *SectionRepository) Update(ctx context.Context, s *section.Section) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := `UPDATE sections SET title = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.Exec(ctx, query, s.Title, s.UpdatedAt, s.ID.String()); err != nil {
		return errors.Wrap(err, "failed to update section")
	}
	return nil
}

// Reparent follows a cross-project move: the ordering store has already
// rewritten project_id and position, this fixes the remaining denormalized
// scope columns. Contained tasks and sub-tasks follow the section into the
// new project; their labels belonged to the old project and are detached.
func (r *SectionRepository) Reparent(ctx context.Context, id, projectID, workspaceID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	queries := []struct {
		sql  string
		args []interface{}
	}{
		{
			sql:  `UPDATE sections SET workspace_id = $2 WHERE id = $1`,
			args: []interface{}{id.String(), workspaceID.String()},
		},
		{
			sql:  `UPDATE tasks SET project_id = $2, workspace_id = $3 WHERE section_id = $1`,
			args: []interface{}{id.String(), projectID.String(), workspaceID.String()},
		},
		{
			sql: `UPDATE sub_tasks SET project_id = $2, workspace_id = $3
				WHERE task_id IN (SELECT id FROM tasks WHERE section_id = $1)`,
			args: []interface{}{id.String(), projectID.String(), workspaceID.String()},
		},
		{
			sql: `DELETE FROM task_labels tl
				USING labels l
				WHERE tl.label_id = l.id
				  AND l.project_id <> $2
				  AND tl.task_id IN (SELECT id FROM tasks WHERE section_id = $1)`,
			args: []interface{}{id.String(), projectID.String()},
		},
	}
	for _, q := range queries {
		if _, err := tx.Exec(ctx, q.sql, q.args...); err != nil {
			return errors.Wrap(err, "failed to reparent section")
		}
	}
	return nil
}

func (r *SectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM sections WHERE id = $1`, id.String())
	return err
}

func (r *SectionRepository) querySections(ctx context.Context, query string, args ...interface{}) ([]*section.Section, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var sections []*section.Section
	for rows.Next() {
		var m models.Section
		if err := rows.Scan(
			&m.ID,
			&m.ProjectID,
			&m.WorkspaceID,
			&m.Title,
			&m.Position,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan section row")
		}
		s, err := toDomainSection(&m)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}
