package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/entities/subtask"
	"github.com/planora/planora/modules/projects/infrastructure/persistence/models"
	"github.com/planora/planora/pkg/composables"
)

const subTaskFindQuery = `
	SELECT id, task_id, project_id, workspace_id, title, completed, position, created_at, updated_at
	FROM sub_tasks`

type SubTaskRepository struct{}

func NewSubTaskRepository() subtask.Repository {
	return &SubTaskRepository{}
}

func (r *SubTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*subtask.SubTask, error) {
	subTasks, err := r.querySubTasks(ctx, subTaskFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(subTasks) == 0 {
		return nil, subtask.ErrSubTaskNotFound
	}
	return subTasks[0], nil
}

func (r *SubTaskRepository) GetByTask(ctx context.Context, taskID uuid.UUID) ([]*subtask.SubTask, error) {
	return r.querySubTasks(
		ctx,
		subTaskFindQuery+" WHERE task_id = $1 ORDER BY position",
		taskID.String(),
	)
}

// Create appends the sub-task at the tail of its task's checklist.
func (r *SubTaskRepository) Create(ctx context.Context, s *subtask.SubTask) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sub_tasks (id, task_id, project_id, workspace_id, title, completed, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, (SELECT COUNT(*) FROM sub_tasks WHERE task_id = $2), $7, $8)
		RETURNING position
	`
	if err := tx.QueryRow(
		ctx,
		query,
		s.ID.String(),
		s.TaskID.String(),
		s.ProjectID.String(),
		s.WorkspaceID.String(),
		s.Title,
		s.Completed,
		s.CreatedAt,
		s.UpdatedAt,
	).Scan(&s.Position); err != nil {
		return errors.Wrap(err, "failed to insert sub-task")
	}
	return nil
}

func (r *SubTaskRepository) Update(ctx context.Context, s *subtask.SubTask) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := `UPDATE sub_tasks SET title = $1, completed = $2, updated_at = $3 WHERE id = $4`
	if _, err := tx.Exec(ctx, query, s.Title, s.Completed, s.UpdatedAt, s.ID.String()); err != nil {
		return errors.Wrap(err, "failed to update sub-task")
	}
	return nil
}

// Reparent follows a cross-task move and fixes the denormalized scope
// columns; task_id and position were already rewritten by the ordering store.
func (r *SubTaskRepository) Reparent(ctx context.Context, id, projectID, workspaceID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	query := `UPDATE sub_tasks SET project_id = $2, workspace_id = $3 WHERE id = $1`
	if _, err := tx.Exec(ctx, query, id.String(), projectID.String(), workspaceID.String()); err != nil {
		return errors.Wrap(err, "failed to reparent sub-task")
	}
	return nil
}

func (r *SubTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM sub_tasks WHERE id = $1`, id.String())
	return err
}

func (r *SubTaskRepository) querySubTasks(ctx context.Context, query string, args ...interface{}) ([]*subtask.SubTask, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var subTasks []*subtask.SubTask
	for rows.Next() {
		var m models.SubTask
		if err := rows.Scan(
			&m.ID,
			&m.TaskID,
			&m.ProjectID,
			&m.WorkspaceID,
			&m.Title,
			&m.Completed,
			&m.Position,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan sub-task row")
		}
		s, err := toDomainSubTask(&m)
		if err != nil {
			return nil, err
		}
		subTasks = append(subTasks, s)
	}
	return subTasks, rows.Err()
}
