package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/entities/label"
	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/infrastructure/persistence/models"
	"github.com/planora/planora/pkg/composables"
)

const taskFindQuery = `
	SELECT id, section_id, project_id, workspace_id, title, completed, position, created_at, updated_at
	FROM tasks`

type TaskRepository struct{}

func NewTaskRepository() task.Repository {
	return &TaskRepository{}
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (task.Task, error) {
	tasks, err := r.queryTasks(ctx, taskFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, task.ErrTaskNotFound
	}
	return tasks[0], nil
}

func (r *TaskRepository) GetBySection(ctx context.Context, sectionID uuid.UUID) ([]task.Task, error) {
	return r.queryTasks(
		ctx,
		taskFindQuery+" WHERE section_id = $1 ORDER BY position",
		sectionID.String(),
	)
}

func (r *TaskRepository) GetByProject(ctx context.Context, projectID uuid.UUID) ([]task.Task, error) {
	return r.queryTasks(
		ctx,
		taskFindQuery+" WHERE project_id = $1 ORDER BY section_id, position",
		projectID.String(),
	)
}

// Create appends the task at the tail of its section's collection.
func (r *TaskRepository) Create(ctx context.Context, t task.Task) (task.Task, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO tasks (id, section_id, project_id, workspace_id, title, completed, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, (SELECT COUNT(*) FROM tasks WHERE section_id = $2), $7, $8)
	`
	if _, err := tx.Exec(
		ctx,
		query,
		t.ID().String(),
		t.SectionID().String(),
		t.ProjectID().String(),
		t.WorkspaceID().String(),
		t.Title(),
		t.Completed(),
		t.CreatedAt(),
		t.UpdatedAt(),
	); err != nil {
		return nil, errors.Wrap(err, "failed to insert task")
	}
	return r.GetByID(ctx, t.ID())
}

// Update writes the task's fields except position, which is owned by the
// ordering store.
func (r *TaskRepository) Update(ctx context.Context, t task.Task) (task.Task, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE tasks
		SET section_id = $1, project_id = $2, title = $3, completed = $4, updated_at = $5
		WHERE id = $6
	`
	if _, err := tx.Exec(
		ctx,
		query,
		t.SectionID().String(),
		t.ProjectID().String(),
		t.Title(),
		t.Completed(),
		t.UpdatedAt(),
		t.ID().String(),
	); err != nil {
		return nil, errors.Wrap(err, "failed to update task")
	}
	return r.GetByID(ctx, t.ID())
}

// Reparent follows a cross-project move: the ordering store has already
// rewritten section_id and position, this fixes the denormalized scope
// columns on the task and its sub-tasks and detaches labels of the former
// project.
func (r *TaskRepository) Reparent(ctx context.Context, id, projectID, workspaceID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	queries := []struct {
		sql  string
		args []interface{}
	}{
		{
			sql:  `UPDATE tasks SET project_id = $2, workspace_id = $3 WHERE id = $1`,
			args: []interface{}{id.String(), projectID.String(), workspaceID.String()},
		},
		{
			sql:  `UPDATE sub_tasks SET project_id = $2, workspace_id = $3 WHERE task_id = $1`,
			args: []interface{}{id.String(), projectID.String(), workspaceID.String()},
		},
		{
			sql: `DELETE FROM task_labels tl
				USING labels l
				WHERE tl.label_id = l.id AND tl.task_id = $1 AND l.project_id <> $2`,
			args: []interface{}{id.String(), projectID.String()},
		},
	}
	for _, q := range queries {
		if _, err := tx.Exec(ctx, q.sql, q.args...); err != nil {
			return errors.Wrap(err, "failed to reparent task")
		}
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id.String())
	return err
}

func (r *TaskRepository) AttachLabel(ctx context.Context, taskID, labelID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO task_labels (task_id, label_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err = tx.Exec(ctx, query, taskID.String(), labelID.String())
	return err
}

func (r *TaskRepository) DetachLabel(ctx context.Context, taskID, labelID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	query := `DELETE FROM task_labels WHERE task_id = $1 AND label_id = $2`
	_, err = tx.Exec(ctx, query, taskID.String(), labelID.String())
	return err
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]task.Task, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var rowModels []models.Task
	for rows.Next() {
		var m models.Task
		if err := rows.Scan(
			&m.ID,
			&m.SectionID,
			&m.ProjectID,
			&m.WorkspaceID,
			&m.Title,
			&m.Completed,
			&m.Position,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan task row")
		}
		rowModels = append(rowModels, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	tasks := make([]task.Task, 0, len(rowModels))
	for i := range rowModels {
		labels, err := r.taskLabels(ctx, rowModels[i].ID)
		if err != nil {
			return nil, err
		}
		t, err := toDomainTask(&rowModels[i], labels)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *TaskRepository) taskLabels(ctx context.Context, taskID string) ([]*label.Label, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT l.id, l.project_id, l.name, l.color, l.created_at
		FROM labels l
		JOIN task_labels tl ON tl.label_id = l.id
		WHERE tl.task_id = $1
		ORDER BY l.name
	`
	rows, err := tx.Query(ctx, query, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query task labels")
	}
	defer rows.Close()

	var labels []*label.Label
	for rows.Next() {
		var m models.Label
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Color, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan label row")
		}
		l, err := toDomainLabel(&m)
		if err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}
