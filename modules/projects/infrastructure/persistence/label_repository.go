package persistence

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/entities/label"
	"github.com/planora/planora/modules/projects/infrastructure/persistence/models"
	"github.com/planora/planora/pkg/composables"
)

const labelFindQuery = `SELECT id, project_id, name, color, created_at FROM labels`

type LabelRepository struct{}

func NewLabelRepository() label.Repository {
	return &LabelRepository{}
}

func (r *LabelRepository) GetByID(ctx context.Context, id uuid.UUID) (*label.Label, error) {
	labels, err := r.queryLabels(ctx, labelFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, label.ErrLabelNotFound
	}
	return labels[0], nil
}

func (r *LabelRepository) GetByProject(ctx context.Context, projectID uuid.UUID) ([]*label.Label, error) {
	return r.queryLabels(
		ctx,
		labelFindQuery+" WHERE project_id = $1 ORDER BY name",
		projectID.String(),
	)
}

func (r *LabelRepository) Create(ctx context.Context, l *label.Label) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	var color sql.NullString
	if l.Color != "" {
		color = sql.NullString{String: l.Color, Valid: true}
	}
	query := `
		INSERT INTO labels (id, project_id, name, color, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, query, l.ID.String(), l.ProjectID.String(), l.Name, color, l.CreatedAt); err != nil {
		return errors.Wrap(err, "failed to insert label")
	}
	return nil
}

func (r *LabelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM labels WHERE id = $1`, id.String())
	return err
}

func (r *LabelRepository) queryLabels(ctx context.Context, query string, args ...interface{}) ([]*label.Label, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
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
