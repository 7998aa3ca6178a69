package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/planora/planora/modules/projects/domain/aggregates/workspace"
	"github.com/planora/planora/modules/projects/infrastructure/persistence/models"
	"github.com/planora/planora/pkg/composables"
)

const workspaceFindQuery = `SELECT id, name, created_at, updated_at FROM workspaces`

type WorkspaceRepository struct{}

func NewWorkspaceRepository() workspace.Repository {
	return &WorkspaceRepository{}
}

func (r *WorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (workspace.Workspace, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var m models.Workspace
	query := workspaceFindQuery + " WHERE id = $1"
	if err := tx.QueryRow(ctx, query, id.String()).Scan(
		&m.ID,
		&m.Name,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workspace.ErrWorkspaceNotFound
		}
		return nil, errors.Wrap(err, "failed to query workspace")
	}
	return toDomainWorkspace(&m)
}

func (r *WorkspaceRepository) Create(ctx context.Context, ws workspace.Workspace) (workspace.Workspace, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO workspaces (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, query, ws.ID().String(), ws.Name(), ws.CreatedAt(), ws.UpdatedAt()); err != nil {
		return nil, errors.Wrap(err, "failed to insert workspace")
	}
	return r.GetByID(ctx, ws.ID())
}

func (r *WorkspaceRepository) Update(ctx context.Context, ws workspace.Workspace) (workspace.Workspace, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `UPDATE workspaces SET name = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.Exec(ctx, query, ws.Name(), ws.UpdatedAt(), ws.ID().String()); err != nil {
		return nil, errors.Wrap(err, "failed to update workspace")
	}
	return r.GetByID(ctx, ws.ID())
}

func (r *WorkspaceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, id.String())
	return err
}

func (r *WorkspaceRepository) IsMember(ctx context.Context, workspaceID, memberID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	query := `SELECT EXISTS(
		SELECT 1 FROM workspace_members WHERE workspace_id = $1 AND member_id = $2
	)`
	var exists bool
	if err := tx.QueryRow(ctx, query, workspaceID.String(), memberID.String()).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to check workspace membership")
	}
	return exists, nil
}

func (r *WorkspaceRepository) AddMember(ctx context.Context, workspaceID, memberID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO workspace_members (workspace_id, member_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err = tx.Exec(ctx, query, workspaceID.String(), memberID.String())
	return err
}

func (r *WorkspaceRepository) RemoveMember(ctx context.Context, workspaceID, memberID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	query := `DELETE FROM workspace_members WHERE workspace_id = $1 AND member_id = $2`
	_, err = tx.Exec(ctx, query, workspaceID.String(), memberID.String())
	return err
}
