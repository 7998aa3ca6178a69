package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/aggregates/workspace"
	"github.com/planora/planora/modules/projects/domain/events"
	"github.com/planora/planora/pkg/composables"
)

type WorkspaceService struct {
	repo    workspace.Repository
	signals *SignalEmitter
}

func NewWorkspaceService(repo workspace.Repository, signals *SignalEmitter) *WorkspaceService {
	return &WorkspaceService{repo: repo, signals: signals}
}

// GetByID returns the workspace when the acting member belongs to it.
// Non-membership and non-existence are both reported as not found.
func (s *WorkspaceService) GetByID(ctx context.Context, id uuid.UUID) (workspace.Workspace, error) {
	currentMember, err := composables.UseMember(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.IsMember(ctx, id, currentMember.ID())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, workspace.ErrWorkspaceNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// Create makes a new workspace with the acting member as its first team
// member.
func (s *WorkspaceService) Create(ctx context.Context, name string) (workspace.Workspace, error) {
	currentMember, err := composables.UseMember(ctx)
	if err != nil {
		return nil, err
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (workspace.Workspace, error) {
		ws, err := s.repo.Create(txCtx, workspace.New(name))
		if err != nil {
			return nil, err
		}
		if err := s.repo.AddMember(txCtx, ws.ID(), currentMember.ID()); err != nil {
			return nil, err
		}
		return ws, nil
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitChanged(ctx, created)
	return created, nil
}

func (s *WorkspaceService) Rename(ctx context.Context, id uuid.UUID, name string) (workspace.Workspace, error) {
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (workspace.Workspace, error) {
		if err := authorizeProjects(txCtx, id, WorkspacesAuthzObject, "update"); err != nil {
			return nil, err
		}
		ws, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		return s.repo.Update(txCtx, ws.Rename(name))
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitChanged(ctx, updated)
	return updated, nil
}

// Delete removes the workspace and everything in it. Projects and tasks the
// workspace contained disappear with it; their subscribers learn about it
// from the hub when a refresh comes back empty, the workspace's own
// subscribers get a gone event.
func (s *WorkspaceService) Delete(ctx context.Context, id uuid.UUID) error {
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		if err := authorizeProjects(txCtx, id, WorkspacesAuthzObject, "delete"); err != nil {
			return err
		}
		return s.repo.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	s.signals.EmitGone(ctx, events.NewResource(events.KindWorkspace, id))
	return nil
}

func (s *WorkspaceService) AddMember(ctx context.Context, workspaceID, memberID uuid.UUID) error {
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		if err := authorizeProjects(txCtx, workspaceID, WorkspacesAuthzObject, "update"); err != nil {
			return err
		}
		return s.repo.AddMember(txCtx, workspaceID, memberID)
	})
	if err != nil {
		return err
	}

	s.signals.EmitResources(ctx, events.Changed, events.NewResource(events.KindWorkspace, workspaceID))
	return nil
}

// RemoveMember drops a member from the workspace's team. Their open
// subscriptions are not torn down here; delivery-time access checks take
// care of resources they can no longer see.
func (s *WorkspaceService) RemoveMember(ctx context.Context, workspaceID, memberID uuid.UUID) error {
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		if err := authorizeProjects(txCtx, workspaceID, WorkspacesAuthzObject, "update"); err != nil {
			return err
		}
		return s.repo.RemoveMember(txCtx, workspaceID, memberID)
	})
	if err != nil {
		return err
	}

	s.signals.EmitResources(ctx, events.Changed, events.NewResource(events.KindWorkspace, workspaceID))
	return nil
}
