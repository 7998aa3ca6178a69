package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/aggregates/project"
	"github.com/planora/planora/modules/projects/domain/aggregates/workspace"
	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/domain/events"
)

// AccessService answers visibility questions for subscribable resources. A
// member can view a resource when they belong to the workspace the resource
// lives in. Mutations are gated separately, by the authz guard inside each
// service operation.
//
// A resource that does not exist is reported the same way as one the member
// cannot see: (false, nil). Callers must not be able to probe for existence
// of entities outside their workspaces.
type AccessService struct {
	workspaces workspace.Repository
	projects   project.Repository
	tasks      task.Repository
}

func NewAccessService(
	workspaces workspace.Repository,
	projects project.Repository,
	tasks task.Repository,
) *AccessService {
	return &AccessService{workspaces: workspaces, projects: projects, tasks: tasks}
}

func (s *AccessService) CanView(ctx context.Context, memberID uuid.UUID, res events.Resource) (bool, error) {
	workspaceID, ok, err := s.resolveWorkspace(ctx, res)
	if err != nil || !ok {
		return false, err
	}
	return s.workspaces.IsMember(ctx, workspaceID, memberID)
}

// resolveWorkspace maps the resource to its workspace. ok is false when the
// resource does not exist.
func (s *AccessService) resolveWorkspace(ctx context.Context, res events.Resource) (uuid.UUID, bool, error) {
	switch res.Kind {
	case events.KindWorkspace:
		return res.ID, true, nil
	case events.KindProject:
		p, err := s.projects.GetByID(ctx, res.ID)
		if err != nil {
			if errors.Is(err, project.ErrProjectNotFound) {
				return uuid.Nil, false, nil
			}
			return uuid.Nil, false, err
		}
		return p.WorkspaceID(), true, nil
	case events.KindTask:
		t, err := s.tasks.GetByID(ctx, res.ID)
		if err != nil {
			if errors.Is(err, task.ErrTaskNotFound) {
				return uuid.Nil, false, nil
			}
			return uuid.Nil, false, err
		}
		return t.WorkspaceID(), true, nil
	}
	return uuid.Nil, false, nil
}
