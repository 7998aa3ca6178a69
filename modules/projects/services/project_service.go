package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/aggregates/project"
	"github.com/planora/planora/modules/projects/domain/aggregates/workspace"
	"github.com/planora/planora/modules/projects/domain/entities/label"
	"github.com/planora/planora/modules/projects/domain/events"
	"github.com/planora/planora/pkg/composables"
)

// ProjectService covers project lifecycle and the project-scoped label
// catalog.
type ProjectService struct {
	repo       project.Repository
	workspaces workspace.Repository
	labels     label.Repository
	signals    *SignalEmitter
}

func NewProjectService(
	repo project.Repository,
	workspaces workspace.Repository,
	labels label.Repository,
	signals *SignalEmitter,
) *ProjectService {
	return &ProjectService{repo: repo, workspaces: workspaces, labels: labels, signals: signals}
}

// GetByID returns the project when the acting member belongs to its
// workspace; otherwise not found, whether the project exists or not.
func (s *ProjectService) GetByID(ctx context.Context, id uuid.UUID) (project.Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	currentMember, err := composables.UseMember(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.workspaces.IsMember(ctx, p.WorkspaceID(), currentMember.ID())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	return p, nil
}

func (s *ProjectService) GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]project.Project, error) {
	currentMember, err := composables.UseMember(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.workspaces.IsMember(ctx, workspaceID, currentMember.ID())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, workspace.ErrWorkspaceNotFound
	}
	return s.repo.GetByWorkspace(ctx, workspaceID)
}

func (s *ProjectService) Create(ctx context.Context, workspaceID uuid.UUID, name string) (project.Project, error) {
	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (project.Project, error) {
		if err := authorizeProjects(txCtx, workspaceID, ProjectsAuthzObject, "create"); err != nil {
			return nil, err
		}
		return s.repo.Create(txCtx, project.New(workspaceID, name))
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitChanged(ctx, created)
	return created, nil
}

func (s *ProjectService) Rename(ctx context.Context, id uuid.UUID, name string) (project.Project, error) {
	return s.update(ctx, id, func(p project.Project) project.Project { return p.Rename(name) })
}

func (s *ProjectService) Archive(ctx context.Context, id uuid.UUID) (project.Project, error) {
	return s.update(ctx, id, func(p project.Project) project.Project { return p.Archive() })
}

func (s *ProjectService) update(ctx context.Context, id uuid.UUID, mutate func(project.Project) project.Project) (project.Project, error) {
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (project.Project, error) {
		p, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if err := authorizeProjects(txCtx, p.WorkspaceID(), ProjectsAuthzObject, "update"); err != nil {
			return nil, err
		}
		return s.repo.Update(txCtx, mutate(p))
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitChanged(ctx, updated)
	return updated, nil
}

// Delete removes the project with its sections, tasks and labels. Project
// subscribers get a gone event; subscribers of tasks it contained get theirs
// synthesized by the hub when the refresh finds nothing.
func (s *ProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	var workspaceID uuid.UUID
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		p, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := authorizeProjects(txCtx, p.WorkspaceID(), ProjectsAuthzObject, "delete"); err != nil {
			return err
		}
		workspaceID = p.WorkspaceID()
		return s.repo.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	s.signals.EmitGone(ctx, events.NewResource(events.KindProject, id))
	s.signals.EmitResources(ctx, events.Changed, events.NewResource(events.KindWorkspace, workspaceID))
	return nil
}

func (s *ProjectService) Labels(ctx context.Context, projectID uuid.UUID) ([]*label.Label, error) {
	if _, err := s.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.labels.GetByProject(ctx, projectID)
}

// CreateLabel adds a label to the project's catalog. The catalog is project
// content, so project subscribers are notified.
func (s *ProjectService) CreateLabel(ctx context.Context, projectID uuid.UUID, name, color string) (*label.Label, error) {
	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (*label.Label, error) {
		p, err := s.repo.GetByID(txCtx, projectID)
		if err != nil {
			return nil, err
		}
		if err := authorizeProjects(txCtx, p.WorkspaceID(), LabelsAuthzObject, "create"); err != nil {
			return nil, err
		}
		l := label.New(projectID, name, color)
		if err := s.labels.Create(txCtx, l); err != nil {
			return nil, err
		}
		return l, nil
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitResources(ctx, events.Changed, events.NewResource(events.KindProject, projectID))
	return created, nil
}

func (s *ProjectService) DeleteLabel(ctx context.Context, id uuid.UUID) error {
	var projectID uuid.UUID
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		l, err := s.labels.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		p, err := s.repo.GetByID(txCtx, l.ProjectID)
		if err != nil {
			return err
		}
		if err := authorizeProjects(txCtx, p.WorkspaceID(), LabelsAuthzObject, "delete"); err != nil {
			return err
		}
		projectID = l.ProjectID
		return s.labels.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	s.signals.EmitResources(ctx, events.Changed, events.NewResource(events.KindProject, projectID))
	return nil
}
