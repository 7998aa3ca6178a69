package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/planora/planora/modules/projects/domain/aggregates/project"
	"github.com/planora/planora/modules/projects/domain/aggregates/workspace"
	"github.com/planora/planora/modules/projects/domain/entities/label"
	"github.com/planora/planora/modules/projects/domain/entities/section"
	"github.com/planora/planora/modules/projects/domain/entities/subtask"
	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/domain/events"
	"github.com/planora/planora/modules/projects/presentation/mappers"
)

// SnapshotSource serializes the current state of a resource for delivery.
// ok is false when the resource no longer exists; the session turns that
// into a gone message.
type SnapshotSource interface {
	Snapshot(ctx context.Context, res events.Resource) (content json.RawMessage, ok bool, err error)
}

type repoSnapshotSource struct {
	workspaces workspace.Repository
	projects   project.Repository
	sections   section.Repository
	tasks      task.Repository
	subTasks   subtask.Repository
	labels     label.Repository
}

func NewSnapshotSource(
	workspaces workspace.Repository,
	projects project.Repository,
	sections section.Repository,
	tasks task.Repository,
	subTasks subtask.Repository,
	labels label.Repository,
) SnapshotSource {
	return &repoSnapshotSource{
		workspaces: workspaces,
		projects:   projects,
		sections:   sections,
		tasks:      tasks,
		subTasks:   subTasks,
		labels:     labels,
	}
}

func (s *repoSnapshotSource) Snapshot(ctx context.Context, res events.Resource) (json.RawMessage, bool, error) {
	switch res.Kind {
	case events.KindWorkspace:
		return s.workspaceSnapshot(ctx, res)
	case events.KindProject:
		return s.projectSnapshot(ctx, res)
	case events.KindTask:
		return s.taskSnapshot(ctx, res)
	}
	return nil, false, nil
}

func (s *repoSnapshotSource) workspaceSnapshot(ctx context.Context, res events.Resource) (json.RawMessage, bool, error) {
	ws, err := s.workspaces.GetByID(ctx, res.ID)
	if err != nil {
		if errors.Is(err, workspace.ErrWorkspaceNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	projects, err := s.projects.GetByWorkspace(ctx, res.ID)
	if err != nil {
		return nil, false, err
	}
	return marshalSnapshot(mappers.WorkspaceToViewModel(ws, projects))
}

func (s *repoSnapshotSource) projectSnapshot(ctx context.Context, res events.Resource) (json.RawMessage, bool, error) {
	p, err := s.projects.GetByID(ctx, res.ID)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	sections, err := s.sections.GetByProject(ctx, res.ID)
	if err != nil {
		return nil, false, err
	}
	tasks, err := s.tasks.GetByProject(ctx, res.ID)
	if err != nil {
		return nil, false, err
	}
	labels, err := s.labels.GetByProject(ctx, res.ID)
	if err != nil {
		return nil, false, err
	}
	return marshalSnapshot(mappers.ProjectToViewModel(p, sections, tasks, labels))
}

func (s *repoSnapshotSource) taskSnapshot(ctx context.Context, res events.Resource) (json.RawMessage, bool, error) {
	t, err := s.tasks.GetByID(ctx, res.ID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	subTasks, err := s.subTasks.GetByTask(ctx, res.ID)
	if err != nil {
		return nil, false, err
	}
	return marshalSnapshot(mappers.TaskToViewModel(t, subTasks))
}

func marshalSnapshot(vm interface{}) (json.RawMessage, bool, error) {
	raw, err := json.Marshal(vm)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}
