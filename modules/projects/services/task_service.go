package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/aggregates/workspace"
	"github.com/planora/planora/modules/projects/domain/entities/label"
	"github.com/planora/planora/modules/projects/domain/entities/section"
	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/domain/events"
	"github.com/planora/planora/modules/projects/domain/ordering"
	"github.com/planora/planora/pkg/composables"
)

type TaskService struct {
	repo       task.Repository
	sections   section.Repository
	labels     label.Repository
	workspaces workspace.Repository
	store      ordering.Store
	moves      *OrderingService
	signals    *SignalEmitter
}

func NewTaskService(
	repo task.Repository,
	sections section.Repository,
	labels label.Repository,
	workspaces workspace.Repository,
	store ordering.Store,
	moves *OrderingService,
	signals *SignalEmitter,
) *TaskService {
	return &TaskService{
		repo:       repo,
		sections:   sections,
		labels:     labels,
		workspaces: workspaces,
		store:      store,
		moves:      moves,
		signals:    signals,
	}
}

// GetByID returns the task when the acting member belongs to its workspace;
// otherwise not found, whether the task exists or not.
func (s *TaskService) GetByID(ctx context.Context, id uuid.UUID) (task.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	currentMember, err := composables.UseMember(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.workspaces.IsMember(ctx, t.WorkspaceID(), currentMember.ID())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	return t, nil
}

func (s *TaskService) GetBySection(ctx context.Context, sectionID uuid.UUID) ([]task.Task, error) {
	return s.repo.GetBySection(ctx, sectionID)
}

// Create adds a task to the section, at the end of its list or, when
// position is given, at that slot with later tasks shifted down.
func (s *TaskService) Create(ctx context.Context, sectionID uuid.UUID, title string, position *int) (task.Task, error) {
	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (task.Task, error) {
		sec, err := s.sections.GetByID(txCtx, sectionID)
		if err != nil {
			return nil, err
		}
		if err := authorizeProjects(txCtx, sec.WorkspaceID, TasksAuthzObject, "create"); err != nil {
			return nil, err
		}
		if err := s.store.LockSiblings(txCtx, ordering.KindTask, sectionID); err != nil {
			return nil, err
		}

		t, err := s.repo.Create(txCtx, task.New(sectionID, sec.ProjectID, sec.WorkspaceID, title))
		if err != nil {
			return nil, err
		}
		if position != nil && *position != t.Position() {
			if err := s.store.InsertAt(txCtx, ordering.KindTask, sectionID, t.ID(), *position); err != nil {
				return nil, err
			}
			t, err = s.repo.GetByID(txCtx, t.ID())
			if err != nil {
				return nil, err
			}
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitChanged(ctx, created)
	return created, nil
}

func (s *TaskService) Rename(ctx context.Context, id uuid.UUID, title string) (task.Task, error) {
	return s.update(ctx, id, func(t task.Task) task.Task { return t.Rename(title) })
}

func (s *TaskService) SetCompleted(ctx context.Context, id uuid.UUID, done bool) (task.Task, error) {
	return s.update(ctx, id, func(t task.Task) task.Task { return t.SetCompleted(done) })
}

func (s *TaskService) update(ctx context.Context, id uuid.UUID, mutate func(task.Task) task.Task) (task.Task, error) {
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (task.Task, error) {
		t, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if err := authorizeProjects(txCtx, t.WorkspaceID(), TasksAuthzObject, "update"); err != nil {
			return nil, err
		}
		return s.repo.Update(txCtx, mutate(t))
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitChanged(ctx, updated)
	return updated, nil
}

// Delete removes the task and its sub-tasks, compacting the remaining
// siblings' positions.
func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	var projectID uuid.UUID
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		t, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := authorizeProjects(txCtx, t.WorkspaceID(), TasksAuthzObject, "delete"); err != nil {
			return err
		}
		if err := s.store.LockSiblings(txCtx, ordering.KindTask, t.SectionID()); err != nil {
			return err
		}
		projectID = t.ProjectID()
		return s.store.Remove(txCtx, ordering.KindTask, id)
	})
	if err != nil {
		return err
	}

	s.signals.EmitGone(ctx, events.NewResource(events.KindTask, id))
	s.signals.EmitResources(ctx, events.Changed, events.NewResource(events.KindProject, projectID))
	return nil
}

// MoveAfter places the task directly after another task, possibly in a
// different section or project, or at the top of a section when the anchor
// is a section id.
func (s *TaskService) MoveAfter(ctx context.Context, id, anchorID uuid.UUID) error {
	result, err := s.moves.MoveAfter(ctx, ordering.KindTask, id, anchorID)
	if err != nil {
		return err
	}
	s.emitMoved(ctx, result)
	return nil
}

func (s *TaskService) MoveInDirection(ctx context.Context, id uuid.UUID, direction ordering.Direction) error {
	result, err := s.moves.MoveInDirection(ctx, ordering.KindTask, id, direction)
	if err != nil {
		return err
	}
	s.emitMoved(ctx, result)
	return nil
}

// A task move notifies the task's own subscribers and the projects whose
// boards changed. A move within one project collapses to one project event.
func (s *TaskService) emitMoved(ctx context.Context, result MoveResult) {
	s.signals.EmitResources(ctx, events.Changed,
		events.NewResource(events.KindTask, result.ItemID),
		events.NewResource(events.KindProject, result.Source.ProjectID),
		events.NewResource(events.KindProject, result.Destination.ProjectID),
	)
}

// AttachLabel tags the task with a label from its project's catalog. Labels
// of other projects are invisible here and reported as not found.
func (s *TaskService) AttachLabel(ctx context.Context, taskID, labelID uuid.UUID) error {
	return s.changeLabel(ctx, taskID, labelID, s.repo.AttachLabel)
}

func (s *TaskService) DetachLabel(ctx context.Context, taskID, labelID uuid.UUID) error {
	return s.changeLabel(ctx, taskID, labelID, s.repo.DetachLabel)
}

func (s *TaskService) changeLabel(ctx context.Context, taskID, labelID uuid.UUID, op func(context.Context, uuid.UUID, uuid.UUID) error) error {
	var updated task.Task
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		t, err := s.repo.GetByID(txCtx, taskID)
		if err != nil {
			return err
		}
		if err := authorizeProjects(txCtx, t.WorkspaceID(), TasksAuthzObject, "update"); err != nil {
			return err
		}
		l, err := s.labels.GetByID(txCtx, labelID)
		if err != nil {
			return err
		}
		if l.ProjectID != t.ProjectID() {
			return label.ErrLabelNotFound
		}
		if err := op(txCtx, taskID, labelID); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return err
	}

	s.signals.EmitChanged(ctx, updated)
	return nil
}
