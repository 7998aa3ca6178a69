package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/entities/subtask"
	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/domain/events"
	"github.com/planora/planora/modules/projects/domain/ordering"
	"github.com/planora/planora/pkg/composables"
)

type SubTaskService struct {
	repo    subtask.Repository
	tasks   task.Repository
	store   ordering.Store
	moves   *OrderingService
	signals *SignalEmitter
}

func NewSubTaskService(
	repo subtask.Repository,
	tasks task.Repository,
	store ordering.Store,
	moves *OrderingService,
	signals *SignalEmitter,
) *SubTaskService {
	return &SubTaskService{repo: repo, tasks: tasks, store: store, moves: moves, signals: signals}
}

func (s *SubTaskService) GetByTask(ctx context.Context, taskID uuid.UUID) ([]*subtask.SubTask, error) {
	return s.repo.GetByTask(ctx, taskID)
}

// Create adds a sub-task to the task's checklist, at the end or, when
// position is given, at that slot with later entries shifted down.
func (s *SubTaskService) Create(ctx context.Context, taskID uuid.UUID, title string, position *int) (*subtask.SubTask, error) {
	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (*subtask.SubTask, error) {
		t, err := s.tasks.GetByID(txCtx, taskID)
		if err != nil {
			return nil, err
		}
		if err := authorizeProjects(txCtx, t.WorkspaceID(), SubTasksAuthzObject, "create"); err != nil {
			return nil, err
		}
		if err := s.store.LockSiblings(txCtx, ordering.KindSubTask, taskID); err != nil {
			return nil, err
		}

		st := subtask.New(taskID, t.ProjectID(), t.WorkspaceID(), title)
		if err := s.repo.Create(txCtx, st); err != nil {
			return nil, err
		}
		if position != nil && *position != st.Position {
			if err := s.store.InsertAt(txCtx, ordering.KindSubTask, taskID, st.ID, *position); err != nil {
				return nil, err
			}
			st.Position = *position
		}
		return st, nil
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitChanged(ctx, created)
	return created, nil
}

func (s *SubTaskService) Rename(ctx context.Context, id uuid.UUID, title string) (*subtask.SubTask, error) {
	return s.update(ctx, id, func(st *subtask.SubTask) {
		st.Title = title
	})
}

func (s *SubTaskService) SetCompleted(ctx context.Context, id uuid.UUID, done bool) (*subtask.SubTask, error) {
	return s.update(ctx, id, func(st *subtask.SubTask) {
		st.Completed = done
	})
}

func (s *SubTaskService) update(ctx context.Context, id uuid.UUID, mutate func(*subtask.SubTask)) (*subtask.SubTask, error) {
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (*subtask.SubTask, error) {
		st, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if err := authorizeProjects(txCtx, st.WorkspaceID, SubTasksAuthzObject, "update"); err != nil {
			return nil, err
		}
		mutate(st)
		st.UpdatedAt = time.Now()
		if err := s.repo.Update(txCtx, st); err != nil {
			return nil, err
		}
		return st, nil
	})
	if err != nil {
		return nil, err
	}

	s.signals.EmitChanged(ctx, updated)
	return updated, nil
}

func (s *SubTaskService) Delete(ctx context.Context, id uuid.UUID) error {
	var parent *subtask.SubTask
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		st, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := authorizeProjects(txCtx, st.WorkspaceID, SubTasksAuthzObject, "delete"); err != nil {
			return err
		}
		if err := s.store.LockSiblings(txCtx, ordering.KindSubTask, st.TaskID); err != nil {
			return err
		}
		parent = st
		return s.store.Remove(txCtx, ordering.KindSubTask, id)
	})
	if err != nil {
		return err
	}

	// Sub-tasks have no topic; the deletion shows up as a change of the
	// owning task and its project.
	s.signals.EmitResources(ctx, events.Changed,
		events.NewResource(events.KindTask, parent.TaskID),
		events.NewResource(events.KindProject, parent.ProjectID),
	)
	return nil
}

// MoveAfter places the sub-task after another sub-task, possibly on a
// different task's checklist, or at the top of a checklist when the anchor
// is a task id.
func (s *SubTaskService) MoveAfter(ctx context.Context, id, anchorID uuid.UUID) error {
	result, err := s.moves.MoveAfter(ctx, ordering.KindSubTask, id, anchorID)
	if err != nil {
		return err
	}
	s.emitMoved(ctx, result)
	return nil
}

func (s *SubTaskService) MoveInDirection(ctx context.Context, id uuid.UUID, direction ordering.Direction) error {
	result, err := s.moves.MoveInDirection(ctx, ordering.KindSubTask, id, direction)
	if err != nil {
		return err
	}
	s.emitMoved(ctx, result)
	return nil
}

// A sub-task move is a change of the checklists involved: both owning tasks
// and their projects are notified, collapsed when the move stays on one
// task.
func (s *SubTaskService) emitMoved(ctx context.Context, result MoveResult) {
	s.signals.EmitResources(ctx, events.Changed,
		events.NewResource(events.KindTask, result.Source.ContainerID),
		events.NewResource(events.KindTask, result.Destination.ContainerID),
		events.NewResource(events.KindProject, result.Source.ProjectID),
		events.NewResource(events.KindProject, result.Destination.ProjectID),
	)
}
