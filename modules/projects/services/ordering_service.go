package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/planora/planora/modules/projects/domain/aggregates/project"
	"github.com/planora/planora/modules/projects/domain/entities/section"
	"github.com/planora/planora/modules/projects/domain/entities/subtask"
	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/domain/ordering"
	"github.com/planora/planora/pkg/composables"
)

// Scope is the project and workspace a container belongs to. Authorization
// for a move is checked against the destination scope, so moving a task into
// a project the member cannot edit fails even when the source project is
// theirs.
type Scope struct {
	ContainerID uuid.UUID
	ProjectID   uuid.UUID
	WorkspaceID uuid.UUID
}

// ScopeResolver maps a container id of a given kind to its scope. Containers
// are the parent entities of ordered collections: a project for sections, a
// section for tasks, a task for sub-tasks.
//
// Reparent fixes the member's denormalized scope columns after a
// cross-container move, in the same transaction as the move itself.
type ScopeResolver interface {
	ContainerScope(ctx context.Context, kind ordering.Kind, containerID uuid.UUID) (Scope, error)
	Reparent(ctx context.Context, kind ordering.Kind, itemID uuid.UUID, dst Scope) error
}

type repoScopeResolver struct {
	projects project.Repository
	sections section.Repository
	tasks    task.Repository
	subTasks subtask.Repository
}

func NewScopeResolver(
	projects project.Repository,
	sections section.Repository,
	tasks task.Repository,
	subTasks subtask.Repository,
) ScopeResolver {
	return &repoScopeResolver{projects: projects, sections: sections, tasks: tasks, subTasks: subTasks}
}

func (r *repoScopeResolver) ContainerScope(ctx context.Context, kind ordering.Kind, containerID uuid.UUID) (Scope, error) {
	switch kind {
	case ordering.KindSection:
		p, err := r.projects.GetByID(ctx, containerID)
		if err != nil {
			if errors.Is(err, project.ErrProjectNotFound) {
				return Scope{}, ordering.ErrMemberNotFound
			}
			return Scope{}, err
		}
		return Scope{ContainerID: containerID, ProjectID: p.ID(), WorkspaceID: p.WorkspaceID()}, nil
	case ordering.KindTask:
		s, err := r.sections.GetByID(ctx, containerID)
		if err != nil {
			if errors.Is(err, section.ErrSectionNotFound) {
				return Scope{}, ordering.ErrMemberNotFound
			}
			return Scope{}, err
		}
		return Scope{ContainerID: containerID, ProjectID: s.ProjectID, WorkspaceID: s.WorkspaceID}, nil
	case ordering.KindSubTask:
		t, err := r.tasks.GetByID(ctx, containerID)
		if err != nil {
			if errors.Is(err, task.ErrTaskNotFound) {
				return Scope{}, ordering.ErrMemberNotFound
			}
			return Scope{}, err
		}
		return Scope{ContainerID: containerID, ProjectID: t.ProjectID(), WorkspaceID: t.WorkspaceID()}, nil
	}
	return Scope{}, ordering.ErrMemberNotFound
}

func (r *repoScopeResolver) Reparent(ctx context.Context, kind ordering.Kind, itemID uuid.UUID, dst Scope) error {
	switch kind {
	case ordering.KindSection:
		return r.sections.Reparent(ctx, itemID, dst.ProjectID, dst.WorkspaceID)
	case ordering.KindTask:
		return r.tasks.Reparent(ctx, itemID, dst.ProjectID, dst.WorkspaceID)
	case ordering.KindSubTask:
		return r.subTasks.Reparent(ctx, itemID, dst.ProjectID, dst.WorkspaceID)
	}
	return ordering.ErrMemberNotFound
}

// MoveResult reports where a member ended up. Source and Destination differ
// only for cross-container moves; callers use both to notify every project
// whose contents changed.
type MoveResult struct {
	ItemID      uuid.UUID
	Source      Scope
	Destination Scope
	Placement   ordering.Placement
}

// OrderingService moves members of ordered collections. Every public
// operation runs in its own transaction: it locks the affected sibling sets,
// re-reads placements under the lock, authorizes against the destination
// workspace and applies the move atomically. A deadlock or serialization
// failure is retried once and then surfaced as ordering.ErrTransient.
type OrderingService struct {
	store  ordering.Store
	scopes ScopeResolver
}

func NewOrderingService(store ordering.Store, scopes ScopeResolver) *OrderingService {
	return &OrderingService{store: store, scopes: scopes}
}

// MoveAfter places the item directly after the anchor. The anchor may be a
// sibling of the same kind, in which case the item lands right behind it in
// the anchor's collection, or a container of that kind, in which case the
// item becomes the container's first member.
func (s *OrderingService) MoveAfter(ctx context.Context, kind ordering.Kind, itemID, anchorID uuid.UUID) (MoveResult, error) {
	return s.inMoveTx(ctx, func(txCtx context.Context) (MoveResult, error) {
		src, anchor, anchorIsSibling, err := s.lockForMove(txCtx, kind, itemID, anchorID)
		if err != nil {
			return MoveResult{}, err
		}

		var dstParent uuid.UUID
		var target int
		if anchorIsSibling {
			dstParent = anchor.ParentID
			// After the item is pulled out, a same-parent anchor that sat
			// behind it has already slid down one slot.
			if src.ParentID == anchor.ParentID && src.Position < anchor.Position {
				target = anchor.Position
			} else {
				target = anchor.Position + 1
			}
		} else {
			dstParent = anchorID
			target = 0
		}

		return s.applyMove(txCtx, kind, itemID, src, dstParent, target)
	})
}

// MoveInDirection moves the item one step up or down, or to the top or
// bottom, within its current collection.
func (s *OrderingService) MoveInDirection(ctx context.Context, kind ordering.Kind, itemID uuid.UUID, direction ordering.Direction) (MoveResult, error) {
	if !direction.Valid() {
		return MoveResult{}, ordering.ErrInvalidDirection.WithDetails(map[string]string{
			"direction": string(direction),
		})
	}

	return s.inMoveTx(ctx, func(txCtx context.Context) (MoveResult, error) {
		src, err := s.lockItem(txCtx, kind, itemID)
		if err != nil {
			return MoveResult{}, err
		}
		siblings, err := s.store.Siblings(txCtx, kind, src.ParentID)
		if err != nil {
			return MoveResult{}, err
		}

		var target int
		switch direction {
		case ordering.Up:
			if src.Position == 0 {
				return MoveResult{}, ordering.ErrNoPredecessor
			}
			target = src.Position - 1
		case ordering.Down:
			if src.Position == len(siblings)-1 {
				return MoveResult{}, ordering.ErrNoSuccessor
			}
			target = src.Position + 1
		case ordering.Top:
			target = 0
		case ordering.Bottom:
			target = len(siblings) - 1
		}

		return s.applyMove(txCtx, kind, itemID, src, src.ParentID, target)
	})
}

// lockForMove resolves the anchor, locks the affected sibling sets and
// re-reads both placements under the locks. Placements read before locking
// only tell us which parents to lock; a concurrent move can invalidate them,
// so the loop re-locks until the under-lock read agrees with the locked set.
func (s *OrderingService) lockForMove(ctx context.Context, kind ordering.Kind, itemID, anchorID uuid.UUID) (src, anchor ordering.Placement, anchorIsSibling bool, err error) {
	for attempt := 0; attempt < 3; attempt++ {
		src, err = s.store.Locate(ctx, kind, itemID)
		if err != nil {
			return src, anchor, false, err
		}

		anchorIsSibling = true
		anchor, err = s.store.Locate(ctx, kind, anchorID)
		if errors.Is(err, ordering.ErrMemberNotFound) {
			// Not a sibling; the anchor must then be a container of this
			// kind. ContainerScope reports member-not-found when it is
			// neither.
			if _, scopeErr := s.scopes.ContainerScope(ctx, kind, anchorID); scopeErr != nil {
				return src, anchor, false, scopeErr
			}
			anchorIsSibling = false
			anchor = ordering.Placement{ParentID: anchorID}
		} else if err != nil {
			return src, anchor, false, err
		}

		if err = s.store.LockSiblings(ctx, kind, src.ParentID, anchor.ParentID); err != nil {
			return src, anchor, false, err
		}

		lockedSrc, lockErr := s.store.Locate(ctx, kind, itemID)
		if lockErr != nil {
			return src, anchor, false, lockErr
		}
		lockedAnchor := anchor
		if anchorIsSibling {
			lockedAnchor, lockErr = s.store.Locate(ctx, kind, anchorID)
			if lockErr != nil {
				return src, anchor, false, lockErr
			}
		}
		if lockedSrc.ParentID == src.ParentID && lockedAnchor.ParentID == anchor.ParentID {
			return lockedSrc, lockedAnchor, anchorIsSibling, nil
		}
		// A parent changed between the read and the lock; start over with
		// the parents we now observe.
	}
	return src, anchor, false, ordering.ErrTransient
}

func (s *OrderingService) lockItem(ctx context.Context, kind ordering.Kind, itemID uuid.UUID) (ordering.Placement, error) {
	for attempt := 0; attempt < 3; attempt++ {
		src, err := s.store.Locate(ctx, kind, itemID)
		if err != nil {
			return ordering.Placement{}, err
		}
		if err := s.store.LockSiblings(ctx, kind, src.ParentID); err != nil {
			return ordering.Placement{}, err
		}
		locked, err := s.store.Locate(ctx, kind, itemID)
		if err != nil {
			return ordering.Placement{}, err
		}
		if locked.ParentID == src.ParentID {
			return locked, nil
		}
	}
	return ordering.Placement{}, ordering.ErrTransient
}

// applyMove authorizes against the destination scope and performs the move.
// Runs under the sibling locks taken by the caller.
func (s *OrderingService) applyMove(ctx context.Context, kind ordering.Kind, itemID uuid.UUID, src ordering.Placement, dstParent uuid.UUID, target int) (MoveResult, error) {
	dstScope, err := s.scopes.ContainerScope(ctx, kind, dstParent)
	if err != nil {
		return MoveResult{}, err
	}
	if err := authorizeProjects(ctx, dstScope.WorkspaceID, OrderingAuthzObject, "update"); err != nil {
		return MoveResult{}, err
	}

	srcScope := dstScope
	if src.ParentID != dstParent {
		srcScope, err = s.scopes.ContainerScope(ctx, kind, src.ParentID)
		if err != nil {
			return MoveResult{}, err
		}
	}

	if err := s.store.MoveTo(ctx, kind, itemID, dstParent, target); err != nil {
		return MoveResult{}, err
	}
	if src.ParentID != dstParent {
		if err := s.scopes.Reparent(ctx, kind, itemID, dstScope); err != nil {
			return MoveResult{}, err
		}
	}

	return MoveResult{
		ItemID:      itemID,
		Source:      srcScope,
		Destination: dstScope,
		Placement:   ordering.Placement{ParentID: dstParent, Position: target},
	}, nil
}

// runMoveTx is swappable so the service can be exercised against the
// in-memory store, which needs no database transaction.
var runMoveTx = composables.InTxResult[MoveResult]

// inMoveTx runs the move in its own transaction, retrying once when Postgres
// aborts it with a deadlock or serialization failure. Two failures in a row
// become ordering.ErrTransient for the caller to surface.
func (s *OrderingService) inMoveTx(ctx context.Context, fn func(context.Context) (MoveResult, error)) (MoveResult, error) {
	result, err := runMoveTx(ctx, fn)
	if err != nil && isLockConflict(err) {
		result, err = runMoveTx(ctx, fn)
		if err != nil && isLockConflict(err) {
			return MoveResult{}, ordering.ErrTransient
		}
	}
	return result, err
}

func isLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 40P01 deadlock_detected, 40001 serialization_failure.
	return pgErr.Code == "40P01" || pgErr.Code == "40001"
}
