package ordering

import (
	"context"

	"github.com/google/uuid"

	"github.com/planora/planora/pkg/serrors"
)

// Kind names an ordered collection type. Each kind scopes members to one
// parent entity: sections to a project, tasks to a section, sub-tasks to a
// task.
type Kind string

const (
	KindSection Kind = "section"
	KindTask    Kind = "task"
	KindSubTask Kind = "subtask"
)

type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Top    Direction = "top"
	Bottom Direction = "bottom"
)

func (d Direction) Valid() bool {
	switch d {
	case Up, Down, Top, Bottom:
		return true
	}
	return false
}

var (
	ErrInvalidPosition  = serrors.NewError("ORDERING_INVALID_POSITION", "position out of range")
	ErrInvalidDirection = serrors.NewError("ORDERING_INVALID_DIRECTION", "unknown move direction")
	ErrMemberNotFound   = serrors.NewError("ORDERING_MEMBER_NOT_FOUND", "ordered member not found")
	ErrNoPredecessor    = serrors.NewError("ORDERING_NO_PREDECESSOR", "already first in its collection")
	ErrNoSuccessor      = serrors.NewError("ORDERING_NO_SUCCESSOR", "already last in its collection")
	ErrTransient        = serrors.NewError("ORDERING_TRANSIENT", "concurrent reordering conflict, retry the operation")
)

// Placement is a member's location: its parent and its dense zero-based
// position among that parent's children.
type Placement struct {
	ParentID uuid.UUID
	Position int
}

// Store is the durable ordered-list primitive. For every parent the set of
// member positions is exactly {0..n-1} at the end of every committed
// transaction; the store may violate density transiently inside one.
//
// All mutating operations require a transaction in the context and assume the
// caller has taken the sibling locks via LockSiblings first. Locking the
// whole sibling set, not just touched rows, is what serializes concurrent
// reorderings of the same parent: a move anywhere in the list can shift every
// other row's position.
type Store interface {
	// LockSiblings takes an exclusive lock over every member row of each
	// given parent's collection. Parents are locked in deterministic id
	// order so two concurrent cross-parent moves cannot deadlock.
	LockSiblings(ctx context.Context, kind Kind, parentIDs ...uuid.UUID) error

	// Locate returns the member's current placement, or ErrMemberNotFound.
	Locate(ctx context.Context, kind Kind, id uuid.UUID) (Placement, error)

	// Siblings returns the parent's member ids in position order.
	Siblings(ctx context.Context, kind Kind, parentID uuid.UUID) ([]uuid.UUID, error)

	// InsertAt places a new member at position, shifting members at >=
	// position up by one. Fails with ErrInvalidPosition unless
	// 0 <= position <= len(siblings).
	InsertAt(ctx context.Context, kind Kind, parentID, id uuid.UUID, position int) error

	// MoveTo removes the member from its current slot (closing the gap) and
	// inserts it at position among the remaining members, as one atomic
	// operation. parentID may differ from the member's current parent; the
	// caller must then have locked both sibling sets.
	MoveTo(ctx context.Context, kind Kind, id, parentID uuid.UUID, position int) error

	// Remove deletes the member and compacts its former siblings.
	Remove(ctx context.Context, kind Kind, id uuid.UUID) error
}
