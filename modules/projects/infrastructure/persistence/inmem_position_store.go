package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/ordering"
)

// InmemPositionStore is an ordering.Store over in-process slices. Every
// operation is atomic under one mutex, which trivially serializes concurrent
// reorderings the way the SQL store's sibling range locks do. Used by tests
// and available for single-process development setups.
type InmemPositionStore struct {
	mu sync.Mutex
	// parents maps kind -> parent id -> ordered member ids.
	parents map[ordering.Kind]map[uuid.UUID][]uuid.UUID
	// index maps kind -> member id -> parent id.
	index map[ordering.Kind]map[uuid.UUID]uuid.UUID
}

func NewInmemPositionStore() *InmemPositionStore {
	return &InmemPositionStore{
		parents: make(map[ordering.Kind]map[uuid.UUID][]uuid.UUID),
		index:   make(map[ordering.Kind]map[uuid.UUID]uuid.UUID),
	}
}

// Seed registers an existing member at the tail of its parent's collection.
func (s *InmemPositionStore) Seed(kind ordering.Kind, parentID, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachAt(kind, parentID, id, len(s.members(kind, parentID)))
}

func (s *InmemPositionStore) LockSiblings(_ context.Context, _ ordering.Kind, _ ...uuid.UUID) error {
	// Atomicity per operation makes explicit range locks unnecessary here.
	return nil
}

func (s *InmemPositionStore) Locate(_ context.Context, kind ordering.Kind, id uuid.UUID) (ordering.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locate(kind, id)
}

func (s *InmemPositionStore) Siblings(_ context.Context, kind ordering.Kind, parentID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.members(kind, parentID)
	out := make([]uuid.UUID, len(members))
	copy(out, members)
	return out, nil
}

func (s *InmemPositionStore) InsertAt(_ context.Context, kind ordering.Kind, parentID, id uuid.UUID, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Mirrors the SQL store: the member was appended at creation time and is
	// now moved into its requested slot.
	if _, err := s.locate(kind, id); err != nil {
		size := len(s.members(kind, parentID))
		if position < 0 || position > size {
			return invalidPosition(position, size)
		}
		s.attachAt(kind, parentID, id, position)
		return nil
	}
	return s.moveTo(kind, id, parentID, position)
}

func (s *InmemPositionStore) MoveTo(_ context.Context, kind ordering.Kind, id, parentID uuid.UUID, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveTo(kind, id, parentID, position)
}

func (s *InmemPositionStore) Remove(_ context.Context, kind ordering.Kind, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	placement, err := s.locate(kind, id)
	if err != nil {
		return err
	}
	members := s.members(kind, placement.ParentID)
	s.parents[kind][placement.ParentID] = append(
		members[:placement.Position],
		members[placement.Position+1:]...,
	)
	delete(s.index[kind], id)
	return nil
}

func (s *InmemPositionStore) moveTo(kind ordering.Kind, id, parentID uuid.UUID, position int) error {
	placement, err := s.locate(kind, id)
	if err != nil {
		return err
	}

	src := s.members(kind, placement.ParentID)
	src = append(src[:placement.Position], src[placement.Position+1:]...)
	s.parents[kind][placement.ParentID] = src

	var dst []uuid.UUID
	if placement.ParentID == parentID {
		dst = src
	} else {
		dst = s.members(kind, parentID)
	}
	if position < 0 || position > len(dst) {
		// Undo the detach before reporting.
		s.attachAt(kind, placement.ParentID, id, placement.Position)
		return invalidPosition(position, len(dst))
	}

	s.attachAt(kind, parentID, id, position)
	return nil
}

func (s *InmemPositionStore) locate(kind ordering.Kind, id uuid.UUID) (ordering.Placement, error) {
	parentID, ok := s.index[kind][id]
	if !ok {
		return ordering.Placement{}, ordering.ErrMemberNotFound
	}
	for i, memberID := range s.members(kind, parentID) {
		if memberID == id {
			return ordering.Placement{ParentID: parentID, Position: i}, nil
		}
	}
	return ordering.Placement{}, ordering.ErrMemberNotFound
}

func (s *InmemPositionStore) members(kind ordering.Kind, parentID uuid.UUID) []uuid.UUID {
	if s.parents[kind] == nil {
		s.parents[kind] = make(map[uuid.UUID][]uuid.UUID)
	}
	return s.parents[kind][parentID]
}

func (s *InmemPositionStore) attachAt(kind ordering.Kind, parentID, id uuid.UUID, position int) {
	members := s.members(kind, parentID)
	members = append(members, uuid.Nil)
	copy(members[position+1:], members[position:])
	members[position] = id
	s.parents[kind][parentID] = members

	if s.index[kind] == nil {
		s.index[kind] = make(map[uuid.UUID]uuid.UUID)
	}
	s.index[kind][id] = parentID
}

func invalidPosition(position, size int) error {
	return ordering.ErrInvalidPosition.WithDetails(map[string]string{
		"position": fmt.Sprintf("%d", position),
		"size":     fmt.Sprintf("%d", size),
	})
}
