package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/planora/planora/modules/projects/domain/ordering"
	"github.com/planora/planora/modules/projects/infrastructure/persistence"
	"github.com/planora/planora/pkg/authz"
)

type reparentCall struct {
	kind   ordering.Kind
	itemID uuid.UUID
	dst    Scope
}

type stubScopeResolver struct {
	containers map[uuid.UUID]Scope
	reparented []reparentCall
}

func (r *stubScopeResolver) ContainerScope(_ context.Context, _ ordering.Kind, containerID uuid.UUID) (Scope, error) {
	scope, ok := r.containers[containerID]
	if !ok {
		return Scope{}, ordering.ErrMemberNotFound
	}
	return scope, nil
}

func (r *stubScopeResolver) Reparent(_ context.Context, kind ordering.Kind, itemID uuid.UUID, dst Scope) error {
	r.reparented = append(r.reparented, reparentCall{kind: kind, itemID: itemID, dst: dst})
	return nil
}

// passThroughMoveTx runs moves without a database transaction so the service
// can be exercised against the in-memory store.
func passThroughMoveTx(t *testing.T) {
	t.Helper()
	prev := runMoveTx
	runMoveTx = func(ctx context.Context, fn func(context.Context) (MoveResult, error)) (MoveResult, error) {
		return fn(ctx)
	}
	t.Cleanup(func() { runMoveTx = prev })
}

func swapAuthorize(t *testing.T, fn func(context.Context, uuid.UUID, string, string) error) {
	t.Helper()
	prev := authorizeProjectsFn
	authorizeProjectsFn = fn
	t.Cleanup(func() { authorizeProjectsFn = prev })
}

func allowAllMoves(t *testing.T) {
	t.Helper()
	swapAuthorize(t, func(context.Context, uuid.UUID, string, string) error { return nil })
}

type orderingFixture struct {
	store  *persistence.InmemPositionStore
	scopes *stubScopeResolver
	svc    *OrderingService
}

func newOrderingFixture(t *testing.T) *orderingFixture {
	t.Helper()
	passThroughMoveTx(t)
	allowAllMoves(t)
	scopes := &stubScopeResolver{containers: make(map[uuid.UUID]Scope)}
	store := persistence.NewInmemPositionStore()
	return &orderingFixture{
		store:  store,
		scopes: scopes,
		svc:    NewOrderingService(store, scopes),
	}
}

// container registers a new container of the given scope and returns its id.
func (f *orderingFixture) container(projectID, workspaceID uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.scopes.containers[id] = Scope{ContainerID: id, ProjectID: projectID, WorkspaceID: workspaceID}
	return id
}

func (f *orderingFixture) fill(kind ordering.Kind, containerID uuid.UUID, n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		f.store.Seed(kind, containerID, ids[i])
	}
	return ids
}

func (f *orderingFixture) order(t *testing.T, kind ordering.Kind, containerID uuid.UUID) []uuid.UUID {
	t.Helper()
	got, err := f.store.Siblings(context.Background(), kind, containerID)
	require.NoError(t, err)
	return got
}

func TestOrderingService_MoveAfterSibling(t *testing.T) {
	ctx := context.Background()

	t.Run("anchor ahead of the item", func(t *testing.T) {
		f := newOrderingFixture(t)
		sectionID := f.container(uuid.New(), uuid.New())
		ids := f.fill(ordering.KindTask, sectionID, 4)

		res, err := f.svc.MoveAfter(ctx, ordering.KindTask, ids[0], ids[2])
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{ids[1], ids[2], ids[0], ids[3]}, f.order(t, ordering.KindTask, sectionID))
		require.Equal(t, ordering.Placement{ParentID: sectionID, Position: 2}, res.Placement)
		require.Equal(t, res.Source, res.Destination)
		require.Empty(t, f.scopes.reparented)
	})

	t.Run("anchor behind the item", func(t *testing.T) {
		f := newOrderingFixture(t)
		sectionID := f.container(uuid.New(), uuid.New())
		ids := f.fill(ordering.KindTask, sectionID, 4)

		res, err := f.svc.MoveAfter(ctx, ordering.KindTask, ids[3], ids[0])
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{ids[0], ids[3], ids[1], ids[2]}, f.order(t, ordering.KindTask, sectionID))
		require.Equal(t, ordering.Placement{ParentID: sectionID, Position: 1}, res.Placement)
	})

	t.Run("anchor in another container reparents the item", func(t *testing.T) {
		f := newOrderingFixture(t)
		srcProject, dstProject := uuid.New(), uuid.New()
		workspaceID := uuid.New()
		srcSection := f.container(srcProject, workspaceID)
		dstSection := f.container(dstProject, workspaceID)
		srcIDs := f.fill(ordering.KindTask, srcSection, 2)
		dstIDs := f.fill(ordering.KindTask, dstSection, 2)

		res, err := f.svc.MoveAfter(ctx, ordering.KindTask, srcIDs[0], dstIDs[0])
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{srcIDs[1]}, f.order(t, ordering.KindTask, srcSection))
		require.Equal(t, []uuid.UUID{dstIDs[0], srcIDs[0], dstIDs[1]}, f.order(t, ordering.KindTask, dstSection))

		require.Equal(t, srcProject, res.Source.ProjectID)
		require.Equal(t, dstProject, res.Destination.ProjectID)
		require.Equal(t, []reparentCall{{
			kind:   ordering.KindTask,
			itemID: srcIDs[0],
			dst:    f.scopes.containers[dstSection],
		}}, f.scopes.reparented)
	})
}

func TestOrderingService_MoveAfterContainer(t *testing.T) {
	f := newOrderingFixture(t)
	sectionID := f.container(uuid.New(), uuid.New())
	ids := f.fill(ordering.KindTask, sectionID, 3)

	// The anchor names the container itself: the item becomes its first
	// member.
	res, err := f.svc.MoveAfter(context.Background(), ordering.KindTask, ids[2], sectionID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{ids[2], ids[0], ids[1]}, f.order(t, ordering.KindTask, sectionID))
	require.Equal(t, ordering.Placement{ParentID: sectionID, Position: 0}, res.Placement)
}

func TestOrderingService_MoveAfterUnknownAnchor(t *testing.T) {
	f := newOrderingFixture(t)
	sectionID := f.container(uuid.New(), uuid.New())
	ids := f.fill(ordering.KindTask, sectionID, 2)

	// Neither a sibling nor a known container.
	_, err := f.svc.MoveAfter(context.Background(), ordering.KindTask, ids[0], uuid.New())
	require.ErrorIs(t, err, ordering.ErrMemberNotFound)
	require.Equal(t, ids, f.order(t, ordering.KindTask, sectionID))
}

func TestOrderingService_MoveAfterUnknownItem(t *testing.T) {
	f := newOrderingFixture(t)
	sectionID := f.container(uuid.New(), uuid.New())
	ids := f.fill(ordering.KindTask, sectionID, 1)

	_, err := f.svc.MoveAfter(context.Background(), ordering.KindTask, uuid.New(), ids[0])
	require.ErrorIs(t, err, ordering.ErrMemberNotFound)
}

func TestOrderingService_MoveInDirection(t *testing.T) {
	ctx := context.Background()

	t.Run("single steps", func(t *testing.T) {
		f := newOrderingFixture(t)
		projectID := f.container(uuid.New(), uuid.New())
		ids := f.fill(ordering.KindSection, projectID, 3)

		_, err := f.svc.MoveInDirection(ctx, ordering.KindSection, ids[2], ordering.Up)
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{ids[0], ids[2], ids[1]}, f.order(t, ordering.KindSection, projectID))

		_, err = f.svc.MoveInDirection(ctx, ordering.KindSection, ids[0], ordering.Down)
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{ids[2], ids[0], ids[1]}, f.order(t, ordering.KindSection, projectID))
	})

	t.Run("to the edges", func(t *testing.T) {
		f := newOrderingFixture(t)
		projectID := f.container(uuid.New(), uuid.New())
		ids := f.fill(ordering.KindSection, projectID, 3)

		res, err := f.svc.MoveInDirection(ctx, ordering.KindSection, ids[2], ordering.Top)
		require.NoError(t, err)
		require.Equal(t, 0, res.Placement.Position)
		require.Equal(t, []uuid.UUID{ids[2], ids[0], ids[1]}, f.order(t, ordering.KindSection, projectID))

		res, err = f.svc.MoveInDirection(ctx, ordering.KindSection, ids[2], ordering.Bottom)
		require.NoError(t, err)
		require.Equal(t, 2, res.Placement.Position)
		require.Equal(t, []uuid.UUID{ids[0], ids[1], ids[2]}, f.order(t, ordering.KindSection, projectID))
	})

	t.Run("already at the boundary", func(t *testing.T) {
		f := newOrderingFixture(t)
		projectID := f.container(uuid.New(), uuid.New())
		ids := f.fill(ordering.KindSection, projectID, 2)

		_, err := f.svc.MoveInDirection(ctx, ordering.KindSection, ids[0], ordering.Up)
		require.ErrorIs(t, err, ordering.ErrNoPredecessor)
		_, err = f.svc.MoveInDirection(ctx, ordering.KindSection, ids[1], ordering.Down)
		require.ErrorIs(t, err, ordering.ErrNoSuccessor)

		// Top and bottom are no-op re-placements, never errors.
		_, err = f.svc.MoveInDirection(ctx, ordering.KindSection, ids[0], ordering.Top)
		require.NoError(t, err)
		_, err = f.svc.MoveInDirection(ctx, ordering.KindSection, ids[1], ordering.Bottom)
		require.NoError(t, err)
		require.Equal(t, ids, f.order(t, ordering.KindSection, projectID))
	})

	t.Run("unknown direction", func(t *testing.T) {
		f := newOrderingFixture(t)
		_, err := f.svc.MoveInDirection(ctx, ordering.KindSection, uuid.New(), ordering.Direction("sideways"))
		require.ErrorIs(t, err, ordering.ErrInvalidDirection)
	})
}

// Moving an item after an anchor and then back after its previous anchor
// restores the original sibling order.
func TestOrderingService_MoveAfterRoundTrip(t *testing.T) {
	ctx := context.Background()

	t.Run("back after the previous sibling", func(t *testing.T) {
		f := newOrderingFixture(t)
		sectionID := f.container(uuid.New(), uuid.New())
		ids := f.fill(ordering.KindTask, sectionID, 4)

		_, err := f.svc.MoveAfter(ctx, ordering.KindTask, ids[2], ids[0])
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{ids[0], ids[2], ids[1], ids[3]}, f.order(t, ordering.KindTask, sectionID))

		// ids[2] originally sat behind ids[1].
		_, err = f.svc.MoveAfter(ctx, ordering.KindTask, ids[2], ids[1])
		require.NoError(t, err)
		require.Equal(t, ids, f.order(t, ordering.KindTask, sectionID))
	})

	t.Run("back to the front via the container anchor", func(t *testing.T) {
		f := newOrderingFixture(t)
		sectionID := f.container(uuid.New(), uuid.New())
		ids := f.fill(ordering.KindTask, sectionID, 3)

		_, err := f.svc.MoveAfter(ctx, ordering.KindTask, ids[0], ids[2])
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{ids[1], ids[2], ids[0]}, f.order(t, ordering.KindTask, sectionID))

		_, err = f.svc.MoveAfter(ctx, ordering.KindTask, ids[0], sectionID)
		require.NoError(t, err)
		require.Equal(t, ids, f.order(t, ordering.KindTask, sectionID))
	})
}

// Concurrent direction moves against one parent must leave the collection
// dense and holding exactly the original member set.
func TestOrderingService_ConcurrentMovesPreserveDensity(t *testing.T) {
	f := newOrderingFixture(t)
	projectID := f.container(uuid.New(), uuid.New())
	ids := f.fill(ordering.KindSection, projectID, 8)

	directions := []ordering.Direction{ordering.Up, ordering.Down, ordering.Top, ordering.Bottom}
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.MoveInDirection(
				context.Background(),
				ordering.KindSection,
				ids[i%len(ids)],
				directions[i%len(directions)],
			)
			// Boundary rejections are expected when a sibling moved first.
			if err != nil && !errors.Is(err, ordering.ErrNoPredecessor) && !errors.Is(err, ordering.ErrNoSuccessor) {
				t.Errorf("move %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got := f.order(t, ordering.KindSection, projectID)
	require.ElementsMatch(t, ids, got)
	for i, id := range got {
		placement, err := f.store.Locate(context.Background(), ordering.KindSection, id)
		require.NoError(t, err)
		require.Equal(t, ordering.Placement{ParentID: projectID, Position: i}, placement)
	}
}

func TestOrderingService_AuthorizesAgainstDestinationScope(t *testing.T) {
	f := newOrderingFixture(t)
	srcWorkspace, dstWorkspace := uuid.New(), uuid.New()
	srcSection := f.container(uuid.New(), srcWorkspace)
	dstSection := f.container(uuid.New(), dstWorkspace)
	srcIDs := f.fill(ordering.KindTask, srcSection, 1)
	dstIDs := f.fill(ordering.KindTask, dstSection, 1)

	var gotWorkspace uuid.UUID
	swapAuthorize(t, func(_ context.Context, workspaceID uuid.UUID, object, action string) error {
		gotWorkspace = workspaceID
		require.Equal(t, OrderingAuthzObject, object)
		require.Equal(t, "update", action)
		return nil
	})

	_, err := f.svc.MoveAfter(context.Background(), ordering.KindTask, srcIDs[0], dstIDs[0])
	require.NoError(t, err)
	require.Equal(t, dstWorkspace, gotWorkspace)
}

func TestOrderingService_ForbiddenMoveLeavesOrderIntact(t *testing.T) {
	f := newOrderingFixture(t)
	sectionID := f.container(uuid.New(), uuid.New())
	ids := f.fill(ordering.KindTask, sectionID, 3)

	swapAuthorize(t, func(context.Context, uuid.UUID, string, string) error {
		return authz.ErrForbidden
	})

	_, err := f.svc.MoveAfter(context.Background(), ordering.KindTask, ids[0], ids[2])
	require.ErrorIs(t, err, authz.ErrForbidden)
	require.Equal(t, ids, f.order(t, ordering.KindTask, sectionID))
}

func TestOrderingService_RetriesLockConflicts(t *testing.T) {
	deadlock := &pgconn.PgError{Code: "40P01"}

	t.Run("one conflict is retried", func(t *testing.T) {
		f := newOrderingFixture(t)
		projectID := f.container(uuid.New(), uuid.New())
		ids := f.fill(ordering.KindSection, projectID, 2)

		calls := 0
		prev := runMoveTx
		runMoveTx = func(ctx context.Context, fn func(context.Context) (MoveResult, error)) (MoveResult, error) {
			calls++
			if calls == 1 {
				return MoveResult{}, deadlock
			}
			return fn(ctx)
		}
		t.Cleanup(func() { runMoveTx = prev })

		_, err := f.svc.MoveInDirection(context.Background(), ordering.KindSection, ids[1], ordering.Top)
		require.NoError(t, err)
		require.Equal(t, 2, calls)
		require.Equal(t, []uuid.UUID{ids[1], ids[0]}, f.order(t, ordering.KindSection, projectID))
	})

	t.Run("persistent conflict surfaces as transient", func(t *testing.T) {
		f := newOrderingFixture(t)
		projectID := f.container(uuid.New(), uuid.New())
		ids := f.fill(ordering.KindSection, projectID, 2)

		prev := runMoveTx
		runMoveTx = func(context.Context, func(context.Context) (MoveResult, error)) (MoveResult, error) {
			return MoveResult{}, deadlock
		}
		t.Cleanup(func() { runMoveTx = prev })

		_, err := f.svc.MoveInDirection(context.Background(), ordering.KindSection, ids[1], ordering.Top)
		require.ErrorIs(t, err, ordering.ErrTransient)
	})
}
