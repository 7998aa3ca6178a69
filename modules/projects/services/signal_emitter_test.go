package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/domain/events"
	"github.com/planora/planora/pkg/eventbus"
)

type recordingBus struct {
	published []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, event eventbus.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) Subscribe(string, eventbus.Handler) *eventbus.Subscription { return nil }
func (b *recordingBus) SubscribersCount(string) int                               { return 0 }
func (b *recordingBus) Close() error                                              { return nil }

func (b *recordingBus) decoded(t *testing.T) []events.ChangeEvent {
	t.Helper()
	out := make([]events.ChangeEvent, 0, len(b.published))
	for _, e := range b.published {
		decoded, err := events.Decode(e.Topic, e.Payload)
		require.NoError(t, err)
		out = append(out, decoded)
	}
	return out
}

func TestSignalEmitter_EmitChanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fans out to the source's ancestors", func(t *testing.T) {
		bus := &recordingBus{}
		emitter := NewSignalEmitter(bus, nil)

		tsk := task.New(uuid.New(), uuid.New(), uuid.New(), "write release notes")
		emitter.EmitChanged(ctx, tsk)

		decoded := bus.decoded(t)
		require.Len(t, decoded, 2)
		require.Equal(t, events.NewResource(events.KindTask, tsk.ID()), decoded[0].Resource)
		require.Equal(t, events.NewResource(events.KindProject, tsk.ProjectID()), decoded[1].Resource)
		for _, e := range decoded {
			require.Equal(t, events.Changed, e.Kind)
			require.False(t, e.OccurredAt.IsZero())
		}
	})

	t.Run("shared ancestors collapse to one event", func(t *testing.T) {
		bus := &recordingBus{}
		emitter := NewSignalEmitter(bus, nil)

		projectID := uuid.New()
		workspaceID := uuid.New()
		first := task.New(uuid.New(), projectID, workspaceID, "first")
		second := task.New(uuid.New(), projectID, workspaceID, "second")

		emitter.EmitChanged(ctx, first, second)

		resources := make(map[events.Resource]int)
		for _, e := range bus.decoded(t) {
			resources[e.Resource]++
		}
		require.Len(t, resources, 3)
		require.Equal(t, 1, resources[events.NewResource(events.KindProject, projectID)])
	})

	t.Run("nil sources are skipped", func(t *testing.T) {
		bus := &recordingBus{}
		emitter := NewSignalEmitter(bus, nil)
		emitter.EmitChanged(ctx, nil, nil)
		require.Empty(t, bus.published)
	})
}

// A task moved between projects notifies the task itself plus both projects,
// each exactly once.
func TestSignalEmitter_CrossProjectMoveEmitsBothProjects(t *testing.T) {
	t.Parallel()

	bus := &recordingBus{}
	emitter := NewSignalEmitter(bus, nil)

	srcProject, dstProject := uuid.New(), uuid.New()
	moved := task.New(uuid.New(), dstProject, uuid.New(), "moved")

	emitter.EmitResources(context.Background(), events.Changed,
		events.NewResource(events.KindTask, moved.ID()),
		events.NewResource(events.KindProject, srcProject),
		events.NewResource(events.KindProject, dstProject),
	)

	decoded := bus.decoded(t)
	require.Len(t, decoded, 3)
	seen := make(map[events.Resource]struct{})
	for _, e := range decoded {
		seen[e.Resource] = struct{}{}
	}
	require.Contains(t, seen, events.NewResource(events.KindTask, moved.ID()))
	require.Contains(t, seen, events.NewResource(events.KindProject, srcProject))
	require.Contains(t, seen, events.NewResource(events.KindProject, dstProject))
}

func TestSignalEmitter_DeduplicatesRepeatedResources(t *testing.T) {
	t.Parallel()

	bus := &recordingBus{}
	emitter := NewSignalEmitter(bus, nil)

	res := events.NewResource(events.KindWorkspace, uuid.New())
	emitter.EmitResources(context.Background(), events.Changed, res, res, res)

	require.Len(t, bus.published, 1)
	require.Equal(t, res.Topic(), bus.published[0].Topic)
}

func TestSignalEmitter_EmitGone(t *testing.T) {
	t.Parallel()

	bus := &recordingBus{}
	emitter := NewSignalEmitter(bus, nil)

	res := events.NewResource(events.KindProject, uuid.New())
	emitter.EmitGone(context.Background(), res)

	decoded := bus.decoded(t)
	require.Len(t, decoded, 1)
	require.Equal(t, events.Gone, decoded[0].Kind)
	require.Equal(t, res, decoded[0].Resource)
}
