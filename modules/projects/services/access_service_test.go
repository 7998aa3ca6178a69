package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/planora/planora/modules/projects/domain/aggregates/project"
	"github.com/planora/planora/modules/projects/domain/aggregates/workspace"
	"github.com/planora/planora/modules/projects/domain/entities/task"
	"github.com/planora/planora/modules/projects/domain/events"
)

type fakeWorkspaceRepo struct {
	workspace.Repository
	members map[uuid.UUID]map[uuid.UUID]struct{}
}

func (f *fakeWorkspaceRepo) IsMember(_ context.Context, workspaceID, memberID uuid.UUID) (bool, error) {
	_, ok := f.members[workspaceID][memberID]
	return ok, nil
}

type fakeProjectRepo struct {
	project.Repository
	byID map[uuid.UUID]project.Project
}

func (f *fakeProjectRepo) GetByID(_ context.Context, id uuid.UUID) (project.Project, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	return p, nil
}

type fakeTaskRepo struct {
	task.Repository
	byID map[uuid.UUID]task.Task
}

func (f *fakeTaskRepo) GetByID(_ context.Context, id uuid.UUID) (task.Task, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	return t, nil
}

func TestAccessService_CanView(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	workspaceID := uuid.New()
	memberID := uuid.New()
	outsiderID := uuid.New()

	p := project.New(workspaceID, "launch")
	tsk := task.New(uuid.New(), p.ID(), workspaceID, "ship it")

	svc := NewAccessService(
		&fakeWorkspaceRepo{members: map[uuid.UUID]map[uuid.UUID]struct{}{
			workspaceID: {memberID: {}},
		}},
		&fakeProjectRepo{byID: map[uuid.UUID]project.Project{p.ID(): p}},
		&fakeTaskRepo{byID: map[uuid.UUID]task.Task{tsk.ID(): tsk}},
	)

	cases := []struct {
		name     string
		memberID uuid.UUID
		res      events.Resource
		want     bool
	}{
		{"member sees the workspace", memberID, events.NewResource(events.KindWorkspace, workspaceID), true},
		{"outsider does not see the workspace", outsiderID, events.NewResource(events.KindWorkspace, workspaceID), false},
		{"member sees a project through workspace membership", memberID, events.NewResource(events.KindProject, p.ID()), true},
		{"outsider does not see the project", outsiderID, events.NewResource(events.KindProject, p.ID()), false},
		{"member sees a task through workspace membership", memberID, events.NewResource(events.KindTask, tsk.ID()), true},
		{"outsider does not see the task", outsiderID, events.NewResource(events.KindTask, tsk.ID()), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.CanView(ctx, tc.memberID, tc.res)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

// Missing resources answer exactly like invisible ones so callers cannot probe
// for the existence of entities outside their workspaces.
func TestAccessService_MissingLooksLikeInvisible(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewAccessService(
		&fakeWorkspaceRepo{members: map[uuid.UUID]map[uuid.UUID]struct{}{}},
		&fakeProjectRepo{byID: map[uuid.UUID]project.Project{}},
		&fakeTaskRepo{byID: map[uuid.UUID]task.Task{}},
	)

	for _, kind := range []events.ResourceKind{events.KindWorkspace, events.KindProject, events.KindTask} {
		got, err := svc.CanView(ctx, uuid.New(), events.NewResource(kind, uuid.New()))
		require.NoError(t, err)
		require.False(t, got)
	}
}
