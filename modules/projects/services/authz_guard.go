package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/planora/planora/pkg/authz"
	"github.com/planora/planora/pkg/composables"
)

// OrderingAuthzObject guards reordering of sections, tasks and sub-tasks.
const OrderingAuthzObject = "projects.ordering"

const (
	WorkspacesAuthzObject = "projects.workspaces"
	ProjectsAuthzObject   = "projects.projects"
	SectionsAuthzObject   = "projects.sections"
	TasksAuthzObject      = "projects.tasks"
	SubTasksAuthzObject   = "projects.subtasks"
	LabelsAuthzObject     = "projects.labels"
)

var authorizeProjectsFn = defaultAuthorizeProjects

// authorizeProjects checks the acting member's permission for an action on an
// object inside the given workspace scope. For moves the workspace is the
// effective (destination) scope, not the source.
func authorizeProjects(ctx context.Context, workspaceID uuid.UUID, object, action string) error {
	return authorizeProjectsFn(ctx, workspaceID, object, action)
}

func defaultAuthorizeProjects(ctx context.Context, workspaceID uuid.UUID, object, action string) error {
	currentMember, err := composables.UseMember(ctx)
	if err != nil {
		if errors.Is(err, composables.ErrNoMemberFound) {
			return authz.ErrForbidden
		}
		return err
	}

	req := authz.NewRequest(
		authz.SubjectForMember(currentMember.ID()),
		authz.DomainFromWorkspace(workspaceID),
		object,
		authz.NormalizeAction(action),
	)
	return authz.Use().Authorize(ctx, req)
}
