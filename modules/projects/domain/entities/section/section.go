package section

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/events"
)

var ErrSectionNotFound = errors.New("section not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Section, error)
	GetByProject(ctx context.Context, projectID uuid.UUID) ([]*Section, error)
	Create(ctx context.Context, s *Section) error
	Update(ctx context.Context, s *Section) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Reparent rewrites the denormalized scope columns after the section has
	// been moved to another project, cascading to the tasks and sub-tasks it
	// contains.
	Reparent(ctx context.Context, id, projectID, workspaceID uuid.UUID) error
}

// Section is an ordered member of a project's section list. Position is
// maintained by the ordering store, not by this entity.
type Section struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	// WorkspaceID is denormalized from the owning project for authorization
	// scope checks.
	WorkspaceID uuid.UUID
	Title       string
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func New(projectID, workspaceID uuid.UUID, title string) *Section {
	now := time.Now()
	return &Section{
		ID:          uuid.New(),
		ProjectID:   projectID,
		WorkspaceID: workspaceID,
		Title:       title,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Sections have no topic of their own; their changes surface on the owning
// project.
func (s *Section) AffectedResources() []events.Resource {
	return []events.Resource{events.NewResource(events.KindProject, s.ProjectID)}
}
