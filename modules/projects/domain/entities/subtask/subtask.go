package subtask

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/events"
)

var ErrSubTaskNotFound = errors.New("sub-task not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*SubTask, error)
	GetByTask(ctx context.Context, taskID uuid.UUID) ([]*SubTask, error)
	Create(ctx context.Context, s *SubTask) error
	Update(ctx context.Context, s *SubTask) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Reparent rewrites the denormalized scope columns after the sub-task has
	// been moved to a task of another project.
	Reparent(ctx context.Context, id, projectID, workspaceID uuid.UUID) error
}

// SubTask is an ordered member of a task's checklist.
type SubTask struct {
	ID     uuid.UUID
	TaskID uuid.UUID
	// ProjectID and WorkspaceID are denormalized from the owning task so
	// ancestor notifications and scope checks need no extra lookups.
	ProjectID   uuid.UUID
	WorkspaceID uuid.UUID
	Title       string
	Completed   bool
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func New(taskID, projectID, workspaceID uuid.UUID, title string) *SubTask {
	now := time.Now()
	return &SubTask{
		ID:          uuid.New(),
		TaskID:      taskID,
		ProjectID:   projectID,
		WorkspaceID: workspaceID,
		Title:       title,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Sub-tasks have no topic of their own; changes surface on the owning task
// and that task's project.
func (s *SubTask) AffectedResources() []events.Resource {
	return []events.Resource{
		events.NewResource(events.KindTask, s.TaskID),
		events.NewResource(events.KindProject, s.ProjectID),
	}
}
