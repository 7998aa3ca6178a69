package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/entities/label"
	"github.com/planora/planora/modules/projects/domain/events"
)

var ErrTaskNotFound = errors.New("task not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Task, error)
	GetBySection(ctx context.Context, sectionID uuid.UUID) ([]Task, error)
	GetByProject(ctx context.Context, projectID uuid.UUID) ([]Task, error)
	Create(ctx context.Context, t Task) (Task, error)
	Update(ctx context.Context, t Task) (Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AttachLabel(ctx context.Context, taskID, labelID uuid.UUID) error
	DetachLabel(ctx context.Context, taskID, labelID uuid.UUID) error
	// Reparent rewrites the denormalized scope columns after the task has
	// been moved to a section of another project. Sub-tasks follow; labels of
	// the former project are detached.
	Reparent(ctx context.Context, id, projectID, workspaceID uuid.UUID) error
}

// Task is an ordered member of a section's task list. The owning project and
// workspace ids are carried for ancestor notification and scope checks.
type Task interface {
	events.Source
	ID() uuid.UUID
	SectionID() uuid.UUID
	ProjectID() uuid.UUID
	WorkspaceID() uuid.UUID
	Title() string
	Completed() bool
	Position() int
	Labels() []*label.Label
	CreatedAt() time.Time
	UpdatedAt() time.Time

	Rename(title string) Task
	SetCompleted(done bool) Task
	Relocate(sectionID, projectID uuid.UUID) Task
}

type tsk struct {
	id          uuid.UUID
	sectionID   uuid.UUID
	projectID   uuid.UUID
	workspaceID uuid.UUID
	title       string
	completed   bool
	position    int
	labels      []*label.Label
	createdAt   time.Time
	updatedAt   time.Time
}

func New(sectionID, projectID, workspaceID uuid.UUID, title string, opts ...Option) Task {
	t := &tsk{
		id:          uuid.New(),
		sectionID:   sectionID,
		projectID:   projectID,
		workspaceID: workspaceID,
		title:       title,
		createdAt:   time.Now(),
		updatedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type Option func(*tsk)

func WithID(id uuid.UUID) Option {
	return func(t *tsk) {
		if id != uuid.Nil {
			t.id = id
		}
	}
}

func WithCompleted(completed bool) Option {
	return func(t *tsk) {
		t.completed = completed
	}
}

func WithPosition(position int) Option {
	return func(t *tsk) {
		t.position = position
	}
}

func WithLabels(labels []*label.Label) Option {
	return func(t *tsk) {
		t.labels = labels
	}
}

func WithCreatedAt(at time.Time) Option {
	return func(t *tsk) {
		if !at.IsZero() {
			t.createdAt = at
		}
	}
}

func WithUpdatedAt(at time.Time) Option {
	return func(t *tsk) {
		if !at.IsZero() {
			t.updatedAt = at
		}
	}
}

func (t *tsk) ID() uuid.UUID          { return t.id }
func (t *tsk) SectionID() uuid.UUID   { return t.sectionID }
func (t *tsk) ProjectID() uuid.UUID   { return t.projectID }
func (t *tsk) WorkspaceID() uuid.UUID { return t.workspaceID }
func (t *tsk) Title() string          { return t.title }
func (t *tsk) Completed() bool        { return t.completed }
func (t *tsk) Position() int          { return t.position }
func (t *tsk) Labels() []*label.Label { return t.labels }
func (t *tsk) CreatedAt() time.Time   { return t.createdAt }
func (t *tsk) UpdatedAt() time.Time   { return t.updatedAt }

func (t *tsk) Rename(title string) Task {
	t.title = title
	t.updatedAt = time.Now()
	return t
}

func (t *tsk) SetCompleted(done bool) Task {
	t.completed = done
	t.updatedAt = time.Now()
	return t
}

// Relocate retargets the task at a different section, and project when the
// section belongs to another one. Position is reassigned by the ordering
// store.
func (t *tsk) Relocate(sectionID, projectID uuid.UUID) Task {
	t.sectionID = sectionID
	t.projectID = projectID
	t.updatedAt = time.Now()
	return t
}

// A task change is visible to task subscribers and to subscribers of the
// owning project.
func (t *tsk) AffectedResources() []events.Resource {
	return []events.Resource{
		events.NewResource(events.KindTask, t.id),
		events.NewResource(events.KindProject, t.projectID),
	}
}
