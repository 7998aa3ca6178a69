package project

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/events"
)

var ErrProjectNotFound = errors.New("project not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Project, error)
	GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]Project, error)
	Create(ctx context.Context, p Project) (Project, error)
	Update(ctx context.Context, p Project) (Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Project interface {
	events.Source
	ID() uuid.UUID
	WorkspaceID() uuid.UUID
	Name() string
	Archived() bool
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Rename(name string) Project
	Archive() Project
}

type proj struct {
	id          uuid.UUID
	workspaceID uuid.UUID
	name        string
	archived    bool
	createdAt   time.Time
	updatedAt   time.Time
}

func New(workspaceID uuid.UUID, name string, opts ...Option) Project {
	p := &proj{
		id:          uuid.New(),
		workspaceID: workspaceID,
		name:        name,
		createdAt:   time.Now(),
		updatedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type Option func(*proj)

func WithID(id uuid.UUID) Option {
	return func(p *proj) {
		if id != uuid.Nil {
			p.id = id
		}
	}
}

func WithArchived(archived bool) Option {
	return func(p *proj) {
		p.archived = archived
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(p *proj) {
		if !t.IsZero() {
			p.createdAt = t
		}
	}
}

func WithUpdatedAt(t time.Time) Option {
	return func(p *proj) {
		if !t.IsZero() {
			p.updatedAt = t
		}
	}
}

func (p *proj) ID() uuid.UUID          { return p.id }
func (p *proj) WorkspaceID() uuid.UUID { return p.workspaceID }
func (p *proj) Name() string           { return p.name }
func (p *proj) Archived() bool         { return p.archived }
func (p *proj) CreatedAt() time.Time   { return p.createdAt }
func (p *proj) UpdatedAt() time.Time   { return p.updatedAt }

func (p *proj) Rename(name string) Project {
	p.name = name
	p.updatedAt = time.Now()
	return p
}

func (p *proj) Archive() Project {
	p.archived = true
	p.updatedAt = time.Now()
	return p
}

// A project change is visible to project subscribers and to subscribers of
// the owning workspace, whose project list it affects.
func (p *proj) AffectedResources() []events.Resource {
	return []events.Resource{
		events.NewResource(events.KindProject, p.id),
		events.NewResource(events.KindWorkspace, p.workspaceID),
	}
}
