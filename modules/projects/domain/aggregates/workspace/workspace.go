package workspace

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/events"
)

var ErrWorkspaceNotFound = errors.New("workspace not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Workspace, error)
	Create(ctx context.Context, ws Workspace) (Workspace, error)
	Update(ctx context.Context, ws Workspace) (Workspace, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// IsMember reports whether the member belongs to the workspace's team.
	IsMember(ctx context.Context, workspaceID, memberID uuid.UUID) (bool, error)
	AddMember(ctx context.Context, workspaceID, memberID uuid.UUID) error
	RemoveMember(ctx context.Context, workspaceID, memberID uuid.UUID) error
}

type Workspace interface {
	events.Source
	ID() uuid.UUID
	Name() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Rename(name string) Workspace
}

type ws struct {
	id        uuid.UUID
	name      string
	createdAt time.Time
	updatedAt time.Time
}

func New(name string, opts ...Option) Workspace {
	w := &ws{
		id:        uuid.New(),
		name:      name,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type Option func(*ws)

func WithID(id uuid.UUID) Option {
	return func(w *ws) {
		if id != uuid.Nil {
			w.id = id
		}
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(w *ws) {
		if !t.IsZero() {
			w.createdAt = t
		}
	}
}

func WithUpdatedAt(t time.Time) Option {
	return func(w *ws) {
		if !t.IsZero() {
			w.updatedAt = t
		}
	}
}

func (w *ws) ID() uuid.UUID        { return w.id }
func (w *ws) Name() string         { return w.name }
func (w *ws) CreatedAt() time.Time { return w.createdAt }
func (w *ws) UpdatedAt() time.Time { return w.updatedAt }

func (w *ws) Rename(name string) Workspace {
	w.name = name
	w.updatedAt = time.Now()
	return w
}

func (w *ws) AffectedResources() []events.Resource {
	return []events.Resource{events.NewResource(events.KindWorkspace, w.id)}
}
