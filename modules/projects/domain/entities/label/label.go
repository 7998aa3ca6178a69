package label

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrLabelNotFound = errors.New("label not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Label, error)
	GetByProject(ctx context.Context, projectID uuid.UUID) ([]*Label, error)
	Create(ctx context.Context, l *Label) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Label has no change topic; attaching or detaching one is reported as a
// change of the task involved.
type Label struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Name      string
	Color     string
	CreatedAt time.Time
}

func New(projectID uuid.UUID, name, color string) *Label {
	return &Label{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Color:     color,
		CreatedAt: time.Now(),
	}
}
