package member

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrMemberNotFound = errors.New("member not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Member, error)
	GetByEmail(ctx context.Context, email string) (Member, error)
	Create(ctx context.Context, m Member) (Member, error)
}

// Member is an authenticated team member: the principal on whose behalf
// subscriptions are held and mutations run.
type Member interface {
	ID() uuid.UUID
	Email() string
	Name() string
	CreatedAt() time.Time
}

type mbr struct {
	id        uuid.UUID
	email     string
	name      string
	createdAt time.Time
}

func New(email, name string, opts ...Option) Member {
	m := &mbr{
		id:        uuid.New(),
		email:     email,
		name:      name,
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type Option func(*mbr)

func WithID(id uuid.UUID) Option {
	return func(m *mbr) {
		if id != uuid.Nil {
			m.id = id
		}
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(m *mbr) {
		if !t.IsZero() {
			m.createdAt = t
		}
	}
}

func (m *mbr) ID() uuid.UUID        { return m.id }
func (m *mbr) Email() string        { return m.email }
func (m *mbr) Name() string         { return m.name }
func (m *mbr) CreatedAt() time.Time { return m.createdAt }
