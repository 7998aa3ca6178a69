package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/planora/planora/modules/projects/domain/aggregates/member"
	"github.com/planora/planora/modules/projects/infrastructure/persistence/models"
	"github.com/planora/planora/pkg/composables"
)

const memberFindQuery = `SELECT id, email, name, created_at FROM members`

type MemberRepository struct{}

func NewMemberRepository() member.Repository {
	return &MemberRepository{}
}

func (r *MemberRepository) GetByID(ctx context.Context, id uuid.UUID) (member.Member, error) {
	return r.queryOne(ctx, memberFindQuery+" WHERE id = $1", id.String())
}

func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (member.Member, error) {
	return r.queryOne(ctx, memberFindQuery+" WHERE email = $1", email)
}

func (r *MemberRepository) Create(ctx context.Context, m member.Member) (member.Member, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO members (id, email, name, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, query, m.ID().String(), m.Email(), m.Name(), m.CreatedAt()); err != nil {
		return nil, errors.Wrap(err, "failed to insert member")
	}
	return r.GetByID(ctx, m.ID())
}

func (r *MemberRepository) queryOne(ctx context.Context, query string, args ...interface{}) (member.Member, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var m models.Member
	if err := tx.QueryRow(ctx, query, args...).Scan(
		&m.ID,
		&m.Email,
		&m.Name,
		&m.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, member.ErrMemberNotFound
		}
		return nil, errors.Wrap(err, "failed to query member")
	}
	return toDomainMember(&m)
}
