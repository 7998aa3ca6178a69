package persistence

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/planora/planora/modules/projects/domain/ordering"
	"github.com/planora/planora/pkg/composables"
)

// collection describes where one ordered kind lives. The position column is
// covered by a unique index on (parent, position) declared DEFERRABLE
// INITIALLY DEFERRED, so range shifts inside a transaction may reorder rows
// freely and density is re-checked at commit.
type collection struct {
	table        string
	parentColumn string
}

var collections = map[ordering.Kind]collection{
	ordering.KindSection: {table: "sections", parentColumn: "project_id"},
	ordering.KindTask:    {table: "tasks", parentColumn: "section_id"},
	ordering.KindSubTask: {table: "sub_tasks", parentColumn: "task_id"},
}

// PgPositionStore implements ordering.Store on Postgres. Every mutating
// operation expects to run inside a transaction carried by the context and
// after LockSiblings has serialized access to the affected parents.
type PgPositionStore struct{}

func NewPositionStore() ordering.Store {
	return &PgPositionStore{}
}

func (s *PgPositionStore) LockSiblings(ctx context.Context, kind ordering.Kind, parentIDs ...uuid.UUID) error {
	col, err := collectionFor(kind)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	// Deterministic lock order across parents prevents two concurrent
	// cross-parent moves from deadlocking on each other.
	ids := make([]uuid.UUID, len(parentIDs))
	copy(ids, parentIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, parentID := range ids {
		query := fmt.Sprintf(
			`SELECT id FROM %s WHERE %s = $1 ORDER BY position FOR UPDATE`,
			col.table, col.parentColumn,
		)
		rows, err := tx.Query(ctx, query, parentID.String())
		if err != nil {
			return errors.Wrap(err, "failed to lock sibling set")
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, "failed to lock sibling set")
		}
	}
	return nil
}

func (s *PgPositionStore) Locate(ctx context.Context, kind ordering.Kind, id uuid.UUID) (ordering.Placement, error) {
	col, err := collectionFor(kind)
	if err != nil {
		return ordering.Placement{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return ordering.Placement{}, err
	}

	query := fmt.Sprintf(`SELECT %s, position FROM %s WHERE id = $1`, col.parentColumn, col.table)
	var parentStr string
	var position int
	if err := tx.QueryRow(ctx, query, id.String()).Scan(&parentStr, &position); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ordering.Placement{}, ordering.ErrMemberNotFound
		}
		return ordering.Placement{}, errors.Wrap(err, "failed to locate member")
	}
	parentID, err := uuid.Parse(parentStr)
	if err != nil {
		return ordering.Placement{}, errors.Wrap(err, "malformed parent id")
	}
	return ordering.Placement{ParentID: parentID, Position: position}, nil
}

func (s *PgPositionStore) Siblings(ctx context.Context, kind ordering.Kind, parentID uuid.UUID) ([]uuid.UUID, error) {
	col, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT id FROM %s WHERE %s = $1 ORDER BY position`,
		col.table, col.parentColumn,
	)
	rows, err := tx.Query(ctx, query, parentID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to read siblings")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, errors.Wrap(err, "failed to scan sibling row")
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, errors.Wrap(err, "malformed sibling id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertAt positions a member that its repository has just created at the
// tail of the collection. Members at >= position shift up by one.
func (s *PgPositionStore) InsertAt(ctx context.Context, kind ordering.Kind, parentID, id uuid.UUID, position int) error {
	col, err := collectionFor(kind)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	size, err := s.collectionSize(ctx, kind, parentID)
	if err != nil {
		return err
	}
	// The new member is already counted in size; positions 0..size-1 match
	// the contract's 0..currentSize over the pre-insert collection.
	if position < 0 || position >= size {
		return ordering.ErrInvalidPosition.WithDetails(map[string]string{
			"position": fmt.Sprintf("%d", position),
			"size":     fmt.Sprintf("%d", size-1),
		})
	}

	shift := fmt.Sprintf(
		`UPDATE %s SET position = position + 1 WHERE %s = $1 AND position >= $2 AND id <> $3`,
		col.table, col.parentColumn,
	)
	if _, err := tx.Exec(ctx, shift, parentID.String(), position, id.String()); err != nil {
		return errors.Wrap(err, "failed to shift siblings")
	}

	place := fmt.Sprintf(`UPDATE %s SET position = $1 WHERE id = $2`, col.table)
	if _, err := tx.Exec(ctx, place, position, id.String()); err != nil {
		return errors.Wrap(err, "failed to place member")
	}
	return nil
}

func (s *PgPositionStore) MoveTo(ctx context.Context, kind ordering.Kind, id, parentID uuid.UUID, position int) error {
	col, err := collectionFor(kind)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	src, err := s.Locate(ctx, kind, id)
	if err != nil {
		return err
	}

	if src.ParentID == parentID {
		return s.moveWithinParent(ctx, col, id, src, position)
	}

	dstSize, err := s.collectionSize(ctx, kind, parentID)
	if err != nil {
		return err
	}
	if position < 0 || position > dstSize {
		return ordering.ErrInvalidPosition.WithDetails(map[string]string{
			"position": fmt.Sprintf("%d", position),
			"size":     fmt.Sprintf("%d", dstSize),
		})
	}

	closeGap := fmt.Sprintf(
		`UPDATE %s SET position = position - 1 WHERE %s = $1 AND position > $2`,
		col.table, col.parentColumn,
	)
	if _, err := tx.Exec(ctx, closeGap, src.ParentID.String(), src.Position); err != nil {
		return errors.Wrap(err, "failed to compact source collection")
	}

	openGap := fmt.Sprintf(
		`UPDATE %s SET position = position + 1 WHERE %s = $1 AND position >= $2`,
		col.table, col.parentColumn,
	)
	if _, err := tx.Exec(ctx, openGap, parentID.String(), position); err != nil {
		return errors.Wrap(err, "failed to open destination gap")
	}

	reattach := fmt.Sprintf(
		`UPDATE %s SET %s = $1, position = $2 WHERE id = $3`,
		col.table, col.parentColumn,
	)
	if _, err := tx.Exec(ctx, reattach, parentID.String(), position, id.String()); err != nil {
		return errors.Wrap(err, "failed to reattach member")
	}
	return nil
}

func (s *PgPositionStore) moveWithinParent(ctx context.Context, col collection, id uuid.UUID, src ordering.Placement, position int) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	count := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, col.table, col.parentColumn)
	var size int
	if err := tx.QueryRow(ctx, count, src.ParentID.String()).Scan(&size); err != nil {
		return errors.Wrap(err, "failed to count siblings")
	}
	if position < 0 || position >= size {
		return ordering.ErrInvalidPosition.WithDetails(map[string]string{
			"position": fmt.Sprintf("%d", position),
			"size":     fmt.Sprintf("%d", size-1),
		})
	}
	if position == src.Position {
		return nil
	}

	var shift string
	var lo, hi int
	if position > src.Position {
		shift = fmt.Sprintf(
			`UPDATE %s SET position = position - 1 WHERE %s = $1 AND position > $2 AND position <= $3`,
			col.table, col.parentColumn,
		)
		lo, hi = src.Position, position
	} else {
		shift = fmt.Sprintf(
			`UPDATE %s SET position = position + 1 WHERE %s = $1 AND position >= $2 AND position < $3`,
			col.table, col.parentColumn,
		)
		lo, hi = position, src.Position
	}
	if _, err := tx.Exec(ctx, shift, src.ParentID.String(), lo, hi); err != nil {
		return errors.Wrap(err, "failed to shift siblings")
	}

	place := fmt.Sprintf(`UPDATE %s SET position = $1 WHERE id = $2`, col.table)
	if _, err := tx.Exec(ctx, place, position, id.String()); err != nil {
		return errors.Wrap(err, "failed to place member")
	}
	return nil
}

func (s *PgPositionStore) Remove(ctx context.Context, kind ordering.Kind, id uuid.UUID) error {
	col, err := collectionFor(kind)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	src, err := s.Locate(ctx, kind, id)
	if err != nil {
		return err
	}

	del := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, col.table)
	if _, err := tx.Exec(ctx, del, id.String()); err != nil {
		return errors.Wrap(err, "failed to delete member")
	}

	compact := fmt.Sprintf(
		`UPDATE %s SET position = position - 1 WHERE %s = $1 AND position > $2`,
		col.table, col.parentColumn,
	)
	if _, err := tx.Exec(ctx, compact, src.ParentID.String(), src.Position); err != nil {
		return errors.Wrap(err, "failed to compact siblings")
	}
	return nil
}

func (s *PgPositionStore) collectionSize(ctx context.Context, kind ordering.Kind, parentID uuid.UUID) (int, error) {
	col, err := collectionFor(kind)
	if err != nil {
		return 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, col.table, col.parentColumn)
	var size int
	if err := tx.QueryRow(ctx, query, parentID.String()).Scan(&size); err != nil {
		return 0, errors.Wrap(err, "failed to count collection")
	}
	return size, nil
}

func collectionFor(kind ordering.Kind) (collection, error) {
	col, ok := collections[kind]
	if !ok {
		return collection{}, fmt.Errorf("unknown ordered collection kind %q", kind)
	}
	return col, nil
}
