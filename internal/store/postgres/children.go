package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Playdatewebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChildrenStore struct {
	pool *pgxpool.Pool
}

func NewChildrenStore(pool *pgxpool.Pool) *ChildrenStore {
	return &ChildrenStore{pool: pool}
}

const childColumns = `id, parent_id, name, created_at, updated_at`

type childRow struct {
	c        domain.Child
	id       pgtype.UUID
	parentID pgtype.UUID
}

func (r *childRow) dest() []any {
	return []any{&r.id, &r.parentID, &r.c.Name, &r.c.CreatedAt, &r.c.UpdatedAt}
}

func (r *childRow) child() domain.Child {
	r.c.ID = uuidOrEmpty(r.id)
	r.c.ParentID = uuidOrEmpty(r.parentID)
	return r.c
}

func (s *ChildrenStore) CreateChild(ctx context.Context, parentID, name string, when time.Time) (domain.Child, error) {
	if !validIDs(parentID) {
		return domain.Child{}, domain.ErrNotFound
	}
	const q = `
		INSERT INTO children (parent_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING ` + childColumns

	var row childRow
	if err := s.pool.QueryRow(ctx, q, parentID, name, when).Scan(row.dest()...); err != nil {
		return domain.Child{}, mapChildWriteError("create child", err)
	}
	return row.child(), nil
}

func (s *ChildrenStore) GetChild(ctx context.Context, id string) (domain.Child, error) {
	if !validIDs(id) {
		return domain.Child{}, domain.ErrNotFound
	}
	const q = `SELECT ` + childColumns + ` FROM children WHERE id = $1`

	var row childRow
	if err := s.pool.QueryRow(ctx, q, id).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Child{}, domain.ErrNotFound
		}
		return domain.Child{}, fmt.Errorf("get child: %w", err)
	}
	return row.child(), nil
}

func (s *ChildrenStore) ListChildren(ctx context.Context, parentID string) ([]domain.Child, error) {
	if !validIDs(parentID) {
		return []domain.Child{}, nil
	}
	const q = `
		SELECT ` + childColumns + `
		FROM children
		WHERE parent_id = $1
		ORDER BY name ASC, created_at ASC
	`

	rows, err := s.pool.Query(ctx, q, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	out := []domain.Child{}
	for rows.Next() {
		var row childRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		out = append(out, row.child())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return out, nil
}

func (s *ChildrenStore) RenameChild(ctx context.Context, childID, name string, when time.Time) (domain.Child, error) {
	if !validIDs(childID) {
		return domain.Child{}, domain.ErrNotFound
	}
	const q = `
		UPDATE children SET name = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + childColumns

	var row childRow
	if err := s.pool.QueryRow(ctx, q, childID, name, when).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Child{}, domain.ErrNotFound
		}
		return domain.Child{}, mapChildWriteError("rename child", err)
	}
	return row.child(), nil
}

// DeleteChild relies on ON DELETE CASCADE for activities, connections,
// requests and invitations that reference the child.
func (s *ChildrenStore) DeleteChild(ctx context.Context, childID string) error {
	if !validIDs(childID) {
		return domain.ErrNotFound
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM children WHERE id = $1`, childID)
	if err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func mapChildWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err, "children_parent_name_uq"):
		return domain.ErrChildNameTaken
	case isForeignKeyViolation(err):
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
