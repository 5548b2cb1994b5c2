package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"Playdatewebserver/internal/domain"
)

const childColumns = `id, parent_id, name, created_at, updated_at`

func childDest(c *domain.Child) []any {
	return []any{&c.ID, &c.ParentID, &c.Name, &c.CreatedAt, &c.UpdatedAt}
}

func (s *Store) CreateChild(ctx context.Context, parentID, name string, when time.Time) (domain.Child, error) {
	c := domain.Child{ID: s.newID(), ParentID: parentID, Name: name, CreatedAt: when, UpdatedAt: when}
	const q = `INSERT INTO children (id, parent_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, c.ID, c.ParentID, c.Name, when, when); err != nil {
		return domain.Child{}, s.mapChildWriteError("create child", err)
	}
	return c, nil
}

func (s *Store) GetChild(ctx context.Context, id string) (domain.Child, error) {
	var c domain.Child
	err := s.db.QueryRowContext(ctx, `SELECT `+childColumns+` FROM children WHERE id = ?`, id).Scan(childDest(&c)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Child{}, domain.ErrNotFound
		}
		return domain.Child{}, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

func (s *Store) ListChildren(ctx context.Context, parentID string) ([]domain.Child, error) {
	q := `SELECT ` + childColumns + ` FROM children WHERE parent_id = ? ORDER BY name ASC, created_at ASC`
	return s.queryChildren(ctx, "list children", q, parentID)
}

func (s *Store) queryChildren(ctx context.Context, op, q string, args ...any) ([]domain.Child, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.Child{}
	for rows.Next() {
		var c domain.Child
		if err := rows.Scan(childDest(&c)...); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) RenameChild(ctx context.Context, childID, name string, when time.Time) (domain.Child, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE children SET name = ?, updated_at = ? WHERE id = ?`, name, when, childID)
	if err != nil {
		return domain.Child{}, s.mapChildWriteError("rename child", err)
	}
	if err := requireRow(res, "rename child"); err != nil {
		return domain.Child{}, err
	}
	return s.GetChild(ctx, childID)
}

func (s *Store) DeleteChild(ctx context.Context, childID string) error {
	return s.exec(ctx, "delete child", `DELETE FROM children WHERE id = ?`, childID)
}

func (s *Store) mapChildWriteError(op string, err error) error {
	switch {
	case s.dialect.IsUniqueViolation(err):
		return domain.ErrChildNameTaken
	case s.dialect.IsForeignKeyViolation(err):
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
