package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Playdatewebserver/internal/domain"

	"github.com/jackc/pgx/v5"
)

func (s *UsersStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		var row userRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, row.user())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return out, nil
}

func (s *UsersStore) SetUserRole(ctx context.Context, userID string, role domain.Role, when time.Time) (domain.User, error) {
	const q = `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1 RETURNING ` + userColumns
	return s.updateUser(ctx, "set user role", q, userID, role, when)
}

func (s *UsersStore) SetUserActive(ctx context.Context, userID string, active bool, when time.Time) (domain.User, error) {
	const q = `UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1 RETURNING ` + userColumns
	return s.updateUser(ctx, "set user active", q, userID, active, when)
}

func (s *UsersStore) updateUser(ctx context.Context, op, q, userID string, value any, when time.Time) (domain.User, error) {
	if !validIDs(userID) {
		return domain.User{}, domain.ErrNotFound
	}
	var row userRow
	if err := s.pool.QueryRow(ctx, q, userID, value, when).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return row.user(), nil
}
