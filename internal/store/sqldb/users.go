package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"Playdatewebserver/internal/domain"
)

const userColumns = `id, username, email, phone, family_name, role, is_active, created_at, updated_at`

type userScan struct {
	u          domain.User
	phone      sql.NullString
	familyName sql.NullString
}

func (r *userScan) dest() []any {
	return []any{&r.u.ID, &r.u.Username, &r.u.Email, &r.phone, &r.familyName, &r.u.Role, &r.u.IsActive, &r.u.CreatedAt, &r.u.UpdatedAt}
}

func (r *userScan) user() domain.User {
	r.u.Phone = r.phone.String
	r.u.FamilyName = r.familyName.String
	return r.u
}

func (s *Store) CreateUser(ctx context.Context, nu domain.NewUser, when time.Time) (domain.User, error) {
	role := nu.Role
	if role == "" {
		role = domain.RoleUser
	}
	id := s.newID()
	const q = `
		INSERT INTO users (id, username, email, phone, family_name, password_hash, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q, id, nu.Username, nu.Email, nullString(nu.Phone), nullString(nu.FamilyName),
		nu.PasswordHash, role, true, when, when)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var row userScan
	err := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id).Scan(row.dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return row.user(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	var (
		row  userScan
		hash string
	)
	q := `SELECT ` + userColumns + `, password_hash FROM users WHERE lower(email) = lower(?)`
	if err := s.db.QueryRowContext(ctx, q, email).Scan(append(row.dest(), &hash)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}
	return domain.UserWithPassword{User: row.user(), PasswordHash: hash}, nil
}

func (s *Store) SetPasswordHash(ctx context.Context, userID, passwordHash string, when time.Time) error {
	return s.exec(ctx, "set password hash", `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, passwordHash, when, userID)
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate, when time.Time) (domain.User, error) {
	const q = `
		UPDATE users
		SET username = COALESCE(?, username),
		    phone = COALESCE(?, phone),
		    family_name = COALESCE(?, family_name),
		    updated_at = ?
		WHERE id = ?
	`
	if err := s.exec(ctx, "update profile", q, optString(p.Username), optString(p.Phone), optString(p.FamilyName), when, userID); err != nil {
		return domain.User{}, err
	}
	return s.GetUserByID(ctx, userID)
}

func optString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func (s *Store) SetUserRole(ctx context.Context, userID string, role domain.Role, when time.Time) (domain.User, error) {
	if err := s.exec(ctx, "set user role", `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, when, userID); err != nil {
		return domain.User{}, err
	}
	return s.GetUserByID(ctx, userID)
}

func (s *Store) SetUserActive(ctx context.Context, userID string, active bool, when time.Time) (domain.User, error) {
	if err := s.exec(ctx, "set user active", `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`, active, when, userID); err != nil {
		return domain.User{}, err
	}
	return s.GetUserByID(ctx, userID)
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		var row userScan
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

func (s *Store) SearchUsers(ctx context.Context, q string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if q == "" {
		return []domain.UserSummary{}, nil
	}
	like := "%" + escapeLike(q) + "%"
	const query = `
		SELECT id, username, family_name
		FROM users
		WHERE is_active = 1
		  AND id <> ?
		  AND (lower(username) LIKE lower(?) ESCAPE '!'
		       OR lower(email) LIKE lower(?) ESCAPE '!'
		       OR lower(family_name) LIKE lower(?) ESCAPE '!')
		ORDER BY username ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, excludeUserID, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	out := []domain.UserSummary{}
	for rows.Next() {
		var (
			u          domain.UserSummary
			familyName sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Username, &familyName); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.FamilyName = familyName.String
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return out, nil
}

// DeleteUser removes the account; foreign keys cascade the rest except the
// placeholders addressed to the user by key.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_activity_invitations WHERE pending_connection_key = ?`, domain.PendingKeyFor(userID)); err != nil {
		return fmt.Errorf("delete pending invitations for user: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := requireRow(res, "delete user"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	return nil
}
