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

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userColumns = `id, username, email, phone, family_name, role, is_active, created_at, updated_at`

type userRow struct {
	u          domain.User
	id         pgtype.UUID
	phone      pgtype.Text
	familyName pgtype.Text
}

func (r *userRow) dest() []any {
	return []any{&r.id, &r.u.Username, &r.u.Email, &r.phone, &r.familyName, &r.u.Role, &r.u.IsActive, &r.u.CreatedAt, &r.u.UpdatedAt}
}

func (r *userRow) user() domain.User {
	r.u.ID = uuidOrEmpty(r.id)
	r.u.Phone = textOrEmpty(r.phone)
	r.u.FamilyName = textOrEmpty(r.familyName)
	return r.u
}

func (s *UsersStore) CreateUser(ctx context.Context, nu domain.NewUser, when time.Time) (domain.User, error) {
	const q = `
		INSERT INTO users (username, email, phone, family_name, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + userColumns

	role := nu.Role
	if role == "" {
		role = domain.RoleUser
	}

	var row userRow
	err := s.pool.QueryRow(ctx, q, nu.Username, nu.Email, nullIfEmpty(nu.Phone), nullIfEmpty(nu.FamilyName), nu.PasswordHash, role, when).Scan(row.dest()...)
	if err != nil {
		if isUniqueViolation(err, "users_email_uq") {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return row.user(), nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if !validIDs(id) {
		return domain.User{}, domain.ErrNotFound
	}
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var row userRow
	if err := s.pool.QueryRow(ctx, q, id).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return row.user(), nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	const q = `SELECT ` + userColumns + `, password_hash FROM users WHERE lower(email) = lower($1)`

	var (
		row  userRow
		hash string
	)
	if err := s.pool.QueryRow(ctx, q, email).Scan(append(row.dest(), &hash)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}
	return domain.UserWithPassword{User: row.user(), PasswordHash: hash}, nil
}

func (s *UsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string, when time.Time) error {
	if !validIDs(userID) {
		return domain.ErrNotFound
	}
	const q = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q, userID, passwordHash, when)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate, when time.Time) (domain.User, error) {
	if !validIDs(userID) {
		return domain.User{}, domain.ErrNotFound
	}
	const q = `
		UPDATE users
		SET username = COALESCE($2, username),
		    phone = COALESCE($3, phone),
		    family_name = COALESCE($4, family_name),
		    updated_at = $5
		WHERE id = $1
		RETURNING ` + userColumns

	var row userRow
	if err := s.pool.QueryRow(ctx, q, userID, p.Username, p.Phone, p.FamilyName, when).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}
	return row.user(), nil
}

// DeleteUser removes the account. Foreign keys cascade to children,
// activities, requests and invitations; placeholders addressed to the user
// are keyed by string and have to go explicitly.
func (s *UsersStore) DeleteUser(ctx context.Context, userID string) error {
	if !validIDs(userID) {
		return domain.ErrNotFound
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM pending_activity_invitations WHERE pending_connection_key = $1`, domain.PendingKeyFor(userID)); err != nil {
		return fmt.Errorf("delete pending invitations for user: %w", err)
	}
	ct, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	return nil
}
