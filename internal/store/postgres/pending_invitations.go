package postgres

import (
	"context"
	"fmt"

	"Playdatewebserver/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PendingInvitationsStore struct {
	pool *pgxpool.Pool
}

func NewPendingInvitationsStore(pool *pgxpool.Pool) *PendingInvitationsStore {
	return &PendingInvitationsStore{pool: pool}
}

const pendingColumns = `p.id, p.activity_id, p.inviter_parent_id, p.pending_connection_key, p.message, p.created_at`

func scanPending(row interface{ Scan(...any) error }) (domain.PendingActivityInvitation, error) {
	var (
		p                         domain.PendingActivityInvitation
		id, activityID, inviterID pgtype.UUID
		message                   pgtype.Text
	)
	if err := row.Scan(&id, &activityID, &inviterID, &p.PendingConnectionKey, &message, &p.CreatedAt); err != nil {
		return domain.PendingActivityInvitation{}, err
	}
	p.ID = uuidOrEmpty(id)
	p.ActivityID = uuidOrEmpty(activityID)
	p.InviterParentID = uuidOrEmpty(inviterID)
	p.Message = textOrEmpty(message)
	return p, nil
}

func (s *PendingInvitationsStore) CreatePendingInvitation(ctx context.Context, p domain.PendingActivityInvitation) (domain.PendingActivityInvitation, error) {
	if !validIDs(p.ActivityID, p.InviterParentID) {
		return domain.PendingActivityInvitation{}, domain.ErrNotFound
	}
	const q = `
		INSERT INTO pending_activity_invitations AS p
			(activity_id, inviter_parent_id, pending_connection_key, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + pendingColumns

	out, err := scanPending(s.pool.QueryRow(ctx, q, p.ActivityID, p.InviterParentID, p.PendingConnectionKey, nullIfEmpty(p.Message), p.CreatedAt))
	if err != nil {
		switch {
		case isUniqueViolation(err, "pending_activity_invitations_key_uq"):
			return domain.PendingActivityInvitation{}, domain.ErrPendingInvitationExists
		case isForeignKeyViolation(err):
			return domain.PendingActivityInvitation{}, domain.ErrNotFound
		}
		return domain.PendingActivityInvitation{}, fmt.Errorf("create pending invitation: %w", err)
	}
	return out, nil
}

// ListPendingForHost returns placeholders under key whose activity is hosted
// by hostChildID.
func (s *PendingInvitationsStore) ListPendingForHost(ctx context.Context, key, hostChildID string) ([]domain.PendingActivityInvitation, error) {
	if !validIDs(hostChildID) {
		return []domain.PendingActivityInvitation{}, nil
	}
	const q = `
		SELECT ` + pendingColumns + `
		FROM pending_activity_invitations p
		JOIN activities a ON a.id = p.activity_id
		WHERE p.pending_connection_key = $1 AND a.child_id = $2
		ORDER BY p.created_at ASC, p.id ASC
	`
	return s.list(ctx, "list pending invitations for host", q, key, hostChildID)
}

func (s *PendingInvitationsStore) ListPendingForActivity(ctx context.Context, activityID string) ([]domain.PendingActivityInvitation, error) {
	if !validIDs(activityID) {
		return []domain.PendingActivityInvitation{}, nil
	}
	const q = `
		SELECT ` + pendingColumns + `
		FROM pending_activity_invitations p
		WHERE p.activity_id = $1
		ORDER BY p.created_at ASC, p.id ASC
	`
	return s.list(ctx, "list pending invitations for activity", q, activityID)
}

func (s *PendingInvitationsStore) list(ctx context.Context, op, q string, args ...any) ([]domain.PendingActivityInvitation, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.PendingActivityInvitation{}
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending invitation: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PendingInvitationsStore) DeletePendingInvitation(ctx context.Context, id string) error {
	if !validIDs(id) {
		return domain.ErrNotFound
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM pending_activity_invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pending invitation: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
