package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"Playdatewebserver/internal/domain"
)

const pendingColumns = `p.id, p.activity_id, p.inviter_parent_id, p.pending_connection_key, p.message, p.created_at`

func (s *Store) CreatePendingInvitation(ctx context.Context, p domain.PendingActivityInvitation) (domain.PendingActivityInvitation, error) {
	p.ID = s.newID()
	const q = `
		INSERT INTO pending_activity_invitations
			(id, activity_id, inviter_parent_id, pending_connection_key, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q, p.ID, p.ActivityID, p.InviterParentID, p.PendingConnectionKey, nullString(p.Message), p.CreatedAt)
	if err != nil {
		switch {
		case s.dialect.IsUniqueViolation(err):
			return domain.PendingActivityInvitation{}, domain.ErrPendingInvitationExists
		case s.dialect.IsForeignKeyViolation(err):
			return domain.PendingActivityInvitation{}, domain.ErrNotFound
		}
		return domain.PendingActivityInvitation{}, fmt.Errorf("create pending invitation: %w", err)
	}
	return p, nil
}

// ListPendingForHost returns placeholders under key whose activity is hosted
// by hostChildID.
func (s *Store) ListPendingForHost(ctx context.Context, key, hostChildID string) ([]domain.PendingActivityInvitation, error) {
	const q = `
		SELECT ` + pendingColumns + `
		FROM pending_activity_invitations p
		JOIN activities a ON a.id = p.activity_id
		WHERE p.pending_connection_key = ? AND a.child_id = ?
		ORDER BY p.created_at ASC, p.id ASC
	`
	return s.listPending(ctx, "list pending invitations for host", q, key, hostChildID)
}

func (s *Store) ListPendingForActivity(ctx context.Context, activityID string) ([]domain.PendingActivityInvitation, error) {
	const q = `
		SELECT ` + pendingColumns + `
		FROM pending_activity_invitations p
		WHERE p.activity_id = ?
		ORDER BY p.created_at ASC, p.id ASC
	`
	return s.listPending(ctx, "list pending invitations for activity", q, activityID)
}

func (s *Store) listPending(ctx context.Context, op, q string, args ...any) ([]domain.PendingActivityInvitation, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.PendingActivityInvitation{}
	for rows.Next() {
		var (
			p       domain.PendingActivityInvitation
			message sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.ActivityID, &p.InviterParentID, &p.PendingConnectionKey, &message, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending invitation: %w", err)
		}
		p.Message = message.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) DeletePendingInvitation(ctx context.Context, id string) error {
	return s.exec(ctx, "delete pending invitation", `DELETE FROM pending_activity_invitations WHERE id = ?`, id)
}
