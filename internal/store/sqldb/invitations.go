package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"Playdatewebserver/internal/domain"
)

const invitationColumns = `i.id, i.activity_id, i.inviter_parent_id, i.invited_parent_id, i.child_id, i.status, i.message, i.created_at, i.updated_at`

type invitationScan struct {
	inv     domain.ActivityInvitation
	message sql.NullString
}

func (r *invitationScan) dest() []any {
	return []any{&r.inv.ID, &r.inv.ActivityID, &r.inv.InviterParentID, &r.inv.InvitedParentID, &r.inv.ChildID,
		&r.inv.Status, &r.message, &r.inv.CreatedAt, &r.inv.UpdatedAt}
}

func (r *invitationScan) invitation() domain.ActivityInvitation {
	r.inv.Message = r.message.String
	return r.inv
}

func (s *Store) CreateInvitation(ctx context.Context, inv domain.ActivityInvitation) (domain.ActivityInvitation, error) {
	inv.ID = s.newID()
	const q = `
		INSERT INTO activity_invitations
			(id, activity_id, inviter_parent_id, invited_parent_id, child_id, status, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q, inv.ID, inv.ActivityID, inv.InviterParentID, inv.InvitedParentID, inv.ChildID,
		inv.Status, nullString(inv.Message), inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		switch {
		case s.dialect.IsUniqueViolation(err):
			return domain.ActivityInvitation{}, domain.ErrInvitationExists
		case s.dialect.IsForeignKeyViolation(err):
			return domain.ActivityInvitation{}, domain.ErrNotFound
		}
		return domain.ActivityInvitation{}, fmt.Errorf("create invitation: %w", err)
	}
	return inv, nil
}

func (s *Store) GetInvitation(ctx context.Context, id string) (domain.ActivityInvitation, error) {
	var row invitationScan
	q := `SELECT ` + invitationColumns + ` FROM activity_invitations i WHERE i.id = ?`
	if err := s.db.QueryRowContext(ctx, q, id).Scan(row.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ActivityInvitation{}, domain.ErrNotFound
		}
		return domain.ActivityInvitation{}, fmt.Errorf("get invitation: %w", err)
	}
	return row.invitation(), nil
}

func (s *Store) SetInvitationStatus(ctx context.Context, id string, status domain.InvitationStatus, when time.Time) (domain.ActivityInvitation, error) {
	err := s.exec(ctx, "set invitation status", `UPDATE activity_invitations SET status = ?, updated_at = ? WHERE id = ?`, status, when, id)
	if err != nil {
		return domain.ActivityInvitation{}, err
	}
	return s.GetInvitation(ctx, id)
}

const invitationViewSelect = `
	SELECT ` + invitationColumns + `, ` + activityColumns + `,
	       hc.name, iu.username, du.username, ch.name
	FROM activity_invitations i
	JOIN activities a ON a.id = i.activity_id
	JOIN children hc ON hc.id = a.child_id
	JOIN users iu ON iu.id = i.inviter_parent_id
	JOIN users du ON du.id = i.invited_parent_id
	JOIN children ch ON ch.id = i.child_id
`

func (s *Store) ListReceived(ctx context.Context, parentID string, status domain.InvitationStatus) ([]domain.InvitationView, error) {
	const q = invitationViewSelect + `
		WHERE i.invited_parent_id = ? AND (? = '' OR i.status = ?)
		ORDER BY i.created_at DESC, i.id DESC
	`
	return s.listViews(ctx, "list received invitations", q, parentID, string(status), string(status))
}

func (s *Store) ListSent(ctx context.Context, parentID string) ([]domain.InvitationView, error) {
	const q = invitationViewSelect + `
		WHERE i.inviter_parent_id = ?
		ORDER BY i.created_at DESC, i.id DESC
	`
	return s.listViews(ctx, "list sent invitations", q, parentID)
}

func (s *Store) listViews(ctx context.Context, op, q string, args ...any) ([]domain.InvitationView, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.InvitationView{}
	for rows.Next() {
		var (
			inv invitationScan
			act activityScan
			v   domain.InvitationView
		)
		dest := append(inv.dest(), act.dest()...)
		dest = append(dest, &v.HostChildName, &v.InviterName, &v.InvitedName, &v.ChildName)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		v.ActivityInvitation = inv.invitation()
		v.Activity = act.activity()
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) ListForActivity(ctx context.Context, activityID string) ([]domain.ActivityInvitation, error) {
	const q = `
		SELECT ` + invitationColumns + `
		FROM activity_invitations i
		WHERE i.activity_id = ?
		ORDER BY i.created_at ASC, i.id ASC
	`
	rows, err := s.db.QueryContext(ctx, q, activityID)
	if err != nil {
		return nil, fmt.Errorf("list activity invitations: %w", err)
	}
	defer rows.Close()

	out := []domain.ActivityInvitation{}
	for rows.Next() {
		var row invitationScan
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		out = append(out, row.invitation())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity invitations: %w", err)
	}
	return out, nil
}
