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

type InvitationsStore struct {
	pool *pgxpool.Pool
}

func NewInvitationsStore(pool *pgxpool.Pool) *InvitationsStore {
	return &InvitationsStore{pool: pool}
}

const invitationColumns = `i.id, i.activity_id, i.inviter_parent_id, i.invited_parent_id, i.child_id, i.status, i.message, i.created_at, i.updated_at`

type invitationRow struct {
	inv                  domain.ActivityInvitation
	id, activityID       pgtype.UUID
	inviterID, invitedID pgtype.UUID
	childID              pgtype.UUID
	message              pgtype.Text
}

func (r *invitationRow) dest() []any {
	return []any{&r.id, &r.activityID, &r.inviterID, &r.invitedID, &r.childID, &r.inv.Status, &r.message, &r.inv.CreatedAt, &r.inv.UpdatedAt}
}

func (r *invitationRow) invitation() domain.ActivityInvitation {
	r.inv.ID = uuidOrEmpty(r.id)
	r.inv.ActivityID = uuidOrEmpty(r.activityID)
	r.inv.InviterParentID = uuidOrEmpty(r.inviterID)
	r.inv.InvitedParentID = uuidOrEmpty(r.invitedID)
	r.inv.ChildID = uuidOrEmpty(r.childID)
	r.inv.Message = textOrEmpty(r.message)
	return r.inv
}

func (s *InvitationsStore) CreateInvitation(ctx context.Context, inv domain.ActivityInvitation) (domain.ActivityInvitation, error) {
	if !validIDs(inv.ActivityID, inv.InviterParentID, inv.InvitedParentID, inv.ChildID) {
		return domain.ActivityInvitation{}, domain.ErrNotFound
	}
	const q = `
		INSERT INTO activity_invitations AS i
			(activity_id, inviter_parent_id, invited_parent_id, child_id, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + invitationColumns

	var row invitationRow
	err := s.pool.QueryRow(ctx, q, inv.ActivityID, inv.InviterParentID, inv.InvitedParentID, inv.ChildID,
		inv.Status, nullIfEmpty(inv.Message), inv.CreatedAt, inv.UpdatedAt).Scan(row.dest()...)
	if err != nil {
		switch {
		case isUniqueViolation(err, "activity_invitations_activity_parent_uq"):
			return domain.ActivityInvitation{}, domain.ErrInvitationExists
		case isForeignKeyViolation(err):
			return domain.ActivityInvitation{}, domain.ErrNotFound
		}
		return domain.ActivityInvitation{}, fmt.Errorf("create invitation: %w", err)
	}
	return row.invitation(), nil
}

func (s *InvitationsStore) GetInvitation(ctx context.Context, id string) (domain.ActivityInvitation, error) {
	if !validIDs(id) {
		return domain.ActivityInvitation{}, domain.ErrNotFound
	}
	const q = `SELECT ` + invitationColumns + ` FROM activity_invitations i WHERE i.id = $1`

	var row invitationRow
	if err := s.pool.QueryRow(ctx, q, id).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ActivityInvitation{}, domain.ErrNotFound
		}
		return domain.ActivityInvitation{}, fmt.Errorf("get invitation: %w", err)
	}
	return row.invitation(), nil
}

func (s *InvitationsStore) SetInvitationStatus(ctx context.Context, id string, status domain.InvitationStatus, when time.Time) (domain.ActivityInvitation, error) {
	if !validIDs(id) {
		return domain.ActivityInvitation{}, domain.ErrNotFound
	}
	const q = `
		UPDATE activity_invitations AS i
		SET status = $2, updated_at = $3
		WHERE i.id = $1
		RETURNING ` + invitationColumns

	var row invitationRow
	if err := s.pool.QueryRow(ctx, q, id, status, when).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ActivityInvitation{}, domain.ErrNotFound
		}
		return domain.ActivityInvitation{}, fmt.Errorf("set invitation status: %w", err)
	}
	return row.invitation(), nil
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

func (s *InvitationsStore) ListReceived(ctx context.Context, parentID string, status domain.InvitationStatus) ([]domain.InvitationView, error) {
	if !validIDs(parentID) {
		return []domain.InvitationView{}, nil
	}
	const q = invitationViewSelect + `
		WHERE i.invited_parent_id = $1 AND ($2::text IS NULL OR i.status = $2::text)
		ORDER BY i.created_at DESC, i.id DESC
	`
	return s.listViews(ctx, "list received invitations", q, parentID, nullIfEmpty(string(status)))
}

func (s *InvitationsStore) ListSent(ctx context.Context, parentID string) ([]domain.InvitationView, error) {
	if !validIDs(parentID) {
		return []domain.InvitationView{}, nil
	}
	const q = invitationViewSelect + `
		WHERE i.inviter_parent_id = $1
		ORDER BY i.created_at DESC, i.id DESC
	`
	return s.listViews(ctx, "list sent invitations", q, parentID)
}

func (s *InvitationsStore) listViews(ctx context.Context, op, q string, args ...any) ([]domain.InvitationView, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.InvitationView{}
	for rows.Next() {
		var (
			inv invitationRow
			act activityRow
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

func (s *InvitationsStore) ListForActivity(ctx context.Context, activityID string) ([]domain.ActivityInvitation, error) {
	if !validIDs(activityID) {
		return []domain.ActivityInvitation{}, nil
	}
	const q = `
		SELECT ` + invitationColumns + `
		FROM activity_invitations i
		WHERE i.activity_id = $1
		ORDER BY i.created_at ASC, i.id ASC
	`

	rows, err := s.pool.Query(ctx, q, activityID)
	if err != nil {
		return nil, fmt.Errorf("list activity invitations: %w", err)
	}
	defer rows.Close()

	out := []domain.ActivityInvitation{}
	for rows.Next() {
		var row invitationRow
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
