package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"Playdatewebserver/internal/domain"
)

// PendingInvitationMaterializer turns placeholders into real invitations once
// a connection makes their host and prospective parent connected.
type PendingInvitationMaterializer struct {
	Children    ChildLookup
	Pending     PendingInvitationsStore
	Invitations InvitationWriter
	Failures    FailureRecorder
	Logger      *zap.Logger
	Now         func() time.Time
}

// Materialize scans both directions of conn. A placeholder whose invitation
// already exists is dropped; a failed one stays in place and is recorded.
func (m *PendingInvitationMaterializer) Materialize(ctx context.Context, conn domain.Connection) domain.MaterializeSummary {
	var sum domain.MaterializeSummary
	log := logger(m.Logger).With(zap.String("connection_id", conn.ID))

	a, err := m.Children.GetChild(ctx, conn.Child1ID)
	if err == nil {
		var b domain.Child
		b, err = m.Children.GetChild(ctx, conn.Child2ID)
		if err == nil {
			m.materializeSide(ctx, log, a, b, &sum)
			m.materializeSide(ctx, log, b, a, &sum)
			return sum
		}
	}

	log.Warn("load connection children", zap.Error(err))
	recordFailure(ctx, m.Failures, log, domain.SideEffectFailure{
		Kind:      domain.FailurePendingMaterialize,
		Reference: conn.ID,
		Error:     err.Error(),
		CreatedAt: now(m.Now),
	})
	sum.Failed++
	return sum
}

// materializeSide converts placeholders on activities hosted by host that
// were keyed to other's parent.
func (m *PendingInvitationMaterializer) materializeSide(ctx context.Context, log *zap.Logger, host, other domain.Child, sum *domain.MaterializeSummary) {
	key := domain.PendingKeyFor(other.ParentID)
	rows, err := m.Pending.ListPendingForHost(ctx, key, host.ID)
	if err != nil {
		log.Warn("list pending invitations", zap.String("key", key), zap.Error(err))
		recordFailure(ctx, m.Failures, log, domain.SideEffectFailure{
			Kind:      domain.FailurePendingMaterialize,
			Reference: key,
			Error:     err.Error(),
			CreatedAt: now(m.Now),
		})
		sum.Failed++
		return
	}

	for _, p := range rows {
		ts := now(m.Now)
		_, err := m.Invitations.CreateInvitation(ctx, domain.ActivityInvitation{
			ActivityID:      p.ActivityID,
			InviterParentID: p.InviterParentID,
			InvitedParentID: other.ParentID,
			ChildID:         other.ID,
			Status:          domain.InvitationPending,
			Message:         p.Message,
			CreatedAt:       ts,
			UpdatedAt:       ts,
		})
		switch {
		case err == nil:
			sum.Created++
		case errors.Is(err, domain.ErrInvitationExists):
			sum.Duplicate++
		default:
			log.Warn("materialize pending invitation",
				zap.String("pending_id", p.ID),
				zap.String("activity_id", p.ActivityID),
				zap.Error(err),
			)
			recordFailure(ctx, m.Failures, log, domain.SideEffectFailure{
				Kind:       domain.FailurePendingMaterialize,
				ActivityID: p.ActivityID,
				Reference:  p.ID,
				Error:      err.Error(),
				CreatedAt:  ts,
			})
			sum.Failed++
			continue
		}

		if err := m.Pending.DeletePendingInvitation(ctx, p.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn("delete pending invitation", zap.String("pending_id", p.ID), zap.Error(err))
		}
	}
}
