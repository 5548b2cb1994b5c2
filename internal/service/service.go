package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"Playdatewebserver/internal/domain"
)

// UserLookup is the read side of the users store that most services need.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

// ChildLookup is the read side of the children store.
type ChildLookup interface {
	GetChild(ctx context.Context, id string) (domain.Child, error)
	ListChildren(ctx context.Context, parentID string) ([]domain.Child, error)
}

// ConnectionGraph answers "who is connected to whom" for a child.
type ConnectionGraph interface {
	FindActiveConnection(ctx context.Context, childA, childB string) (domain.Connection, error)
	ListConnectedChildren(ctx context.Context, childID string) ([]domain.Child, error)
}

type InvitationWriter interface {
	CreateInvitation(ctx context.Context, inv domain.ActivityInvitation) (domain.ActivityInvitation, error)
}

// FailureRecorder persists best-effort work that did not complete.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, f domain.SideEffectFailure) (domain.SideEffectFailure, error)
}

func now(f func() time.Time) time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// ownedChild loads a child and hides it unless parentID owns it.
func ownedChild(ctx context.Context, children ChildLookup, parentID, childID string) (domain.Child, error) {
	if childID == "" {
		return domain.Child{}, domain.ErrNotFound
	}
	c, err := children.GetChild(ctx, childID)
	if err != nil {
		return domain.Child{}, err
	}
	if c.ParentID != parentID {
		return domain.Child{}, domain.ErrNotFound
	}
	return c, nil
}

func recordFailure(ctx context.Context, rec FailureRecorder, log *zap.Logger, f domain.SideEffectFailure) {
	if rec == nil {
		return
	}
	// The request context may already be cancelled; the record must still land.
	ctx = context.WithoutCancel(ctx)
	if _, err := rec.RecordFailure(ctx, f); err != nil {
		log.Error("record side effect failure",
			zap.String("kind", string(f.Kind)),
			zap.String("activity_id", f.ActivityID),
			zap.String("reference", f.Reference),
			zap.Error(err),
		)
	}
}

// isExpected reports errors that describe bad input rather than lost work.
func isExpected(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrConflict)
}
