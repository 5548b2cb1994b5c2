package service

import (
	"context"
	"time"

	"Playdatewebserver/internal/domain"
)

type AdminUsersStore interface {
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	SetUserRole(ctx context.Context, userID string, role domain.Role, when time.Time) (domain.User, error)
	SetUserActive(ctx context.Context, userID string, active bool, when time.Time) (domain.User, error)
}

type FailuresStore interface {
	ListFailures(ctx context.Context, limit, offset int) ([]domain.SideEffectFailure, error)
	DeleteFailure(ctx context.Context, id string) error
}

type AdminService struct {
	Users    AdminUsersStore
	Failures FailuresStore
	Now      func() time.Time
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	limit, offset = clampPage(limit, offset)
	return s.Users.ListUsers(ctx, limit, offset)
}

// SetRole changes a user's role. Only super admins may do it, and never on
// themselves.
func (s *AdminService) SetRole(ctx context.Context, actor domain.User, userID string, role domain.Role) (domain.User, error) {
	if actor.Role != domain.RoleSuperAdmin {
		return domain.User{}, domain.ErrForbidden
	}
	if !role.Valid() {
		return domain.User{}, domain.NewValidationError(map[string]string{"role": "must be one of user, admin, super_admin"})
	}
	if actor.ID == userID && role != domain.RoleSuperAdmin {
		return domain.User{}, domain.NewValidationError(map[string]string{"role": "cannot demote yourself"})
	}
	return s.Users.SetUserRole(ctx, userID, role, now(s.Now))
}

func (s *AdminService) SetActive(ctx context.Context, actor domain.User, userID string, active bool) (domain.User, error) {
	if actor.ID == userID && !active {
		return domain.User{}, domain.NewValidationError(map[string]string{"is_active": "cannot deactivate yourself"})
	}
	target, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if target.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return domain.User{}, domain.ErrForbidden
	}
	return s.Users.SetUserActive(ctx, userID, active, now(s.Now))
}

func (s *AdminService) ListFailures(ctx context.Context, limit, offset int) ([]domain.SideEffectFailure, error) {
	limit, offset = clampPage(limit, offset)
	return s.Failures.ListFailures(ctx, limit, offset)
}

func (s *AdminService) DismissFailure(ctx context.Context, id string) error {
	return s.Failures.DeleteFailure(ctx, id)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
