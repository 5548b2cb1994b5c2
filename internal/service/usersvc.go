package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"Playdatewebserver/internal/domain"
)

type AccountStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate, when time.Time) (domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
	SearchUsers(ctx context.Context, q string, limit int, excludeUserID string) ([]domain.UserSummary, error)
}

type UsersService struct {
	Store AccountStore
	Now   func() time.Time
}

func (s *UsersService) Get(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.GetUserByID(ctx, userID)
}

func (s *UsersService) UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate) (domain.User, error) {
	fields := map[string]string{}
	if p.Username != nil {
		v := strings.TrimSpace(*p.Username)
		if msg := validateUsername(v); msg != "" {
			fields["username"] = msg
		}
		p.Username = &v
	}
	if p.Phone != nil {
		v := strings.TrimSpace(*p.Phone)
		if utf8.RuneCountInString(v) > 32 {
			fields["phone"] = "must be at most 32 characters"
		}
		p.Phone = &v
	}
	if p.FamilyName != nil {
		v := strings.TrimSpace(*p.FamilyName)
		if utf8.RuneCountInString(v) > 64 {
			fields["family_name"] = "must be at most 64 characters"
		}
		p.FamilyName = &v
	}
	if len(fields) > 0 {
		return domain.User{}, domain.NewValidationError(fields)
	}
	if p.Username == nil && p.Phone == nil && p.FamilyName == nil {
		return s.Store.GetUserByID(ctx, userID)
	}
	return s.Store.UpdateProfile(ctx, userID, p, now(s.Now))
}

func (s *UsersService) Search(ctx context.Context, q string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < 3 {
		return nil, domain.NewValidationError(map[string]string{"q": "must be at least 3 characters"})
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.Store.SearchUsers(ctx, q, limit, excludeUserID)
}

// DeleteAccount removes the user; stores cascade to children, activities,
// connections and invitations.
func (s *UsersService) DeleteAccount(ctx context.Context, userID string) error {
	return s.Store.DeleteUser(ctx, userID)
}
