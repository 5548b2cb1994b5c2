// Package memory is an in-process store for local runs and tests. Every
// collection lives in one arena guarded by a single RWMutex, and ids are
// decimal strings from one counter.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"Playdatewebserver/internal/domain"
)

type userRow struct {
	domain.User
	passwordHash string
}

type Store struct {
	mu  sync.RWMutex
	seq int64

	users       map[string]*userRow
	children    map[string]*domain.Child
	requests    map[string]*domain.ConnectionRequest
	connections map[string]*domain.Connection
	activities  map[string]*domain.Activity
	invitations map[string]*domain.ActivityInvitation
	pending     map[string]*domain.PendingActivityInvitation
	failures    map[string]*domain.SideEffectFailure
}

func New() *Store {
	return &Store{
		users:       map[string]*userRow{},
		children:    map[string]*domain.Child{},
		requests:    map[string]*domain.ConnectionRequest{},
		connections: map[string]*domain.Connection{},
		activities:  map[string]*domain.Activity{},
		invitations: map[string]*domain.ActivityInvitation{},
		pending:     map[string]*domain.PendingActivityInvitation{},
		failures:    map[string]*domain.SideEffectFailure{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// nextID must be called with mu held for writing.
func (s *Store) nextID() string {
	s.seq++
	return strconv.FormatInt(s.seq, 10)
}

// idLess orders numeric ids numerically, which is creation order.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func (s *Store) CreateUser(_ context.Context, u domain.NewUser, when time.Time) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.User{}, domain.ErrEmailTaken
		}
	}
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}
	row := &userRow{
		User: domain.User{
			ID:         s.nextID(),
			Username:   u.Username,
			Email:      u.Email,
			Phone:      u.Phone,
			FamilyName: u.FamilyName,
			Role:       role,
			IsActive:   true,
			CreatedAt:  when,
			UpdatedAt:  when,
		},
		passwordHash: u.PasswordHash,
	}
	s.users[row.ID] = row
	return row.User, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.User, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.UserWithPassword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return domain.UserWithPassword{User: u.User, PasswordHash: u.passwordHash}, nil
		}
	}
	return domain.UserWithPassword{}, domain.ErrNotFound
}

func (s *Store) SetPasswordHash(_ context.Context, userID, passwordHash string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.passwordHash = passwordHash
	u.UpdatedAt = when
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, userID string, p domain.ProfileUpdate, when time.Time) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.FamilyName != nil {
		u.FamilyName = *p.FamilyName
	}
	u.UpdatedAt = when
	return u.User, nil
}

func (s *Store) SetUserRole(_ context.Context, userID string, role domain.Role, when time.Time) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = when
	return u.User, nil
}

func (s *Store) SetUserActive(_ context.Context, userID string, active bool, when time.Time) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = when
	return u.User, nil
}

func (s *Store) ListUsers(_ context.Context, limit, offset int) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u.User)
	}
	sort.Slice(all, func(i, j int) bool { return idLess(all[i].ID, all[j].ID) })
	return page(all, limit, offset), nil
}

func (s *Store) SearchUsers(_ context.Context, q string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q = strings.ToLower(q)
	var out []domain.UserSummary
	for _, u := range s.users {
		if u.ID == excludeUserID || !u.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.Email), q) ||
			strings.Contains(strings.ToLower(u.FamilyName), q) {
			out = append(out, u.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteUser removes the user, their children (with everything hanging off
// them) and every request, invitation and placeholder naming the user.
func (s *Store) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return domain.ErrNotFound
	}
	for id, c := range s.children {
		if c.ParentID == userID {
			s.deleteChildLocked(id)
		}
	}
	for id, r := range s.requests {
		if r.RequesterID == userID || r.TargetParentID == userID {
			delete(s.requests, id)
		}
	}
	for id, inv := range s.invitations {
		if inv.InviterParentID == userID || inv.InvitedParentID == userID {
			delete(s.invitations, id)
		}
	}
	key := domain.PendingKeyFor(userID)
	for id, p := range s.pending {
		if p.InviterParentID == userID || p.PendingConnectionKey == key {
			delete(s.pending, id)
		}
	}
	delete(s.users, userID)
	return nil
}

func (s *Store) RecordFailure(_ context.Context, f domain.SideEffectFailure) (domain.SideEffectFailure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.ID = s.nextID()
	cp := f
	s.failures[f.ID] = &cp
	return f, nil
}

func (s *Store) ListFailures(_ context.Context, limit, offset int) ([]domain.SideEffectFailure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.SideEffectFailure, 0, len(s.failures))
	for _, f := range s.failures {
		all = append(all, *f)
	}
	sort.Slice(all, func(i, j int) bool { return idLess(all[j].ID, all[i].ID) })
	return page(all, limit, offset), nil
}

func (s *Store) DeleteFailure(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.failures[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.failures, id)
	return nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}
