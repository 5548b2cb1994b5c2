package memory

import (
	"context"
	"sort"
	"time"

	"Playdatewebserver/internal/domain"
)

func (s *Store) CreateInvitation(_ context.Context, inv domain.ActivityInvitation) (domain.ActivityInvitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[inv.ActivityID]; !ok {
		return domain.ActivityInvitation{}, domain.ErrNotFound
	}
	if _, ok := s.children[inv.ChildID]; !ok {
		return domain.ActivityInvitation{}, domain.ErrNotFound
	}
	if s.invitationForLocked(inv.ActivityID, inv.InvitedParentID) != nil {
		return domain.ActivityInvitation{}, domain.ErrInvitationExists
	}
	inv.ID = s.nextID()
	cp := inv
	s.invitations[inv.ID] = &cp
	return inv, nil
}

func (s *Store) GetInvitation(_ context.Context, id string) (domain.ActivityInvitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invitations[id]
	if !ok {
		return domain.ActivityInvitation{}, domain.ErrNotFound
	}
	return *inv, nil
}

func (s *Store) SetInvitationStatus(_ context.Context, id string, status domain.InvitationStatus, when time.Time) (domain.ActivityInvitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return domain.ActivityInvitation{}, domain.ErrNotFound
	}
	inv.Status = status
	inv.UpdatedAt = when
	return *inv, nil
}

func (s *Store) ListReceived(_ context.Context, parentID string, status domain.InvitationStatus) ([]domain.InvitationView, error) {
	return s.listInvitations(func(inv *domain.ActivityInvitation) bool {
		return inv.InvitedParentID == parentID && (status == "" || inv.Status == status)
	}), nil
}

func (s *Store) ListSent(_ context.Context, parentID string) ([]domain.InvitationView, error) {
	return s.listInvitations(func(inv *domain.ActivityInvitation) bool {
		return inv.InviterParentID == parentID
	}), nil
}

func (s *Store) listInvitations(match func(*domain.ActivityInvitation) bool) []domain.InvitationView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.InvitationView{}
	for _, inv := range s.invitations {
		if !match(inv) {
			continue
		}
		a, ok := s.activities[inv.ActivityID]
		if !ok {
			continue
		}
		v := domain.InvitationView{ActivityInvitation: *inv, Activity: cloneActivity(*a)}
		if c, ok := s.children[a.ChildID]; ok {
			v.HostChildName = c.Name
		}
		if u, ok := s.users[inv.InviterParentID]; ok {
			v.InviterName = u.Username
		}
		if u, ok := s.users[inv.InvitedParentID]; ok {
			v.InvitedName = u.Username
		}
		if c, ok := s.children[inv.ChildID]; ok {
			v.ChildName = c.Name
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[j].ID, out[i].ID) })
	return out
}

func (s *Store) ListForActivity(_ context.Context, activityID string) ([]domain.ActivityInvitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.ActivityInvitation{}
	for _, inv := range s.invitations {
		if inv.ActivityID == activityID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) CreatePendingInvitation(_ context.Context, p domain.PendingActivityInvitation) (domain.PendingActivityInvitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[p.ActivityID]; !ok {
		return domain.PendingActivityInvitation{}, domain.ErrNotFound
	}
	for _, existing := range s.pending {
		if existing.ActivityID == p.ActivityID && existing.PendingConnectionKey == p.PendingConnectionKey {
			return domain.PendingActivityInvitation{}, domain.ErrPendingInvitationExists
		}
	}
	p.ID = s.nextID()
	cp := p
	s.pending[p.ID] = &cp
	return p, nil
}

func (s *Store) ListPendingForHost(_ context.Context, key, hostChildID string) ([]domain.PendingActivityInvitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.PendingActivityInvitation{}
	for _, p := range s.pending {
		if p.PendingConnectionKey != key {
			continue
		}
		if a, ok := s.activities[p.ActivityID]; ok && a.ChildID == hostChildID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) ListPendingForActivity(_ context.Context, activityID string) ([]domain.PendingActivityInvitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.PendingActivityInvitation{}
	for _, p := range s.pending {
		if p.ActivityID == activityID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) DeletePendingInvitation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.pending, id)
	return nil
}
