package memory

import (
	"context"
	"slices"
	"sort"

	"Playdatewebserver/internal/domain"
)

func (s *Store) CreateActivities(_ context.Context, rows []domain.Activity) ([]domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range rows {
		if _, ok := s.children[a.ChildID]; !ok {
			return nil, domain.ErrNotFound
		}
	}
	out := make([]domain.Activity, 0, len(rows))
	for _, a := range rows {
		a.ID = s.nextID()
		a.RecurringDays = slices.Clone(a.RecurringDays)
		cp := a
		s.activities[a.ID] = &cp
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) GetActivity(_ context.Context, id string) (domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activities[id]
	if !ok {
		return domain.Activity{}, domain.ErrNotFound
	}
	return cloneActivity(*a), nil
}

func (s *Store) UpdateActivity(_ context.Context, a domain.Activity) (domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.activities[a.ID]
	if !ok {
		return domain.Activity{}, domain.ErrNotFound
	}
	// Host, series membership and creation time are fixed after insert.
	a.ChildID = cur.ChildID
	a.SeriesID = cur.SeriesID
	a.IsRecurring = cur.IsRecurring
	a.RecurringDays = slices.Clone(cur.RecurringDays)
	a.CreatedAt = cur.CreatedAt
	*cur = a
	return cloneActivity(a), nil
}

func (s *Store) DeleteActivity(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[id]; !ok {
		return domain.ErrNotFound
	}
	s.deleteActivityLocked(id)
	return nil
}

func (s *Store) deleteActivityLocked(id string) {
	for invID, inv := range s.invitations {
		if inv.ActivityID == id {
			delete(s.invitations, invID)
		}
	}
	for pID, p := range s.pending {
		if p.ActivityID == id {
			delete(s.pending, pID)
		}
	}
	delete(s.activities, id)
}

func (s *Store) ListActivitiesForParent(_ context.Context, parentID string, r domain.DateRange) ([]domain.CalendarActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.CalendarActivity{}
	for _, a := range s.activities {
		host, ok := s.children[a.ChildID]
		if !ok || host.ParentID != parentID || !r.Overlaps(a.StartDate, a.EndDate) {
			continue
		}
		out = append(out, s.calendarLocked(*a, nil))
	}
	sortCalendar(out)
	return out, nil
}

func (s *Store) ListConnectedActivities(_ context.Context, parentID string, r domain.DateRange) ([]domain.CalendarActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connected := map[string]bool{}
	for _, c := range s.connections {
		if c.Status != domain.ConnectionActive {
			continue
		}
		c1, ok1 := s.children[c.Child1ID]
		c2, ok2 := s.children[c.Child2ID]
		if !ok1 || !ok2 {
			continue
		}
		if c1.ParentID == parentID && c2.ParentID != parentID {
			connected[c2.ID] = true
		}
		if c2.ParentID == parentID && c1.ParentID != parentID {
			connected[c1.ID] = true
		}
	}

	out := []domain.CalendarActivity{}
	for _, a := range s.activities {
		if !connected[a.ChildID] || !r.Overlaps(a.StartDate, a.EndDate) {
			continue
		}
		inv := s.invitationForLocked(a.ID, parentID)
		if inv != nil && inv.Status == domain.InvitationRejected {
			continue
		}
		out = append(out, s.calendarLocked(*a, inv))
	}
	sortCalendar(out)
	return out, nil
}

func (s *Store) ListInvitedActivities(_ context.Context, parentID string, r domain.DateRange, statuses []domain.InvitationStatus) ([]domain.CalendarActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.CalendarActivity{}
	for _, inv := range s.invitations {
		if inv.InvitedParentID != parentID || !slices.Contains(statuses, inv.Status) {
			continue
		}
		a, ok := s.activities[inv.ActivityID]
		if !ok || !r.Overlaps(a.StartDate, a.EndDate) {
			continue
		}
		out = append(out, s.calendarLocked(*a, inv))
	}
	sortCalendar(out)
	return out, nil
}

func (s *Store) invitationForLocked(activityID, parentID string) *domain.ActivityInvitation {
	for _, inv := range s.invitations {
		if inv.ActivityID == activityID && inv.InvitedParentID == parentID {
			return inv
		}
	}
	return nil
}

func (s *Store) calendarLocked(a domain.Activity, inv *domain.ActivityInvitation) domain.CalendarActivity {
	out := domain.CalendarActivity{Activity: cloneActivity(a)}
	if host, ok := s.children[a.ChildID]; ok {
		out.HostChildName = host.Name
		out.HostParentID = host.ParentID
		if p, ok := s.users[host.ParentID]; ok {
			out.HostParentName = p.Username
		}
	}
	if inv != nil {
		out.InvitationID = inv.ID
		out.InvitationStatus = inv.Status
	}
	return out
}

func sortCalendar(rows []domain.CalendarActivity) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.StartDate != b.StartDate {
			return a.StartDate < b.StartDate
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return idLess(a.ID, b.ID)
	})
}

func cloneActivity(a domain.Activity) domain.Activity {
	a.RecurringDays = slices.Clone(a.RecurringDays)
	return a
}
