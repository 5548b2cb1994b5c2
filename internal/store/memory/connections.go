package memory

import (
	"context"
	"sort"
	"time"

	"Playdatewebserver/internal/domain"
)

func (s *Store) CreateRequest(_ context.Context, req domain.ConnectionRequest) (domain.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.children[req.ChildID]; !ok {
		return domain.ConnectionRequest{}, domain.ErrNotFound
	}
	for _, r := range s.requests {
		if r.Status == domain.RequestPending && r.RequesterID == req.RequesterID &&
			r.TargetParentID == req.TargetParentID && r.ChildID == req.ChildID {
			return domain.ConnectionRequest{}, domain.ErrRequestExists
		}
	}
	req.ID = s.nextID()
	cp := req
	s.requests[req.ID] = &cp
	return s.requestViewLocked(cp), nil
}

func (s *Store) GetRequest(_ context.Context, id string) (domain.ConnectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return domain.ConnectionRequest{}, domain.ErrNotFound
	}
	return s.requestViewLocked(*r), nil
}

func (s *Store) ListRequests(_ context.Context, parentID string) (domain.RequestsOverview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := domain.RequestsOverview{Incoming: []domain.ConnectionRequest{}, Outgoing: []domain.ConnectionRequest{}}
	for _, r := range s.requests {
		if r.Status != domain.RequestPending {
			continue
		}
		switch parentID {
		case r.TargetParentID:
			out.Incoming = append(out.Incoming, s.requestViewLocked(*r))
		case r.RequesterID:
			out.Outgoing = append(out.Outgoing, s.requestViewLocked(*r))
		}
	}
	newestFirst := func(rs []domain.ConnectionRequest) {
		sort.Slice(rs, func(i, j int) bool { return idLess(rs[j].ID, rs[i].ID) })
	}
	newestFirst(out.Incoming)
	newestFirst(out.Outgoing)
	return out, nil
}

func (s *Store) ResolveRequest(_ context.Context, id string, status domain.RequestStatus, targetChildID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok || r.Status != domain.RequestPending {
		return domain.ErrNotFound
	}
	r.Status = status
	if targetChildID != "" {
		r.TargetChildID = targetChildID
	}
	r.UpdatedAt = when
	return nil
}

func (s *Store) ActivateConnection(_ context.Context, child1ID, child2ID string, when time.Time) (domain.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	child1ID, child2ID = domain.CanonicalPair(child1ID, child2ID)
	if _, ok := s.children[child1ID]; !ok {
		return domain.Connection{}, domain.ErrNotFound
	}
	if _, ok := s.children[child2ID]; !ok {
		return domain.Connection{}, domain.ErrNotFound
	}
	for _, c := range s.connections {
		if c.Child1ID != child1ID || c.Child2ID != child2ID {
			continue
		}
		if c.Status == domain.ConnectionActive {
			return domain.Connection{}, domain.ErrConnectionExists
		}
		c.Status = domain.ConnectionActive
		c.CreatedAt = when
		return *c, nil
	}
	c := &domain.Connection{ID: s.nextID(), Child1ID: child1ID, Child2ID: child2ID, Status: domain.ConnectionActive, CreatedAt: when}
	s.connections[c.ID] = c
	return *c, nil
}

func (s *Store) GetConnection(_ context.Context, id string) (domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.connections[id]
	if !ok {
		return domain.Connection{}, domain.ErrNotFound
	}
	return *c, nil
}

func (s *Store) FindActiveConnection(_ context.Context, childA, childB string) (domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.activeConnectionLocked(childA, childB); ok {
		return c, nil
	}
	return domain.Connection{}, domain.ErrNotFound
}

func (s *Store) activeConnectionLocked(childA, childB string) (domain.Connection, bool) {
	a, b := domain.CanonicalPair(childA, childB)
	for _, c := range s.connections {
		if c.Child1ID == a && c.Child2ID == b && c.Status == domain.ConnectionActive {
			return *c, true
		}
	}
	return domain.Connection{}, false
}

func (s *Store) ListConnectedChildren(_ context.Context, childID string) ([]domain.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Child{}
	for _, c := range s.connections {
		if c.Status != domain.ConnectionActive || !c.Involves(childID) {
			continue
		}
		if other, ok := s.children[c.Other(childID)]; ok {
			out = append(out, *other)
		}
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) ListConnections(_ context.Context, parentID string) ([]domain.ConnectionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.ConnectionView{}
	for _, c := range s.connections {
		if c.Status != domain.ConnectionActive {
			continue
		}
		c1, ok1 := s.children[c.Child1ID]
		c2, ok2 := s.children[c.Child2ID]
		if !ok1 || !ok2 {
			continue
		}
		mine, other := c1, c2
		switch parentID {
		case c1.ParentID:
		case c2.ParentID:
			mine, other = c2, c1
		default:
			continue
		}
		v := domain.ConnectionView{
			ID:         c.ID,
			Status:     c.Status,
			CreatedAt:  c.CreatedAt,
			MyChild:    mine.Summary(),
			OtherChild: other.Summary(),
		}
		if p, ok := s.users[other.ParentID]; ok {
			v.OtherParent = p.Summary()
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[j].ID, out[i].ID) })
	return out, nil
}

func (s *Store) SetConnectionStatus(_ context.Context, id string, status domain.ConnectionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.connections[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	return nil
}

func (s *Store) requestViewLocked(r domain.ConnectionRequest) domain.ConnectionRequest {
	if u, ok := s.users[r.RequesterID]; ok {
		r.RequesterName = u.Username
	}
	if c, ok := s.children[r.ChildID]; ok {
		r.ChildName = c.Name
	}
	if c, ok := s.children[r.TargetChildID]; ok {
		r.TargetChildName = c.Name
	}
	return r
}
