package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"Playdatewebserver/internal/domain"
)

func (s *Store) CreateChild(_ context.Context, parentID, name string, when time.Time) (domain.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[parentID]; !ok {
		return domain.Child{}, domain.ErrNotFound
	}
	if s.childNameTakenLocked(parentID, name, "") {
		return domain.Child{}, domain.ErrChildNameTaken
	}
	c := &domain.Child{ID: s.nextID(), Name: name, ParentID: parentID, CreatedAt: when, UpdatedAt: when}
	s.children[c.ID] = c
	return *c, nil
}

func (s *Store) GetChild(_ context.Context, id string) (domain.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.children[id]
	if !ok {
		return domain.Child{}, domain.ErrNotFound
	}
	return *c, nil
}

func (s *Store) ListChildren(_ context.Context, parentID string) ([]domain.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Child{}
	for _, c := range s.children {
		if c.ParentID == parentID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return idLess(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) RenameChild(_ context.Context, childID, name string, when time.Time) (domain.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.children[childID]
	if !ok {
		return domain.Child{}, domain.ErrNotFound
	}
	if s.childNameTakenLocked(c.ParentID, name, childID) {
		return domain.Child{}, domain.ErrChildNameTaken
	}
	c.Name = name
	c.UpdatedAt = when
	return *c, nil
}

func (s *Store) DeleteChild(_ context.Context, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.children[childID]; !ok {
		return domain.ErrNotFound
	}
	s.deleteChildLocked(childID)
	return nil
}

func (s *Store) childNameTakenLocked(parentID, name, exceptID string) bool {
	for _, c := range s.children {
		if c.ParentID == parentID && c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// deleteChildLocked mirrors the SQL cascades: the child's activities go with
// their invitations and placeholders, and so do connections, requests and
// invitations that name the child.
func (s *Store) deleteChildLocked(childID string) {
	for id, a := range s.activities {
		if a.ChildID == childID {
			s.deleteActivityLocked(id)
		}
	}
	for id, c := range s.connections {
		if c.Involves(childID) {
			delete(s.connections, id)
		}
	}
	for id, r := range s.requests {
		if r.ChildID == childID || r.TargetChildID == childID {
			delete(s.requests, id)
		}
	}
	for id, inv := range s.invitations {
		if inv.ChildID == childID {
			delete(s.invitations, id)
		}
	}
	delete(s.children, childID)
}
