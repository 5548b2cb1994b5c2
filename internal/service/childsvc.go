package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"Playdatewebserver/internal/domain"
)

type ChildrenStore interface {
	ChildLookup
	CreateChild(ctx context.Context, parentID, name string, when time.Time) (domain.Child, error)
	RenameChild(ctx context.Context, childID, name string, when time.Time) (domain.Child, error)
	DeleteChild(ctx context.Context, childID string) error
}

type ChildrenService struct {
	Store ChildrenStore
	Now   func() time.Time
}

func (s *ChildrenService) Create(ctx context.Context, parentID, name string) (domain.Child, error) {
	name, err := normalizeChildName(name)
	if err != nil {
		return domain.Child{}, err
	}
	return s.Store.CreateChild(ctx, parentID, name, now(s.Now))
}

func (s *ChildrenService) List(ctx context.Context, parentID string) ([]domain.Child, error) {
	return s.Store.ListChildren(ctx, parentID)
}

func (s *ChildrenService) Get(ctx context.Context, parentID, childID string) (domain.Child, error) {
	return ownedChild(ctx, s.Store, parentID, childID)
}

func (s *ChildrenService) Rename(ctx context.Context, parentID, childID, name string) (domain.Child, error) {
	name, err := normalizeChildName(name)
	if err != nil {
		return domain.Child{}, err
	}
	c, err := ownedChild(ctx, s.Store, parentID, childID)
	if err != nil {
		return domain.Child{}, err
	}
	if c.Name == name {
		return c, nil
	}
	return s.Store.RenameChild(ctx, childID, name, now(s.Now))
}

// Delete removes the child together with its activities and every
// connection, request and invitation that names it. Siblings are untouched.
func (s *ChildrenService) Delete(ctx context.Context, parentID, childID string) error {
	if _, err := ownedChild(ctx, s.Store, parentID, childID); err != nil {
		return err
	}
	return s.Store.DeleteChild(ctx, childID)
}

func normalizeChildName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewValidationError(map[string]string{"name": "is required"})
	}
	if utf8.RuneCountInString(name) > 64 {
		return "", domain.NewValidationError(map[string]string{"name": "must be at most 64 characters"})
	}
	return name, nil
}
