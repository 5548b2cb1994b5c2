package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"Playdatewebserver/internal/domain"
)

type InvitationsStore interface {
	InvitationWriter
	GetInvitation(ctx context.Context, id string) (domain.ActivityInvitation, error)
	SetInvitationStatus(ctx context.Context, id string, status domain.InvitationStatus, when time.Time) (domain.ActivityInvitation, error)
	// ListReceived returns invitations addressed to parentID; an empty status
	// means any.
	ListReceived(ctx context.Context, parentID string, status domain.InvitationStatus) ([]domain.InvitationView, error)
	ListSent(ctx context.Context, parentID string) ([]domain.InvitationView, error)
	ListForActivity(ctx context.Context, activityID string) ([]domain.ActivityInvitation, error)
}

type ActivityLookup interface {
	GetActivity(ctx context.Context, id string) (domain.Activity, error)
}

type InvitationsService struct {
	Activities  ActivityLookup
	Children    ChildLookup
	Users       UserLookup
	Invitations InvitationsStore
	Pending     PendingInvitationsStore
	Resolver    *InvitationResolver
	Now         func() time.Time
}

type InviteInput struct {
	InvitedParentID string
	ChildID         string
	Message         string
}

// ActivityInvitations lists everything sent for one activity.
type ActivityInvitations struct {
	Invitations []domain.ActivityInvitation        `json:"invitations"`
	Pending     []domain.PendingActivityInvitation `json:"pending"`
}

func (s *InvitationsService) Invite(ctx context.Context, userID, activityID string, in InviteInput) (domain.ActivityInvitation, error) {
	a, err := s.ownedActivity(ctx, userID, activityID)
	if err != nil {
		return domain.ActivityInvitation{}, err
	}

	in.ChildID = strings.TrimSpace(in.ChildID)
	in.InvitedParentID = strings.TrimSpace(in.InvitedParentID)
	in.Message = strings.TrimSpace(in.Message)
	if in.ChildID == "" {
		return domain.ActivityInvitation{}, domain.NewValidationError(map[string]string{"child_id": "is required"})
	}
	if utf8.RuneCountInString(in.Message) > 500 {
		return domain.ActivityInvitation{}, domain.NewValidationError(map[string]string{"message": "must be at most 500 characters"})
	}

	child, err := s.Children.GetChild(ctx, in.ChildID)
	if err != nil {
		return domain.ActivityInvitation{}, err
	}
	if in.InvitedParentID == "" {
		in.InvitedParentID = child.ParentID
	}
	if child.ParentID != in.InvitedParentID {
		return domain.ActivityInvitation{}, domain.NewValidationError(map[string]string{"child_id": "does not belong to the invited parent"})
	}
	if in.InvitedParentID == userID {
		return domain.ActivityInvitation{}, domain.NewValidationError(map[string]string{"invited_parent_id": "cannot invite yourself"})
	}
	parent, err := s.Users.GetUserByID(ctx, in.InvitedParentID)
	if err != nil {
		return domain.ActivityInvitation{}, err
	}
	if !parent.IsActive {
		return domain.ActivityInvitation{}, domain.ErrNotFound
	}

	ts := now(s.Now)
	return s.Invitations.CreateInvitation(ctx, domain.ActivityInvitation{
		ActivityID:      a.ID,
		InviterParentID: userID,
		InvitedParentID: parent.ID,
		ChildID:         child.ID,
		Status:          domain.InvitationPending,
		Message:         in.Message,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	})
}

// AddPending registers prospective targets for an activity. Targets already
// reachable through a connection are invited immediately.
func (s *InvitationsService) AddPending(ctx context.Context, userID, activityID string, targets []domain.InviteTarget, message string) (domain.ResolutionSummary, error) {
	a, err := s.ownedActivity(ctx, userID, activityID)
	if err != nil {
		return domain.ResolutionSummary{}, err
	}
	if len(targets) == 0 {
		return domain.ResolutionSummary{}, domain.NewValidationError(map[string]string{"pending_connections": "is required"})
	}
	if len(targets) > MaxInviteCandidates {
		return domain.ResolutionSummary{}, domain.NewValidationError(map[string]string{"pending_connections": "too many targets"})
	}
	for _, t := range targets {
		if t.Kind != domain.TargetProspective {
			return domain.ResolutionSummary{}, domain.NewValidationError(map[string]string{"pending_connections": "must be pending-<parentId> keys"})
		}
	}
	return s.Resolver.Resolve(ctx, a, userID, targets, false, strings.TrimSpace(message)), nil
}

// Respond changes the status of an invitation addressed to userID. Accepted
// and rejected invitations may be flipped while the activity exists.
func (s *InvitationsService) Respond(ctx context.Context, userID, invitationID string, status domain.InvitationStatus) (domain.ActivityInvitation, error) {
	if status != domain.InvitationAccepted && status != domain.InvitationRejected {
		return domain.ActivityInvitation{}, domain.NewValidationError(map[string]string{"status": "must be accepted or rejected"})
	}
	inv, err := s.Invitations.GetInvitation(ctx, invitationID)
	if err != nil {
		return domain.ActivityInvitation{}, err
	}
	if inv.InvitedParentID != userID {
		return domain.ActivityInvitation{}, domain.ErrNotFound
	}
	if inv.Status == status {
		return inv, nil
	}
	return s.Invitations.SetInvitationStatus(ctx, inv.ID, status, now(s.Now))
}

func (s *InvitationsService) ListReceived(ctx context.Context, userID, status string) ([]domain.InvitationView, error) {
	st := domain.InvitationStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, domain.NewValidationError(map[string]string{"status": "must be pending, accepted or rejected"})
	}
	return s.Invitations.ListReceived(ctx, userID, st)
}

func (s *InvitationsService) ListSent(ctx context.Context, userID string) ([]domain.InvitationView, error) {
	return s.Invitations.ListSent(ctx, userID)
}

func (s *InvitationsService) ListForActivity(ctx context.Context, userID, activityID string) (ActivityInvitations, error) {
	if _, err := s.ownedActivity(ctx, userID, activityID); err != nil {
		return ActivityInvitations{}, err
	}
	invs, err := s.Invitations.ListForActivity(ctx, activityID)
	if err != nil {
		return ActivityInvitations{}, err
	}
	pending, err := s.Pending.ListPendingForActivity(ctx, activityID)
	if err != nil {
		return ActivityInvitations{}, err
	}
	return ActivityInvitations{Invitations: invs, Pending: pending}, nil
}

func (s *InvitationsService) ownedActivity(ctx context.Context, userID, activityID string) (domain.Activity, error) {
	a, err := s.Activities.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Activity{}, err
	}
	if _, err := ownedChild(ctx, s.Children, userID, a.ChildID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Activity{}, domain.ErrNotFound
		}
		return domain.Activity{}, err
	}
	return a, nil
}
