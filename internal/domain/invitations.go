package domain

import (
	"strings"
	"time"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationRejected:
		return true
	}
	return false
}

type ActivityInvitation struct {
	ID              string           `json:"id"`
	ActivityID      string           `json:"activity_id"`
	InviterParentID string           `json:"inviter_parent_id"`
	InvitedParentID string           `json:"invited_parent_id"`
	ChildID         string           `json:"child_id"`
	Status          InvitationStatus `json:"status"`
	Message         string           `json:"message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// InvitationView joins an invitation with its activity and display names.
type InvitationView struct {
	ActivityInvitation
	Activity      Activity `json:"activity"`
	HostChildName string   `json:"host_child_name"`
	InviterName   string   `json:"inviter_name"`
	InvitedName   string   `json:"invited_name"`
	ChildName     string   `json:"child_name"`
}

// PendingActivityInvitation is a deferred invitation waiting for a
// connection between the activity host and the prospective parent.
type PendingActivityInvitation struct {
	ID                   string    `json:"id"`
	ActivityID           string    `json:"activity_id"`
	InviterParentID      string    `json:"inviter_parent_id"`
	PendingConnectionKey string    `json:"pending_connection_key"`
	Message              string    `json:"message,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

type InviteTargetKind int

const (
	TargetConnected InviteTargetKind = iota + 1
	TargetProspective
)

const pendingKeyPrefix = "pending-"

// InviteTarget is either a child (Connected) or a parent the host is not
// connected to yet (Prospective).
type InviteTarget struct {
	Kind     InviteTargetKind
	ChildID  string
	ParentID string
}

func ConnectedTarget(childID string) InviteTarget {
	return InviteTarget{Kind: TargetConnected, ChildID: childID}
}

func ProspectiveTarget(parentID string) InviteTarget {
	return InviteTarget{Kind: TargetProspective, ParentID: parentID}
}

// PendingKey is the placeholder key stored for prospective targets.
func (t InviteTarget) PendingKey() string {
	if t.Kind != TargetProspective {
		return ""
	}
	return PendingKeyFor(t.ParentID)
}

func (t InviteTarget) String() string {
	if t.Kind == TargetProspective {
		return t.PendingKey()
	}
	return t.ChildID
}

func PendingKeyFor(parentID string) string {
	return pendingKeyPrefix + parentID
}

// ParsePendingKey decodes a "pending-<parentId>" key.
func ParsePendingKey(key string) (InviteTarget, bool) {
	key = strings.TrimSpace(key)
	id, ok := strings.CutPrefix(key, pendingKeyPrefix)
	if !ok || strings.TrimSpace(id) == "" {
		return InviteTarget{}, false
	}
	return ProspectiveTarget(id), true
}

type InvitationOutcome string

const (
	OutcomeInvited      InvitationOutcome = "invited"
	OutcomeDeferred     InvitationOutcome = "deferred"
	OutcomeDuplicate    InvitationOutcome = "duplicate"
	OutcomeNotConnected InvitationOutcome = "not_connected"
	OutcomeFailed       InvitationOutcome = "failed"
)

type InvitationResult struct {
	ActivityID   string            `json:"activity_id"`
	Target       string            `json:"target"`
	Outcome      InvitationOutcome `json:"outcome"`
	InvitationID string            `json:"invitation_id,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// ResolutionSummary aggregates a batch of invitation attempts.
type ResolutionSummary struct {
	Invited  int                `json:"invited"`
	Deferred int                `json:"deferred"`
	Skipped  int                `json:"skipped"`
	Failed   int                `json:"failed"`
	Results  []InvitationResult `json:"results"`
}

func (s *ResolutionSummary) Add(r InvitationResult) {
	switch r.Outcome {
	case OutcomeInvited:
		s.Invited++
	case OutcomeDeferred:
		s.Deferred++
	case OutcomeFailed:
		s.Failed++
	default:
		s.Skipped++
	}
	s.Results = append(s.Results, r)
}

func (s *ResolutionSummary) Merge(o ResolutionSummary) {
	for _, r := range o.Results {
		s.Add(r)
	}
}

type MaterializeSummary struct {
	Created   int `json:"created"`
	Duplicate int `json:"duplicate"`
	Failed    int `json:"failed"`
}
