package domain

import "time"

type FailureKind string

const (
	FailureInvitationCreate   FailureKind = "invitation_create"
	FailurePendingCreate      FailureKind = "pending_invitation_create"
	FailurePendingMaterialize FailureKind = "pending_materialize"
)

// SideEffectFailure is a dead-letter record for best-effort work that did
// not complete.
type SideEffectFailure struct {
	ID         string      `json:"id"`
	Kind       FailureKind `json:"kind"`
	ActivityID string      `json:"activity_id,omitempty"`
	Reference  string      `json:"reference,omitempty"`
	Error      string      `json:"error"`
	CreatedAt  time.Time   `json:"created_at"`
}
