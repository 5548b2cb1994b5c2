package domain

import "time"

type ConnectionStatus string

const (
	ConnectionActive  ConnectionStatus = "active"
	ConnectionDeleted ConnectionStatus = "deleted"
)

// Connection links two children. Child1ID sorts before Child2ID.
type Connection struct {
	ID        string           `json:"id"`
	Child1ID  string           `json:"child1_id"`
	Child2ID  string           `json:"child2_id"`
	Status    ConnectionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// CanonicalPair orders two child ids the way connections are stored.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Other returns the child on the opposite side of childID.
func (c Connection) Other(childID string) string {
	if c.Child1ID == childID {
		return c.Child2ID
	}
	return c.Child1ID
}

func (c Connection) Involves(childID string) bool {
	return c.Child1ID == childID || c.Child2ID == childID
}

// ConnectionView is a connection seen from one parent's side.
type ConnectionView struct {
	ID          string           `json:"id"`
	Status      ConnectionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	MyChild     ChildSummary     `json:"my_child"`
	OtherChild  ChildSummary     `json:"other_child"`
	OtherParent UserSummary      `json:"other_parent"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

type ConnectionRequest struct {
	ID             string        `json:"id"`
	RequesterID    string        `json:"requester_id"`
	TargetParentID string        `json:"target_parent_id"`
	ChildID        string        `json:"child_id"`
	TargetChildID  string        `json:"target_child_id,omitempty"`
	Status         RequestStatus `json:"status"`
	Message        string        `json:"message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	RequesterName   string `json:"requester_name,omitempty"`
	ChildName       string `json:"child_name,omitempty"`
	TargetChildName string `json:"target_child_name,omitempty"`
}

type RespondAction string

const (
	ActionAccept RespondAction = "accept"
	ActionReject RespondAction = "reject"
)

type RequestsOverview struct {
	Incoming []ConnectionRequest `json:"incoming"`
	Outgoing []ConnectionRequest `json:"outgoing"`
}

// RespondResult is returned by accepting or rejecting a connection request.
type RespondResult struct {
	Request      ConnectionRequest   `json:"request"`
	Connection   *Connection         `json:"connection,omitempty"`
	Materialized *MaterializeSummary `json:"materialized,omitempty"`
}
