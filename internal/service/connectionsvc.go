package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"Playdatewebserver/internal/domain"
)

type ConnectionsStore interface {
	ConnectionGraph
	CreateRequest(ctx context.Context, req domain.ConnectionRequest) (domain.ConnectionRequest, error)
	GetRequest(ctx context.Context, id string) (domain.ConnectionRequest, error)
	ListRequests(ctx context.Context, parentID string) (domain.RequestsOverview, error)
	// ResolveRequest moves a pending request to a terminal status. It returns
	// domain.ErrNotFound when the request is no longer pending.
	ResolveRequest(ctx context.Context, id string, status domain.RequestStatus, targetChildID string, when time.Time) error
	// ActivateConnection stores an active connection for the canonical pair,
	// reviving a previously deleted row. It returns domain.ErrConnectionExists
	// when the pair is already active.
	ActivateConnection(ctx context.Context, child1ID, child2ID string, when time.Time) (domain.Connection, error)
	GetConnection(ctx context.Context, id string) (domain.Connection, error)
	ListConnections(ctx context.Context, parentID string) ([]domain.ConnectionView, error)
	SetConnectionStatus(ctx context.Context, id string, status domain.ConnectionStatus) error
}

type ConnectionsService struct {
	Users        UserLookup
	Children     ChildLookup
	Connections  ConnectionsStore
	Materializer *PendingInvitationMaterializer
	Logger       *zap.Logger
	Now          func() time.Time
}

type ConnectionRequestInput struct {
	ChildID        string
	TargetParentID string
	TargetChildID  string
	Message        string
}

func (s *ConnectionsService) CreateRequest(ctx context.Context, requesterID string, in ConnectionRequestInput) (domain.ConnectionRequest, error) {
	in.ChildID = strings.TrimSpace(in.ChildID)
	in.TargetParentID = strings.TrimSpace(in.TargetParentID)
	in.TargetChildID = strings.TrimSpace(in.TargetChildID)
	in.Message = strings.TrimSpace(in.Message)

	fields := map[string]string{}
	if in.ChildID == "" {
		fields["child_id"] = "is required"
	}
	if in.TargetParentID == "" && in.TargetChildID == "" {
		fields["target_parent_id"] = "target_parent_id or target_child_id is required"
	}
	if utf8.RuneCountInString(in.Message) > 500 {
		fields["message"] = "must be at most 500 characters"
	}
	if len(fields) > 0 {
		return domain.ConnectionRequest{}, domain.NewValidationError(fields)
	}

	child, err := ownedChild(ctx, s.Children, requesterID, in.ChildID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ConnectionRequest{}, domain.NewValidationError(map[string]string{"child_id": "not one of your children"})
		}
		return domain.ConnectionRequest{}, err
	}

	var targetChild domain.Child
	if in.TargetChildID != "" {
		targetChild, err = s.Children.GetChild(ctx, in.TargetChildID)
		if err != nil {
			return domain.ConnectionRequest{}, err
		}
		if in.TargetParentID == "" {
			in.TargetParentID = targetChild.ParentID
		}
		if targetChild.ParentID != in.TargetParentID {
			return domain.ConnectionRequest{}, domain.ErrNotFound
		}
	}

	if in.TargetParentID == requesterID {
		return domain.ConnectionRequest{}, domain.NewValidationError(map[string]string{"target_parent_id": "cannot connect with yourself"})
	}
	target, err := s.Users.GetUserByID(ctx, in.TargetParentID)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	if !target.IsActive {
		return domain.ConnectionRequest{}, domain.ErrNotFound
	}

	if err := s.ensureNotConnected(ctx, child.ID, target.ID, in.TargetChildID); err != nil {
		return domain.ConnectionRequest{}, err
	}
	if err := s.ensureNoPendingRequest(ctx, requesterID, target.ID, child.ID, in.TargetChildID); err != nil {
		return domain.ConnectionRequest{}, err
	}

	ts := now(s.Now)
	req, err := s.Connections.CreateRequest(ctx, domain.ConnectionRequest{
		RequesterID:    requesterID,
		TargetParentID: target.ID,
		ChildID:        child.ID,
		TargetChildID:  in.TargetChildID,
		Status:         domain.RequestPending,
		Message:        in.Message,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	})
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	req.ChildName = child.Name
	req.TargetChildName = targetChild.Name
	return req, nil
}

// ensureNotConnected rejects a request whose pair is already active. A
// request without a target child is rejected only when the child is already
// connected to every child of the target parent.
func (s *ConnectionsService) ensureNotConnected(ctx context.Context, childID, targetParentID, targetChildID string) error {
	candidates := []string{targetChildID}
	if targetChildID == "" {
		kids, err := s.Children.ListChildren(ctx, targetParentID)
		if err != nil {
			return err
		}
		if len(kids) == 0 {
			return domain.NewValidationError(map[string]string{"target_parent_id": "parent has no children to connect with"})
		}
		candidates = candidates[:0]
		for _, k := range kids {
			candidates = append(candidates, k.ID)
		}
	}

	for _, id := range candidates {
		_, err := s.Connections.FindActiveConnection(ctx, childID, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return domain.ErrConnectionExists
}

// ensureNoPendingRequest applies the duplicate guard in both directions.
func (s *ConnectionsService) ensureNoPendingRequest(ctx context.Context, requesterID, targetParentID, childID, targetChildID string) error {
	overview, err := s.Connections.ListRequests(ctx, requesterID)
	if err != nil {
		return err
	}
	for _, r := range overview.Outgoing {
		if r.Status == domain.RequestPending && r.TargetParentID == targetParentID && r.ChildID == childID {
			return domain.ErrRequestExists
		}
	}
	for _, r := range overview.Incoming {
		if r.Status != domain.RequestPending || r.RequesterID != targetParentID {
			continue
		}
		namesMine := r.TargetChildID == "" || r.TargetChildID == childID
		fromTarget := targetChildID == "" || r.ChildID == targetChildID
		if namesMine && fromTarget {
			return domain.ErrRequestExists
		}
	}
	return nil
}

func (s *ConnectionsService) ListRequests(ctx context.Context, userID string) (domain.RequestsOverview, error) {
	return s.Connections.ListRequests(ctx, userID)
}

// Respond accepts or rejects a pending request addressed to responderID.
// Accepting activates the connection and materializes deferred invitations
// before returning.
func (s *ConnectionsService) Respond(ctx context.Context, responderID, requestID string, action domain.RespondAction, childID string) (domain.RespondResult, error) {
	if action != domain.ActionAccept && action != domain.ActionReject {
		return domain.RespondResult{}, domain.NewValidationError(map[string]string{"action": "must be accept or reject"})
	}

	req, err := s.Connections.GetRequest(ctx, requestID)
	if err != nil {
		return domain.RespondResult{}, err
	}
	if req.TargetParentID != responderID || req.Status != domain.RequestPending {
		return domain.RespondResult{}, domain.ErrNotFound
	}

	ts := now(s.Now)
	if action == domain.ActionReject {
		if err := s.Connections.ResolveRequest(ctx, req.ID, domain.RequestDeclined, req.TargetChildID, ts); err != nil {
			return domain.RespondResult{}, err
		}
		req.Status = domain.RequestDeclined
		req.UpdatedAt = ts
		return domain.RespondResult{Request: req}, nil
	}

	targetChildID, err := s.pickResponderChild(ctx, responderID, req.TargetChildID, strings.TrimSpace(childID))
	if err != nil {
		return domain.RespondResult{}, err
	}
	if _, err := s.Children.GetChild(ctx, req.ChildID); err != nil {
		return domain.RespondResult{}, err
	}

	_, err = s.Connections.FindActiveConnection(ctx, req.ChildID, targetChildID)
	switch {
	case err == nil:
		return domain.RespondResult{}, domain.ErrConnectionExists
	case !errors.Is(err, domain.ErrNotFound):
		return domain.RespondResult{}, err
	}

	// A request only leaves pending once its connection is active.
	c1, c2 := domain.CanonicalPair(req.ChildID, targetChildID)
	conn, err := s.Connections.ActivateConnection(ctx, c1, c2, ts)
	if err != nil {
		logger(s.Logger).Error("activate connection",
			zap.String("request_id", req.ID),
			zap.String("child1_id", c1),
			zap.String("child2_id", c2),
			zap.Error(err),
		)
		return domain.RespondResult{}, err
	}

	if err := s.Connections.ResolveRequest(ctx, req.ID, domain.RequestAccepted, targetChildID, ts); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Another response settled the request first; undo our activation.
			if rerr := s.Connections.SetConnectionStatus(ctx, conn.ID, domain.ConnectionDeleted); rerr != nil {
				logger(s.Logger).Error("revert connection",
					zap.String("request_id", req.ID),
					zap.String("connection_id", conn.ID),
					zap.Error(rerr),
				)
			}
		}
		return domain.RespondResult{}, err
	}
	req.Status = domain.RequestAccepted
	req.TargetChildID = targetChildID
	req.UpdatedAt = ts

	out := domain.RespondResult{Request: req, Connection: &conn}
	if s.Materializer != nil {
		sum := s.Materializer.Materialize(ctx, conn)
		out.Materialized = &sum
	}
	return out, nil
}

func (s *ConnectionsService) pickResponderChild(ctx context.Context, responderID, requested, supplied string) (string, error) {
	if requested != "" && supplied != "" && requested != supplied {
		return "", domain.NewValidationError(map[string]string{"child_id": "request names a different child"})
	}
	id := requested
	if id == "" {
		id = supplied
	}
	if id == "" {
		kids, err := s.Children.ListChildren(ctx, responderID)
		if err != nil {
			return "", err
		}
		if len(kids) != 1 {
			return "", domain.NewValidationError(map[string]string{"child_id": "is required when you do not have exactly one child"})
		}
		id = kids[0].ID
	}
	if _, err := ownedChild(ctx, s.Children, responderID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.NewValidationError(map[string]string{"child_id": "not one of your children"})
		}
		return "", err
	}
	return id, nil
}

// ListActive returns the active connections of userID's children, seen from
// userID's side.
func (s *ConnectionsService) ListActive(ctx context.Context, userID string) ([]domain.ConnectionView, error) {
	return s.Connections.ListConnections(ctx, userID)
}

// Remove marks a connection deleted for both parties. Removing an already
// deleted connection succeeds.
func (s *ConnectionsService) Remove(ctx context.Context, userID, connectionID string) error {
	conn, err := s.Connections.GetConnection(ctx, connectionID)
	if err != nil {
		return err
	}

	owns := false
	for _, id := range []string{conn.Child1ID, conn.Child2ID} {
		c, err := s.Children.GetChild(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
		if c.ParentID == userID {
			owns = true
		}
	}
	if !owns {
		return domain.ErrForbidden
	}
	if conn.Status == domain.ConnectionDeleted {
		return nil
	}
	return s.Connections.SetConnectionStatus(ctx, conn.ID, domain.ConnectionDeleted)
}
