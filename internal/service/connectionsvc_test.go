package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"Playdatewebserver/internal/domain"
	"Playdatewebserver/internal/store/memory"
)

func connectionFixture() (fakeUsers, fakeChildren) {
	users := fakeUsers{
		"p1": {ID: "p1", Username: "parent1", IsActive: true},
		"p2": {ID: "p2", Username: "parent2", IsActive: true},
	}
	kids := newFakeChildren(
		domain.Child{ID: "c1", Name: "Ada", ParentID: "p1"},
		domain.Child{ID: "c2", Name: "Bo", ParentID: "p2"},
	)
	return users, kids
}

func TestConnectionsService_RespondAcceptActivatesAndMaterializes(t *testing.T) {
	users, kids := connectionFixture()

	var resolved domain.RequestStatus
	var activated [2]string
	store := &stubConnectionsStore{
		t: t,
		getRequestFunc: func(context.Context, string) (domain.ConnectionRequest, error) {
			return domain.ConnectionRequest{ID: "r1", RequesterID: "p1", TargetParentID: "p2", ChildID: "c1", TargetChildID: "c2", Status: domain.RequestPending}, nil
		},
		findActiveConnectionFunc: func(context.Context, string, string) (domain.Connection, error) {
			return domain.Connection{}, domain.ErrNotFound
		},
		resolveRequestFunc: func(_ context.Context, id string, status domain.RequestStatus, target string, _ time.Time) error {
			if id != "r1" || target != "c2" {
				t.Fatalf("unexpected resolve %s %s", id, target)
			}
			resolved = status
			return nil
		},
		activateConnectionFunc: func(_ context.Context, a, b string, when time.Time) (domain.Connection, error) {
			activated = [2]string{a, b}
			return domain.Connection{ID: "conn1", Child1ID: a, Child2ID: b, Status: domain.ConnectionActive, CreatedAt: when}, nil
		},
	}

	var deleted []string
	var invited []domain.ActivityInvitation
	pending := &stubPendingStore{
		t: t,
		listForHostFunc: func(_ context.Context, key, host string) ([]domain.PendingActivityInvitation, error) {
			if key == "pending-p2" && host == "c1" {
				return []domain.PendingActivityInvitation{{ID: "pi1", ActivityID: "a1", InviterParentID: "p1", PendingConnectionKey: key, Message: "join us"}}, nil
			}
			return nil, nil
		},
		deletePendingFunc: func(_ context.Context, id string) error {
			deleted = append(deleted, id)
			return nil
		},
	}
	writer := &stubInvitationWriter{
		t: t,
		createInvitationFunc: func(_ context.Context, inv domain.ActivityInvitation) (domain.ActivityInvitation, error) {
			invited = append(invited, inv)
			inv.ID = "inv1"
			return inv, nil
		},
	}

	svc := &ConnectionsService{
		Users:       users,
		Children:    kids,
		Connections: store,
		Materializer: &PendingInvitationMaterializer{
			Children:    kids,
			Pending:     pending,
			Invitations: writer,
			Now:         fixedNow,
		},
		Now: fixedNow,
	}

	res, err := svc.Respond(context.Background(), "p2", "r1", domain.ActionAccept, "")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resolved != domain.RequestAccepted || res.Request.Status != domain.RequestAccepted {
		t.Fatalf("expected request accepted, got %q / %+v", resolved, res.Request)
	}
	if activated != [2]string{"c1", "c2"} {
		t.Fatalf("expected canonical pair, got %v", activated)
	}
	if res.Connection == nil || res.Connection.ID != "conn1" {
		t.Fatalf("expected connection in result, got %+v", res.Connection)
	}
	if res.Materialized == nil || res.Materialized.Created != 1 {
		t.Fatalf("expected one materialized invitation, got %+v", res.Materialized)
	}
	if len(invited) != 1 || invited[0].InvitedParentID != "p2" || invited[0].ChildID != "c2" || invited[0].Message != "join us" {
		t.Fatalf("unexpected invitation: %+v", invited)
	}
	if len(deleted) != 1 || deleted[0] != "pi1" {
		t.Fatalf("expected placeholder deleted, got %v", deleted)
	}
}

func TestConnectionsService_RespondAlreadyConnected(t *testing.T) {
	users, kids := connectionFixture()
	store := &stubConnectionsStore{
		t: t,
		getRequestFunc: func(context.Context, string) (domain.ConnectionRequest, error) {
			return domain.ConnectionRequest{ID: "r1", RequesterID: "p1", TargetParentID: "p2", ChildID: "c1", TargetChildID: "c2", Status: domain.RequestPending}, nil
		},
		findActiveConnectionFunc: func(context.Context, string, string) (domain.Connection, error) {
			return domain.Connection{ID: "conn1", Status: domain.ConnectionActive}, nil
		},
	}
	svc := &ConnectionsService{Users: users, Children: kids, Connections: store, Now: fixedNow}

	if _, err := svc.Respond(context.Background(), "p2", "r1", domain.ActionAccept, ""); !errors.Is(err, domain.ErrConnectionExists) {
		t.Fatalf("expected ErrConnectionExists, got %v", err)
	}
}

func TestConnectionsService_RespondNotAddressedToResponder(t *testing.T) {
	users, kids := connectionFixture()
	store := &stubConnectionsStore{
		t: t,
		getRequestFunc: func(context.Context, string) (domain.ConnectionRequest, error) {
			return domain.ConnectionRequest{ID: "r1", RequesterID: "p1", TargetParentID: "p2", ChildID: "c1", Status: domain.RequestPending}, nil
		},
	}
	svc := &ConnectionsService{Users: users, Children: kids, Connections: store}

	if _, err := svc.Respond(context.Background(), "p1", "r1", domain.ActionAccept, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConnectionsService_RespondTerminalRequest(t *testing.T) {
	users, kids := connectionFixture()
	store := &stubConnectionsStore{
		t: t,
		getRequestFunc: func(context.Context, string) (domain.ConnectionRequest, error) {
			return domain.ConnectionRequest{ID: "r1", TargetParentID: "p2", ChildID: "c1", Status: domain.RequestDeclined}, nil
		},
	}
	svc := &ConnectionsService{Users: users, Children: kids, Connections: store}

	if _, err := svc.Respond(context.Background(), "p2", "r1", domain.ActionAccept, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConnectionsService_RespondReject(t *testing.T) {
	users, kids := connectionFixture()
	var resolved domain.RequestStatus
	store := &stubConnectionsStore{
		t: t,
		getRequestFunc: func(context.Context, string) (domain.ConnectionRequest, error) {
			return domain.ConnectionRequest{ID: "r1", RequesterID: "p1", TargetParentID: "p2", ChildID: "c1", Status: domain.RequestPending}, nil
		},
		resolveRequestFunc: func(_ context.Context, _ string, status domain.RequestStatus, _ string, _ time.Time) error {
			resolved = status
			return nil
		},
	}
	svc := &ConnectionsService{Users: users, Children: kids, Connections: store, Now: fixedNow}

	res, err := svc.Respond(context.Background(), "p2", "r1", domain.ActionReject, "")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resolved != domain.RequestDeclined || res.Connection != nil {
		t.Fatalf("expected declined without connection, got %q %+v", resolved, res)
	}
}

func TestConnectionsService_RespondPicksOnlyChild(t *testing.T) {
	users, kids := connectionFixture()
	var target string
	store := &stubConnectionsStore{
		t: t,
		getRequestFunc: func(context.Context, string) (domain.ConnectionRequest, error) {
			return domain.ConnectionRequest{ID: "r1", RequesterID: "p1", TargetParentID: "p2", ChildID: "c1", Status: domain.RequestPending}, nil
		},
		findActiveConnectionFunc: func(context.Context, string, string) (domain.Connection, error) {
			return domain.Connection{}, domain.ErrNotFound
		},
		resolveRequestFunc: func(_ context.Context, _ string, _ domain.RequestStatus, child string, _ time.Time) error {
			target = child
			return nil
		},
		activateConnectionFunc: func(_ context.Context, a, b string, _ time.Time) (domain.Connection, error) {
			return domain.Connection{ID: "conn1", Child1ID: a, Child2ID: b, Status: domain.ConnectionActive}, nil
		},
	}
	svc := &ConnectionsService{Users: users, Children: kids, Connections: store, Now: fixedNow}

	if _, err := svc.Respond(context.Background(), "p2", "r1", domain.ActionAccept, ""); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if target != "c2" {
		t.Fatalf("expected responder's only child, got %q", target)
	}
}

func TestConnectionsService_CreateRequestDuplicateGuard(t *testing.T) {
	users, kids := connectionFixture()

	cases := map[string]domain.RequestsOverview{
		"same direction": {Outgoing: []domain.ConnectionRequest{
			{RequesterID: "p1", TargetParentID: "p2", ChildID: "c1", Status: domain.RequestPending},
		}},
		"mirrored": {Incoming: []domain.ConnectionRequest{
			{RequesterID: "p2", TargetParentID: "p1", ChildID: "c2", TargetChildID: "c1", Status: domain.RequestPending},
		}},
	}
	for name, overview := range cases {
		t.Run(name, func(t *testing.T) {
			store := &stubConnectionsStore{
				t: t,
				findActiveConnectionFunc: func(context.Context, string, string) (domain.Connection, error) {
					return domain.Connection{}, domain.ErrNotFound
				},
				listRequestsFunc: func(context.Context, string) (domain.RequestsOverview, error) {
					return overview, nil
				},
			}
			svc := &ConnectionsService{Users: users, Children: kids, Connections: store, Now: fixedNow}

			_, err := svc.CreateRequest(context.Background(), "p1", ConnectionRequestInput{ChildID: "c1", TargetChildID: "c2"})
			if !errors.Is(err, domain.ErrRequestExists) {
				t.Fatalf("expected ErrRequestExists, got %v", err)
			}
		})
	}
}

func TestConnectionsService_CreateRequestRejectsForeignChild(t *testing.T) {
	users, kids := connectionFixture()
	svc := &ConnectionsService{Users: users, Children: kids, Connections: &stubConnectionsStore{t: t}}

	_, err := svc.CreateRequest(context.Background(), "p1", ConnectionRequestInput{ChildID: "c2", TargetParentID: "p2"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConnectionsService_CreateRequestAlreadyConnected(t *testing.T) {
	users, kids := connectionFixture()
	store := &stubConnectionsStore{
		t: t,
		findActiveConnectionFunc: func(context.Context, string, string) (domain.Connection, error) {
			return domain.Connection{ID: "conn1"}, nil
		},
	}
	svc := &ConnectionsService{Users: users, Children: kids, Connections: store}

	_, err := svc.CreateRequest(context.Background(), "p1", ConnectionRequestInput{ChildID: "c1", TargetParentID: "p2"})
	if !errors.Is(err, domain.ErrConnectionExists) {
		t.Fatalf("expected ErrConnectionExists, got %v", err)
	}
}

func TestConnectionsService_Remove(t *testing.T) {
	users, kids := connectionFixture()
	kids["c3"] = domain.Child{ID: "c3", ParentID: "p3"}

	var statusSet int
	store := &stubConnectionsStore{
		t: t,
		getConnectionFunc: func(_ context.Context, id string) (domain.Connection, error) {
			if id == "gone" {
				return domain.Connection{ID: id, Child1ID: "c1", Child2ID: "c2", Status: domain.ConnectionDeleted}, nil
			}
			return domain.Connection{ID: id, Child1ID: "c1", Child2ID: "c2", Status: domain.ConnectionActive}, nil
		},
		setConnectionStatusFunc: func(_ context.Context, _ string, status domain.ConnectionStatus) error {
			if status != domain.ConnectionDeleted {
				t.Fatalf("unexpected status %q", status)
			}
			statusSet++
			return nil
		},
	}
	svc := &ConnectionsService{Users: users, Children: kids, Connections: store}

	if err := svc.Remove(context.Background(), "p3", "conn1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}
	if err := svc.Remove(context.Background(), "p2", "conn1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := svc.Remove(context.Background(), "p1", "gone"); err != nil {
		t.Fatalf("Remove deleted: %v", err)
	}
	if statusSet != 1 {
		t.Fatalf("expected one status change, got %d", statusSet)
	}
}

func TestConnectionsService_RespondActivationFailureLeavesRequestPending(t *testing.T) {
	users, kids := connectionFixture()
	store := &stubConnectionsStore{
		t: t,
		getRequestFunc: func(context.Context, string) (domain.ConnectionRequest, error) {
			return domain.ConnectionRequest{ID: "r1", RequesterID: "p1", TargetParentID: "p2", ChildID: "c1", TargetChildID: "c2", Status: domain.RequestPending}, nil
		},
		findActiveConnectionFunc: func(context.Context, string, string) (domain.Connection, error) {
			return domain.Connection{}, domain.ErrNotFound
		},
		activateConnectionFunc: func(context.Context, string, string, time.Time) (domain.Connection, error) {
			return domain.Connection{}, errors.New("db down")
		},
	}
	svc := &ConnectionsService{Users: users, Children: kids, Connections: store, Now: fixedNow}

	if _, err := svc.Respond(context.Background(), "p2", "r1", domain.ActionAccept, ""); err == nil || err.Error() != "db down" {
		t.Fatalf("expected activation error, got %v", err)
	}
}

func TestConnectionsService_RespondLostRaceRevertsConnection(t *testing.T) {
	users, kids := connectionFixture()
	var reverted string
	store := &stubConnectionsStore{
		t: t,
		getRequestFunc: func(context.Context, string) (domain.ConnectionRequest, error) {
			return domain.ConnectionRequest{ID: "r1", RequesterID: "p1", TargetParentID: "p2", ChildID: "c1", TargetChildID: "c2", Status: domain.RequestPending}, nil
		},
		findActiveConnectionFunc: func(context.Context, string, string) (domain.Connection, error) {
			return domain.Connection{}, domain.ErrNotFound
		},
		activateConnectionFunc: func(_ context.Context, a, b string, _ time.Time) (domain.Connection, error) {
			return domain.Connection{ID: "conn1", Child1ID: a, Child2ID: b, Status: domain.ConnectionActive}, nil
		},
		resolveRequestFunc: func(context.Context, string, domain.RequestStatus, string, time.Time) error {
			return domain.ErrNotFound
		},
		setConnectionStatusFunc: func(_ context.Context, id string, status domain.ConnectionStatus) error {
			if status != domain.ConnectionDeleted {
				t.Fatalf("unexpected status %q", status)
			}
			reverted = id
			return nil
		},
	}
	svc := &ConnectionsService{Users: users, Children: kids, Connections: store, Now: fixedNow}

	if _, err := svc.Respond(context.Background(), "p2", "r1", domain.ActionAccept, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if reverted != "conn1" {
		t.Fatalf("expected connection to be reverted, got %q", reverted)
	}
}

type flakyConnections struct {
	*memory.Store
	failActivate bool
}

func (f *flakyConnections) ActivateConnection(ctx context.Context, a, b string, when time.Time) (domain.Connection, error) {
	if f.failActivate {
		return domain.Connection{}, errors.New("connection refused")
	}
	return f.Store.ActivateConnection(ctx, a, b, when)
}

func TestConnectionsService_RespondRetryAfterActivationFailure(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	p1, err := st.CreateUser(ctx, domain.NewUser{Username: "parent1", Email: "p1@example.com", PasswordHash: "h"}, fixedNow())
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	p2, err := st.CreateUser(ctx, domain.NewUser{Username: "parent2", Email: "p2@example.com", PasswordHash: "h"}, fixedNow())
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	ada, err := st.CreateChild(ctx, p1.ID, "Ada", fixedNow())
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	bo, err := st.CreateChild(ctx, p2.ID, "Bo", fixedNow())
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	req, err := st.CreateRequest(ctx, domain.ConnectionRequest{RequesterID: p1.ID, TargetParentID: p2.ID, ChildID: ada.ID, TargetChildID: bo.ID, Status: domain.RequestPending, CreatedAt: fixedNow(), UpdatedAt: fixedNow()})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	conns := &flakyConnections{Store: st, failActivate: true}
	svc := &ConnectionsService{Users: st, Children: st, Connections: conns, Now: fixedNow}

	if _, err := svc.Respond(ctx, p2.ID, req.ID, domain.ActionAccept, ""); err == nil {
		t.Fatalf("expected activation failure")
	}
	got, err := st.GetRequest(ctx, req.ID)
	if err != nil || got.Status != domain.RequestPending {
		t.Fatalf("request should stay pending after failed accept: %+v, %v", got, err)
	}
	if _, err := st.FindActiveConnection(ctx, ada.ID, bo.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no connection, got %v", err)
	}

	conns.failActivate = false
	res, err := svc.Respond(ctx, p2.ID, req.ID, domain.ActionAccept, "")
	if err != nil {
		t.Fatalf("retry Respond: %v", err)
	}
	if res.Request.Status != domain.RequestAccepted || res.Connection == nil {
		t.Fatalf("unexpected retry result: %+v", res)
	}
	if _, err := st.FindActiveConnection(ctx, ada.ID, bo.ID); err != nil {
		t.Fatalf("expected active connection after retry: %v", err)
	}
	if got, _ := st.GetRequest(ctx, req.ID); got.Status != domain.RequestAccepted {
		t.Fatalf("expected accepted request, got %q", got.Status)
	}
}
