package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"Playdatewebserver/internal/domain"
)

type fakeChildren map[string]domain.Child

func newFakeChildren(kids ...domain.Child) fakeChildren {
	m := fakeChildren{}
	for _, k := range kids {
		m[k.ID] = k
	}
	return m
}

func (f fakeChildren) GetChild(_ context.Context, id string) (domain.Child, error) {
	c, ok := f[id]
	if !ok {
		return domain.Child{}, domain.ErrNotFound
	}
	return c, nil
}

func (f fakeChildren) ListChildren(_ context.Context, parentID string) ([]domain.Child, error) {
	var out []domain.Child
	for _, c := range f {
		if c.ParentID == parentID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeUsers map[string]domain.User

func (f fakeUsers) GetUserByID(_ context.Context, id string) (domain.User, error) {
	u, ok := f[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

type stubConnectionsStore struct {
	t *testing.T

	findActiveConnectionFunc  func(context.Context, string, string) (domain.Connection, error)
	listConnectedChildrenFunc func(context.Context, string) ([]domain.Child, error)
	createRequestFunc         func(context.Context, domain.ConnectionRequest) (domain.ConnectionRequest, error)
	getRequestFunc            func(context.Context, string) (domain.ConnectionRequest, error)
	listRequestsFunc          func(context.Context, string) (domain.RequestsOverview, error)
	resolveRequestFunc        func(context.Context, string, domain.RequestStatus, string, time.Time) error
	activateConnectionFunc    func(context.Context, string, string, time.Time) (domain.Connection, error)
	getConnectionFunc         func(context.Context, string) (domain.Connection, error)
	listConnectionsFunc       func(context.Context, string) ([]domain.ConnectionView, error)
	setConnectionStatusFunc   func(context.Context, string, domain.ConnectionStatus) error
}

func (s *stubConnectionsStore) FindActiveConnection(ctx context.Context, a, b string) (domain.Connection, error) {
	if s.findActiveConnectionFunc != nil {
		return s.findActiveConnectionFunc(ctx, a, b)
	}
	s.t.Fatalf("FindActiveConnection called unexpectedly")
	return domain.Connection{}, errors.New("unexpected call")
}

func (s *stubConnectionsStore) ListConnectedChildren(ctx context.Context, childID string) ([]domain.Child, error) {
	if s.listConnectedChildrenFunc != nil {
		return s.listConnectedChildrenFunc(ctx, childID)
	}
	s.t.Fatalf("ListConnectedChildren called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubConnectionsStore) CreateRequest(ctx context.Context, req domain.ConnectionRequest) (domain.ConnectionRequest, error) {
	if s.createRequestFunc != nil {
		return s.createRequestFunc(ctx, req)
	}
	s.t.Fatalf("CreateRequest called unexpectedly")
	return domain.ConnectionRequest{}, errors.New("unexpected call")
}

func (s *stubConnectionsStore) GetRequest(ctx context.Context, id string) (domain.ConnectionRequest, error) {
	if s.getRequestFunc != nil {
		return s.getRequestFunc(ctx, id)
	}
	s.t.Fatalf("GetRequest called unexpectedly")
	return domain.ConnectionRequest{}, errors.New("unexpected call")
}

func (s *stubConnectionsStore) ListRequests(ctx context.Context, parentID string) (domain.RequestsOverview, error) {
	if s.listRequestsFunc != nil {
		return s.listRequestsFunc(ctx, parentID)
	}
	s.t.Fatalf("ListRequests called unexpectedly")
	return domain.RequestsOverview{}, errors.New("unexpected call")
}

func (s *stubConnectionsStore) ResolveRequest(ctx context.Context, id string, status domain.RequestStatus, targetChildID string, when time.Time) error {
	if s.resolveRequestFunc != nil {
		return s.resolveRequestFunc(ctx, id, status, targetChildID, when)
	}
	s.t.Fatalf("ResolveRequest called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubConnectionsStore) ActivateConnection(ctx context.Context, a, b string, when time.Time) (domain.Connection, error) {
	if s.activateConnectionFunc != nil {
		return s.activateConnectionFunc(ctx, a, b, when)
	}
	s.t.Fatalf("ActivateConnection called unexpectedly")
	return domain.Connection{}, errors.New("unexpected call")
}

func (s *stubConnectionsStore) GetConnection(ctx context.Context, id string) (domain.Connection, error) {
	if s.getConnectionFunc != nil {
		return s.getConnectionFunc(ctx, id)
	}
	s.t.Fatalf("GetConnection called unexpectedly")
	return domain.Connection{}, errors.New("unexpected call")
}

func (s *stubConnectionsStore) ListConnections(ctx context.Context, parentID string) ([]domain.ConnectionView, error) {
	if s.listConnectionsFunc != nil {
		return s.listConnectionsFunc(ctx, parentID)
	}
	s.t.Fatalf("ListConnections called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubConnectionsStore) SetConnectionStatus(ctx context.Context, id string, status domain.ConnectionStatus) error {
	if s.setConnectionStatusFunc != nil {
		return s.setConnectionStatusFunc(ctx, id, status)
	}
	s.t.Fatalf("SetConnectionStatus called unexpectedly")
	return errors.New("unexpected call")
}

type stubInvitationWriter struct {
	t *testing.T

	createInvitationFunc func(context.Context, domain.ActivityInvitation) (domain.ActivityInvitation, error)
}

func (s *stubInvitationWriter) CreateInvitation(ctx context.Context, inv domain.ActivityInvitation) (domain.ActivityInvitation, error) {
	if s.createInvitationFunc != nil {
		return s.createInvitationFunc(ctx, inv)
	}
	s.t.Fatalf("CreateInvitation called unexpectedly")
	return domain.ActivityInvitation{}, errors.New("unexpected call")
}

type stubPendingStore struct {
	t *testing.T

	createPendingFunc   func(context.Context, domain.PendingActivityInvitation) (domain.PendingActivityInvitation, error)
	listForHostFunc     func(context.Context, string, string) ([]domain.PendingActivityInvitation, error)
	listForActivityFunc func(context.Context, string) ([]domain.PendingActivityInvitation, error)
	deletePendingFunc   func(context.Context, string) error
}

func (s *stubPendingStore) CreatePendingInvitation(ctx context.Context, p domain.PendingActivityInvitation) (domain.PendingActivityInvitation, error) {
	if s.createPendingFunc != nil {
		return s.createPendingFunc(ctx, p)
	}
	s.t.Fatalf("CreatePendingInvitation called unexpectedly")
	return domain.PendingActivityInvitation{}, errors.New("unexpected call")
}

func (s *stubPendingStore) ListPendingForHost(ctx context.Context, key, hostChildID string) ([]domain.PendingActivityInvitation, error) {
	if s.listForHostFunc != nil {
		return s.listForHostFunc(ctx, key, hostChildID)
	}
	s.t.Fatalf("ListPendingForHost called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubPendingStore) ListPendingForActivity(ctx context.Context, activityID string) ([]domain.PendingActivityInvitation, error) {
	if s.listForActivityFunc != nil {
		return s.listForActivityFunc(ctx, activityID)
	}
	s.t.Fatalf("ListPendingForActivity called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubPendingStore) DeletePendingInvitation(ctx context.Context, id string) error {
	if s.deletePendingFunc != nil {
		return s.deletePendingFunc(ctx, id)
	}
	s.t.Fatalf("DeletePendingInvitation called unexpectedly")
	return errors.New("unexpected call")
}

type recordedFailures struct {
	items []domain.SideEffectFailure
}

func (r *recordedFailures) RecordFailure(_ context.Context, f domain.SideEffectFailure) (domain.SideEffectFailure, error) {
	r.items = append(r.items, f)
	return f, nil
}

func fixedNow() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
