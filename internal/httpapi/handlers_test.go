package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"Playdatewebserver/internal/domain"
	"Playdatewebserver/internal/service"
)

type stubAccountStore struct {
	t *testing.T

	deleteUserFunc func(context.Context, string) error
}

func (s *stubAccountStore) GetUserByID(context.Context, string) (domain.User, error) {
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, context.Canceled
}

func (s *stubAccountStore) UpdateProfile(context.Context, string, domain.ProfileUpdate, time.Time) (domain.User, error) {
	s.t.Fatalf("UpdateProfile called unexpectedly")
	return domain.User{}, context.Canceled
}

func (s *stubAccountStore) DeleteUser(ctx context.Context, userID string) error {
	if s.deleteUserFunc != nil {
		return s.deleteUserFunc(ctx, userID)
	}
	s.t.Fatalf("DeleteUser called unexpectedly")
	return context.Canceled
}

func (s *stubAccountStore) SearchUsers(context.Context, string, int, string) ([]domain.UserSummary, error) {
	s.t.Fatalf("SearchUsers called unexpectedly")
	return nil, context.Canceled
}

type stubChildrenStore struct {
	t *testing.T

	getChildFunc    func(context.Context, string) (domain.Child, error)
	createChildFunc func(context.Context, string, string, time.Time) (domain.Child, error)
}

func (s *stubChildrenStore) GetChild(ctx context.Context, id string) (domain.Child, error) {
	if s.getChildFunc != nil {
		return s.getChildFunc(ctx, id)
	}
	s.t.Fatalf("GetChild called unexpectedly")
	return domain.Child{}, context.Canceled
}

func (s *stubChildrenStore) ListChildren(context.Context, string) ([]domain.Child, error) {
	s.t.Fatalf("ListChildren called unexpectedly")
	return nil, context.Canceled
}

func (s *stubChildrenStore) CreateChild(ctx context.Context, parentID, name string, when time.Time) (domain.Child, error) {
	if s.createChildFunc != nil {
		return s.createChildFunc(ctx, parentID, name, when)
	}
	s.t.Fatalf("CreateChild called unexpectedly")
	return domain.Child{}, context.Canceled
}

func (s *stubChildrenStore) RenameChild(context.Context, string, string, time.Time) (domain.Child, error) {
	s.t.Fatalf("RenameChild called unexpectedly")
	return domain.Child{}, context.Canceled
}

func (s *stubChildrenStore) DeleteChild(context.Context, string) error {
	s.t.Fatalf("DeleteChild called unexpectedly")
	return context.Canceled
}

type testEnvelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func authed(req *http.Request, u domain.User) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), authUserKey, u))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestUsersMeDeleteRejectsMissingConfirm(t *testing.T) {
	api := &api{
		usersSvc: &service.UsersService{Store: &stubAccountStore{t: t}},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", strings.NewReader(`{}`))
	req = authed(req, domain.User{ID: "user-1"})
	rr := httptest.NewRecorder()
	api.handleUsersMeDelete(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Code != "validation_error" || env.Fields["confirm"] != "is required" {
		t.Fatalf("unexpected error: %+v", env)
	}
}

func TestUsersMeDeleteDeletesAccount(t *testing.T) {
	var deleted string
	api := &api{
		usersSvc: &service.UsersService{Store: &stubAccountStore{
			t: t,
			deleteUserFunc: func(_ context.Context, userID string) error {
				deleted = userID
				return nil
			},
		}},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", strings.NewReader(`{"confirm":true}`))
	req = authed(req, domain.User{ID: "user-1"})
	rr := httptest.NewRecorder()
	api.handleUsersMeDelete(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if deleted != "user-1" {
		t.Fatalf("unexpected deleted user: %q", deleted)
	}
	env := decodeEnvelope(t, rr)
	if !env.Success || string(env.Data) != `{"id":"user-1","deleted":true}` {
		t.Fatalf("unexpected envelope: success=%v data=%s", env.Success, env.Data)
	}
}

func TestChildrenCreateRejectsUnknownFields(t *testing.T) {
	api := &api{
		childrenSvc: &service.ChildrenService{Store: &stubChildrenStore{t: t}},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/children", strings.NewReader(`{"name":"Ava","age":4}`))
	req = authed(req, domain.User{ID: "user-1"})
	rr := httptest.NewRecorder()
	api.handleChildrenCreate(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Code != "bad_json" {
		t.Fatalf("unexpected code: %q", env.Code)
	}
}

func TestChildrenCreateRequiresName(t *testing.T) {
	api := &api{
		childrenSvc: &service.ChildrenService{Store: &stubChildrenStore{t: t}},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/children", strings.NewReader(`{"name":""}`))
	req = authed(req, domain.User{ID: "user-1"})
	rr := httptest.NewRecorder()
	api.handleChildrenCreate(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Fields["name"] != "is required" {
		t.Fatalf("unexpected fields: %+v", env.Fields)
	}
}

func TestChildrenGetHidesOtherParentsChild(t *testing.T) {
	api := &api{
		childrenSvc: &service.ChildrenService{Store: &stubChildrenStore{
			t: t,
			getChildFunc: func(_ context.Context, id string) (domain.Child, error) {
				if id != "child-9" {
					t.Fatalf("unexpected child id: %s", id)
				}
				return domain.Child{ID: "child-9", ParentID: "user-2", Name: "Ben"}, nil
			},
		}},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/children/child-9", nil)
	req = withURLParam(req, "id", "child-9")
	req = authed(req, domain.User{ID: "user-1"})
	rr := httptest.NewRecorder()
	api.handleChildrenGet(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestChildrenCreateReturnsEnvelope(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	api := &api{
		childrenSvc: &service.ChildrenService{
			Store: &stubChildrenStore{
				t: t,
				createChildFunc: func(_ context.Context, parentID, name string, when time.Time) (domain.Child, error) {
					if parentID != "user-1" || name != "Ava" {
						t.Fatalf("unexpected create args: %s %s", parentID, name)
					}
					return domain.Child{ID: "child-1", ParentID: parentID, Name: name, CreatedAt: when, UpdatedAt: when}, nil
				},
			},
			Now: func() time.Time { return now },
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/children", strings.NewReader(`{"name":"  Ava "}`))
	req = authed(req, domain.User{ID: "user-1"})
	rr := httptest.NewRecorder()
	api.handleChildrenCreate(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if !env.Success {
		t.Fatalf("expected success envelope")
	}
	var got domain.Child
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode child: %v", err)
	}
	if got.ID != "child-1" || got.Name != "Ava" || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected child: %+v", got)
	}
}

func TestHandlersRequireUser(t *testing.T) {
	api := &api{}
	req := httptest.NewRequest(http.MethodGet, "/api/children", nil)
	rr := httptest.NewRecorder()
	api.handleChildrenList(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestParseInviteTargets(t *testing.T) {
	got := parseInviteTargets([]string{"child-1", " pending-user-2 ", "", "pending-", "child-1"})
	want := []domain.InviteTarget{
		domain.ConnectedTarget("child-1"),
		domain.ProspectiveTarget("user-2"),
		domain.ConnectedTarget("pending-"),
		domain.ConnectedTarget("child-1"),
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected targets: %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("target %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestActivitiesPendingInvitationsRejectsEmptyList(t *testing.T) {
	api := &api{invitationsSvc: &service.InvitationsService{}}

	req := httptest.NewRequest(http.MethodPost, "/api/activities/act-1/pending-invitations", strings.NewReader(`{"pending_connections":[]}`))
	req = withURLParam(req, "id", "act-1")
	req = authed(req, domain.User{ID: "user-1"})
	rr := httptest.NewRecorder()
	api.handleActivitiesPendingInvitations(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Fields["pending_connections"] == "" {
		t.Fatalf("unexpected fields: %+v", env.Fields)
	}
}

func TestAdminStatusRequiresFlag(t *testing.T) {
	api := &api{adminSvc: &service.AdminService{}}

	req := httptest.NewRequest(http.MethodPut, "/api/admin/users/user-2/status", strings.NewReader(`{}`))
	req = withURLParam(req, "id", "user-2")
	req = authed(req, domain.User{ID: "user-1", Role: domain.RoleAdmin})
	rr := httptest.NewRecorder()
	api.handleAdminUsersStatus(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Fields["is_active"] != "is required" {
		t.Fatalf("unexpected fields: %+v", env.Fields)
	}
}
