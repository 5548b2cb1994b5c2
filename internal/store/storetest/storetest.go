// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"Playdatewebserver/internal/domain"
	"Playdatewebserver/internal/service"
)

// Store is everything the services need from a backend.
type Store interface {
	service.UsersStore
	service.AccountStore
	service.AdminUsersStore
	service.FailuresStore
	service.FailureRecorder
	service.ChildrenStore
	service.ConnectionsStore
	service.ActivitiesStore
	service.InvitationsStore
	service.PendingInvitationsStore
}

// MissingID is a well-formed id that no backend will have issued.
const MissingID = "00000000-0000-4000-8000-000000000000"

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// Run executes the shared checks. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Children", func(t *testing.T) { testChildren(t, newStore(t)) })
	t.Run("Requests", func(t *testing.T) { testRequests(t, newStore(t)) })
	t.Run("Connections", func(t *testing.T) { testConnections(t, newStore(t)) })
	t.Run("Activities", func(t *testing.T) { testActivities(t, newStore(t)) })
	t.Run("Invitations", func(t *testing.T) { testInvitations(t, newStore(t)) })
	t.Run("PendingInvitations", func(t *testing.T) { testPending(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testCascades(t, newStore(t)) })
	t.Run("MaterializeTwice", func(t *testing.T) { testMaterializeTwice(t, newStore(t)) })
	t.Run("Failures", func(t *testing.T) { testFailures(t, newStore(t)) })
}

func family(t *testing.T, s Store, name string, kids ...string) (domain.User, []domain.Child) {
	t.Helper()
	ctx := context.Background()
	u, err := s.CreateUser(ctx, domain.NewUser{Username: name, Email: name + "@example.com", PasswordHash: "hash"}, t0)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", name, err)
	}
	out := make([]domain.Child, 0, len(kids))
	for _, k := range kids {
		c, err := s.CreateChild(ctx, u.ID, k, t0)
		if err != nil {
			t.Fatalf("CreateChild(%s): %v", k, err)
		}
		out = append(out, c)
	}
	return u, out
}

func activity(t *testing.T, s Store, hostChildID, start, end string) domain.Activity {
	t.Helper()
	rows, err := s.CreateActivities(context.Background(), []domain.Activity{{
		ChildID:   hostChildID,
		Name:      "Park",
		StartDate: start,
		EndDate:   end,
		CreatedAt: t0,
		UpdatedAt: t0,
	}})
	if err != nil {
		t.Fatalf("CreateActivities: %v", err)
	}
	return rows[0]
}

func connect(t *testing.T, s Store, a, b string) domain.Connection {
	t.Helper()
	c, err := s.ActivateConnection(context.Background(), a, b, t0)
	if err != nil {
		t.Fatalf("ActivateConnection: %v", err)
	}
	return c
}

func invite(t *testing.T, s Store, activityID, inviterID, invitedID, childID string) domain.ActivityInvitation {
	t.Helper()
	inv, err := s.CreateInvitation(context.Background(), domain.ActivityInvitation{
		ActivityID:      activityID,
		InviterParentID: inviterID,
		InvitedParentID: invitedID,
		ChildID:         childID,
		Status:          domain.InvitationPending,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	})
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}
	return inv
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()
	p1, _ := family(t, s, "alice")
	p2, _ := family(t, s, "alina")

	if _, err := s.CreateUser(ctx, domain.NewUser{Username: "x", Email: "ALICE@example.com", PasswordHash: "h"}, t0); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	got, err := s.GetUserByEmail(ctx, "Alice@Example.com")
	if err != nil || got.ID != p1.ID || got.PasswordHash != "hash" {
		t.Fatalf("GetUserByEmail: %+v, %v", got, err)
	}
	if p1.Role != domain.RoleUser || !p1.IsActive {
		t.Fatalf("unexpected defaults: %+v", p1)
	}
	if _, err := s.GetUserByID(ctx, MissingID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUserByID(ctx, "not-an-id"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}

	surname := "Smith"
	updated, err := s.UpdateProfile(ctx, p1.ID, domain.ProfileUpdate{FamilyName: &surname}, t0.Add(time.Hour))
	if err != nil || updated.FamilyName != "Smith" || updated.Username != "alice" {
		t.Fatalf("UpdateProfile: %+v, %v", updated, err)
	}

	if err := s.SetPasswordHash(ctx, p1.ID, "rehashed", t0); err != nil {
		t.Fatalf("SetPasswordHash: %v", err)
	}
	if got, _ := s.GetUserByEmail(ctx, "alice@example.com"); got.PasswordHash != "rehashed" {
		t.Fatalf("password hash not updated")
	}

	found, err := s.SearchUsers(ctx, "ali", 10, p1.ID)
	if err != nil || len(found) != 1 || found[0].ID != p2.ID {
		t.Fatalf("SearchUsers: %+v, %v", found, err)
	}
	if _, err := s.SetUserActive(ctx, p2.ID, false, t0); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if found, _ := s.SearchUsers(ctx, "ali", 10, p1.ID); len(found) != 0 {
		t.Fatalf("inactive users must not be searchable: %+v", found)
	}

	admin, err := s.SetUserRole(ctx, p1.ID, domain.RoleAdmin, t0)
	if err != nil || admin.Role != domain.RoleAdmin {
		t.Fatalf("SetUserRole: %+v, %v", admin, err)
	}
	all, err := s.ListUsers(ctx, 10, 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListUsers: %d, %v", len(all), err)
	}
	if page, _ := s.ListUsers(ctx, 1, 1); len(page) != 1 {
		t.Fatalf("ListUsers page: %d", len(page))
	}

	if err := s.DeleteUser(ctx, p2.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := s.DeleteUser(ctx, p2.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func testChildren(t *testing.T, s Store) {
	ctx := context.Background()
	p1, kids := family(t, s, "parent", "Zoe", "Ada")
	p2, _ := family(t, s, "other", "Ada")

	if _, err := s.CreateChild(ctx, p1.ID, "ada", t0); !errors.Is(err, domain.ErrChildNameTaken) {
		t.Fatalf("expected ErrChildNameTaken, got %v", err)
	}
	if _, err := s.CreateChild(ctx, MissingID, "Kid", t0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown parent, got %v", err)
	}

	list, err := s.ListChildren(ctx, p1.ID)
	if err != nil || len(list) != 2 || list[0].Name != "Ada" || list[1].Name != "Zoe" {
		t.Fatalf("ListChildren: %+v, %v", list, err)
	}
	if list, _ := s.ListChildren(ctx, p2.ID); len(list) != 1 {
		t.Fatalf("children leaked across parents: %+v", list)
	}

	if _, err := s.RenameChild(ctx, kids[0].ID, "ADA", t0); !errors.Is(err, domain.ErrChildNameTaken) {
		t.Fatalf("expected ErrChildNameTaken on rename, got %v", err)
	}
	renamed, err := s.RenameChild(ctx, kids[0].ID, "Zoey", t0)
	if err != nil || renamed.Name != "Zoey" || renamed.ParentID != p1.ID {
		t.Fatalf("RenameChild: %+v, %v", renamed, err)
	}

	if err := s.DeleteChild(ctx, kids[0].ID); err != nil {
		t.Fatalf("DeleteChild: %v", err)
	}
	if _, err := s.GetChild(ctx, kids[0].ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testRequests(t *testing.T, s Store) {
	ctx := context.Background()
	p1, k1 := family(t, s, "req1", "Ada")
	p2, k2 := family(t, s, "req2", "Ben")

	req := domain.ConnectionRequest{
		RequesterID:    p1.ID,
		TargetParentID: p2.ID,
		ChildID:        k1[0].ID,
		Status:         domain.RequestPending,
		Message:        "hi",
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
	created, err := s.CreateRequest(ctx, req)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if created.RequesterName != "req1" || created.ChildName != "Ada" || created.Message != "hi" {
		t.Fatalf("request view not filled: %+v", created)
	}
	if _, err := s.CreateRequest(ctx, req); !errors.Is(err, domain.ErrRequestExists) {
		t.Fatalf("expected ErrRequestExists, got %v", err)
	}

	ov, err := s.ListRequests(ctx, p2.ID)
	if err != nil || len(ov.Incoming) != 1 || len(ov.Outgoing) != 0 {
		t.Fatalf("ListRequests target: %+v, %v", ov, err)
	}
	ov, _ = s.ListRequests(ctx, p1.ID)
	if len(ov.Outgoing) != 1 || len(ov.Incoming) != 0 {
		t.Fatalf("ListRequests requester: %+v", ov)
	}

	if err := s.ResolveRequest(ctx, created.ID, domain.RequestAccepted, k2[0].ID, t0); err != nil {
		t.Fatalf("ResolveRequest: %v", err)
	}
	if err := s.ResolveRequest(ctx, created.ID, domain.RequestDeclined, "", t0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second resolve must lose, got %v", err)
	}
	got, err := s.GetRequest(ctx, created.ID)
	if err != nil || got.Status != domain.RequestAccepted || got.TargetChildID != k2[0].ID || got.TargetChildName != "Ben" {
		t.Fatalf("GetRequest: %+v, %v", got, err)
	}

	if _, err := s.CreateRequest(ctx, req); err != nil {
		t.Fatalf("a new request is allowed once the old one is resolved: %v", err)
	}
}

func testConnections(t *testing.T, s Store) {
	ctx := context.Background()
	p1, k1 := family(t, s, "con1", "Ada")
	p2, k2 := family(t, s, "con2", "Ben", "Cy")

	c := connect(t, s, k2[0].ID, k1[0].ID)
	if c.Child1ID >= c.Child2ID || !c.Involves(k1[0].ID) || c.Status != domain.ConnectionActive {
		t.Fatalf("connection not canonical: %+v", c)
	}
	if _, err := s.ActivateConnection(ctx, k1[0].ID, k2[0].ID, t0); !errors.Is(err, domain.ErrConnectionExists) {
		t.Fatalf("expected ErrConnectionExists, got %v", err)
	}
	if _, err := s.FindActiveConnection(ctx, k2[0].ID, k1[0].ID); err != nil {
		t.Fatalf("FindActiveConnection: %v", err)
	}
	if _, err := s.FindActiveConnection(ctx, k1[0].ID, k2[1].ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	linked, err := s.ListConnectedChildren(ctx, k1[0].ID)
	if err != nil || len(linked) != 1 || linked[0].ID != k2[0].ID || linked[0].ParentID != p2.ID {
		t.Fatalf("ListConnectedChildren: %+v, %v", linked, err)
	}

	views, err := s.ListConnections(ctx, p1.ID)
	if err != nil || len(views) != 1 {
		t.Fatalf("ListConnections: %+v, %v", views, err)
	}
	v := views[0]
	if v.MyChild.ID != k1[0].ID || v.OtherChild.Name != "Ben" || v.OtherParent.ID != p2.ID {
		t.Fatalf("unexpected view: %+v", v)
	}

	if err := s.SetConnectionStatus(ctx, c.ID, domain.ConnectionDeleted); err != nil {
		t.Fatalf("SetConnectionStatus: %v", err)
	}
	if views, _ := s.ListConnections(ctx, p1.ID); len(views) != 0 {
		t.Fatalf("deleted connection still listed: %+v", views)
	}
	if linked, _ := s.ListConnectedChildren(ctx, k1[0].ID); len(linked) != 0 {
		t.Fatalf("deleted connection still linked: %+v", linked)
	}

	revived, err := s.ActivateConnection(ctx, k1[0].ID, k2[0].ID, t0.Add(time.Hour))
	if err != nil || revived.ID != c.ID || revived.Status != domain.ConnectionActive {
		t.Fatalf("revive: %+v, %v", revived, err)
	}
	if got, err := s.GetConnection(ctx, c.ID); err != nil || got.Status != domain.ConnectionActive {
		t.Fatalf("GetConnection: %+v, %v", got, err)
	}
}

func testActivities(t *testing.T, s Store) {
	ctx := context.Background()
	p1, k1 := family(t, s, "act1", "Ada")
	p2, k2 := family(t, s, "act2", "Ben")
	p3, k3 := family(t, s, "act3", "Cy")
	connect(t, s, k1[0].ID, k2[0].ID)

	cost := 12.5
	seats := 4
	rows, err := s.CreateActivities(ctx, []domain.Activity{
		{ChildID: k1[0].ID, Name: "Swim", StartDate: "2025-06-02", EndDate: "2025-06-02", StartTime: "10:00", EndTime: "11:00",
			Cost: &cost, MaxParticipants: &seats, SeriesID: "5a4b3c2d-0000-4000-8000-000000000001", IsRecurring: true,
			RecurringDays: []string{"monday", "wednesday"}, CreatedAt: t0, UpdatedAt: t0},
		{ChildID: k1[0].ID, Name: "Swim", StartDate: "2025-06-04", EndDate: "2025-06-04", StartTime: "10:00", EndTime: "11:00",
			SeriesID: "5a4b3c2d-0000-4000-8000-000000000001", IsRecurring: true,
			RecurringDays: []string{"monday", "wednesday"}, CreatedAt: t0, UpdatedAt: t0},
	})
	if err != nil || len(rows) != 2 {
		t.Fatalf("CreateActivities: %d, %v", len(rows), err)
	}
	a := rows[0]
	if a.ID == "" || a.StartDate != "2025-06-02" || a.Cost == nil || *a.Cost != 12.5 || a.MaxParticipants == nil || *a.MaxParticipants != 4 {
		t.Fatalf("round trip: %+v", a)
	}
	if len(a.RecurringDays) != 2 || a.RecurringDays[0] != "monday" || a.SeriesID == "" {
		t.Fatalf("series fields: %+v", a)
	}
	if _, err := s.CreateActivities(ctx, []domain.Activity{{ChildID: MissingID, Name: "x", StartDate: "2025-06-01", EndDate: "2025-06-01", CreatedAt: t0, UpdatedAt: t0}}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown host, got %v", err)
	}

	a.Name = "Swim lesson"
	a.ChildID = k2[0].ID
	a.UpdatedAt = t0.Add(time.Hour)
	updated, err := s.UpdateActivity(ctx, a)
	if err != nil || updated.Name != "Swim lesson" || updated.ChildID != k1[0].ID {
		t.Fatalf("UpdateActivity: %+v, %v", updated, err)
	}

	mine, err := s.ListActivitiesForParent(ctx, p1.ID, domain.DateRange{From: "2025-06-03"})
	if err != nil || len(mine) != 1 || mine[0].StartDate != "2025-06-04" || mine[0].HostChildName != "Ada" || mine[0].HostParentID != p1.ID {
		t.Fatalf("ListActivitiesForParent: %+v, %v", mine, err)
	}
	if all, _ := s.ListActivitiesForParent(ctx, p1.ID, domain.DateRange{}); len(all) != 2 || all[0].StartDate > all[1].StartDate {
		t.Fatalf("calendar order: %+v", all)
	}

	connected, err := s.ListConnectedActivities(ctx, p2.ID, domain.DateRange{})
	if err != nil || len(connected) != 2 {
		t.Fatalf("ListConnectedActivities: %+v, %v", connected, err)
	}
	if none, _ := s.ListConnectedActivities(ctx, p3.ID, domain.DateRange{}); len(none) != 0 {
		t.Fatalf("unconnected parent sees activities: %+v", none)
	}

	inv := invite(t, s, rows[1].ID, p1.ID, p2.ID, k2[0].ID)
	if _, err := s.SetInvitationStatus(ctx, inv.ID, domain.InvitationRejected, t0); err != nil {
		t.Fatalf("SetInvitationStatus: %v", err)
	}
	connected, _ = s.ListConnectedActivities(ctx, p2.ID, domain.DateRange{})
	if len(connected) != 1 || connected[0].ID != rows[0].ID {
		t.Fatalf("rejected activity still on connected calendar: %+v", connected)
	}

	invite(t, s, rows[0].ID, p1.ID, p3.ID, k3[0].ID)
	invited, err := s.ListInvitedActivities(ctx, p3.ID, domain.DateRange{}, []domain.InvitationStatus{domain.InvitationPending, domain.InvitationAccepted})
	if err != nil || len(invited) != 1 || invited[0].InvitationStatus != domain.InvitationPending || invited[0].InvitationID == "" {
		t.Fatalf("ListInvitedActivities: %+v, %v", invited, err)
	}
	if rejected, _ := s.ListInvitedActivities(ctx, p2.ID, domain.DateRange{}, []domain.InvitationStatus{domain.InvitationRejected}); len(rejected) != 1 {
		t.Fatalf("rejected filter: %+v", rejected)
	}

	if err := s.DeleteActivity(ctx, rows[0].ID); err != nil {
		t.Fatalf("DeleteActivity: %v", err)
	}
	if invs, _ := s.ListForActivity(ctx, rows[0].ID); len(invs) != 0 {
		t.Fatalf("invitations survived activity delete: %+v", invs)
	}
	if _, err := s.GetActivity(ctx, rows[0].ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testInvitations(t *testing.T, s Store) {
	ctx := context.Background()
	p1, k1 := family(t, s, "inv1", "Ada")
	p2, k2 := family(t, s, "inv2", "Ben")
	a := activity(t, s, k1[0].ID, "2025-07-01", "2025-07-01")

	inv := invite(t, s, a.ID, p1.ID, p2.ID, k2[0].ID)
	if inv.ID == "" || inv.Status != domain.InvitationPending {
		t.Fatalf("CreateInvitation: %+v", inv)
	}
	dup := inv
	dup.ID = ""
	if _, err := s.CreateInvitation(ctx, dup); !errors.Is(err, domain.ErrInvitationExists) {
		t.Fatalf("expected ErrInvitationExists, got %v", err)
	}

	received, err := s.ListReceived(ctx, p2.ID, "")
	if err != nil || len(received) != 1 {
		t.Fatalf("ListReceived: %+v, %v", received, err)
	}
	v := received[0]
	if v.Activity.ID != a.ID || v.HostChildName != "Ada" || v.InviterName != "inv1" || v.InvitedName != "inv2" || v.ChildName != "Ben" {
		t.Fatalf("invitation view: %+v", v)
	}
	if none, _ := s.ListReceived(ctx, p2.ID, domain.InvitationAccepted); len(none) != 0 {
		t.Fatalf("status filter ignored: %+v", none)
	}
	if sent, _ := s.ListSent(ctx, p1.ID); len(sent) != 1 {
		t.Fatalf("ListSent: %+v", sent)
	}

	accepted, err := s.SetInvitationStatus(ctx, inv.ID, domain.InvitationAccepted, t0.Add(time.Hour))
	if err != nil || accepted.Status != domain.InvitationAccepted {
		t.Fatalf("SetInvitationStatus: %+v, %v", accepted, err)
	}
	if got, _ := s.GetInvitation(ctx, inv.ID); got.Status != domain.InvitationAccepted {
		t.Fatalf("GetInvitation: %+v", got)
	}
	if _, err := s.GetInvitation(ctx, MissingID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testPending(t *testing.T, s Store) {
	ctx := context.Background()
	p1, k1 := family(t, s, "pend1", "Ada", "Bea")
	p2, _ := family(t, s, "pend2")
	a := activity(t, s, k1[0].ID, "2025-07-01", "2025-07-01")
	b := activity(t, s, k1[1].ID, "2025-07-02", "2025-07-02")

	key := domain.PendingKeyFor(p2.ID)
	mk := func(activityID string) domain.PendingActivityInvitation {
		return domain.PendingActivityInvitation{ActivityID: activityID, InviterParentID: p1.ID, PendingConnectionKey: key, Message: "join us", CreatedAt: t0}
	}
	p, err := s.CreatePendingInvitation(ctx, mk(a.ID))
	if err != nil || p.ID == "" || p.Message != "join us" {
		t.Fatalf("CreatePendingInvitation: %+v, %v", p, err)
	}
	if _, err := s.CreatePendingInvitation(ctx, mk(a.ID)); !errors.Is(err, domain.ErrPendingInvitationExists) {
		t.Fatalf("expected ErrPendingInvitationExists, got %v", err)
	}
	if _, err := s.CreatePendingInvitation(ctx, mk(b.ID)); err != nil {
		t.Fatalf("CreatePendingInvitation second activity: %v", err)
	}

	forHost, err := s.ListPendingForHost(ctx, key, k1[0].ID)
	if err != nil || len(forHost) != 1 || forHost[0].ActivityID != a.ID {
		t.Fatalf("ListPendingForHost: %+v, %v", forHost, err)
	}
	if other, _ := s.ListPendingForHost(ctx, domain.PendingKeyFor(p1.ID), k1[0].ID); len(other) != 0 {
		t.Fatalf("wrong key matched: %+v", other)
	}
	if forActivity, _ := s.ListPendingForActivity(ctx, b.ID); len(forActivity) != 1 {
		t.Fatalf("ListPendingForActivity: %+v", forActivity)
	}

	if err := s.DeletePendingInvitation(ctx, p.ID); err != nil {
		t.Fatalf("DeletePendingInvitation: %v", err)
	}
	if err := s.DeletePendingInvitation(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Deleting the prospective parent clears placeholders addressed to them.
	if err := s.DeleteUser(ctx, p2.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if left, _ := s.ListPendingForActivity(ctx, b.ID); len(left) != 0 {
		t.Fatalf("placeholders survived user delete: %+v", left)
	}
}

func testCascades(t *testing.T, s Store) {
	ctx := context.Background()
	p1, k1 := family(t, s, "cas1", "Ada", "Cy")
	p2, k2 := family(t, s, "cas2", "Ben")
	ada, cy, ben := k1[0], k1[1], k2[0]
	adaConn := connect(t, s, ada.ID, ben.ID)
	cyConn := connect(t, s, cy.ID, ben.ID)
	a := activity(t, s, ada.ID, "2025-08-01", "2025-08-01")
	sib := activity(t, s, cy.ID, "2025-08-01", "2025-08-01")
	b := activity(t, s, ben.ID, "2025-08-02", "2025-08-02")
	invite(t, s, a.ID, p1.ID, p2.ID, ben.ID)
	invite(t, s, sib.ID, p1.ID, p2.ID, ben.ID)
	inv := invite(t, s, b.ID, p2.ID, p1.ID, ada.ID)

	// Removing one child leaves its sibling's rows alone.
	if err := s.DeleteChild(ctx, ada.ID); err != nil {
		t.Fatalf("DeleteChild: %v", err)
	}
	if _, err := s.GetConnection(ctx, adaConn.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("connection survived child delete: %v", err)
	}
	if _, err := s.GetActivity(ctx, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("activity survived host delete: %v", err)
	}
	if _, err := s.GetInvitation(ctx, inv.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("invitation for deleted child survived: %v", err)
	}
	if _, err := s.GetActivity(ctx, sib.ID); err != nil {
		t.Fatalf("sibling activity should remain: %v", err)
	}
	if _, err := s.FindActiveConnection(ctx, cy.ID, ben.ID); err != nil {
		t.Fatalf("sibling connection should remain: %v", err)
	}
	received, err := s.ListReceived(ctx, p2.ID, "")
	if err != nil {
		t.Fatalf("ListReceived: %v", err)
	}
	if len(received) != 1 || received[0].ActivityID != sib.ID {
		t.Fatalf("expected only the sibling's invitation to remain, got %+v", received)
	}
	views, err := s.ListConnections(ctx, p1.ID)
	if err != nil {
		t.Fatalf("ListConnections: %v", err)
	}
	if len(views) != 1 || views[0].MyChild.ID != cy.ID || views[0].OtherParent.ID != p2.ID {
		t.Fatalf("unexpected connections after child delete: %+v", views)
	}

	if err := s.DeleteChild(ctx, ben.ID); err != nil {
		t.Fatalf("DeleteChild: %v", err)
	}
	if _, err := s.GetConnection(ctx, cyConn.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("connection survived child delete: %v", err)
	}
	if _, err := s.GetActivity(ctx, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("activity survived host delete: %v", err)
	}
	if invs, _ := s.ListForActivity(ctx, sib.ID); len(invs) != 0 {
		t.Fatalf("invitation for deleted child survived: %+v", invs)
	}

	if err := s.DeleteUser(ctx, p1.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.GetChild(ctx, cy.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("child survived parent delete: %v", err)
	}
	if _, err := s.GetActivity(ctx, sib.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("activity survived parent delete: %v", err)
	}
}

// testMaterializeTwice runs the materializer over one connection twice, the
// second time with the placeholder recreated as a concurrent writer would.
func testMaterializeTwice(t *testing.T, s Store) {
	ctx := context.Background()
	p1, k1 := family(t, s, "mat1", "Ada")
	p2, k2 := family(t, s, "mat2", "Ben")
	a := activity(t, s, k1[0].ID, "2025-09-01", "2025-09-01")

	placeholder := domain.PendingActivityInvitation{
		ActivityID:           a.ID,
		InviterParentID:      p1.ID,
		PendingConnectionKey: domain.PendingKeyFor(p2.ID),
		CreatedAt:            t0,
	}
	if _, err := s.CreatePendingInvitation(ctx, placeholder); err != nil {
		t.Fatalf("CreatePendingInvitation: %v", err)
	}
	conn := connect(t, s, k1[0].ID, k2[0].ID)

	m := &service.PendingInvitationMaterializer{
		Children:    s,
		Pending:     s,
		Invitations: s,
		Failures:    s,
		Now:         func() time.Time { return t0 },
	}
	if sum := m.Materialize(ctx, conn); sum.Created != 1 || sum.Failed != 0 {
		t.Fatalf("first Materialize: %+v", sum)
	}
	if sum := m.Materialize(ctx, conn); sum.Created != 0 || sum.Duplicate != 0 || sum.Failed != 0 {
		t.Fatalf("second Materialize with nothing pending: %+v", sum)
	}

	if _, err := s.CreatePendingInvitation(ctx, placeholder); err != nil {
		t.Fatalf("CreatePendingInvitation again: %v", err)
	}
	if sum := m.Materialize(ctx, conn); sum.Created != 0 || sum.Duplicate != 1 || sum.Failed != 0 {
		t.Fatalf("Materialize over an existing invitation: %+v", sum)
	}

	invs, err := s.ListForActivity(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListForActivity: %v", err)
	}
	if len(invs) != 1 || invs[0].ChildID != k2[0].ID || invs[0].InvitedParentID != p2.ID {
		t.Fatalf("expected exactly one invitation, got %+v", invs)
	}
	if left, _ := s.ListPendingForActivity(ctx, a.ID); len(left) != 0 {
		t.Fatalf("placeholders left behind: %+v", left)
	}
}

func testFailures(t *testing.T, s Store) {
	ctx := context.Background()
	f1, err := s.RecordFailure(ctx, domain.SideEffectFailure{Kind: domain.FailureInvitationCreate, ActivityID: "a-1", Reference: "child-1", Error: "boom", CreatedAt: t0})
	if err != nil || f1.ID == "" {
		t.Fatalf("RecordFailure: %+v, %v", f1, err)
	}
	f2, err := s.RecordFailure(ctx, domain.SideEffectFailure{Kind: domain.FailurePendingMaterialize, Error: "later", CreatedAt: t0.Add(time.Minute)})
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	list, err := s.ListFailures(ctx, 10, 0)
	if err != nil || len(list) != 2 || list[0].ID != f2.ID || list[1].Reference != "child-1" {
		t.Fatalf("ListFailures: %+v, %v", list, err)
	}
	if err := s.DeleteFailure(ctx, f1.ID); err != nil {
		t.Fatalf("DeleteFailure: %v", err)
	}
	if err := s.DeleteFailure(ctx, f1.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
