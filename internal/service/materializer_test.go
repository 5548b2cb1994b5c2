package service

import (
	"context"
	"errors"
	"testing"

	"Playdatewebserver/internal/domain"
)

func TestPendingInvitationMaterializer_BothDirections(t *testing.T) {
	kids := newFakeChildren(
		domain.Child{ID: "c1", ParentID: "p1"},
		domain.Child{ID: "c2", ParentID: "p2"},
	)
	rows := map[string][]domain.PendingActivityInvitation{
		"pending-p2|c1": {{ID: "pi1", ActivityID: "a1", InviterParentID: "p1"}},
		"pending-p1|c2": {{ID: "pi2", ActivityID: "a2", InviterParentID: "p2"}},
	}

	var created []domain.ActivityInvitation
	var deleted []string
	m := &PendingInvitationMaterializer{
		Children: kids,
		Pending: &stubPendingStore{
			t: t,
			listForHostFunc: func(_ context.Context, key, host string) ([]domain.PendingActivityInvitation, error) {
				return rows[key+"|"+host], nil
			},
			deletePendingFunc: func(_ context.Context, id string) error {
				deleted = append(deleted, id)
				return nil
			},
		},
		Invitations: &stubInvitationWriter{
			t: t,
			createInvitationFunc: func(_ context.Context, inv domain.ActivityInvitation) (domain.ActivityInvitation, error) {
				created = append(created, inv)
				return inv, nil
			},
		},
		Now: fixedNow,
	}

	sum := m.Materialize(context.Background(), domain.Connection{ID: "conn1", Child1ID: "c1", Child2ID: "c2"})
	if sum.Created != 2 || sum.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if len(created) != 2 {
		t.Fatalf("expected two invitations, got %+v", created)
	}
	for _, inv := range created {
		switch inv.ActivityID {
		case "a1":
			if inv.InvitedParentID != "p2" || inv.ChildID != "c2" {
				t.Fatalf("a1: unexpected invitation %+v", inv)
			}
		case "a2":
			if inv.InvitedParentID != "p1" || inv.ChildID != "c1" {
				t.Fatalf("a2: unexpected invitation %+v", inv)
			}
		default:
			t.Fatalf("unexpected activity %q", inv.ActivityID)
		}
		if inv.Status != domain.InvitationPending {
			t.Fatalf("expected pending status, got %q", inv.Status)
		}
	}
	if len(deleted) != 2 {
		t.Fatalf("expected both placeholders deleted, got %v", deleted)
	}
}

func TestPendingInvitationMaterializer_DuplicateConsumesPlaceholder(t *testing.T) {
	kids := newFakeChildren(
		domain.Child{ID: "c1", ParentID: "p1"},
		domain.Child{ID: "c2", ParentID: "p2"},
	)
	var deleted []string
	m := &PendingInvitationMaterializer{
		Children: kids,
		Pending: &stubPendingStore{
			t: t,
			listForHostFunc: func(_ context.Context, key, host string) ([]domain.PendingActivityInvitation, error) {
				if host == "c1" {
					return []domain.PendingActivityInvitation{{ID: "pi1", ActivityID: "a1", InviterParentID: "p1"}}, nil
				}
				return nil, nil
			},
			deletePendingFunc: func(_ context.Context, id string) error {
				deleted = append(deleted, id)
				return nil
			},
		},
		Invitations: &stubInvitationWriter{
			t: t,
			createInvitationFunc: func(context.Context, domain.ActivityInvitation) (domain.ActivityInvitation, error) {
				return domain.ActivityInvitation{}, domain.ErrInvitationExists
			},
		},
	}

	sum := m.Materialize(context.Background(), domain.Connection{ID: "conn1", Child1ID: "c1", Child2ID: "c2"})
	if sum.Created != 0 || sum.Duplicate != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if len(deleted) != 1 || deleted[0] != "pi1" {
		t.Fatalf("expected placeholder consumed, got %v", deleted)
	}
}

func TestPendingInvitationMaterializer_FailureLeavesPlaceholder(t *testing.T) {
	kids := newFakeChildren(
		domain.Child{ID: "c1", ParentID: "p1"},
		domain.Child{ID: "c2", ParentID: "p2"},
	)
	failures := &recordedFailures{}
	m := &PendingInvitationMaterializer{
		Children: kids,
		Pending: &stubPendingStore{
			t: t,
			listForHostFunc: func(_ context.Context, key, host string) ([]domain.PendingActivityInvitation, error) {
				if host == "c1" {
					return []domain.PendingActivityInvitation{
						{ID: "pi1", ActivityID: "a1", InviterParentID: "p1"},
						{ID: "pi2", ActivityID: "a2", InviterParentID: "p1"},
					}, nil
				}
				return nil, nil
			},
			deletePendingFunc: func(_ context.Context, id string) error {
				if id == "pi1" {
					t.Fatalf("failed placeholder must not be deleted")
				}
				return nil
			},
		},
		Invitations: &stubInvitationWriter{
			t: t,
			createInvitationFunc: func(_ context.Context, inv domain.ActivityInvitation) (domain.ActivityInvitation, error) {
				if inv.ActivityID == "a1" {
					return domain.ActivityInvitation{}, errors.New("boom")
				}
				return inv, nil
			},
		},
		Failures: failures,
		Now:      fixedNow,
	}

	sum := m.Materialize(context.Background(), domain.Connection{ID: "conn1", Child1ID: "c1", Child2ID: "c2"})
	if sum.Created != 1 || sum.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if len(failures.items) != 1 || failures.items[0].Kind != domain.FailurePendingMaterialize || failures.items[0].Reference != "pi1" {
		t.Fatalf("unexpected recorded failures: %+v", failures.items)
	}
}
