package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	if got, ok := NormalizeDate(" 2025-06-01 "); !ok || got != "2025-06-01" {
		t.Fatalf("got %q, %v", got, ok)
	}
	for _, s := range []string{"", "2025-6-1", "2025-02-30", "06/01/2025"} {
		if _, ok := NormalizeDate(s); ok {
			t.Fatalf("%q: expected rejection", s)
		}
	}
}

func TestNormalizeClock(t *testing.T) {
	cases := map[string]string{"9:05": "09:05", "09:05": "09:05", "17:30:00": "17:30"}
	for in, want := range cases {
		if got, ok := NormalizeClock(in); !ok || got != want {
			t.Fatalf("%q: got %q, %v", in, got, ok)
		}
	}
	if _, ok := NormalizeClock("25:00"); ok {
		t.Fatalf("expected 25:00 to be rejected")
	}
}

func TestParseWeekday(t *testing.T) {
	if d, ok := ParseWeekday(" Thurs "); !ok || d != time.Thursday {
		t.Fatalf("got %v, %v", d, ok)
	}
	if _, ok := ParseWeekday("someday"); ok {
		t.Fatalf("expected unknown weekday to be rejected")
	}
	if WeekdayName(time.Saturday) != "saturday" {
		t.Fatalf("unexpected weekday name %q", WeekdayName(time.Saturday))
	}
}

func TestPendingKeys(t *testing.T) {
	target, ok := ParsePendingKey("pending-42")
	if !ok || target.Kind != TargetProspective || target.ParentID != "42" {
		t.Fatalf("unexpected target %+v, %v", target, ok)
	}
	if target.PendingKey() != "pending-42" || target.String() != "pending-42" {
		t.Fatalf("unexpected key %q", target.PendingKey())
	}
	for _, bad := range []string{"42", "pending-", "pending-  ", "Pending-42"} {
		if _, ok := ParsePendingKey(bad); ok {
			t.Fatalf("%q: expected rejection", bad)
		}
	}
	if ConnectedTarget("c1").PendingKey() != "" {
		t.Fatalf("connected targets have no pending key")
	}
}

func TestCanonicalPair(t *testing.T) {
	a, b := CanonicalPair("z", "a")
	if a != "a" || b != "z" {
		t.Fatalf("got %q, %q", a, b)
	}
	c := Connection{Child1ID: a, Child2ID: b}
	if c.Other("a") != "z" || c.Other("z") != "a" || !c.Involves("z") || c.Involves("q") {
		t.Fatalf("unexpected connection helpers")
	}
}

func TestResolutionSummary(t *testing.T) {
	var s ResolutionSummary
	for _, o := range []InvitationOutcome{OutcomeInvited, OutcomeDeferred, OutcomeDuplicate, OutcomeNotConnected, OutcomeFailed} {
		s.Add(InvitationResult{Outcome: o})
	}
	var total ResolutionSummary
	total.Merge(s)
	total.Merge(s)
	if total.Invited != 2 || total.Deferred != 2 || total.Skipped != 4 || total.Failed != 2 || len(total.Results) != 10 {
		t.Fatalf("unexpected totals: %+v", total)
	}
}

func TestDateRangeOverlaps(t *testing.T) {
	r := DateRange{From: "2025-06-10", To: "2025-06-20"}
	if !r.Overlaps("2025-06-01", "2025-06-10") || !r.Overlaps("2025-06-20", "2025-06-25") {
		t.Fatalf("expected boundary overlap")
	}
	if r.Overlaps("2025-06-01", "2025-06-09") || r.Overlaps("2025-06-21", "2025-06-22") {
		t.Fatalf("expected no overlap")
	}
	if !(DateRange{}).Overlaps("1999-01-01", "1999-01-01") {
		t.Fatalf("open range overlaps everything")
	}
}

func TestErrorFamilies(t *testing.T) {
	if !errors.Is(ErrInvitationExists, ErrConflict) || errors.Is(ErrInvitationExists, ErrValidation) {
		t.Fatalf("conflict family broken")
	}
	err := NewValidationError(map[string]string{"b": "x", "a": "y"})
	if !errors.Is(err, ErrValidation) || err.Error() != "validation failed: a: y, b: x" {
		t.Fatalf("unexpected validation error %q", err)
	}
}
