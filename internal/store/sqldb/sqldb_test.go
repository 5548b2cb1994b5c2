package sqldb

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"Playdatewebserver/internal/service"
	"Playdatewebserver/internal/store/migrations"
	"Playdatewebserver/internal/store/storetest"
)

var (
	_ service.UsersStore              = (*Store)(nil)
	_ service.AccountStore            = (*Store)(nil)
	_ service.AdminUsersStore         = (*Store)(nil)
	_ service.FailuresStore           = (*Store)(nil)
	_ service.FailureRecorder         = (*Store)(nil)
	_ service.ChildrenStore           = (*Store)(nil)
	_ service.ConnectionsStore        = (*Store)(nil)
	_ service.ActivitiesStore         = (*Store)(nil)
	_ service.InvitationsStore        = (*Store)(nil)
	_ service.PendingInvitationsStore = (*Store)(nil)
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	d := SQLiteDialect{}

	db, err := Open(ctx, d, filepath.Join(t.TempDir(), "test.db"), 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	m, err := migrations.New(db, d.Name(), nil)
	if err != nil {
		t.Fatalf("migrations.New: %v", err)
	}
	if err := m.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db, d)
}

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return openSQLite(t) })
}

// Runs against a disposable database named by APP_TEST_MYSQL_DSN.
func TestMySQLStoreContract(t *testing.T) {
	dsn := os.Getenv("APP_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("APP_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	d := MySQLDialect{}

	db, err := Open(ctx, d, dsn, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	m, err := migrations.New(db, d.Name(), nil)
	if err != nil {
		t.Fatalf("migrations.New: %v", err)
	}
	if err := m.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tables := []string{
		"side_effect_failures", "pending_activity_invitations", "activity_invitations",
		"connection_requests", "connections", "activities", "children", "users",
	}
	storetest.Run(t, func(t *testing.T) storetest.Store {
		for _, table := range tables {
			if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				t.Fatalf("clear %s: %v", table, err)
			}
		}
		return New(db, d)
	})
}

func TestSQLiteDSN(t *testing.T) {
	got, err := SQLiteDialect{}.DSN("file:app.db")
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	for _, want := range []string{"?_foreign_keys=on", "_journal_mode=WAL", "_busy_timeout=5000"} {
		if !strings.Contains(got, want) {
			t.Fatalf("DSN %q missing %q", got, want)
		}
	}

	got, _ = SQLiteDialect{}.DSN("file:app.db?_busy_timeout=100")
	if strings.Contains(got, "_busy_timeout=5000") || !strings.Contains(got, "&_foreign_keys=on") {
		t.Fatalf("DSN overrode caller params: %q", got)
	}
}

func TestMySQLDSN(t *testing.T) {
	got, err := MySQLDialect{}.DSN("app:secret@tcp(localhost:3306)/playdates")
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	for _, want := range []string{"parseTime=true", "clientFoundRows=true"} {
		if !strings.Contains(got, want) {
			t.Fatalf("DSN %q missing %q", got, want)
		}
	}
	if _, err := (MySQLDialect{}).DSN("not a dsn"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestNewDialect(t *testing.T) {
	for driver, want := range map[string]string{"sqlite": "sqlite", "SQLite3": "sqlite", "mysql": "mysql"} {
		d, err := NewDialect(driver)
		if err != nil || d.Name() != want {
			t.Fatalf("NewDialect(%q): %v, %v", driver, d, err)
		}
	}
	if _, err := NewDialect("oracle"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestPlaceholders(t *testing.T) {
	cases := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range cases {
		if got := placeholders(n); got != want {
			t.Fatalf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike("50%_off!"); got != "50!%!_off!!" {
		t.Fatalf("escapeLike: %q", got)
	}
}

func TestRecurringDaysRoundTrip(t *testing.T) {
	v := joinDays([]string{"monday", "friday"})
	got := splitDays(v)
	if len(got) != 2 || got[0] != "monday" || got[1] != "friday" {
		t.Fatalf("splitDays: %v", got)
	}
	if splitDays(joinDays(nil)) != nil {
		t.Fatalf("empty days should scan as nil")
	}
}
