package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/stdlib"

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

// Runs against a disposable database named by APP_TEST_POSTGRES_DSN.
func TestStoreContract(t *testing.T) {
	dsn := os.Getenv("APP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("APP_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	pool, err := Open(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() { _ = db.Close() })
	m, err := migrations.New(db, "postgres", nil)
	if err != nil {
		t.Fatalf("migrations.New: %v", err)
	}
	if err := m.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storetest.Run(t, func(t *testing.T) storetest.Store {
		const q = `TRUNCATE users, children, activities, connections, connection_requests,
			activity_invitations, pending_activity_invitations, side_effect_failures CASCADE`
		if _, err := pool.Exec(ctx, q); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return New(pool)
	})
}

func TestValidIDs(t *testing.T) {
	if !validIDs("5a4b3c2d-0000-4000-8000-000000000001") {
		t.Fatalf("expected uuid to be valid")
	}
	for _, bad := range []string{"", "42", "pending-5a4b3c2d-0000-4000-8000-000000000001"} {
		if validIDs(bad) {
			t.Fatalf("%q: expected invalid", bad)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike: %q", got)
	}
}
