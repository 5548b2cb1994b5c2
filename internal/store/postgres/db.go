package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Open(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// Store bundles the per-table stores behind one value that satisfies every
// service dependency.
type Store struct {
	*UsersStore
	*ChildrenStore
	*ConnectionsStore
	*ActivitiesStore
	*InvitationsStore
	*PendingInvitationsStore
	*FailuresStore

	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		UsersStore:              NewUsersStore(pool),
		ChildrenStore:           NewChildrenStore(pool),
		ConnectionsStore:        NewConnectionsStore(pool),
		ActivitiesStore:         NewActivitiesStore(pool),
		InvitationsStore:        NewInvitationsStore(pool),
		PendingInvitationsStore: NewPendingInvitationsStore(pool),
		FailuresStore:           NewFailuresStore(pool),
		pool:                    pool,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
