package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Playdatewebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConnectionsStore struct {
	pool *pgxpool.Pool
}

func NewConnectionsStore(pool *pgxpool.Pool) *ConnectionsStore {
	return &ConnectionsStore{pool: pool}
}

const requestSelect = `
	SELECT r.id, r.requester_id, r.target_parent_id, r.child_id, r.target_child_id,
	       r.status, r.message, r.created_at, r.updated_at,
	       ru.username, c.name, tc.name
	FROM connection_requests r
	JOIN users ru ON ru.id = r.requester_id
	JOIN children c ON c.id = r.child_id
	LEFT JOIN children tc ON tc.id = r.target_child_id
`

func scanRequest(row pgx.Row) (domain.ConnectionRequest, error) {
	var (
		r                               domain.ConnectionRequest
		id, requesterID, targetParentID pgtype.UUID
		childID, targetChildID          pgtype.UUID
		message, targetChildName        pgtype.Text
	)
	err := row.Scan(&id, &requesterID, &targetParentID, &childID, &targetChildID,
		&r.Status, &message, &r.CreatedAt, &r.UpdatedAt,
		&r.RequesterName, &r.ChildName, &targetChildName)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	r.ID = uuidOrEmpty(id)
	r.RequesterID = uuidOrEmpty(requesterID)
	r.TargetParentID = uuidOrEmpty(targetParentID)
	r.ChildID = uuidOrEmpty(childID)
	r.TargetChildID = uuidOrEmpty(targetChildID)
	r.Message = textOrEmpty(message)
	r.TargetChildName = textOrEmpty(targetChildName)
	return r, nil
}

func (s *ConnectionsStore) CreateRequest(ctx context.Context, req domain.ConnectionRequest) (domain.ConnectionRequest, error) {
	if !validIDs(req.RequesterID, req.TargetParentID, req.ChildID) || (req.TargetChildID != "" && !validIDs(req.TargetChildID)) {
		return domain.ConnectionRequest{}, domain.ErrNotFound
	}
	const q = `
		INSERT INTO connection_requests
			(requester_id, target_parent_id, child_id, target_child_id, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var idUUID pgtype.UUID
	err := s.pool.QueryRow(ctx, q, req.RequesterID, req.TargetParentID, req.ChildID, nullIfEmpty(req.TargetChildID),
		req.Status, nullIfEmpty(req.Message), req.CreatedAt, req.UpdatedAt).Scan(&idUUID)
	if err != nil {
		switch {
		case isUniqueViolation(err, "connection_requests_pending_uq"):
			return domain.ConnectionRequest{}, domain.ErrRequestExists
		case isForeignKeyViolation(err):
			return domain.ConnectionRequest{}, domain.ErrNotFound
		}
		return domain.ConnectionRequest{}, fmt.Errorf("create connection request: %w", err)
	}

	return s.GetRequest(ctx, uuidOrEmpty(idUUID))
}

func (s *ConnectionsStore) GetRequest(ctx context.Context, id string) (domain.ConnectionRequest, error) {
	if !validIDs(id) {
		return domain.ConnectionRequest{}, domain.ErrNotFound
	}
	r, err := scanRequest(s.pool.QueryRow(ctx, requestSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ConnectionRequest{}, domain.ErrNotFound
		}
		return domain.ConnectionRequest{}, fmt.Errorf("get connection request: %w", err)
	}
	return r, nil
}

func (s *ConnectionsStore) ListRequests(ctx context.Context, parentID string) (domain.RequestsOverview, error) {
	out := domain.RequestsOverview{Incoming: []domain.ConnectionRequest{}, Outgoing: []domain.ConnectionRequest{}}
	if !validIDs(parentID) {
		return out, nil
	}
	const where = `
		WHERE r.status = 'pending' AND (r.target_parent_id = $1 OR r.requester_id = $1)
		ORDER BY r.created_at DESC, r.id DESC
	`

	rows, err := s.pool.Query(ctx, requestSelect+where, parentID)
	if err != nil {
		return domain.RequestsOverview{}, fmt.Errorf("list connection requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return domain.RequestsOverview{}, fmt.Errorf("scan connection request: %w", err)
		}
		if r.TargetParentID == parentID {
			out.Incoming = append(out.Incoming, r)
		} else {
			out.Outgoing = append(out.Outgoing, r)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.RequestsOverview{}, fmt.Errorf("list connection requests: %w", err)
	}
	return out, nil
}

// ResolveRequest moves a pending request to its final status. A request that
// is no longer pending reports ErrNotFound, so only one responder wins.
func (s *ConnectionsStore) ResolveRequest(ctx context.Context, id string, status domain.RequestStatus, targetChildID string, when time.Time) error {
	if !validIDs(id) {
		return domain.ErrNotFound
	}
	const q = `
		UPDATE connection_requests
		SET status = $2, target_child_id = COALESCE($3, target_child_id), updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`
	ct, err := s.pool.Exec(ctx, q, id, status, nullIfEmpty(targetChildID), when)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("resolve connection request: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ActivateConnection inserts the canonical pair or revives a deleted row.
// An already active pair reports ErrConnectionExists.
func (s *ConnectionsStore) ActivateConnection(ctx context.Context, child1ID, child2ID string, when time.Time) (domain.Connection, error) {
	if !validIDs(child1ID, child2ID) {
		return domain.Connection{}, domain.ErrNotFound
	}
	child1ID, child2ID = domain.CanonicalPair(child1ID, child2ID)
	const q = `
		INSERT INTO connections (child1_id, child2_id, status, created_at)
		VALUES ($1, $2, 'active', $3)
		ON CONFLICT ON CONSTRAINT connections_pair_uq DO UPDATE
		SET status = 'active', created_at = EXCLUDED.created_at
		WHERE connections.status <> 'active'
		RETURNING id, child1_id, child2_id, status, created_at
	`
	c, err := scanConnection(s.pool.QueryRow(ctx, q, child1ID, child2ID, when))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.Connection{}, domain.ErrConnectionExists
		case isForeignKeyViolation(err):
			return domain.Connection{}, domain.ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("activate connection: %w", err)
	}
	return c, nil
}

func scanConnection(row pgx.Row) (domain.Connection, error) {
	var (
		c                  domain.Connection
		id, child1, child2 pgtype.UUID
	)
	if err := row.Scan(&id, &child1, &child2, &c.Status, &c.CreatedAt); err != nil {
		return domain.Connection{}, err
	}
	c.ID = uuidOrEmpty(id)
	c.Child1ID = uuidOrEmpty(child1)
	c.Child2ID = uuidOrEmpty(child2)
	return c, nil
}

func (s *ConnectionsStore) GetConnection(ctx context.Context, id string) (domain.Connection, error) {
	if !validIDs(id) {
		return domain.Connection{}, domain.ErrNotFound
	}
	const q = `SELECT id, child1_id, child2_id, status, created_at FROM connections WHERE id = $1`
	c, err := scanConnection(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Connection{}, domain.ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

func (s *ConnectionsStore) FindActiveConnection(ctx context.Context, childA, childB string) (domain.Connection, error) {
	if !validIDs(childA, childB) {
		return domain.Connection{}, domain.ErrNotFound
	}
	a, b := domain.CanonicalPair(childA, childB)
	const q = `
		SELECT id, child1_id, child2_id, status, created_at
		FROM connections
		WHERE child1_id = $1 AND child2_id = $2 AND status = 'active'
	`
	c, err := scanConnection(s.pool.QueryRow(ctx, q, a, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Connection{}, domain.ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("find connection: %w", err)
	}
	return c, nil
}

func (s *ConnectionsStore) ListConnectedChildren(ctx context.Context, childID string) ([]domain.Child, error) {
	if !validIDs(childID) {
		return []domain.Child{}, nil
	}
	const q = `
		SELECT c.id, c.parent_id, c.name, c.created_at, c.updated_at
		FROM connections cn
		JOIN children c ON c.id = CASE
			WHEN cn.child1_id = $1 THEN cn.child2_id
			ELSE cn.child1_id
		END
		WHERE cn.status = 'active' AND (cn.child1_id = $1 OR cn.child2_id = $1)
		ORDER BY c.created_at ASC, c.id ASC
	`

	rows, err := s.pool.Query(ctx, q, childID)
	if err != nil {
		return nil, fmt.Errorf("list connected children: %w", err)
	}
	defer rows.Close()

	out := []domain.Child{}
	for rows.Next() {
		var row childRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan connected child: %w", err)
		}
		out = append(out, row.child())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list connected children: %w", err)
	}
	return out, nil
}

func (s *ConnectionsStore) ListConnections(ctx context.Context, parentID string) ([]domain.ConnectionView, error) {
	if !validIDs(parentID) {
		return []domain.ConnectionView{}, nil
	}
	const q = `
		SELECT cn.id, cn.status, cn.created_at,
		       m.id, m.name, o.id, o.name,
		       u.id, u.username, u.family_name
		FROM connections cn
		JOIN children m ON m.id IN (cn.child1_id, cn.child2_id) AND m.parent_id = $1
		JOIN children o ON o.id IN (cn.child1_id, cn.child2_id) AND o.id <> m.id
		JOIN users u ON u.id = o.parent_id
		WHERE cn.status = 'active'
		ORDER BY cn.created_at DESC, cn.id DESC
	`

	rows, err := s.pool.Query(ctx, q, parentID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	out := []domain.ConnectionView{}
	for rows.Next() {
		var (
			v                        domain.ConnectionView
			id, mineID, otherID, uid pgtype.UUID
			familyName               pgtype.Text
		)
		if err := rows.Scan(&id, &v.Status, &v.CreatedAt,
			&mineID, &v.MyChild.Name, &otherID, &v.OtherChild.Name,
			&uid, &v.OtherParent.Username, &familyName); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		v.ID = uuidOrEmpty(id)
		v.MyChild.ID = uuidOrEmpty(mineID)
		v.OtherChild.ID = uuidOrEmpty(otherID)
		v.OtherParent.ID = uuidOrEmpty(uid)
		v.OtherParent.FamilyName = textOrEmpty(familyName)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return out, nil
}

func (s *ConnectionsStore) SetConnectionStatus(ctx context.Context, id string, status domain.ConnectionStatus) error {
	if !validIDs(id) {
		return domain.ErrNotFound
	}
	ct, err := s.pool.Exec(ctx, `UPDATE connections SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set connection status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
