package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"Playdatewebserver/internal/domain"
)

const requestSelect = `
	SELECT r.id, r.requester_id, r.target_parent_id, r.child_id, r.target_child_id,
	       r.status, r.message, r.created_at, r.updated_at,
	       ru.username, c.name, tc.name
	FROM connection_requests r
	JOIN users ru ON ru.id = r.requester_id
	JOIN children c ON c.id = r.child_id
	LEFT JOIN children tc ON tc.id = r.target_child_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (domain.ConnectionRequest, error) {
	var (
		r                                       domain.ConnectionRequest
		targetChildID, message, targetChildName sql.NullString
	)
	err := row.Scan(&r.ID, &r.RequesterID, &r.TargetParentID, &r.ChildID, &targetChildID,
		&r.Status, &message, &r.CreatedAt, &r.UpdatedAt,
		&r.RequesterName, &r.ChildName, &targetChildName)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	r.TargetChildID = targetChildID.String
	r.Message = message.String
	r.TargetChildName = targetChildName.String
	return r, nil
}

func (s *Store) CreateRequest(ctx context.Context, req domain.ConnectionRequest) (domain.ConnectionRequest, error) {
	req.ID = s.newID()
	const q = `
		INSERT INTO connection_requests
			(id, requester_id, target_parent_id, child_id, target_child_id, status, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q, req.ID, req.RequesterID, req.TargetParentID, req.ChildID,
		nullString(req.TargetChildID), req.Status, nullString(req.Message), req.CreatedAt, req.UpdatedAt)
	if err != nil {
		switch {
		case s.dialect.IsUniqueViolation(err):
			return domain.ConnectionRequest{}, domain.ErrRequestExists
		case s.dialect.IsForeignKeyViolation(err):
			return domain.ConnectionRequest{}, domain.ErrNotFound
		}
		return domain.ConnectionRequest{}, fmt.Errorf("create connection request: %w", err)
	}
	return s.GetRequest(ctx, req.ID)
}

func (s *Store) GetRequest(ctx context.Context, id string) (domain.ConnectionRequest, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx, requestSelect+` WHERE r.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ConnectionRequest{}, domain.ErrNotFound
		}
		return domain.ConnectionRequest{}, fmt.Errorf("get connection request: %w", err)
	}
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context, parentID string) (domain.RequestsOverview, error) {
	const where = `
		WHERE r.status = 'pending' AND (r.target_parent_id = ? OR r.requester_id = ?)
		ORDER BY r.created_at DESC, r.id DESC
	`
	rows, err := s.db.QueryContext(ctx, requestSelect+where, parentID, parentID)
	if err != nil {
		return domain.RequestsOverview{}, fmt.Errorf("list connection requests: %w", err)
	}
	defer rows.Close()

	out := domain.RequestsOverview{Incoming: []domain.ConnectionRequest{}, Outgoing: []domain.ConnectionRequest{}}
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

func (s *Store) ResolveRequest(ctx context.Context, id string, status domain.RequestStatus, targetChildID string, when time.Time) error {
	const q = `
		UPDATE connection_requests
		SET status = ?, target_child_id = COALESCE(?, target_child_id), updated_at = ?
		WHERE id = ? AND status = 'pending'
	`
	res, err := s.db.ExecContext(ctx, q, status, nullString(targetChildID), when, id)
	if err != nil {
		if s.dialect.IsForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("resolve connection request: %w", err)
	}
	return requireRow(res, "resolve connection request")
}

const connectionColumns = `id, child1_id, child2_id, status, created_at`

func scanConnection(row rowScanner) (domain.Connection, error) {
	var c domain.Connection
	err := row.Scan(&c.ID, &c.Child1ID, &c.Child2ID, &c.Status, &c.CreatedAt)
	return c, err
}

// ActivateConnection inserts the canonical pair or revives a deleted row
// inside one transaction. An already active pair reports ErrConnectionExists.
func (s *Store) ActivateConnection(ctx context.Context, child1ID, child2ID string, when time.Time) (domain.Connection, error) {
	child1ID, child2ID = domain.CanonicalPair(child1ID, child2ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Connection{}, fmt.Errorf("begin activate connection: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := scanConnection(tx.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE child1_id = ? AND child2_id = ?`, child1ID, child2ID))
	switch {
	case err == nil && c.Status == domain.ConnectionActive:
		return domain.Connection{}, domain.ErrConnectionExists
	case err == nil:
		if _, err := tx.ExecContext(ctx, `UPDATE connections SET status = 'active', created_at = ? WHERE id = ?`, when, c.ID); err != nil {
			return domain.Connection{}, fmt.Errorf("revive connection: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		c = domain.Connection{ID: s.newID(), Child1ID: child1ID, Child2ID: child2ID}
		_, err := tx.ExecContext(ctx, `INSERT INTO connections (`+connectionColumns+`) VALUES (?, ?, ?, 'active', ?)`,
			c.ID, child1ID, child2ID, when)
		if err != nil {
			switch {
			case s.dialect.IsUniqueViolation(err):
				return domain.Connection{}, domain.ErrConnectionExists
			case s.dialect.IsForeignKeyViolation(err):
				return domain.Connection{}, domain.ErrNotFound
			}
			return domain.Connection{}, fmt.Errorf("create connection: %w", err)
		}
	default:
		return domain.Connection{}, fmt.Errorf("load connection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Connection{}, fmt.Errorf("commit activate connection: %w", err)
	}
	c.Status = domain.ConnectionActive
	c.CreatedAt = when
	return c, nil
}

func (s *Store) GetConnection(ctx context.Context, id string) (domain.Connection, error) {
	c, err := scanConnection(s.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Connection{}, domain.ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

func (s *Store) FindActiveConnection(ctx context.Context, childA, childB string) (domain.Connection, error) {
	a, b := domain.CanonicalPair(childA, childB)
	q := `SELECT ` + connectionColumns + ` FROM connections WHERE child1_id = ? AND child2_id = ? AND status = 'active'`
	c, err := scanConnection(s.db.QueryRowContext(ctx, q, a, b))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Connection{}, domain.ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("find connection: %w", err)
	}
	return c, nil
}

func (s *Store) ListConnectedChildren(ctx context.Context, childID string) ([]domain.Child, error) {
	const q = `
		SELECT c.id, c.parent_id, c.name, c.created_at, c.updated_at
		FROM connections cn
		JOIN children c ON c.id = CASE WHEN cn.child1_id = ? THEN cn.child2_id ELSE cn.child1_id END
		WHERE cn.status = 'active' AND (cn.child1_id = ? OR cn.child2_id = ?)
		ORDER BY c.created_at ASC, c.id ASC
	`
	return s.queryChildren(ctx, "list connected children", q, childID, childID, childID)
}

func (s *Store) ListConnections(ctx context.Context, parentID string) ([]domain.ConnectionView, error) {
	const q = `
		SELECT cn.id, cn.status, cn.created_at,
		       m.id, m.name, o.id, o.name,
		       u.id, u.username, u.family_name
		FROM connections cn
		JOIN children m ON m.id IN (cn.child1_id, cn.child2_id) AND m.parent_id = ?
		JOIN children o ON o.id IN (cn.child1_id, cn.child2_id) AND o.id <> m.id
		JOIN users u ON u.id = o.parent_id
		WHERE cn.status = 'active'
		ORDER BY cn.created_at DESC, cn.id DESC
	`
	rows, err := s.db.QueryContext(ctx, q, parentID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	out := []domain.ConnectionView{}
	for rows.Next() {
		var (
			v          domain.ConnectionView
			familyName sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Status, &v.CreatedAt,
			&v.MyChild.ID, &v.MyChild.Name, &v.OtherChild.ID, &v.OtherChild.Name,
			&v.OtherParent.ID, &v.OtherParent.Username, &familyName); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		v.OtherParent.FamilyName = familyName.String
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return out, nil
}

func (s *Store) SetConnectionStatus(ctx context.Context, id string, status domain.ConnectionStatus) error {
	return s.exec(ctx, "set connection status", `UPDATE connections SET status = ? WHERE id = ?`, status, id)
}
