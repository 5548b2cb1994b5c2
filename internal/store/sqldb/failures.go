package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"Playdatewebserver/internal/domain"
)

func (s *Store) RecordFailure(ctx context.Context, f domain.SideEffectFailure) (domain.SideEffectFailure, error) {
	f.ID = s.newID()
	const q = `
		INSERT INTO side_effect_failures (id, kind, activity_id, reference, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, q, f.ID, f.Kind, nullString(f.ActivityID), nullString(f.Reference), f.Error, f.CreatedAt); err != nil {
		return domain.SideEffectFailure{}, fmt.Errorf("record side effect failure: %w", err)
	}
	return f, nil
}

func (s *Store) ListFailures(ctx context.Context, limit, offset int) ([]domain.SideEffectFailure, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT id, kind, activity_id, reference, error, created_at
		FROM side_effect_failures
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list side effect failures: %w", err)
	}
	defer rows.Close()

	out := []domain.SideEffectFailure{}
	for rows.Next() {
		var (
			f                     domain.SideEffectFailure
			activityID, reference sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Kind, &activityID, &reference, &f.Error, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan side effect failure: %w", err)
		}
		f.ActivityID = activityID.String
		f.Reference = reference.String
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list side effect failures: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteFailure(ctx context.Context, id string) error {
	return s.exec(ctx, "delete side effect failure", `DELETE FROM side_effect_failures WHERE id = ?`, id)
}
