package postgres

import (
	"context"
	"fmt"

	"Playdatewebserver/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FailuresStore struct {
	pool *pgxpool.Pool
}

func NewFailuresStore(pool *pgxpool.Pool) *FailuresStore {
	return &FailuresStore{pool: pool}
}

func (s *FailuresStore) RecordFailure(ctx context.Context, f domain.SideEffectFailure) (domain.SideEffectFailure, error) {
	const q = `
		INSERT INTO side_effect_failures (kind, activity_id, reference, error, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var idUUID pgtype.UUID
	err := s.pool.QueryRow(ctx, q, f.Kind, nullIfEmpty(f.ActivityID), nullIfEmpty(f.Reference), f.Error, f.CreatedAt).Scan(&idUUID)
	if err != nil {
		return domain.SideEffectFailure{}, fmt.Errorf("record side effect failure: %w", err)
	}
	f.ID = uuidOrEmpty(idUUID)
	return f, nil
}

func (s *FailuresStore) ListFailures(ctx context.Context, limit, offset int) ([]domain.SideEffectFailure, error) {
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
		LIMIT $1 OFFSET $2
	`

	rows, err := s.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list side effect failures: %w", err)
	}
	defer rows.Close()

	out := []domain.SideEffectFailure{}
	for rows.Next() {
		var (
			f                     domain.SideEffectFailure
			idUUID                pgtype.UUID
			activityID, reference pgtype.Text
		)
		if err := rows.Scan(&idUUID, &f.Kind, &activityID, &reference, &f.Error, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan side effect failure: %w", err)
		}
		f.ID = uuidOrEmpty(idUUID)
		f.ActivityID = textOrEmpty(activityID)
		f.Reference = textOrEmpty(reference)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list side effect failures: %w", err)
	}
	return out, nil
}

func (s *FailuresStore) DeleteFailure(ctx context.Context, id string) error {
	if !validIDs(id) {
		return domain.ErrNotFound
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM side_effect_failures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete side effect failure: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
