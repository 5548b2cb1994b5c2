package postgres

import (
	"context"
	"fmt"
	"strings"

	"Playdatewebserver/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

func (s *UsersStore) SearchUsers(ctx context.Context, q string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	q = strings.TrimSpace(q)
	if q == "" {
		return []domain.UserSummary{}, nil
	}

	like := "%" + escapeLike(q) + "%"
	const query = `
		SELECT id, username, family_name
		FROM users
		WHERE is_active
		  AND ($3::uuid IS NULL OR id <> $3::uuid)
		  AND (username ILIKE $1 OR email ILIKE $1 OR family_name ILIKE $1)
		ORDER BY username ASC
		LIMIT $2
	`

	var exclude any
	if validIDs(excludeUserID) {
		exclude = excludeUserID
	}

	rows, err := s.pool.Query(ctx, query, like, limit, exclude)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	out := []domain.UserSummary{}
	for rows.Next() {
		var (
			idUUID     pgtype.UUID
			username   string
			familyName pgtype.Text
		)
		if err := rows.Scan(&idUUID, &username, &familyName); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, domain.UserSummary{ID: uuidOrEmpty(idUUID), Username: username, FamilyName: textOrEmpty(familyName)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
