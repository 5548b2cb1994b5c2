package postgres

import (
	"context"
	"errors"
	"fmt"

	"Playdatewebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivitiesStore struct {
	pool *pgxpool.Pool
}

func NewActivitiesStore(pool *pgxpool.Pool) *ActivitiesStore {
	return &ActivitiesStore{pool: pool}
}

const activityColumns = `
	a.id, a.child_id, a.name, a.description,
	to_char(a.start_date, 'YYYY-MM-DD'), to_char(a.end_date, 'YYYY-MM-DD'),
	a.start_time, a.end_time, a.location, a.website_url,
	a.cost::float8, a.max_participants, a.series_id, a.is_recurring, a.recurring_days,
	a.created_at, a.updated_at`

type activityRow struct {
	a               domain.Activity
	id, childID     pgtype.UUID
	seriesID        pgtype.UUID
	description     pgtype.Text
	startTime       pgtype.Text
	endTime         pgtype.Text
	location        pgtype.Text
	websiteURL      pgtype.Text
	cost            pgtype.Float8
	maxParticipants pgtype.Int4
	recurringDays   pgtype.FlatArray[string]
}

func (r *activityRow) dest() []any {
	return []any{
		&r.id, &r.childID, &r.a.Name, &r.description,
		&r.a.StartDate, &r.a.EndDate,
		&r.startTime, &r.endTime, &r.location, &r.websiteURL,
		&r.cost, &r.maxParticipants, &r.seriesID, &r.a.IsRecurring, &r.recurringDays,
		&r.a.CreatedAt, &r.a.UpdatedAt,
	}
}

func (r *activityRow) activity() domain.Activity {
	r.a.ID = uuidOrEmpty(r.id)
	r.a.ChildID = uuidOrEmpty(r.childID)
	r.a.SeriesID = uuidOrEmpty(r.seriesID)
	r.a.Description = textOrEmpty(r.description)
	r.a.StartTime = textOrEmpty(r.startTime)
	r.a.EndTime = textOrEmpty(r.endTime)
	r.a.Location = textOrEmpty(r.location)
	r.a.WebsiteURL = textOrEmpty(r.websiteURL)
	r.a.Cost = float8Ptr(r.cost)
	r.a.MaxParticipants = int4Ptr(r.maxParticipants)
	r.a.RecurringDays = textArrayOrEmpty(r.recurringDays)
	return r.a
}

// CreateActivities inserts a batch in one transaction; either every row of a
// series lands or none does.
func (s *ActivitiesStore) CreateActivities(ctx context.Context, rows []domain.Activity) ([]domain.Activity, error) {
	for _, a := range rows {
		if !validIDs(a.ChildID) {
			return nil, domain.ErrNotFound
		}
	}

	const q = `
		INSERT INTO activities AS a (
			child_id, name, description, start_date, end_date, start_time, end_time,
			location, website_url, cost, max_participants, series_id, is_recurring, recurring_days,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + activityColumns

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin create activities: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]domain.Activity, 0, len(rows))
	for _, a := range rows {
		var row activityRow
		err := tx.QueryRow(ctx, q,
			a.ChildID, a.Name, nullIfEmpty(a.Description), a.StartDate, a.EndDate,
			nullIfEmpty(a.StartTime), nullIfEmpty(a.EndTime), nullIfEmpty(a.Location), nullIfEmpty(a.WebsiteURL),
			a.Cost, a.MaxParticipants, nullIfEmpty(a.SeriesID), a.IsRecurring, recurringDaysArg(a.RecurringDays),
			a.CreatedAt, a.UpdatedAt,
		).Scan(row.dest()...)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, domain.ErrNotFound
			}
			return nil, fmt.Errorf("create activity: %w", err)
		}
		out = append(out, row.activity())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create activities: %w", err)
	}
	return out, nil
}

func recurringDaysArg(days []string) any {
	if len(days) == 0 {
		return nil
	}
	return days
}

func (s *ActivitiesStore) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	if !validIDs(id) {
		return domain.Activity{}, domain.ErrNotFound
	}
	const q = `SELECT ` + activityColumns + ` FROM activities a WHERE a.id = $1`

	var row activityRow
	if err := s.pool.QueryRow(ctx, q, id).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Activity{}, domain.ErrNotFound
		}
		return domain.Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return row.activity(), nil
}

// UpdateActivity rewrites the editable fields. Host, series membership and
// created_at are fixed after insert.
func (s *ActivitiesStore) UpdateActivity(ctx context.Context, a domain.Activity) (domain.Activity, error) {
	if !validIDs(a.ID) {
		return domain.Activity{}, domain.ErrNotFound
	}
	const q = `
		UPDATE activities AS a
		SET name = $2, description = $3, start_date = $4, end_date = $5,
		    start_time = $6, end_time = $7, location = $8, website_url = $9,
		    cost = $10, max_participants = $11, updated_at = $12
		WHERE a.id = $1
		RETURNING ` + activityColumns

	var row activityRow
	err := s.pool.QueryRow(ctx, q,
		a.ID, a.Name, nullIfEmpty(a.Description), a.StartDate, a.EndDate,
		nullIfEmpty(a.StartTime), nullIfEmpty(a.EndTime), nullIfEmpty(a.Location), nullIfEmpty(a.WebsiteURL),
		a.Cost, a.MaxParticipants, a.UpdatedAt,
	).Scan(row.dest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Activity{}, domain.ErrNotFound
		}
		return domain.Activity{}, fmt.Errorf("update activity: %w", err)
	}
	return row.activity(), nil
}

func (s *ActivitiesStore) DeleteActivity(ctx context.Context, id string) error {
	if !validIDs(id) {
		return domain.ErrNotFound
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const calendarColumns = activityColumns + `, hc.name, hc.parent_id, hu.username`

const calendarJoins = `
	JOIN children hc ON hc.id = a.child_id
	JOIN users hu ON hu.id = hc.parent_id
`

const calendarRange = `
	AND ($2::date IS NULL OR a.end_date >= $2::date)
	AND ($3::date IS NULL OR a.start_date <= $3::date)
`

const calendarOrder = `
	ORDER BY a.start_date ASC, a.start_time ASC NULLS FIRST, a.created_at ASC, a.id ASC
`

func (s *ActivitiesStore) ListActivitiesForParent(ctx context.Context, parentID string, r domain.DateRange) ([]domain.CalendarActivity, error) {
	if !validIDs(parentID) {
		return []domain.CalendarActivity{}, nil
	}
	const q = `
		SELECT ` + calendarColumns + `, NULL::uuid, NULL::text
		FROM activities a` + calendarJoins + `
		WHERE hc.parent_id = $1` + calendarRange + calendarOrder

	return s.listCalendar(ctx, "list activities", q, parentID, nullIfEmpty(r.From), nullIfEmpty(r.To))
}

// ListConnectedActivities returns activities hosted by children connected to
// any of parentID's children, minus those the parent already turned down.
func (s *ActivitiesStore) ListConnectedActivities(ctx context.Context, parentID string, r domain.DateRange) ([]domain.CalendarActivity, error) {
	if !validIDs(parentID) {
		return []domain.CalendarActivity{}, nil
	}
	const q = `
		WITH mine AS (
			SELECT id FROM children WHERE parent_id = $1
		), linked AS (
			SELECT DISTINCT CASE
				WHEN cn.child1_id IN (SELECT id FROM mine) THEN cn.child2_id
				ELSE cn.child1_id
			END AS child_id
			FROM connections cn
			WHERE cn.status = 'active'
			  AND (cn.child1_id IN (SELECT id FROM mine) OR cn.child2_id IN (SELECT id FROM mine))
		)
		SELECT ` + calendarColumns + `, i.id, i.status
		FROM activities a` + calendarJoins + `
		LEFT JOIN activity_invitations i ON i.activity_id = a.id AND i.invited_parent_id = $1
		WHERE a.child_id IN (SELECT child_id FROM linked)
		  AND hc.parent_id <> $1
		  AND (i.status IS NULL OR i.status <> 'rejected')` + calendarRange + calendarOrder

	return s.listCalendar(ctx, "list connected activities", q, parentID, nullIfEmpty(r.From), nullIfEmpty(r.To))
}

func (s *ActivitiesStore) ListInvitedActivities(ctx context.Context, parentID string, r domain.DateRange, statuses []domain.InvitationStatus) ([]domain.CalendarActivity, error) {
	if !validIDs(parentID) || len(statuses) == 0 {
		return []domain.CalendarActivity{}, nil
	}
	const q = `
		SELECT ` + calendarColumns + `, i.id, i.status
		FROM activity_invitations i
		JOIN activities a ON a.id = i.activity_id` + calendarJoins + `
		WHERE i.invited_parent_id = $1
		  AND i.status = ANY($4)` + calendarRange + calendarOrder

	want := make([]string, 0, len(statuses))
	for _, st := range statuses {
		want = append(want, string(st))
	}
	return s.listCalendar(ctx, "list invited activities", q, parentID, nullIfEmpty(r.From), nullIfEmpty(r.To), want)
}

func (s *ActivitiesStore) listCalendar(ctx context.Context, op, q string, args ...any) ([]domain.CalendarActivity, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.CalendarActivity{}
	for rows.Next() {
		var (
			row          activityRow
			hostParentID pgtype.UUID
			invID        pgtype.UUID
			invStatus    pgtype.Text
			c            domain.CalendarActivity
		)
		dest := append(row.dest(), &c.HostChildName, &hostParentID, &c.HostParentName, &invID, &invStatus)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan calendar activity: %w", err)
		}
		c.Activity = row.activity()
		c.HostParentID = uuidOrEmpty(hostParentID)
		c.InvitationID = uuidOrEmpty(invID)
		c.InvitationStatus = domain.InvitationStatus(textOrEmpty(invStatus))
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
