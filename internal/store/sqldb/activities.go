package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"Playdatewebserver/internal/domain"
)

const activityColumns = `
	a.id, a.child_id, a.name, a.description, a.start_date, a.end_date,
	a.start_time, a.end_time, a.location, a.website_url,
	a.cost, a.max_participants, a.series_id, a.is_recurring, a.recurring_days,
	a.created_at, a.updated_at`

type activityScan struct {
	a                               domain.Activity
	description, startTime, endTime sql.NullString
	location, websiteURL, seriesID  sql.NullString
	recurringDays                   sql.NullString
	cost                            sql.NullFloat64
	maxParticipants                 sql.NullInt64
}

func (r *activityScan) dest() []any {
	return []any{
		&r.a.ID, &r.a.ChildID, &r.a.Name, &r.description, &r.a.StartDate, &r.a.EndDate,
		&r.startTime, &r.endTime, &r.location, &r.websiteURL,
		&r.cost, &r.maxParticipants, &r.seriesID, &r.a.IsRecurring, &r.recurringDays,
		&r.a.CreatedAt, &r.a.UpdatedAt,
	}
}

func (r *activityScan) activity() domain.Activity {
	r.a.Description = r.description.String
	r.a.StartTime = r.startTime.String
	r.a.EndTime = r.endTime.String
	r.a.Location = r.location.String
	r.a.WebsiteURL = r.websiteURL.String
	r.a.SeriesID = r.seriesID.String
	r.a.RecurringDays = splitDays(r.recurringDays)
	r.a.Cost = floatPtr(r.cost)
	r.a.MaxParticipants = intPtr(r.maxParticipants)
	return r.a
}

// CreateActivities inserts a batch in one transaction; either every row of a
// series lands or none does.
func (s *Store) CreateActivities(ctx context.Context, rows []domain.Activity) ([]domain.Activity, error) {
	const q = `
		INSERT INTO activities (
			id, child_id, name, description, start_date, end_date, start_time, end_time,
			location, website_url, cost, max_participants, series_id, is_recurring, recurring_days,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create activities: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]domain.Activity, 0, len(rows))
	for _, a := range rows {
		a.ID = s.newID()
		_, err := tx.ExecContext(ctx, q,
			a.ID, a.ChildID, a.Name, nullString(a.Description), a.StartDate, a.EndDate,
			nullString(a.StartTime), nullString(a.EndTime), nullString(a.Location), nullString(a.WebsiteURL),
			nullFloat(a.Cost), nullInt(a.MaxParticipants), nullString(a.SeriesID), a.IsRecurring, joinDays(a.RecurringDays),
			a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			if s.dialect.IsForeignKeyViolation(err) {
				return nil, domain.ErrNotFound
			}
			return nil, fmt.Errorf("create activity: %w", err)
		}
		if len(a.RecurringDays) == 0 {
			a.RecurringDays = nil
		}
		out = append(out, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create activities: %w", err)
	}
	return out, nil
}

func (s *Store) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	var row activityScan
	err := s.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities a WHERE a.id = ?`, id).Scan(row.dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Activity{}, domain.ErrNotFound
		}
		return domain.Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return row.activity(), nil
}

// UpdateActivity rewrites the editable fields. Host, series membership and
// created_at are fixed after insert.
func (s *Store) UpdateActivity(ctx context.Context, a domain.Activity) (domain.Activity, error) {
	const q = `
		UPDATE activities
		SET name = ?, description = ?, start_date = ?, end_date = ?,
		    start_time = ?, end_time = ?, location = ?, website_url = ?,
		    cost = ?, max_participants = ?, updated_at = ?
		WHERE id = ?
	`
	err := s.exec(ctx, "update activity", q,
		a.Name, nullString(a.Description), a.StartDate, a.EndDate,
		nullString(a.StartTime), nullString(a.EndTime), nullString(a.Location), nullString(a.WebsiteURL),
		nullFloat(a.Cost), nullInt(a.MaxParticipants), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return domain.Activity{}, err
	}
	return s.GetActivity(ctx, a.ID)
}

func (s *Store) DeleteActivity(ctx context.Context, id string) error {
	return s.exec(ctx, "delete activity", `DELETE FROM activities WHERE id = ?`, id)
}

const calendarColumns = activityColumns + `, hc.name, hc.parent_id, hu.username`

const calendarJoins = `
	JOIN children hc ON hc.id = a.child_id
	JOIN users hu ON hu.id = hc.parent_id
`

// calendarRange takes the range bounds twice each: from, from, to, to.
const calendarRange = `
	AND (? = '' OR a.end_date >= ?)
	AND (? = '' OR a.start_date <= ?)
`

// Both engines sort NULL first in ascending order.
const calendarOrder = `
	ORDER BY a.start_date ASC, a.start_time ASC, a.created_at ASC, a.id ASC
`

func rangeArgs(r domain.DateRange) []any {
	return []any{r.From, r.From, r.To, r.To}
}

func (s *Store) ListActivitiesForParent(ctx context.Context, parentID string, r domain.DateRange) ([]domain.CalendarActivity, error) {
	const q = `
		SELECT ` + calendarColumns + `, NULL, NULL
		FROM activities a` + calendarJoins + `
		WHERE hc.parent_id = ?` + calendarRange + calendarOrder

	args := append([]any{parentID}, rangeArgs(r)...)
	return s.listCalendar(ctx, "list activities", q, args...)
}

// ListConnectedActivities returns activities hosted by children connected to
// any of parentID's children, minus those the parent already turned down.
func (s *Store) ListConnectedActivities(ctx context.Context, parentID string, r domain.DateRange) ([]domain.CalendarActivity, error) {
	const q = `
		WITH mine AS (
			SELECT id FROM children WHERE parent_id = ?
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
		LEFT JOIN activity_invitations i ON i.activity_id = a.id AND i.invited_parent_id = ?
		WHERE a.child_id IN (SELECT child_id FROM linked)
		  AND hc.parent_id <> ?
		  AND (i.status IS NULL OR i.status <> 'rejected')` + calendarRange + calendarOrder

	args := append([]any{parentID, parentID, parentID}, rangeArgs(r)...)
	return s.listCalendar(ctx, "list connected activities", q, args...)
}

func (s *Store) ListInvitedActivities(ctx context.Context, parentID string, r domain.DateRange, statuses []domain.InvitationStatus) ([]domain.CalendarActivity, error) {
	if len(statuses) == 0 {
		return []domain.CalendarActivity{}, nil
	}
	q := `
		SELECT ` + calendarColumns + `, i.id, i.status
		FROM activity_invitations i
		JOIN activities a ON a.id = i.activity_id` + calendarJoins + `
		WHERE i.invited_parent_id = ?
		  AND i.status IN (` + placeholders(len(statuses)) + `)` + calendarRange + calendarOrder

	args := []any{parentID}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	args = append(args, rangeArgs(r)...)
	return s.listCalendar(ctx, "list invited activities", q, args...)
}

func (s *Store) listCalendar(ctx context.Context, op, q string, args ...any) ([]domain.CalendarActivity, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.CalendarActivity{}
	for rows.Next() {
		var (
			row              activityScan
			invID, invStatus sql.NullString
			c                domain.CalendarActivity
		)
		dest := append(row.dest(), &c.HostChildName, &c.HostParentID, &c.HostParentName, &invID, &invStatus)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan calendar activity: %w", err)
		}
		c.Activity = row.activity()
		c.InvitationID = invID.String
		c.InvitationStatus = domain.InvitationStatus(invStatus.String)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
