package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Playdatewebserver/internal/domain"
)

// MaxSeriesRows bounds how many rows one create call may expand to.
const MaxSeriesRows = 500

type ActivitiesStore interface {
	CreateActivities(ctx context.Context, rows []domain.Activity) ([]domain.Activity, error)
	GetActivity(ctx context.Context, id string) (domain.Activity, error)
	UpdateActivity(ctx context.Context, a domain.Activity) (domain.Activity, error)
	DeleteActivity(ctx context.Context, id string) error

	ListActivitiesForParent(ctx context.Context, parentID string, r domain.DateRange) ([]domain.CalendarActivity, error)
	// ListConnectedActivities returns activities hosted by children connected
	// to parentID's children, minus those parentID rejected an invitation to.
	ListConnectedActivities(ctx context.Context, parentID string, r domain.DateRange) ([]domain.CalendarActivity, error)
	ListInvitedActivities(ctx context.Context, parentID string, r domain.DateRange, statuses []domain.InvitationStatus) ([]domain.CalendarActivity, error)
}

type ActivitiesService struct {
	Children    ChildLookup
	Activities  ActivitiesStore
	Resolver    *InvitationResolver
	NewSeriesID func() string
	Logger      *zap.Logger
	Now         func() time.Time
}

// Create validates input, expands joint hosts and recurring dates into
// independent rows, stores them and resolves invitations for each row.
func (s *ActivitiesService) Create(ctx context.Context, userID, hostChildID string, in domain.ActivityInput) (domain.CreateActivitiesResult, error) {
	host, err := ownedChild(ctx, s.Children, userID, hostChildID)
	if err != nil {
		return domain.CreateActivitiesResult{}, err
	}

	base := domain.Activity{
		Name:            in.Name,
		Description:     in.Description,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		Location:        in.Location,
		WebsiteURL:      in.WebsiteURL,
		Cost:            in.Cost,
		MaxParticipants: in.MaxParticipants,
	}
	if base.EndDate == "" {
		base.EndDate = base.StartDate
	}
	fields := normalizeActivity(&base)
	if len(in.Targets) > MaxInviteCandidates {
		fields["invite_targets"] = "too many targets"
	}

	hosts, msg := s.jointHosts(ctx, userID, host, in.JointHostChildIDs)
	if msg != "" {
		fields["joint_host_children"] = msg
	}

	var days []time.Weekday
	if in.IsRecurring {
		days, msg = parseRecurringDays(in.RecurringDays)
		if msg != "" {
			fields["recurring_days"] = msg
		}
		if in.SeriesStartDate != "" {
			d, ok := domain.NormalizeDate(in.SeriesStartDate)
			if !ok {
				fields["series_start_date"] = "must be YYYY-MM-DD"
			}
			in.SeriesStartDate = d
		}
	}
	if len(fields) > 0 {
		return domain.CreateActivitiesResult{}, domain.NewValidationError(fields)
	}

	dates := [][2]string{{base.StartDate, base.EndDate}}
	if in.IsRecurring {
		from := in.SeriesStartDate
		if from == "" {
			from = base.StartDate
		}
		dates, msg = occurrences(from, base.EndDate, days, MaxSeriesRows/len(hosts))
		if msg != "" {
			return domain.CreateActivitiesResult{}, domain.NewValidationError(map[string]string{"recurring_days": msg})
		}
		base.IsRecurring = true
		base.RecurringDays = weekdayNames(days)
		if base.StartTime != "" && base.EndTime != "" && base.EndTime < base.StartTime {
			return domain.CreateActivitiesResult{}, domain.NewValidationError(map[string]string{"end_time": "must not be before start_time"})
		}
	}
	if len(hosts)*len(dates) > MaxSeriesRows {
		return domain.CreateActivitiesResult{}, domain.NewValidationError(map[string]string{"joint_host_children": "series is too large"})
	}

	if len(hosts) > 1 || in.IsRecurring {
		base.SeriesID = s.newSeriesID()
	}

	ts := now(s.Now)
	rows := make([]domain.Activity, 0, len(hosts)*len(dates))
	for _, h := range hosts {
		for _, d := range dates {
			row := base
			row.ChildID = h.ID
			row.StartDate, row.EndDate = d[0], d[1]
			row.CreatedAt, row.UpdatedAt = ts, ts
			rows = append(rows, row)
		}
	}

	created, err := s.Activities.CreateActivities(ctx, rows)
	if err != nil {
		return domain.CreateActivitiesResult{}, err
	}

	out := domain.CreateActivitiesResult{
		Activities:  created,
		Invitations: domain.ResolutionSummary{Results: []domain.InvitationResult{}},
	}
	if s.Resolver != nil && (in.AutoNotify || len(in.Targets) > 0) {
		note := strings.TrimSpace(in.InvitationMessage)
		for _, a := range created {
			out.Invitations.Merge(s.Resolver.Resolve(ctx, a, userID, in.Targets, in.AutoNotify, note))
		}
	}
	return out, nil
}

func (s *ActivitiesService) newSeriesID() string {
	if s.NewSeriesID != nil {
		return s.NewSeriesID()
	}
	return uuid.NewString()
}

// jointHosts returns the primary host followed by the distinct co-hosts, all
// of which must belong to userID.
func (s *ActivitiesService) jointHosts(ctx context.Context, userID string, primary domain.Child, ids []string) ([]domain.Child, string) {
	hosts := []domain.Child{primary}
	seen := map[string]bool{primary.ID: true}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		c, err := ownedChild(ctx, s.Children, userID, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, "must be your own children"
			}
			logger(s.Logger).Error("load joint host", zap.String("child_id", id), zap.Error(err))
			return nil, "could not be loaded"
		}
		hosts = append(hosts, c)
	}
	return hosts, ""
}

func (s *ActivitiesService) Get(ctx context.Context, userID, activityID string) (domain.Activity, error) {
	a, _, err := s.owned(ctx, userID, activityID)
	return a, err
}

func (s *ActivitiesService) Update(ctx context.Context, userID, activityID string, p domain.ActivityPatch) (domain.Activity, error) {
	a, _, err := s.owned(ctx, userID, activityID)
	if err != nil {
		return domain.Activity{}, err
	}

	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&a.Name, p.Name)
	setStr(&a.Description, p.Description)
	setStr(&a.StartDate, p.StartDate)
	setStr(&a.EndDate, p.EndDate)
	setStr(&a.StartTime, p.StartTime)
	setStr(&a.EndTime, p.EndTime)
	setStr(&a.Location, p.Location)
	setStr(&a.WebsiteURL, p.WebsiteURL)
	if p.Cost != nil {
		a.Cost = p.Cost
	}
	if p.MaxParticipants != nil {
		a.MaxParticipants = p.MaxParticipants
	}

	if fields := normalizeActivity(&a); len(fields) > 0 {
		return domain.Activity{}, domain.NewValidationError(fields)
	}
	a.UpdatedAt = now(s.Now)
	return s.Activities.UpdateActivity(ctx, a)
}

// Delete removes one row. Other members of its series are untouched.
func (s *ActivitiesService) Delete(ctx context.Context, userID, activityID string) error {
	if _, _, err := s.owned(ctx, userID, activityID); err != nil {
		return err
	}
	return s.Activities.DeleteActivity(ctx, activityID)
}

// Duplicate copies a row as a standalone activity, optionally moved to other
// dates or another of the caller's children.
func (s *ActivitiesService) Duplicate(ctx context.Context, userID, activityID string, in domain.DuplicateInput) (domain.Activity, error) {
	a, _, err := s.owned(ctx, userID, activityID)
	if err != nil {
		return domain.Activity{}, err
	}
	if in.ChildID != "" && in.ChildID != a.ChildID {
		c, err := ownedChild(ctx, s.Children, userID, in.ChildID)
		if err != nil {
			return domain.Activity{}, err
		}
		a.ChildID = c.ID
	}
	if in.StartDate != "" {
		a.StartDate = in.StartDate
		if in.EndDate == "" {
			a.EndDate = in.StartDate
		}
	}
	if in.EndDate != "" {
		a.EndDate = in.EndDate
	}

	a.ID = ""
	a.SeriesID = ""
	a.IsRecurring = false
	a.RecurringDays = nil
	if fields := normalizeActivity(&a); len(fields) > 0 {
		return domain.Activity{}, domain.NewValidationError(fields)
	}
	ts := now(s.Now)
	a.CreatedAt, a.UpdatedAt = ts, ts

	rows, err := s.Activities.CreateActivities(ctx, []domain.Activity{a})
	if err != nil {
		return domain.Activity{}, err
	}
	if len(rows) != 1 {
		return domain.Activity{}, errors.New("duplicate activity: unexpected row count")
	}
	return rows[0], nil
}

func (s *ActivitiesService) Calendar(ctx context.Context, userID string, r domain.DateRange) ([]domain.CalendarActivity, error) {
	r, err := normalizeRange(r)
	if err != nil {
		return nil, err
	}
	return s.Activities.ListActivitiesForParent(ctx, userID, r)
}

func (s *ActivitiesService) ConnectedCalendar(ctx context.Context, userID string, r domain.DateRange) ([]domain.CalendarActivity, error) {
	r, err := normalizeRange(r)
	if err != nil {
		return nil, err
	}
	return s.Activities.ListConnectedActivities(ctx, userID, r)
}

// InvitedCalendar lists activities userID was invited to. Without a status
// filter, pending and accepted invitations are shown.
func (s *ActivitiesService) InvitedCalendar(ctx context.Context, userID string, r domain.DateRange, status string) ([]domain.CalendarActivity, error) {
	r, err := normalizeRange(r)
	if err != nil {
		return nil, err
	}
	statuses := []domain.InvitationStatus{domain.InvitationPending, domain.InvitationAccepted}
	if status != "" {
		st := domain.InvitationStatus(strings.ToLower(strings.TrimSpace(status)))
		if !st.Valid() {
			return nil, domain.NewValidationError(map[string]string{"status": "must be pending, accepted or rejected"})
		}
		statuses = []domain.InvitationStatus{st}
	}
	return s.Activities.ListInvitedActivities(ctx, userID, r, statuses)
}

// owned loads an activity and its host child, hiding both unless userID is
// the host's parent.
func (s *ActivitiesService) owned(ctx context.Context, userID, activityID string) (domain.Activity, domain.Child, error) {
	a, err := s.Activities.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Activity{}, domain.Child{}, err
	}
	c, err := ownedChild(ctx, s.Children, userID, a.ChildID)
	if err != nil {
		return domain.Activity{}, domain.Child{}, err
	}
	return a, c, nil
}

// normalizeActivity trims and canonicalizes a in place and returns the
// invalid fields.
func normalizeActivity(a *domain.Activity) map[string]string {
	fields := map[string]string{}

	a.Name = strings.TrimSpace(a.Name)
	a.Description = strings.TrimSpace(a.Description)
	a.Location = strings.TrimSpace(a.Location)
	a.WebsiteURL = strings.TrimSpace(a.WebsiteURL)

	switch n := utf8.RuneCountInString(a.Name); {
	case n == 0:
		fields["name"] = "is required"
	case n > 200:
		fields["name"] = "must be at most 200 characters"
	}
	if utf8.RuneCountInString(a.Description) > 4000 {
		fields["description"] = "must be at most 4000 characters"
	}
	if a.WebsiteURL != "" {
		if u, err := url.Parse(a.WebsiteURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			fields["website_url"] = "must be an http(s) URL"
		}
	}

	start, okStart := domain.NormalizeDate(a.StartDate)
	if !okStart {
		fields["start_date"] = "must be YYYY-MM-DD"
	}
	end, okEnd := domain.NormalizeDate(a.EndDate)
	if !okEnd {
		fields["end_date"] = "must be YYYY-MM-DD"
	}
	a.StartDate, a.EndDate = start, end
	if okStart && okEnd && end < start {
		fields["end_date"] = "must not be before start_date"
	}

	if a.StartTime != "" {
		t, ok := domain.NormalizeClock(a.StartTime)
		if !ok {
			fields["start_time"] = "must be HH:MM"
		}
		a.StartTime = t
	}
	if a.EndTime != "" {
		t, ok := domain.NormalizeClock(a.EndTime)
		if !ok {
			fields["end_time"] = "must be HH:MM"
		}
		a.EndTime = t
	}
	if okStart && okEnd && start == end && a.StartTime != "" && a.EndTime != "" && a.EndTime < a.StartTime {
		fields["end_time"] = "must not be before start_time"
	}

	if a.Cost != nil && *a.Cost < 0 {
		fields["cost"] = "must not be negative"
	}
	if a.MaxParticipants != nil && *a.MaxParticipants <= 0 {
		fields["max_participants"] = "must be positive"
	}
	return fields
}

func parseRecurringDays(raw []string) ([]time.Weekday, string) {
	if len(raw) == 0 {
		return nil, "is required for recurring activities"
	}
	var set [7]bool
	for _, s := range raw {
		d, ok := domain.ParseWeekday(s)
		if !ok {
			return nil, "unknown weekday " + strings.TrimSpace(s)
		}
		set[d] = true
	}
	days := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if set[d] {
			days = append(days, d)
		}
	}
	return days, ""
}

func weekdayNames(days []time.Weekday) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, domain.WeekdayName(d))
	}
	return out
}

// occurrences lists every date in [from, to] falling on one of days, each as
// a single-day (start, end) pair.
func occurrences(from, to string, days []time.Weekday, limit int) ([][2]string, string) {
	start, err := time.Parse(domain.DateLayout, from)
	if err != nil {
		return nil, "invalid series start"
	}
	end, err := time.Parse(domain.DateLayout, to)
	if err != nil {
		return nil, "invalid series end"
	}
	if end.Before(start) {
		return nil, "series_start_date is after end_date"
	}

	var want [7]bool
	for _, d := range days {
		want[d] = true
	}
	var out [][2]string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !want[d.Weekday()] {
			continue
		}
		if len(out) >= limit {
			return nil, "series is too large"
		}
		s := d.Format(domain.DateLayout)
		out = append(out, [2]string{s, s})
	}
	if len(out) == 0 {
		return nil, "no matching dates in range"
	}
	return out, ""
}

func normalizeRange(r domain.DateRange) (domain.DateRange, error) {
	fields := map[string]string{}
	if r.From != "" {
		d, ok := domain.NormalizeDate(r.From)
		if !ok {
			fields["start"] = "must be YYYY-MM-DD"
		}
		r.From = d
	}
	if r.To != "" {
		d, ok := domain.NormalizeDate(r.To)
		if !ok {
			fields["end"] = "must be YYYY-MM-DD"
		}
		r.To = d
	}
	if len(fields) == 0 && r.From != "" && r.To != "" && r.To < r.From {
		fields["end"] = "must not be before start"
	}
	if len(fields) > 0 {
		return domain.DateRange{}, domain.NewValidationError(fields)
	}
	return r, nil
}
