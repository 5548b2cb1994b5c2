package httpapi

import (
	"net/http"
	"strings"

	"Playdatewebserver/internal/domain"
)

type createActivityRequest struct {
	ChildID         string   `json:"child_id" validate:"required"`
	Name            string   `json:"name" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=4000"`
	StartDate       string   `json:"start_date" validate:"required"`
	EndDate         string   `json:"end_date"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	Location        string   `json:"location" validate:"max=500"`
	WebsiteURL      string   `json:"website_url" validate:"omitempty,url,max=2000"`
	Cost            *float64 `json:"cost" validate:"omitempty,gte=0"`
	MaxParticipants *int     `json:"max_participants" validate:"omitempty,gte=1"`

	JointHostChildren []string `json:"joint_host_children" validate:"max=20"`
	IsRecurring       bool     `json:"is_recurring"`
	RecurringDays     []string `json:"recurring_days" validate:"max=7"`
	SeriesStartDate   string   `json:"series_start_date"`

	AutoNotify        bool     `json:"auto_notify"`
	InviteTargets     []string `json:"invite_targets" validate:"max=100"`
	InvitationMessage string   `json:"invitation_message" validate:"max=500"`
}

func (a *api) handleActivitiesCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req createActivityRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	out, err := a.activitiesSvc.Create(r.Context(), u.ID, strings.TrimSpace(req.ChildID), domain.ActivityInput{
		Name:              req.Name,
		Description:       req.Description,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Location:          req.Location,
		WebsiteURL:        req.WebsiteURL,
		Cost:              req.Cost,
		MaxParticipants:   req.MaxParticipants,
		JointHostChildIDs: req.JointHostChildren,
		IsRecurring:       req.IsRecurring,
		RecurringDays:     req.RecurringDays,
		SeriesStartDate:   req.SeriesStartDate,
		AutoNotify:        req.AutoNotify,
		Targets:           parseInviteTargets(req.InviteTargets),
		InvitationMessage: req.InvitationMessage,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, out)
}

// parseInviteTargets turns wire targets into tagged targets. An entry is a
// child id, or "pending-<parentId>" for a parent not yet connected.
func parseInviteTargets(raw []string) []domain.InviteTarget {
	out := make([]domain.InviteTarget, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if t, ok := domain.ParsePendingKey(s); ok {
			out = append(out, t)
			continue
		}
		out = append(out, domain.ConnectedTarget(s))
	}
	return out
}

func (a *api) handleActivitiesList(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.activitiesSvc.Calendar(r.Context(), u.ID, dateRange(r))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	if childID := strings.TrimSpace(r.URL.Query().Get("child_id")); childID != "" {
		kept := out[:0]
		for _, c := range out {
			if c.ChildID == childID {
				kept = append(kept, c)
			}
		}
		out = kept
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleActivitiesGet(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.activitiesSvc.Get(r.Context(), u.ID, pathID(r))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

type updateActivityRequest struct {
	Name            *string  `json:"name" validate:"omitempty,max=200"`
	Description     *string  `json:"description" validate:"omitempty,max=4000"`
	StartDate       *string  `json:"start_date"`
	EndDate         *string  `json:"end_date"`
	StartTime       *string  `json:"start_time"`
	EndTime         *string  `json:"end_time"`
	Location        *string  `json:"location" validate:"omitempty,max=500"`
	WebsiteURL      *string  `json:"website_url" validate:"omitempty,max=2000"`
	Cost            *float64 `json:"cost" validate:"omitempty,gte=0"`
	MaxParticipants *int     `json:"max_participants" validate:"omitempty,gte=1"`
}

func (a *api) handleActivitiesUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req updateActivityRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	out, err := a.activitiesSvc.Update(r.Context(), u.ID, pathID(r), domain.ActivityPatch{
		Name:            req.Name,
		Description:     req.Description,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Location:        req.Location,
		WebsiteURL:      req.WebsiteURL,
		Cost:            req.Cost,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleActivitiesDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	id := pathID(r)
	if err := a.activitiesSvc.Delete(r.Context(), u.ID, id); err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteDeleted(w, id)
}

type duplicateActivityRequest struct {
	ChildID   string `json:"child_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (a *api) handleActivitiesDuplicate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req duplicateActivityRequest
	if !a.decodeBody(w, r, &req, true) {
		return
	}

	out, err := a.activitiesSvc.Duplicate(r.Context(), u.ID, pathID(r), domain.DuplicateInput{
		ChildID:   strings.TrimSpace(req.ChildID),
		StartDate: strings.TrimSpace(req.StartDate),
		EndDate:   strings.TrimSpace(req.EndDate),
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, out)
}

func dateRange(r *http.Request) domain.DateRange {
	q := r.URL.Query()
	return domain.DateRange{
		From: strings.TrimSpace(q.Get("start")),
		To:   strings.TrimSpace(q.Get("end")),
	}
}

func (a *api) handleCalendarActivities(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.activitiesSvc.Calendar(r.Context(), u.ID, dateRange(r))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleCalendarConnected(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.activitiesSvc.ConnectedCalendar(r.Context(), u.ID, dateRange(r))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleCalendarInvited(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.activitiesSvc.InvitedCalendar(r.Context(), u.ID, dateRange(r), r.URL.Query().Get("status"))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}
