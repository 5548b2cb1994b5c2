package domain

import "time"

type Activity struct {
	ID              string    `json:"id"`
	ChildID         string    `json:"child_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	StartTime       string    `json:"start_time,omitempty"`
	EndTime         string    `json:"end_time,omitempty"`
	Location        string    `json:"location,omitempty"`
	WebsiteURL      string    `json:"website_url,omitempty"`
	Cost            *float64  `json:"cost,omitempty"`
	MaxParticipants *int      `json:"max_participants,omitempty"`
	SeriesID        string    `json:"series_id,omitempty"`
	IsRecurring     bool      `json:"is_recurring"`
	RecurringDays   []string  `json:"recurring_days,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ActivityInput carries everything needed to create an activity, including
// the joint-host and recurring expansion and the invitation fan-out.
type ActivityInput struct {
	Name            string
	Description     string
	StartDate       string
	EndDate         string
	StartTime       string
	EndTime         string
	Location        string
	WebsiteURL      string
	Cost            *float64
	MaxParticipants *int

	JointHostChildIDs []string
	IsRecurring       bool
	RecurringDays     []string
	SeriesStartDate   string

	AutoNotify        bool
	Targets           []InviteTarget
	InvitationMessage string
}

type ActivityPatch struct {
	Name            *string
	Description     *string
	StartDate       *string
	EndDate         *string
	StartTime       *string
	EndTime         *string
	Location        *string
	WebsiteURL      *string
	Cost            *float64
	MaxParticipants *int
}

type DuplicateInput struct {
	ChildID   string
	StartDate string
	EndDate   string
}

type CreateActivitiesResult struct {
	Activities  []Activity        `json:"activities"`
	Invitations ResolutionSummary `json:"invitations"`
}

// DateRange bounds calendar queries. Empty bounds are open.
type DateRange struct {
	From string
	To   string
}

// Overlaps reports whether [start, end] intersects the range.
func (r DateRange) Overlaps(start, end string) bool {
	if r.From != "" && end < r.From {
		return false
	}
	if r.To != "" && start > r.To {
		return false
	}
	return true
}

// CalendarActivity is an activity annotated for calendar views.
type CalendarActivity struct {
	Activity
	HostChildName    string           `json:"host_child_name"`
	HostParentID     string           `json:"host_parent_id"`
	HostParentName   string           `json:"host_parent_name"`
	InvitationID     string           `json:"invitation_id,omitempty"`
	InvitationStatus InvitationStatus `json:"invitation_status,omitempty"`
}
