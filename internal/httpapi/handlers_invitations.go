package httpapi

import (
	"net/http"
	"strings"

	"Playdatewebserver/internal/domain"
	"Playdatewebserver/internal/service"
)

type inviteRequest struct {
	InvitedParentID string `json:"invited_parent_id" validate:"required"`
	ChildID         string `json:"child_id" validate:"required"`
	Message         string `json:"message" validate:"max=500"`
}

func (a *api) handleActivitiesInvite(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req inviteRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	out, err := a.invitationsSvc.Invite(r.Context(), u.ID, pathID(r), service.InviteInput{
		InvitedParentID: strings.TrimSpace(req.InvitedParentID),
		ChildID:         strings.TrimSpace(req.ChildID),
		Message:         req.Message,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, out)
}

type pendingInvitationsRequest struct {
	PendingConnections []string `json:"pending_connections" validate:"required,min=1,max=100"`
	Message            string   `json:"message" validate:"max=500"`
}

func (a *api) handleActivitiesPendingInvitations(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req pendingInvitationsRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	out, err := a.invitationsSvc.AddPending(r.Context(), u.ID, pathID(r), parseInviteTargets(req.PendingConnections), req.Message)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, out)
}

func (a *api) handleActivitiesInvitations(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.invitationsSvc.ListForActivity(r.Context(), u.ID, pathID(r))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleInvitationsReceived(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.invitationsSvc.ListReceived(r.Context(), u.ID, strings.TrimSpace(r.URL.Query().Get("status")))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleInvitationsSent(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.invitationsSvc.ListSent(r.Context(), u.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleInvitationsAccept(w http.ResponseWriter, r *http.Request) {
	a.respondInvitation(w, r, domain.InvitationAccepted)
}

func (a *api) handleInvitationsReject(w http.ResponseWriter, r *http.Request) {
	a.respondInvitation(w, r, domain.InvitationRejected)
}

func (a *api) respondInvitation(w http.ResponseWriter, r *http.Request, status domain.InvitationStatus) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.invitationsSvc.Respond(r.Context(), u.ID, pathID(r), status)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}
