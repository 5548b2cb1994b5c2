package httpapi

import (
	"net/http"
	"strings"
	"time"

	"Playdatewebserver/internal/domain"
	"Playdatewebserver/internal/service"
)

func (a *api) handleConnectionsList(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.connectionsSvc.ListActive(r.Context(), u.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleConnectionsRemove(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	id := pathID(r)
	if err := a.connectionsSvc.Remove(r.Context(), u.ID, id); err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteDeleted(w, id)
}

type connectionRequestBody struct {
	ChildID        string `json:"child_id" validate:"required"`
	TargetParentID string `json:"target_parent_id"`
	TargetChildID  string `json:"target_child_id"`
	Message        string `json:"message" validate:"max=500"`
}

func (a *api) handleConnectionsRequest(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req connectionRequestBody
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	if a.requestLimiter != nil && !a.requestLimiter.Allow("user:"+u.ID, time.Now()) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many connection requests")
		return
	}

	out, err := a.connectionsSvc.CreateRequest(r.Context(), u.ID, service.ConnectionRequestInput{
		ChildID:        strings.TrimSpace(req.ChildID),
		TargetParentID: strings.TrimSpace(req.TargetParentID),
		TargetChildID:  strings.TrimSpace(req.TargetChildID),
		Message:        req.Message,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, out)
}

func (a *api) handleConnectionsRequests(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.connectionsSvc.ListRequests(r.Context(), u.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

type respondRequestBody struct {
	ChildID string `json:"child_id"`
}

func (a *api) handleConnectionsAccept(w http.ResponseWriter, r *http.Request) {
	a.respondRequest(w, r, domain.ActionAccept)
}

func (a *api) handleConnectionsReject(w http.ResponseWriter, r *http.Request) {
	a.respondRequest(w, r, domain.ActionReject)
}

func (a *api) respondRequest(w http.ResponseWriter, r *http.Request, action domain.RespondAction) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req respondRequestBody
	if !a.decodeBody(w, r, &req, true) {
		return
	}

	out, err := a.connectionsSvc.Respond(r.Context(), u.ID, pathID(r), action, strings.TrimSpace(req.ChildID))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}
