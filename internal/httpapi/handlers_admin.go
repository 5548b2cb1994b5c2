package httpapi

import (
	"net/http"
	"strings"

	"Playdatewebserver/internal/domain"
)

func (a *api) handleAdminUsersList(w http.ResponseWriter, r *http.Request) {
	out, err := a.adminSvc.ListUsers(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin super_admin"`
}

func (a *api) handleAdminUsersRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req setRoleRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	out, err := a.adminSvc.SetRole(r.Context(), actor, pathID(r), domain.Role(strings.TrimSpace(req.Role)))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

type setStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func (a *api) handleAdminUsersStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req setStatusRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	out, err := a.adminSvc.SetActive(r.Context(), actor, pathID(r), *req.IsActive)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleAdminFailuresList(w http.ResponseWriter, r *http.Request) {
	out, err := a.adminSvc.ListFailures(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleAdminFailuresDismiss(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := a.adminSvc.DismissFailure(r.Context(), id); err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteDeleted(w, id)
}
