package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"Playdatewebserver/internal/domain"
)

type updateProfileRequest struct {
	Username   *string `json:"username" validate:"omitempty,max=32"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
	FamilyName *string `json:"family_name" validate:"omitempty,max=64"`
}

func (a *api) handleUsersMeUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	out, err := a.usersSvc.UpdateProfile(r.Context(), u.ID, domain.ProfileUpdate{
		Username:   req.Username,
		Phone:      req.Phone,
		FamilyName: req.FamilyName,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=256"`
}

func (a *api) handleUsersMePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	if err := a.authSvc.ChangePassword(r.Context(), u.ID, req.CurrentPassword, req.NewPassword); err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, map[string]bool{"updated": true})
}

type deleteAccountRequest struct {
	Confirm bool `json:"confirm" validate:"required"`
}

func (a *api) handleUsersMeDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req deleteAccountRequest
	if !a.decodeBody(w, r, &req, true) {
		return
	}

	if err := a.usersSvc.DeleteAccount(r.Context(), u.ID); err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteDeleted(w, u.ID)
}

func (a *api) handleUsersSearch(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := queryInt(r, "limit", 20)

	out, err := a.usersSvc.Search(r.Context(), q, limit, u.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
