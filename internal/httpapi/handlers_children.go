package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"Playdatewebserver/internal/domain"
)

type childRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

func (a *api) handleChildrenList(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	out, err := a.childrenSvc.List(r.Context(), u.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, out)
}

func (a *api) handleChildrenCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req childRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	c, err := a.childrenSvc.Create(r.Context(), u.ID, req.Name)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, c)
}

func (a *api) handleChildrenGet(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	c, err := a.childrenSvc.Get(r.Context(), u.ID, pathID(r))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, c)
}

func (a *api) handleChildrenRename(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req childRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	c, err := a.childrenSvc.Rename(r.Context(), u.ID, pathID(r), req.Name)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, c)
}

func (a *api) handleChildrenDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	id := pathID(r)
	if err := a.childrenSvc.Delete(r.Context(), u.ID, id); err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteDeleted(w, id)
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}
