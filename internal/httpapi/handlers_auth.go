package httpapi

import (
	"net/http"
	"strings"
	"time"

	"Playdatewebserver/internal/domain"
	"Playdatewebserver/internal/service"
)

type registerRequest struct {
	Username   string `json:"username" validate:"required,max=32"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Password   string `json:"password" validate:"required,min=8,max=256"`
	Phone      string `json:"phone" validate:"max=32"`
	FamilyName string `json:"family_name" validate:"max=64"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	sess, err := a.authSvc.Register(r.Context(), service.RegisterParams{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Phone:      req.Phone,
		FamilyName: req.FamilyName,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, sess)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decodeBody(w, r, &req, false) {
		return
	}

	now := time.Now()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !a.loginLimiter.Allow("ip:"+clientIP(r), now) || !a.loginLimiter.Allow("email:"+email, now) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	sess, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, sess)
}

func (a *api) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	WriteData(w, http.StatusOK, u)
}
