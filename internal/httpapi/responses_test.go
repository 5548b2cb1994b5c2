package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"Playdatewebserver/internal/domain"
)

func TestWriteDomainError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		code     string
		handled  bool
		checkMsg string
	}{
		{name: "validation", err: domain.NewValidationError(map[string]string{"name": "is required"}), status: http.StatusBadRequest, code: "validation_error", handled: true},
		{name: "conflict", err: domain.ErrConnectionExists, status: http.StatusConflict, code: "connection_exists", handled: true, checkMsg: "children are already connected"},
		{name: "wrapped conflict", err: fmt.Errorf("create: %w", domain.ErrEmailTaken), status: http.StatusConflict, code: "email_taken", handled: true},
		{name: "credentials", err: domain.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials", handled: true},
		{name: "unauthorized", err: domain.ErrUnauthorized, status: http.StatusUnauthorized, code: "unauthorized", handled: true},
		{name: "forbidden", err: domain.ErrForbidden, status: http.StatusForbidden, code: "forbidden", handled: true},
		{name: "disabled", err: domain.ErrUserDisabled, status: http.StatusForbidden, code: "user_disabled", handled: true},
		{name: "not found", err: fmt.Errorf("get: %w", domain.ErrNotFound), status: http.StatusNotFound, code: "not_found", handled: true},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error", handled: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			if got := WriteDomainError(rr, tc.err); got != tc.handled {
				t.Fatalf("handled = %v, want %v", got, tc.handled)
			}
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			env := decodeEnvelope(t, rr)
			if env.Success {
				t.Fatalf("expected success=false")
			}
			if env.Code != tc.code {
				t.Fatalf("code = %q, want %q", env.Code, tc.code)
			}
			if tc.checkMsg != "" && env.Error != tc.checkMsg {
				t.Fatalf("error = %q, want %q", env.Error, tc.checkMsg)
			}
		})
	}
}

func TestWriteDomainErrorIncludesFields(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteDomainError(rr, domain.NewValidationError(map[string]string{"start_date": "must be YYYY-MM-DD"}))

	env := decodeEnvelope(t, rr)
	if env.Fields["start_date"] != "must be YYYY-MM-DD" {
		t.Fatalf("unexpected fields: %+v", env.Fields)
	}
}

func TestWriteDataEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteData(rr, http.StatusOK, map[string]string{"status": "ok"})

	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type: %q", ct)
	}
	env := decodeEnvelope(t, rr)
	if !env.Success || string(env.Data) != `{"status":"ok"}` {
		t.Fatalf("unexpected envelope: success=%v data=%s", env.Success, env.Data)
	}
}
