package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserDisabled       = errors.New("user_disabled")
	ErrValidation         = errors.New("validation")
	ErrConflict           = errors.New("conflict")
)

// Conflict sentinels. Each one matches ErrConflict under errors.Is.
var (
	ErrEmailTaken              = newConflict("email_taken", "email already registered")
	ErrChildNameTaken          = newConflict("child_name_taken", "a child with this name already exists")
	ErrConnectionExists        = newConflict("connection_exists", "children are already connected")
	ErrRequestExists           = newConflict("request_exists", "a pending connection request already exists")
	ErrInvitationExists        = newConflict("invitation_exists", "parent already invited to this activity")
	ErrPendingInvitationExists = newConflict("pending_invitation_exists", "pending invitation already registered")
)

type ConflictError struct {
	Code    string
	Message string
}

func newConflict(code, message string) *ConflictError {
	return &ConflictError{Code: code, Message: message}
}

func (e *ConflictError) Error() string { return e.Code }

func (e *ConflictError) Unwrap() error { return ErrConflict }

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}
