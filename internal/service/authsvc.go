package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"Playdatewebserver/internal/auth"
	"Playdatewebserver/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, u domain.NewUser, when time.Time) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	SetPasswordHash(ctx context.Context, userID, passwordHash string, when time.Time) error
}

type AuthService struct {
	Users  UsersStore
	Tokens *auth.TokenIssuer
	Logger *zap.Logger
	Now    func() time.Time
}

type RegisterParams struct {
	Username   string
	Email      string
	Password   string
	Phone      string
	FamilyName string
}

// Session is an issued bearer token together with its owner.
type Session struct {
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

const minPasswordLen = 8

func (s *AuthService) Register(ctx context.Context, p RegisterParams) (Session, error) {
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	p.Username = strings.TrimSpace(p.Username)
	p.Phone = strings.TrimSpace(p.Phone)
	p.FamilyName = strings.TrimSpace(p.FamilyName)

	fields := map[string]string{}
	if msg := validateUsername(p.Username); msg != "" {
		fields["username"] = msg
	}
	if _, err := mail.ParseAddress(p.Email); err != nil || p.Email == "" {
		fields["email"] = "must be a valid email address"
	}
	if utf8.RuneCountInString(p.Password) < minPasswordLen {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) > 0 {
		return Session{}, domain.NewValidationError(fields)
	}

	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return Session{}, err
	}

	u, err := s.Users.CreateUser(ctx, domain.NewUser{
		Username:     p.Username,
		Email:        p.Email,
		Phone:        p.Phone,
		FamilyName:   p.FamilyName,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}, now(s.Now))
	if err != nil {
		return Session{}, err
	}
	return s.issue(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, domain.ErrInvalidCredentials
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, domain.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !u.IsActive {
		return Session{}, domain.ErrUserDisabled
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, domain.ErrInvalidCredentials
	}

	if auth.NeedsRehash(u.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := s.Users.SetPasswordHash(ctx, u.ID, hash, now(s.Now)); err != nil {
				logger(s.Logger).Warn("rehash password", zap.String("user_id", u.ID), zap.Error(err))
			}
		}
	}

	return s.issue(u.User)
}

// UserForToken resolves a bearer token to an active user.
func (s *AuthService) UserForToken(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return domain.User{}, domain.ErrUnauthorized
	}

	u, err := s.Users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	if !u.IsActive {
		return domain.User{}, domain.ErrUserDisabled
	}
	return u, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if utf8.RuneCountInString(next) < minPasswordLen {
		return domain.NewValidationError(map[string]string{"new_password": "must be at least 8 characters"})
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	withHash, err := s.Users.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return err
	}
	ok, err := auth.VerifyPassword(withHash.PasswordHash, current)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewValidationError(map[string]string{"current_password": "is incorrect"})
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.Users.SetPasswordHash(ctx, userID, hash, now(s.Now))
}

func (s *AuthService) issue(u domain.User) (Session, error) {
	token, exp, err := s.Tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token, ExpiresAt: exp}, nil
}

func validateUsername(name string) string {
	n := utf8.RuneCountInString(name)
	if n < 3 || n > 32 {
		return "must be 3-32 characters"
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return "contains invalid characters"
		}
	}
	return ""
}

// EnsureSuperAdmin creates the configured super admin unless the email is
// already registered. It reports whether a user was created.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, email, username, password string) (bool, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	_, err := s.Users.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return false, domain.NewValidationError(map[string]string{"password": "must be at least 8 characters"})
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	_, err = s.Users.CreateUser(ctx, domain.NewUser{
		Username:     strings.TrimSpace(username),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
	}, now(s.Now))
	if err != nil {
		return false, err
	}
	return true, nil
}
