package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"Playdatewebserver/internal/auth"
	"Playdatewebserver/internal/domain"
)

type stubUsersStore struct {
	t *testing.T

	createUserFunc      func(context.Context, domain.NewUser, time.Time) (domain.User, error)
	getUserByIDFunc     func(context.Context, string) (domain.User, error)
	getUserByEmailFunc  func(context.Context, string) (domain.UserWithPassword, error)
	setPasswordHashFunc func(context.Context, string, string, time.Time) error
}

func (s *stubUsersStore) CreateUser(ctx context.Context, u domain.NewUser, when time.Time) (domain.User, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, u, when)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getUserByIDFunc != nil {
		return s.getUserByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	if s.getUserByEmailFunc != nil {
		return s.getUserByEmailFunc(ctx, email)
	}
	s.t.Fatalf("GetUserByEmail called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string, when time.Time) error {
	if s.setPasswordHashFunc != nil {
		return s.setPasswordHashFunc(ctx, userID, passwordHash, when)
	}
	s.t.Fatalf("SetPasswordHash called unexpectedly")
	return errors.New("unexpected call")
}

func newTestAuthService(users UsersStore) *AuthService {
	return &AuthService{
		Users:  users,
		Tokens: auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour),
		Now:    func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
	}
}

func TestAuthService_RegisterNormalizesAndIssuesToken(t *testing.T) {
	var created domain.NewUser
	users := &stubUsersStore{
		t: t,
		createUserFunc: func(_ context.Context, u domain.NewUser, _ time.Time) (domain.User, error) {
			created = u
			return domain.User{ID: "u1", Username: u.Username, Email: u.Email, Role: u.Role, IsActive: true}, nil
		},
	}
	svc := newTestAuthService(users)

	sess, err := svc.Register(context.Background(), RegisterParams{
		Username: "  parent1 ",
		Email:    " P1@Example.COM ",
		Password: "long enough",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if created.Email != "p1@example.com" || created.Username != "parent1" || created.Role != domain.RoleUser {
		t.Fatalf("unexpected create params: %+v", created)
	}
	if created.PasswordHash == "" || created.PasswordHash == "long enough" {
		t.Fatalf("expected password to be hashed")
	}
	if sess.Token == "" || sess.User.ID != "u1" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	claims, err := svc.Tokens.Parse(sess.Token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "p1@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := newTestAuthService(&stubUsersStore{t: t})

	_, err := svc.Register(context.Background(), RegisterParams{Username: "x", Email: "nope", Password: "short"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, f := range []string{"username", "email", "password"} {
		if ve.Fields[f] == "" {
			t.Fatalf("expected %s field error, got %+v", f, ve.Fields)
		}
	}
}

func TestAuthService_LoginUnknownEmail(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(context.Context, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
	}
	svc := newTestAuthService(users)

	if _, err := svc.Login(context.Background(), "missing@example.com", "whatever"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_LoginDisabledUser(t *testing.T) {
	hash, err := auth.HashPassword("correct password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(context.Context, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{User: domain.User{ID: "u1", IsActive: false}, PasswordHash: hash}, nil
		},
	}
	svc := newTestAuthService(users)

	if _, err := svc.Login(context.Background(), "p1@example.com", "correct password"); !errors.Is(err, domain.ErrUserDisabled) {
		t.Fatalf("expected ErrUserDisabled, got %v", err)
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("correct password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(context.Context, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{User: domain.User{ID: "u1", IsActive: true}, PasswordHash: hash}, nil
		},
	}
	svc := newTestAuthService(users)

	if _, err := svc.Login(context.Background(), "p1@example.com", "wrong password"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	sess, err := svc.Login(context.Background(), "p1@example.com", "correct password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.User.ID != "u1" || sess.Token == "" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestAuthService_UserForToken(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByIDFunc: func(_ context.Context, id string) (domain.User, error) {
			switch id {
			case "active":
				return domain.User{ID: id, IsActive: true}, nil
			case "disabled":
				return domain.User{ID: id}, nil
			}
			return domain.User{}, domain.ErrNotFound
		},
	}
	svc := newTestAuthService(users)

	tokenFor := func(id string) string {
		tok, _, err := svc.Tokens.Issue(domain.User{ID: id})
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		return tok
	}

	if u, err := svc.UserForToken(context.Background(), tokenFor("active")); err != nil || u.ID != "active" {
		t.Fatalf("active: got %+v, %v", u, err)
	}
	if _, err := svc.UserForToken(context.Background(), tokenFor("disabled")); !errors.Is(err, domain.ErrUserDisabled) {
		t.Fatalf("disabled: expected ErrUserDisabled, got %v", err)
	}
	if _, err := svc.UserForToken(context.Background(), tokenFor("gone")); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("gone: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.UserForToken(context.Background(), "garbage"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("garbage: expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	hash, err := auth.HashPassword("old password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	var stored string
	users := &stubUsersStore{
		t: t,
		getUserByIDFunc: func(context.Context, string) (domain.User, error) {
			return domain.User{ID: "u1", Email: "p1@example.com", IsActive: true}, nil
		},
		getUserByEmailFunc: func(context.Context, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{User: domain.User{ID: "u1"}, PasswordHash: hash}, nil
		},
		setPasswordHashFunc: func(_ context.Context, _ string, h string, _ time.Time) error {
			stored = h
			return nil
		},
	}
	svc := newTestAuthService(users)

	if err := svc.ChangePassword(context.Background(), "u1", "not it", "new password"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for wrong current password, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), "u1", "old password", "new password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	ok, err := auth.VerifyPassword(stored, "new password")
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify new password: %v", err)
	}
}
