package domain

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	FamilyName string    `json:"family_name,omitempty"`
	Role       Role      `json:"role"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type UserWithPassword struct {
	User
	PasswordHash string
}

type NewUser struct {
	Username     string
	Email        string
	Phone        string
	FamilyName   string
	PasswordHash string
	Role         Role
}

type ProfileUpdate struct {
	Username   *string
	Phone      *string
	FamilyName *string
}

type UserSummary struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FamilyName string `json:"family_name,omitempty"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, FamilyName: u.FamilyName}
}

type Child struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChildSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c Child) Summary() ChildSummary { return ChildSummary{ID: c.ID, Name: c.Name} }
