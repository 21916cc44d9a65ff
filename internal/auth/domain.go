package auth

import (
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-desk/internal/rbac"
)

// User is the authenticated desk account as returned by the API.
type User struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Role        string   `json:"role"`
	Department  string   `json:"department"`
	IsApproved  bool     `json:"is_approved"`
	Permissions []string `json:"permissions,omitempty"`
}

// Subject projects the user onto the facts authorization needs.
func (u *User) Subject() *rbac.Subject {
	if u == nil {
		return nil
	}
	return &rbac.Subject{
		ID:         strconv.FormatInt(u.ID, 10),
		Role:       rbac.ParseRole(u.Role),
		Department: u.Department,
		IsApproved: u.IsApproved,
	}
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Permissions = append([]string(nil), u.Permissions...)
	return &cp
}

// Credentials is the login form.
type Credentials struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate carries the editable profile fields. Empty fields are left
// unchanged by the API.
type ProfileUpdate struct {
	FirstName  string `json:"first_name,omitempty" validate:"omitempty,max=150"`
	LastName   string `json:"last_name,omitempty" validate:"omitempty,max=150"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Department string `json:"department,omitempty" validate:"omitempty,max=100"`
}

// PasswordChange is the change-password form.
type PasswordChange struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
	ConfirmPassword string `json:"-" validate:"required,eqfield=NewPassword"`
}

// LoginReply is the login endpoint payload.
type LoginReply struct {
	Token string `json:"token"`
	Key   string `json:"key"`
	User  *User  `json:"user"`
}

// Credential returns whichever token field the API populated.
func (r *LoginReply) Credential() string {
	if r == nil {
		return ""
	}
	if r.Token != "" {
		return r.Token
	}
	return r.Key
}
