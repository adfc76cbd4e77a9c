package types

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Token is one issued bearer credential. A subject may hold several live
// tokens at once (multi-session); logout removes all of them.
type Token struct {
	Value     string    `json:"token"`
	UserID    int64     `json:"-"`
	Role      Role      `json:"-"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// User is an account record. PasswordHash never leaves the auth module.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
}

// UserInfo is the externally visible projection of a User.
type UserInfo struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Active bool   `json:"active"`
}

func (u User) Info() UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Active: u.Active}
}
