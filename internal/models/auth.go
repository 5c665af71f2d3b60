package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PrincipalRole is resolved once at authentication time and passed
// explicitly to authorization checks.
type PrincipalRole string

const (
	RoleAdmin    PrincipalRole = "ADMIN"
	RoleStaff    PrincipalRole = "STAFF"
	RoleGuardian PrincipalRole = "GUARDIAN"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string        `db:"id" json:"id"`
	Email        string        `db:"email" json:"email"`
	PasswordHash string        `db:"password_hash" json:"-"`
	FullName     string        `db:"full_name" json:"full_name"`
	Role         PrincipalRole `db:"role" json:"role"`
	Active       bool          `db:"active" json:"active"`
	LastLogin    *time.Time    `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// JWTClaims carries the authenticated principal inside access tokens.
type JWTClaims struct {
	UserID string        `json:"uid"`
	Role   PrincipalRole `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest carries a password rotation for the current user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   int64         `json:"expires_in"`
	UserID      string        `json:"user_id"`
	Role        PrincipalRole `json:"role"`
	IssuedAt    time.Time     `json:"issued_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
