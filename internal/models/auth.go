package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RegisterRequest is a self-service signup into a tenant. The resulting
// account stays pending until an admin approves it.
type RegisterRequest struct {
	TenantID  string   `json:"tenant_id" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=8"`
	FullName  string   `json:"full_name" validate:"required"`
	Role      UserRole `json:"role" validate:"required,oneof=HR FACULTY EMPLOYEE STUDENT"`
	IP        string   `json:"-"`
	UserAgent string   `json:"-"`
}

// RegisterResponse acknowledges a pending registration.
type RegisterResponse struct {
	UserID     string     `json:"user_id"`
	ApprovalID string     `json:"approval_id"`
	Status     UserStatus `json:"status"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID         string      `json:"id"`
	Email      string      `json:"email"`
	FullName   string      `json:"full_name"`
	Role       UserRole    `json:"role"`
	TenantID   *string     `json:"tenant_id,omitempty"`
	TenantType *TenantType `json:"tenant_type,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID     string     `json:"user_id"`
	Role       UserRole   `json:"role"`
	Email      string     `json:"email"`
	TenantID   string     `json:"tenant_id,omitempty"`
	TenantType TenantType `json:"tenant_type,omitempty"`
	jwt.RegisteredClaims
}
