package models

import "github.com/golang-jwt/jwt/v5"

// Roles known to the API.
const (
	RoleTenant   = "tenant"
	RoleLandlord = "landlord"
	RoleAdmin    = "admin"
)

// UserClaims is the JWT payload issued by the authentication service.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// Caller is the authenticated identity of the current request.
type Caller struct {
	UserID string
	Role   string
}

// Caller extracts the identity carried by the claims.
func (c *UserClaims) Caller() Caller {
	return Caller{UserID: c.UserID, Role: c.Role}
}

// IsKnownRole reports whether role is one of the API roles.
func IsKnownRole(role string) bool {
	return role == RoleTenant || role == RoleLandlord || role == RoleAdmin
}
