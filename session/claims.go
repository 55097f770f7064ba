package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the validated content of a session token
type Claims struct {
	SubjectID string    `json:"sub"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	RoleID    *int      `json:"role_id,omitempty"`
	RoleName  string    `json:"role,omitempty"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// HasRole reports whether the token carries one of the given role names.
// Comparison ignores case.
func (c *Claims) HasRole(roles ...string) bool {
	if c == nil || c.RoleName == "" {
		return false
	}
	for _, role := range roles {
		if strings.EqualFold(c.RoleName, role) {
			return true
		}
	}
	return false
}

// tokenClaims is the JWT body of a session token
type tokenClaims struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	RoleID *int   `json:"role_id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (tc *tokenClaims) toClaims() *Claims {
	claims := &Claims{
		SubjectID: tc.Subject,
		Email:     tc.Email,
		Name:      tc.Name,
		RoleID:    tc.RoleID,
		RoleName:  tc.Role,
		TokenID:   tc.ID,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims
}
