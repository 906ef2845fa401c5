package auth

import (
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
)

// Session is the authenticated caller. It is created per request from a
// verified bearer token and passed explicitly into every core operation.
type Session struct {
	UserID    string
	Role      models.Role
	TokenID   string
	ExpiresAt time.Time
}

// Require returns NotAuthenticated for a nil or anonymous session
func Require(s *Session) error {
	if s == nil || s.UserID == "" {
		return apperr.ErrNotAuthenticated
	}
	return nil
}

// RequireRole checks the session is authenticated and holds one of roles
func RequireRole(s *Session, roles ...models.Role) error {
	if err := Require(s); err != nil {
		return err
	}
	for _, r := range roles {
		if s.Role == r {
			return nil
		}
	}
	return apperr.New(apperr.KindForbidden, "role %q may not perform this operation", s.Role)
}
