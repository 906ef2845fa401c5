package api

import (
	"strings"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionKey = "session"

// authenticate resolves the bearer token into a session for the request
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" || token == header {
			respondError(c, apperr.ErrNotAuthenticated)
			return
		}

		sess, err := h.verifier.Parse(token)
		if err != nil {
			respondError(c, err)
			return
		}

		if h.sessions != nil && sess.TokenID != "" {
			revoked, err := h.sessions.IsRevoked(c.Request.Context(), sess.TokenID)
			if err != nil {
				h.logger.Error("Failed to check token revocation", zap.Error(err))
				respondError(c, apperr.Backend("failed to check session", err))
				return
			}
			if revoked {
				respondError(c, apperr.New(apperr.KindNotAuthenticated, "session has been signed out"))
				return
			}
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// requireRole rejects sessions without one of roles
func requireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.RequireRole(sessionFrom(c), roles...); err != nil {
			respondError(c, err)
			return
		}
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *auth.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*auth.Session)
	return sess
}
