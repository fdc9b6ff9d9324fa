package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/features/auth/session"
)

const (
	keyUserID     = "user_id"
	keyTelegramID = "telegram_id"
	keyRole       = "role"
)

// RequireSession resolves the bearer token into the caller's identity.
func RequireSession(sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			Fail(c, errors.NewUnauthorizedError("missing bearer token"))
			return
		}

		s, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			Fail(c, err)
			return
		}

		c.Set(keyUserID, s.UserID)
		c.Set(keyTelegramID, s.TelegramID)
		c.Set(keyRole, s.Role)
		c.Next()
	}
}

// RequireAdmin must run after RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get(keyRole); role != domain.RoleAdmin {
			Fail(c, errors.NewForbiddenError("admin access required"))
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller's internal id.
func UserID(c *gin.Context) int64 {
	return getUserID(c)
}

// BearerToken returns the raw token of the current request.
func BearerToken(c *gin.Context) string {
	return bearerToken(c.GetHeader("Authorization"))
}

func TelegramID(c *gin.Context) int64 {
	return c.GetInt64(keyTelegramID)
}

func getUserID(c *gin.Context) int64 {
	return c.GetInt64(keyUserID)
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
