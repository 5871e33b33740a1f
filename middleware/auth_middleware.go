package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"foodcost/api/utils"
)

// SessionCookie carries the operator JWT.
const SessionCookie = "admin_session"

const (
	ContextAdminID       = "admin_id"
	ContextAdminUsername = "admin_username"
)

// AuthRequired rejects requests without a valid operator session.
func AuthRequired(tm *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(SessionCookie)
		if err != nil || tokenString == "" {
			tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := tm.Validate(tokenString)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected operator token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(ContextAdminID, claims.UserID)
		c.Set(ContextAdminUsername, claims.Username)
		c.Next()
	}
}
