// api/handlers/auth_handlers.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"foodcost/api/middleware"
	"foodcost/api/models"
	"foodcost/api/store"
	"foodcost/api/utils"
)

type AdminLookup interface {
	GetAdminByUsername(ctx context.Context, username string) (*models.AdminUser, error)
}

type AuthHandlers struct {
	Users        AdminLookup
	Tokens       *utils.TokenManager
	CookieSecure bool
}

func NewAuthHandlers(users AdminLookup, tokens *utils.TokenManager, cookieSecure bool) *AuthHandlers {
	return &AuthHandlers{Users: users, Tokens: tokens, CookieSecure: cookieSecure}
}

// Login checks operator credentials and sets the session cookie.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	user, err := h.Users.GetAdminByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Msg("Error looking up operator")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		log.Warn().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("Login failed: unknown user")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)); err != nil {
		log.Warn().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("Login failed: password mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.Tokens.Generate(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to issue session token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(h.Tokens.TTL().Seconds()), "/", "", h.CookieSecure, true)

	log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("Operator logged in")
	c.JSON(http.StatusOK, gin.H{"success": true, "username": user.Username})
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Check runs behind AuthRequired, so reaching it means the session is valid.
func (h *AuthHandlers) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"username":      c.GetString(middleware.ContextAdminUsername),
	})
}
