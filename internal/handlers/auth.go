package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Muthahireen/clairvoyant/internal/auth"
	"github.com/Muthahireen/clairvoyant/internal/repository"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signupRequest struct {
	Username string `json:"username" binding:"required,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type profileRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=120"`
	Email       string `json:"email" binding:"required,email"`
}

type preferencesRequest struct {
	DarkMode *bool `json:"dark_mode" binding:"required"`
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      result.Token,
		"expires_at": result.ExpiresAt.UTC().Format(time.RFC3339),
		"user":       userResponse(result.User),
	})
}

func (h *handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": userResponse(user)})
}

func (h *handler) requestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}

	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "Password reset instructions sent to your email"})
}

func (h *handler) confirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}

	if err := h.accounts.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

func (h *handler) logout(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}
	if err := h.accounts.Logout(c.Request.Context(), identity.UserID, identity.SessionID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *handler) me(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}
	user, err := h.accounts.GetProfile(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        userResponse(user),
		"preferences": gin.H{"dark_mode": identity.DarkMode},
	})
}

func (h *handler) updateProfile(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}

	user, err := h.accounts.UpdateProfile(c.Request.Context(), identity.UserID, req.DisplayName, req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userResponse(user)})
}

func (h *handler) updatePreferences(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}

	sess, err := h.preferences.SetDarkMode(c.Request.Context(), identity.SessionID, *req.DarkMode)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": gin.H{"dark_mode": sess.DarkMode}})
}

func mustIdentity(c *gin.Context) *auth.Identity {
	identity, ok := auth.GetIdentity(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return nil
	}
	return identity
}

func userResponse(u *repository.User) gin.H {
	return gin.H{
		"id":           u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"display_name": u.DisplayName,
		"created_at":   u.CreatedAt,
	}
}
