package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/auth"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/config"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/services"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	cfg         *config.Config
	userService services.IUserService
	dispatcher  *notify.Dispatcher
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg *config.Config, userService services.IUserService, dispatcher *notify.Dispatcher) *AuthHandler {
	return &AuthHandler{
		cfg:         cfg,
		userService: userService,
		dispatcher:  dispatcher,
	}
}

// RegisterRequest is the payload for POST /v1/register.
type RegisterRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Development string `json:"development"`
	PlotNumber  string `json:"plot_number"`
}

// Register handles POST /v1/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Development, req.PlotNumber)
	if err != nil {
		if errors.Is(err, services.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		return
	}

	// Registration succeeded regardless of what happens to the notification.
	if _, err := h.dispatcher.Dispatch(c.Request.Context(), models.EventUserRegistered, map[string]interface{}{
		"userName":  user.Name,
		"userEmail": user.Email,
	}); err != nil {
		log.Printf("Notification dispatch failed for user_registered (%s): %v", user.ID, err)
	}

	token, err := auth.GenerateJWT(user.ID, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.ID.String(),
			"name":  user.Name,
			"email": user.Email,
		},
	})
}

// LoginRequest is the payload for POST /v1/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID.String(),
			"name":     user.Name,
			"email":    user.Email,
			"is_admin": user.IsAdmin,
		},
	})
}
