package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/services"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// ClaimHandler handles claims and group litigation registrations.
type ClaimHandler struct {
	claimService services.IClaimService
	userService  services.IUserService
	dispatcher   *notify.Dispatcher
}

// NewClaimHandler creates a new ClaimHandler.
func NewClaimHandler(claimService services.IClaimService, userService services.IUserService, dispatcher *notify.Dispatcher) *ClaimHandler {
	return &ClaimHandler{
		claimService: claimService,
		userService:  userService,
		dispatcher:   dispatcher,
	}
}

// SubmitClaimRequest is the payload for POST /v1/claim.
type SubmitClaimRequest struct {
	Summary     string   `json:"summary" binding:"required"`
	Details     string   `json:"details"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// Submit handles POST /v1/claim.
func (h *ClaimHandler) Submit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evidenceIDs := make([]utils.SixID, 0, len(req.EvidenceIDs))
	for _, raw := range req.EvidenceIDs {
		id, err := utils.ParseSixID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid evidence ID format: " + raw})
			return
		}
		evidenceIDs = append(evidenceIDs, id)
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve user"})
		return
	}

	claim := &models.Claim{
		UserID:      userID,
		UserEmail:   user.Email,
		Summary:     req.Summary,
		Details:     req.Details,
		EvidenceIDs: evidenceIDs,
	}
	if err := h.claimService.SubmitClaim(c.Request.Context(), claim); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit claim"})
		return
	}

	if _, err := h.dispatcher.Dispatch(c.Request.Context(), models.EventClaimSubmitted, map[string]interface{}{
		"userName":     user.Name,
		"userEmail":    user.Email,
		"claimId":      claim.ID.String(),
		"claimSummary": claim.Summary,
	}); err != nil {
		log.Printf("Notification dispatch failed for claim_submitted (%s): %v", claim.ID, err)
	}

	c.JSON(http.StatusCreated, claim)
}

// Get handles GET /v1/admin/claims/:id.
func (h *ClaimHandler) Get(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid claim ID format"})
		return
	}

	claim, err := h.claimService.FindClaimByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Claim not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve claim"})
		}
		return
	}
	c.JSON(http.StatusOK, claim)
}

// List handles GET /v1/admin/claims.
func (h *ClaimHandler) List(c *gin.Context) {
	claims, err := h.claimService.ListClaims(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list claims"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims})
}

// ListGlo handles GET /v1/admin/glo.
func (h *ClaimHandler) ListGlo(c *gin.Context) {
	registrations, err := h.claimService.ListGloRegistrations(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list registrations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": registrations})
}

// GloRequest is the payload for POST /v1/glo.
type GloRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Development string `json:"development"`
	PlotNumber  string `json:"plot_number"`
}

// RegisterGlo handles POST /v1/glo (public, captcha-gated).
func (h *ClaimHandler) RegisterGlo(c *gin.Context) {
	var req GloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	registration := &models.GloRegistration{
		UserName:    req.Name,
		UserEmail:   req.Email,
		Development: req.Development,
		PlotNumber:  req.PlotNumber,
	}
	if err := h.claimService.RegisterGlo(c.Request.Context(), registration); err != nil {
		if errors.Is(err, services.ErrAlreadyRegistered) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		return
	}

	if _, err := h.dispatcher.Dispatch(c.Request.Context(), models.EventGloRegistered, map[string]interface{}{
		"userName":    registration.UserName,
		"userEmail":   registration.UserEmail,
		"development": registration.Development,
	}); err != nil {
		log.Printf("Notification dispatch failed for glo_registered (%s): %v", registration.ID, err)
	}

	c.JSON(http.StatusCreated, gin.H{"id": registration.ID.String()})
}
