package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/api/middleware"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/services"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/storage"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/tasks"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// EvidenceHandler handles evidence submission, photos, comments and moderation.
type EvidenceHandler struct {
	evidenceService services.IEvidenceService
	commentService  services.ICommentService
	userService     services.IUserService
	storageService  storage.IS3Storage
	enqueuer        *tasks.Enqueuer
	dispatcher      *notify.Dispatcher
}

// NewEvidenceHandler creates a new EvidenceHandler.
func NewEvidenceHandler(
	evidenceService services.IEvidenceService,
	commentService services.ICommentService,
	userService services.IUserService,
	storageService storage.IS3Storage,
	enqueuer *tasks.Enqueuer,
	dispatcher *notify.Dispatcher,
) *EvidenceHandler {
	return &EvidenceHandler{
		evidenceService: evidenceService,
		commentService:  commentService,
		userService:     userService,
		storageService:  storageService,
		enqueuer:        enqueuer,
		dispatcher:      dispatcher,
	}
}

func currentUserID(c *gin.Context) (utils.SixID, bool) {
	val, exists := c.Get(middleware.ContextKeyUserID)
	if !exists {
		return utils.SixID{}, false
	}
	id, ok := val.(utils.SixID)
	return id, ok
}

// SubmitEvidenceRequest is the payload for POST /v1/evidence.
type SubmitEvidenceRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	Category    string `json:"category"`
	Development string `json:"development"`
}

// Submit handles POST /v1/evidence.
func (h *EvidenceHandler) Submit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req SubmitEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve user"})
		return
	}

	evidence := &models.Evidence{
		UserID:      userID,
		UserEmail:   user.Email,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Development: req.Development,
	}
	if err := h.evidenceService.SubmitEvidence(c.Request.Context(), evidence); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit evidence"})
		return
	}

	if _, err := h.dispatcher.Dispatch(c.Request.Context(), models.EventEvidenceSubmitted, map[string]interface{}{
		"userName":         user.Name,
		"userEmail":        user.Email,
		"evidenceId":       evidence.ID.String(),
		"evidenceTitle":    evidence.Title,
		"evidenceCategory": evidence.Category,
	}); err != nil {
		log.Printf("Notification dispatch failed for evidence_submitted (%s): %v", evidence.ID, err)
	}

	c.JSON(http.StatusCreated, evidence)
}

// Get handles GET /v1/evidence/:id.
func (h *EvidenceHandler) Get(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid evidence ID format"})
		return
	}

	evidence, err := h.evidenceService.FindEvidenceByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Evidence not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve evidence"})
		}
		return
	}

	comments, err := h.commentService.ListCommentsForEvidence(c.Request.Context(), id, true)
	if err != nil {
		log.Printf("Failed to list comments for evidence %s: %v", id, err)
		comments = []models.Comment{}
	}

	c.JSON(http.StatusOK, gin.H{"evidence": evidence, "comments": comments})
}

// List handles GET /v1/admin/evidence. An optional ?status= query narrows
// the list to one moderation state.
func (h *EvidenceHandler) List(c *gin.Context) {
	status := models.EvidenceStatus(c.Query("status"))
	switch status {
	case "", models.EvidencePending, models.EvidenceApproved, models.EvidenceRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status filter"})
		return
	}

	items, err := h.evidenceService.ListEvidence(c.Request.Context(), status)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list evidence"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evidence": items})
}

// PhotoURLRequest is the payload for POST /v1/evidence/:id/photo-url.
type PhotoURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// PhotoURL handles POST /v1/evidence/:id/photo-url: it issues a presigned
// upload URL and queues the post-upload processing task.
func (h *EvidenceHandler) PhotoURL(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	evidenceID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid evidence ID format"})
		return
	}

	var req PhotoURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evidence, err := h.evidenceService.FindEvidenceByID(c.Request.Context(), evidenceID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Evidence not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve evidence"})
		}
		return
	}
	if evidence.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your evidence item"})
		return
	}

	url, key, err := h.storageService.GeneratePresignedPutURL(c.Request.Context(), userID.String(), evidenceID.String(), req.Filename, req.ContentType)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate upload URL"})
		return
	}

	if err := h.enqueuer.EnqueuePhotoProcess(c.Request.Context(), key, evidenceID); err != nil {
		log.Printf("Failed to enqueue photo processing for %s: %v", key, err)
	}

	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}

// CommentRequest is the payload for POST /v1/evidence/:id/comment.
type CommentRequest struct {
	CommenterName  string `json:"commenter_name" binding:"required"`
	CommenterEmail string `json:"commenter_email" binding:"required,email"`
	Body           string `json:"body" binding:"required"`
}

// Comment handles POST /v1/evidence/:id/comment (public, captcha-gated).
func (h *EvidenceHandler) Comment(c *gin.Context) {
	evidenceID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid evidence ID format"})
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evidence, err := h.evidenceService.FindEvidenceByID(c.Request.Context(), evidenceID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Evidence not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve evidence"})
		}
		return
	}

	comment := &models.Comment{
		EvidenceID:     evidenceID,
		CommenterName:  req.CommenterName,
		CommenterEmail: req.CommenterEmail,
		Body:           req.Body,
	}
	if err := h.commentService.CreateComment(c.Request.Context(), comment); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit comment"})
		return
	}

	if _, err := h.dispatcher.Dispatch(c.Request.Context(), models.EventCommentSubmitted, map[string]interface{}{
		"commentId":      comment.ID.String(),
		"commenterName":  comment.CommenterName,
		"commenterEmail": comment.CommenterEmail,
		"commentBody":    comment.Body,
		"evidenceTitle":  evidence.Title,
	}); err != nil {
		log.Printf("Notification dispatch failed for comment_submitted (%s): %v", comment.ID, err)
	}

	c.JSON(http.StatusCreated, gin.H{"id": comment.ID.String(), "status": "pending moderation"})
}

// --- Admin moderation ---

// Approve handles POST /v1/admin/evidence/:id/approve.
func (h *EvidenceHandler) Approve(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid evidence ID format"})
		return
	}

	evidence, err := h.evidenceService.ApproveEvidence(c.Request.Context(), id)
	if err != nil {
		h.moderationError(c, id, err)
		return
	}

	if _, err := h.dispatcher.Dispatch(c.Request.Context(), models.EventEvidenceApproved, map[string]interface{}{
		"userEmail":     evidence.UserEmail,
		"evidenceId":    evidence.ID.String(),
		"evidenceTitle": evidence.Title,
	}); err != nil {
		log.Printf("Notification dispatch failed for evidence_approved (%s): %v", id, err)
	}

	c.JSON(http.StatusOK, evidence)
}

// RejectRequest is the payload for POST /v1/admin/evidence/:id/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /v1/admin/evidence/:id/reject.
func (h *EvidenceHandler) Reject(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid evidence ID format"})
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evidence, err := h.evidenceService.RejectEvidence(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.moderationError(c, id, err)
		return
	}

	data := map[string]interface{}{
		"userEmail":     evidence.UserEmail,
		"evidenceId":    evidence.ID.String(),
		"evidenceTitle": evidence.Title,
	}
	if req.Reason != "" {
		data["rejectionReason"] = req.Reason
	}
	if _, err := h.dispatcher.Dispatch(c.Request.Context(), models.EventEvidenceRejected, data); err != nil {
		log.Printf("Notification dispatch failed for evidence_rejected (%s): %v", id, err)
	}

	c.JSON(http.StatusOK, evidence)
}

func (h *EvidenceHandler) moderationError(c *gin.Context, id utils.SixID, err error) {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		c.JSON(http.StatusNotFound, gin.H{"error": "Evidence not found"})
	case errors.Is(err, services.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "Evidence has already been decided"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Moderation failed"})
	}
}

// ApproveComment handles POST /v1/admin/comments/:id/approve.
func (h *EvidenceHandler) ApproveComment(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID format"})
		return
	}

	if err := h.commentService.ApproveComment(c.Request.Context(), id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve comment"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeclineComment handles POST /v1/admin/comments/:id/decline.
func (h *EvidenceHandler) DeclineComment(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID format"})
		return
	}

	if err := h.commentService.DeclineComment(c.Request.Context(), id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decline comment"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
