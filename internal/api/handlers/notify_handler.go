package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// NotifyHandler exposes the manual dispatch and test-send surface to admins.
type NotifyHandler struct {
	dispatcher *notify.Dispatcher
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(dispatcher *notify.Dispatcher) *NotifyHandler {
	return &NotifyHandler{dispatcher: dispatcher}
}

// Dispatch handles POST /v1/admin/notify/dispatch: it runs the trigger
// pipeline for an event envelope supplied by the admin. A malformed envelope
// is a 400; a trigger store failure is a 500; anything below that comes back
// as per-recipient results on a 200.
func (h *NotifyHandler) Dispatch(c *gin.Context) {
	var envelope notify.Envelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.dispatcher.Dispatch(c.Request.Context(), envelope.EventType, envelope.EventData)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Dispatch failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

// TestSendRequest is the payload for POST /v1/admin/notify/test.
type TestSendRequest struct {
	TemplateID string            `json:"template_id" binding:"required"`
	Recipients []string          `json:"recipients" binding:"required"`
	CustomData map[string]string `json:"custom_data"`
}

// Test handles POST /v1/admin/notify/test: a one-off render-and-send of a
// template to explicit recipients, bypassing triggers.
func (h *NotifyHandler) Test(c *gin.Context) {
	var req TestSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	templateID, err := utils.ParseSixID(req.TemplateID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template ID format"})
		return
	}

	results, err := h.dispatcher.SendTest(c.Request.Context(), templateID, req.Recipients, req.CustomData)
	if err != nil {
		if strings.Contains(err.Error(), "failed to load template") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		if strings.Contains(err.Error(), "no recipients") {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Test send failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}
