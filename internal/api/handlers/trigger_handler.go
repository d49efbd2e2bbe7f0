package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/services"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// TriggerHandler handles admin CRUD for email triggers.
type TriggerHandler struct {
	triggerService services.IEmailTriggerService
}

// NewTriggerHandler creates a new TriggerHandler.
func NewTriggerHandler(triggerService services.IEmailTriggerService) *TriggerHandler {
	return &TriggerHandler{triggerService: triggerService}
}

// List handles GET /v1/admin/triggers.
func (h *TriggerHandler) List(c *gin.Context) {
	triggers, err := h.triggerService.ListTriggers(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list triggers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggers": triggers, "event_types": models.KnownEventTypes})
}

// CreateTriggerRequest is the payload for POST /v1/admin/triggers.
type CreateTriggerRequest struct {
	EventType    string                 `json:"event_type" binding:"required"`
	TemplateID   string                 `json:"template_id" binding:"required"`
	Recipients   models.RecipientConfig `json:"recipient_config" binding:"required"`
	IsEnabled    bool                   `json:"is_enabled"`
	DelayMinutes int                    `json:"delay_minutes"`
}

// Create handles POST /v1/admin/triggers. The response carries warnings when
// the saved trigger makes its event fan out through multiple enabled triggers.
func (h *TriggerHandler) Create(c *gin.Context) {
	var req CreateTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	templateID, err := utils.ParseSixID(req.TemplateID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template ID format"})
		return
	}

	trigger := &models.EmailTrigger{
		EventType:       models.EventType(req.EventType),
		TemplateID:      templateID,
		RecipientConfig: req.Recipients,
		IsEnabled:       req.IsEnabled,
		DelayMinutes:    req.DelayMinutes,
	}
	if err := h.triggerService.CreateTrigger(c.Request.Context(), trigger); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"trigger":  trigger,
		"warnings": h.fanOutWarnings(c, trigger),
	})
}

// Update handles PUT /v1/admin/triggers/:id.
func (h *TriggerHandler) Update(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trigger ID format"})
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Recipients arrive as raw JSON; convert before handing to the service.
	if raw, ok := updates["recipient_config"]; ok {
		recipients, convErr := recipientConfigFromJSON(raw)
		if convErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": convErr.Error()})
			return
		}
		updates["recipient_config"] = recipients
	}
	if raw, ok := updates["delay_minutes"]; ok {
		if f, isFloat := raw.(float64); isFloat {
			updates["delay_minutes"] = int(f)
		}
	}

	trigger, err := h.triggerService.UpdateTrigger(c.Request.Context(), id, updates)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trigger not found"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trigger":  trigger,
		"warnings": h.fanOutWarnings(c, trigger),
	})
}

// Delete handles DELETE /v1/admin/triggers/:id.
func (h *TriggerHandler) Delete(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trigger ID format"})
		return
	}

	if err := h.triggerService.DeleteTrigger(c.Request.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trigger not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete trigger"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// fanOutWarnings tells the admin when the event now fires through more than
// one enabled trigger. That is legitimate configuration, just easy to do by
// accident.
func (h *TriggerHandler) fanOutWarnings(c *gin.Context, trigger *models.EmailTrigger) []string {
	warnings := []string{}
	if !trigger.IsEnabled {
		return warnings
	}
	count, err := h.triggerService.CountOtherEnabled(c.Request.Context(), trigger.EventType, trigger.ID)
	if err != nil {
		log.Printf("Failed to count enabled triggers for %s: %v", trigger.EventType, err)
		return warnings
	}
	if count > 0 {
		warnings = append(warnings, fmt.Sprintf("%d other enabled trigger(s) already fire on %q; recipients may receive multiple emails per event", count, trigger.EventType))
	}
	return warnings
}

func recipientConfigFromJSON(raw interface{}) (models.RecipientConfig, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return models.RecipientConfig{}, fmt.Errorf("invalid recipients configuration")
	}

	var cfg models.RecipientConfig
	if t, ok := obj["type"].(string); ok {
		cfg.Type = models.RecipientType(t)
	}
	if list, ok := obj["emails"].([]interface{}); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				cfg.Emails = append(cfg.Emails, s)
			}
		}
	}
	return cfg, nil
}
