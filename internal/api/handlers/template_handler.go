package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/services"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// TemplateHandler handles admin CRUD for email templates.
type TemplateHandler struct {
	templateService services.IEmailTemplateService
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templateService services.IEmailTemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// List handles GET /v1/admin/templates.
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.templateService.ListTemplates(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list templates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// Get handles GET /v1/admin/templates/:id.
func (h *TemplateHandler) Get(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template ID format"})
		return
	}

	tmpl, err := h.templateService.FindTemplateByID(c.Request.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve template"})
		}
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// CreateTemplateRequest is the payload for POST /v1/admin/templates.
type CreateTemplateRequest struct {
	Name            string            `json:"name" binding:"required"`
	DisplayName     string            `json:"display_name"`
	SubjectTemplate string            `json:"subject_template" binding:"required"`
	BodyTemplate    string            `json:"body_template" binding:"required"`
	Variables       []string          `json:"variables"`
	Category        string            `json:"category"`
	IsActive        *bool             `json:"is_active"`
	PreviewData     map[string]string `json:"preview_data"`
}

// Create handles POST /v1/admin/templates.
func (h *TemplateHandler) Create(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	tmpl := &models.EmailTemplate{
		Name:            req.Name,
		DisplayName:     req.DisplayName,
		SubjectTemplate: req.SubjectTemplate,
		BodyTemplate:    req.BodyTemplate,
		Variables:       req.Variables,
		Category:        req.Category,
		IsActive:        isActive,
		IsSystem:        false,
		PreviewData:     req.PreviewData,
	}
	if err := h.templateService.CreateTemplate(c.Request.Context(), tmpl); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create template"})
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

// Update handles PUT /v1/admin/templates/:id.
func (h *TemplateHandler) Update(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template ID format"})
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmpl, err := h.templateService.UpdateTemplate(c.Request.Context(), id, updates)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update template"})
		}
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// Delete handles DELETE /v1/admin/templates/:id.
func (h *TemplateHandler) Delete(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template ID format"})
		return
	}

	if err := h.templateService.DeleteTemplate(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, services.ErrSystemTemplate):
			c.JSON(http.StatusForbidden, gin.H{"error": "System templates cannot be deleted"})
		case strings.Contains(err.Error(), "not found"):
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete template"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
