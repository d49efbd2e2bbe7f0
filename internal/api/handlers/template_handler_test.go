package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/services"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

func newTemplateTestRouter(svc *MockEmailTemplateService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewTemplateHandler(svc)
	router.GET("/v1/admin/templates", handler.List)
	router.GET("/v1/admin/templates/:id", handler.Get)
	router.POST("/v1/admin/templates", handler.Create)
	router.PUT("/v1/admin/templates/:id", handler.Update)
	router.DELETE("/v1/admin/templates/:id", handler.Delete)
	return router
}

func TestTemplateHandler_Create(t *testing.T) {
	t.Run("DefaultsActiveAndNeverSystem", func(t *testing.T) {
		svc := new(MockEmailTemplateService)
		svc.On("CreateTemplate", mock.Anything, mock.MatchedBy(func(tmpl *models.EmailTemplate) bool {
			return tmpl.Name == "snagging_reminder" && tmpl.IsActive && !tmpl.IsSystem
		})).Return(nil)

		router := newTemplateTestRouter(svc)
		w := postJSON(t, router, "/v1/admin/templates", gin.H{
			"name":             "snagging_reminder",
			"is_system":        true,
			"subject_template": "Snagging list for {{evidenceTitle}}",
			"body_template":    "<p>Hello {{userName}}</p>",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("DuplicateNameConflicts", func(t *testing.T) {
		svc := new(MockEmailTemplateService)
		svc.On("CreateTemplate", mock.Anything, mock.Anything).
			Return(fmt.Errorf("template %q already exists", "snagging_reminder"))

		router := newTemplateTestRouter(svc)
		w := postJSON(t, router, "/v1/admin/templates", gin.H{
			"name":             "snagging_reminder",
			"subject_template": "Snagging list",
			"body_template":    "<p>Hello</p>",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("MissingBodyRejected", func(t *testing.T) {
		svc := new(MockEmailTemplateService)
		router := newTemplateTestRouter(svc)
		w := postJSON(t, router, "/v1/admin/templates", gin.H{
			"name":             "snagging_reminder",
			"subject_template": "Snagging list",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "CreateTemplate", mock.Anything, mock.Anything)
	})
}

func TestTemplateHandler_GetAndList(t *testing.T) {
	tmpl := &models.EmailTemplate{Name: "glo_registered_confirmation", IsActive: true}
	tmpl.ID = utils.NewSixID()

	svc := new(MockEmailTemplateService)
	svc.On("ListTemplates", mock.Anything).Return([]models.EmailTemplate{*tmpl}, nil)
	svc.On("FindTemplateByID", mock.Anything, tmpl.ID).Return(tmpl, nil)
	router := newTemplateTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/templates", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "glo_registered_confirmation")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/templates/"+tmpl.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got models.EmailTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, tmpl.Name, got.Name)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/templates/bogus-id", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemplateHandler_Delete(t *testing.T) {
	id := utils.NewSixID()

	t.Run("SystemTemplateForbidden", func(t *testing.T) {
		svc := new(MockEmailTemplateService)
		svc.On("DeleteTemplate", mock.Anything, id).Return(services.ErrSystemTemplate)

		router := newTemplateTestRouter(svc)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/admin/templates/"+id.String(), nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("UnknownTemplateNotFound", func(t *testing.T) {
		svc := new(MockEmailTemplateService)
		svc.On("DeleteTemplate", mock.Anything, id).Return(fmt.Errorf("template not found: %s", id))

		router := newTemplateTestRouter(svc)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/admin/templates/"+id.String(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Deleted", func(t *testing.T) {
		svc := new(MockEmailTemplateService)
		svc.On("DeleteTemplate", mock.Anything, id).Return(nil)

		router := newTemplateTestRouter(svc)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/admin/templates/"+id.String(), nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
