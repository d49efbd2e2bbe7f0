package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

func sendJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	return sendJSON(t, router, http.MethodPost, path, body)
}

func putJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	return sendJSON(t, router, http.MethodPut, path, body)
}

func newNotifyTestRouter(dispatcher *notify.Dispatcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewNotifyHandler(dispatcher)
	router.POST("/v1/admin/notify/dispatch", handler.Dispatch)
	router.POST("/v1/admin/notify/test", handler.Test)
	return router
}

func TestNotifyHandler_Dispatch(t *testing.T) {
	tmpl := &models.EmailTemplate{
		Name:            "claim_submitted_admins",
		SubjectTemplate: "New claim from {{userName}}",
		BodyTemplate:    "<p>{{userName}} submitted a claim on {{siteName}}.</p>",
		IsActive:        true,
	}
	tmpl.ID = utils.NewSixID()

	trigger := models.EmailTrigger{
		EventType:       models.EventClaimSubmitted,
		TemplateID:      tmpl.ID,
		RecipientConfig: models.RecipientConfig{Type: models.RecipientSpecific, Emails: []string{"admin@voices.test"}},
		IsEnabled:       true,
	}
	trigger.ID = utils.NewSixID()

	triggers := &fakeTriggerSource{triggers: []models.TriggerWithTemplate{{Trigger: trigger, Template: tmpl}}}
	templates := &fakeTemplateSource{templates: map[utils.SixID]*models.EmailTemplate{tmpl.ID: tmpl}}
	sender := &captureSender{}
	router := newNotifyTestRouter(newTestDispatcher(triggers, templates, sender))

	t.Run("MalformedEnvelope", func(t *testing.T) {
		w := postJSON(t, router, "/v1/admin/notify/dispatch", gin.H{"eventData": gin.H{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MatchingTrigger", func(t *testing.T) {
		w := postJSON(t, router, "/v1/admin/notify/dispatch", gin.H{
			"eventType": "claim_submitted",
			"eventData": gin.H{"userName": "Sam Porter"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool                    `json:"success"`
			Results []notify.DeliveryResult `json:"results"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		require.Len(t, resp.Results, 1)
		assert.True(t, resp.Results[0].Success)
		assert.Equal(t, "admin@voices.test", resp.Results[0].Recipient)

		msgs := sender.sent()
		require.Len(t, msgs, 1)
		assert.Equal(t, "New claim from Sam Porter", msgs[0].Subject)
	})

	t.Run("NoMatchingTriggers", func(t *testing.T) {
		w := postJSON(t, router, "/v1/admin/notify/dispatch", gin.H{
			"eventType": "glo_registered",
			"eventData": gin.H{"userName": "Sam Porter"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"results":[]`)
	})

	t.Run("TriggerStoreFailure", func(t *testing.T) {
		broken := newNotifyTestRouter(newTestDispatcher(
			&fakeTriggerSource{err: fmt.Errorf("connection refused")}, templates, &captureSender{}))
		w := postJSON(t, broken, "/v1/admin/notify/dispatch", gin.H{
			"eventType": "claim_submitted",
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestNotifyHandler_Test(t *testing.T) {
	tmpl := &models.EmailTemplate{
		Name:            "evidence_approved_submitter",
		SubjectTemplate: "{{evidenceTitle}} approved",
		BodyTemplate:    "<p>Hi {{userName}}, your evidence was approved on {{siteName}}.</p>",
		IsActive:        false,
		PreviewData:     map[string]string{"userName": "Preview User", "evidenceTitle": "Cracked render"},
	}
	tmpl.ID = utils.NewSixID()

	triggers := &fakeTriggerSource{}
	templates := &fakeTemplateSource{templates: map[utils.SixID]*models.EmailTemplate{tmpl.ID: tmpl}}
	sender := &captureSender{}
	router := newNotifyTestRouter(newTestDispatcher(triggers, templates, sender))

	t.Run("UnknownTemplate", func(t *testing.T) {
		w := postJSON(t, router, "/v1/admin/notify/test", gin.H{
			"template_id": utils.NewSixID().String(),
			"recipients":  []string{"reviewer@voices.test"},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("InvalidTemplateID", func(t *testing.T) {
		w := postJSON(t, router, "/v1/admin/notify/test", gin.H{
			"template_id": "not-a-sixid!",
			"recipients":  []string{"reviewer@voices.test"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NoUsableRecipients", func(t *testing.T) {
		w := postJSON(t, router, "/v1/admin/notify/test", gin.H{
			"template_id": tmpl.ID.String(),
			"recipients":  []string{"   ", ""},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "no recipients")
	})

	t.Run("CustomDataOverridesPreview", func(t *testing.T) {
		w := postJSON(t, router, "/v1/admin/notify/test", gin.H{
			"template_id": tmpl.ID.String(),
			"recipients":  []string{"reviewer@voices.test"},
			"custom_data": gin.H{"evidenceTitle": "Leaking roof valley"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		msgs := sender.sent()
		require.Len(t, msgs, 1)
		assert.Equal(t, "Leaking roof valley approved", msgs[0].Subject)
		assert.Contains(t, msgs[0].HTML, "Hi Preview User")
		assert.Contains(t, msgs[0].HTML, "Barratt Redrow Voices")
	})
}
