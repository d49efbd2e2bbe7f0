package notify

import (
	"fmt"
	"time"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
)

// Settings is the configuration snapshot the dispatch pipeline runs against.
// It is captured once per dispatch and injected explicitly, never read from
// ambient global state.
type Settings struct {
	Enabled     bool   // master switch for outbound notifications
	SiteName    string
	BaseURL     string // absolute site base URL used for synthesized links
	FromAddress string
}

// SettingsProvider supplies the current settings snapshot at the start of a
// dispatch. The refresh boundary is the provider's concern.
type SettingsProvider interface {
	NotifySettings() Settings
}

// StaticSettings is a SettingsProvider returning a fixed snapshot.
type StaticSettings Settings

func (s StaticSettings) NotifySettings() Settings { return Settings(s) }

// Normalize maps a raw event payload into the flat variable set templates
// substitute from. Every known event type gets literal fallback defaults for
// anything the caller omitted, so templates never see a missing variable.
// Unknown event types pass the bag through stringified; new event types
// degrade to raw passthrough rather than failing.
func Normalize(eventType models.EventType, data map[string]interface{}, settings Settings) map[string]string {
	now := time.Now().UTC().Format(time.RFC3339)

	vars := map[string]string{
		"siteName": settings.SiteName,
		"siteUrl":  settings.BaseURL,
	}

	switch eventType {
	case models.EventUserRegistered:
		vars["userName"] = str(data, "userName", "User")
		vars["userEmail"] = str(data, "userEmail", "")
		vars["registeredAt"] = str(data, "registeredAt", now)

	case models.EventEvidenceSubmitted:
		vars["userName"] = str(data, "userName", "User")
		vars["userEmail"] = str(data, "userEmail", "")
		vars["evidenceTitle"] = str(data, "evidenceTitle", "Your Evidence")
		vars["evidenceCategory"] = str(data, "evidenceCategory", "general")
		vars["submittedAt"] = str(data, "submittedAt", now)

	case models.EventEvidenceApproved:
		vars["userName"] = str(data, "userName", "User")
		vars["evidenceTitle"] = str(data, "evidenceTitle", "Your Evidence")
		vars["approvedAt"] = str(data, "approvedAt", now)
		vars["evidenceUrl"] = settings.BaseURL + "/evidence/" + str(data, "evidenceId", "")

	case models.EventEvidenceRejected:
		vars["userName"] = str(data, "userName", "User")
		vars["evidenceTitle"] = str(data, "evidenceTitle", "Your Evidence")
		vars["rejectionReason"] = str(data, "rejectionReason", "No reason was provided")
		vars["rejectedAt"] = str(data, "rejectedAt", now)

	case models.EventClaimSubmitted:
		vars["userName"] = str(data, "userName", "User")
		vars["userEmail"] = str(data, "userEmail", "")
		vars["claimSummary"] = str(data, "claimSummary", "Your Claim")
		vars["submittedAt"] = str(data, "submittedAt", now)

	case models.EventGloRegistered:
		vars["userName"] = str(data, "userName", "User")
		vars["userEmail"] = str(data, "userEmail", "")
		vars["development"] = str(data, "development", "your development")
		vars["registeredAt"] = str(data, "registeredAt", now)

	case models.EventCommentSubmitted:
		commentID := str(data, "commentId", "")
		vars["commenterName"] = str(data, "commenterName", "A visitor")
		vars["commenterEmail"] = str(data, "commenterEmail", "")
		vars["commentBody"] = str(data, "commentBody", "")
		vars["evidenceTitle"] = str(data, "evidenceTitle", "an evidence item")
		vars["submittedAt"] = str(data, "submittedAt", now)
		// Admin moderation action links
		vars["approveUrl"] = settings.BaseURL + "/admin/comments/" + commentID + "/approve"
		vars["declineUrl"] = settings.BaseURL + "/admin/comments/" + commentID + "/decline"
		vars["viewUrl"] = settings.BaseURL + "/admin/comments/" + commentID

	default:
		// Identity normalization: unknown event types (including manual test
		// payloads) carry their data through unchanged.
		for key, value := range data {
			vars[key] = stringify(value)
		}
	}

	return vars
}

// str reads a string-typed field from the payload, falling back to def when
// the field is absent, empty, or not a string.
func str(data map[string]interface{}, key, def string) string {
	if v, ok := data[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
		if v != nil {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return def
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
