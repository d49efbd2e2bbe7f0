package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// EventType identifies a kind of business occurrence that notification
// triggers can be bound to.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventEvidenceSubmitted EventType = "evidence_submitted"
	EventEvidenceApproved  EventType = "evidence_approved"
	EventEvidenceRejected  EventType = "evidence_rejected"
	EventClaimSubmitted    EventType = "claim_submitted"
	EventGloRegistered     EventType = "glo_registered"
	EventCommentSubmitted  EventType = "comment_submitted"
	EventManual            EventType = "manual"
)

// KnownEventTypes lists the event types that receive tailored normalization.
// Any other event type is still dispatched, with its data passed through as-is.
var KnownEventTypes = []EventType{
	EventUserRegistered,
	EventEvidenceSubmitted,
	EventEvidenceApproved,
	EventEvidenceRejected,
	EventClaimSubmitted,
	EventGloRegistered,
	EventCommentSubmitted,
	EventManual,
}

// IsKnownEventType reports whether t is one of the enumerated event types.
func IsKnownEventType(t EventType) bool {
	for _, known := range KnownEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RecipientType selects the strategy used to expand an event into a concrete
// address list.
type RecipientType string

const (
	RecipientSubmitter RecipientType = "submitter"
	RecipientAllAdmins RecipientType = "all_admins"
	RecipientAllUsers  RecipientType = "all_users"
	RecipientSpecific  RecipientType = "specific"
)

// RecipientConfig is a closed tagged union: Emails is only meaningful for
// RecipientSpecific. It is validated at the system boundary via Validate so
// internal logic never sees an unrecognized tag by accident.
type RecipientConfig struct {
	Type   RecipientType `bson:"type" json:"type"`
	Emails []string      `bson:"emails,omitempty" json:"emails,omitempty"`
}

// Validate checks that the recipient config carries a recognized tag and the
// fields that tag requires.
func (rc RecipientConfig) Validate() error {
	switch rc.Type {
	case RecipientSubmitter, RecipientAllAdmins, RecipientAllUsers:
		return nil
	case RecipientSpecific:
		if len(rc.Emails) == 0 {
			return fmt.Errorf("recipient config of type %q requires at least one email", rc.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown recipient config type: %q", rc.Type)
	}
}

// EmailTrigger binds one event type to one template and one recipient policy.
// Multiple enabled triggers may exist for the same event type; all of them
// fire independently.
type EmailTrigger struct {
	Base            `bson:",inline"`
	EventType       EventType       `bson:"event_type" json:"event_type"`
	TemplateID      utils.SixID     `bson:"template_id" json:"template_id"`
	RecipientConfig RecipientConfig `bson:"recipient_config" json:"recipient_config"`
	IsEnabled       bool            `bson:"is_enabled" json:"is_enabled"`
	DelayMinutes    int             `bson:"delay_minutes" json:"delay_minutes"`
	Conditions      bson.M          `bson:"conditions,omitempty" json:"conditions,omitempty"` // reserved filter predicate, currently unused
	CreatedAt       time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updated_at"`
}

// TriggerWithTemplate is the result of joining a trigger with its template.
// Template is nil when the referenced template has been deleted; the
// dispatcher treats such triggers as inert.
type TriggerWithTemplate struct {
	Trigger  EmailTrigger
	Template *EmailTemplate
}
