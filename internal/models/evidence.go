package models

import (
	"time"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// EvidenceStatus tracks the moderation state of an evidence item.
type EvidenceStatus string

const (
	EvidencePending  EvidenceStatus = "pending"
	EvidenceApproved EvidenceStatus = "approved"
	EvidenceRejected EvidenceStatus = "rejected"
)

// Evidence is a documented build defect: a description plus photos, submitted
// by a homeowner and moderated by an admin before publication.
type Evidence struct {
	Base            `bson:",inline"`
	UserID          utils.SixID    `bson:"user_id" json:"user_id"`
	UserEmail       string         `bson:"user_email" json:"user_email"`
	Title           string         `bson:"title" json:"title"`
	Description     string         `bson:"description" json:"description"`
	Category        string         `bson:"category,omitempty" json:"category,omitempty"` // e.g. "damp", "structural", "snagging"
	Development     string         `bson:"development,omitempty" json:"development,omitempty"`
	Status          EvidenceStatus `bson:"status" json:"status"`
	RejectionReason string         `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	PhotoKeys       []string       `bson:"photo_keys,omitempty" json:"photo_keys,omitempty"` // S3 object keys
	CreatedAt       time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at" json:"updated_at"`
	Deleted         bool           `bson:"deleted" json:"-"`
}

// Comment is a visitor or homeowner comment attached to an evidence item.
// Comments are held for admin moderation.
type Comment struct {
	Base           `bson:",inline"`
	EvidenceID     utils.SixID `bson:"evidence_id" json:"evidence_id"`
	CommenterName  string      `bson:"commenter_name" json:"commenter_name"`
	CommenterEmail string      `bson:"commenter_email" json:"commenter_email"`
	Body           string      `bson:"body" json:"body"`
	Approved       bool        `bson:"approved" json:"approved"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
	Deleted        bool        `bson:"deleted" json:"-"`
}
