package models

import (
	"time"
)

// EmailTemplate defines a named, editable message template stored in the DB.
// Placeholders use the {{name}} form in both subject and body.
type EmailTemplate struct {
	Base            `bson:",inline"`
	Name            string            `bson:"name" json:"name"` // stable slug, e.g. "evidence_approved_submitter"
	DisplayName     string            `bson:"display_name" json:"display_name"`
	SubjectTemplate string            `bson:"subject_template" json:"subject_template"`
	BodyTemplate    string            `bson:"body_template" json:"body_template"`
	Variables       []string          `bson:"variables" json:"variables"` // declared variable names; auto-detected when empty
	Category        string            `bson:"category" json:"category"`
	IsActive        bool              `bson:"is_active" json:"is_active"`
	IsSystem        bool              `bson:"is_system" json:"is_system"` // system templates cannot be deleted
	PreviewData     map[string]string `bson:"preview_data,omitempty" json:"preview_data,omitempty"`
	CreatedAt       time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at" json:"updated_at"`
}
