package models

import (
	"time"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// Claim is a formal complaint record a homeowner files against the builder,
// optionally referencing submitted evidence items.
type Claim struct {
	Base        `bson:",inline"`
	UserID      utils.SixID   `bson:"user_id" json:"user_id"`
	UserEmail   string        `bson:"user_email" json:"user_email"`
	Summary     string        `bson:"summary" json:"summary"`
	Details     string        `bson:"details" json:"details"`
	EvidenceIDs []utils.SixID `bson:"evidence_ids,omitempty" json:"evidence_ids,omitempty"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
	Deleted     bool          `bson:"deleted" json:"-"`
}

// GloRegistration records a homeowner's interest in joining the group
// litigation order.
type GloRegistration struct {
	Base        `bson:",inline"`
	UserID      utils.SixID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	UserName    string      `bson:"user_name" json:"user_name"`
	UserEmail   string      `bson:"user_email" json:"user_email"`
	Development string      `bson:"development,omitempty" json:"development,omitempty"`
	PlotNumber  string      `bson:"plot_number,omitempty" json:"plot_number,omitempty"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
}
