package models

import (
	"time"
)

// User represents a registered homeowner or site administrator.
type User struct {
	Base         `bson:",inline"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password" json:"-"` // Store hash, not plaintext
	IsAdmin      bool      `bson:"is_admin" json:"is_admin"`
	Activated    bool      `bson:"activated" json:"activated"`
	Suspended    bool      `bson:"suspended" json:"suspended"`
	Development  string    `bson:"development,omitempty" json:"development,omitempty"` // Housing development / estate name
	PlotNumber   string    `bson:"plot_number,omitempty" json:"plot_number,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
	Deleted      bool      `bson:"deleted" json:"-"` // Soft delete flag
}
