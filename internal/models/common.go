package models

import "time"

// Audit holds the server-assigned identity and timestamps of a row.
type Audit struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scope holds the owner and tenancy partition of a row.
type Scope struct {
	UserID string `json:"user_id"`

	// OrganizationID is nil for personal rows.
	OrganizationID *string `json:"organization_id"`
}

// IsPersonal reports whether the row lives in its owner's personal space.
func (s Scope) IsPersonal() bool {
	return s.OrganizationID == nil
}

// Validator is implemented by drafts that can be checked before submission.
type Validator interface {
	Validate() error
}
