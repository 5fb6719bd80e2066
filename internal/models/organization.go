package models

import (
	"strings"
	"time"

	"github.com/mmynk/lifeboard/internal/apperr"
)

// Member roles inside an organization.
const (
	MemberRoleOwner  = "owner"
	MemberRoleMember = "member"
)

// Organization is a named tenant that users share data in.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrganizationDraft is the payload for creating an organization.
type OrganizationDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (d OrganizationDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return apperr.FieldInvalid("name", "organization name is required")
	}
	return nil
}

// Membership links a user to an organization.
type Membership struct {
	Audit
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	Role           string `json:"role"`
}
