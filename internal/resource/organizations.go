package resource

import (
	"context"

	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/storage"
)

// Organizations lists the organizations the caller belongs to and switches
// the active tenancy between them.
type Organizations struct {
	*Collection[models.Organization, models.OrganizationDraft]
}

// Create inserts the organization, which also makes the caller its owner,
// and selects it.
func (o *Organizations) Create(ctx context.Context, draft models.OrganizationDraft) (*models.Organization, error) {
	org, err := o.Collection.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	if err := o.deps.Tenancy.Set(org); err != nil {
		o.deps.Logger.Warn("Failed to persist tenancy", "organization_id", org.ID, "error", err)
	}
	return org, nil
}

// Select makes org the active tenancy; nil selects Personal.
func (o *Organizations) Select(org *models.Organization) error {
	return o.deps.Tenancy.Set(org)
}

// Update applies attrs to the organization. Updating the active
// organization refreshes the stored tenancy snapshot.
func (o *Organizations) Update(ctx context.Context, id string, attrs backend.Row) (*models.Organization, error) {
	org, err := o.Collection.Update(ctx, id, attrs)
	if err != nil {
		return nil, err
	}
	if o.deps.Tenancy.Current().ID() == org.ID {
		if err := o.deps.Tenancy.Set(org); err != nil {
			o.deps.Logger.Warn("Failed to persist tenancy", "organization_id", org.ID, "error", err)
		}
	}
	return org, nil
}

// Delete removes the organization. Deleting the active organization falls
// back to Personal.
func (o *Organizations) Delete(ctx context.Context, id string) error {
	if err := o.Collection.Delete(ctx, id); err != nil {
		return err
	}
	if o.deps.Tenancy.Current().ID() == id {
		return o.deps.Tenancy.Set(nil)
	}
	return nil
}

// AddMember adds userID to the organization. Only its owner may.
func (o *Organizations) AddMember(ctx context.Context, orgID, userID string) error {
	const title = "Failed to add member"
	_, err := o.deps.Backend.Insert(ctx, storage.TableOrganizationUsers, backend.Row{
		storage.ColOrganizationID: orgID,
		storage.ColUserID:         userID,
		"role":                    models.MemberRoleMember,
	})
	if err != nil {
		return o.deps.failed(title, err)
	}
	o.deps.mutated(KindOrganizations, "Member added")
	return nil
}

var organizationSpec = Spec{
	Kind:  KindOrganizations,
	Table: storage.TableOrganizations,
	Noun:  "organization",
	Order: []backend.Order{backend.Asc("name")},
}
