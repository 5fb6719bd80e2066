package commands

import (
	"context"
	"fmt"

	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/tenancy"
)

// OrgCmd groups the organization commands.
type OrgCmd struct {
	List   OrgListCmd   `cmd:"" default:"1" help:"List your organizations."`
	Create OrgCreateCmd `cmd:"" help:"Create an organization and switch to it."`
	Use    OrgUseCmd    `cmd:"" help:"Switch tenancy to an organization, or \"personal\"."`
	Delete OrgDeleteCmd `cmd:"" help:"Delete an organization you created."`
	Add    OrgAddCmd    `cmd:"" help:"Add a user to an organization you own."`
}

type OrgListCmd struct{}

func (c *OrgListCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	orgs, err := client.Resources.Organizations.List(ctx)
	if err != nil {
		return err
	}
	current := client.Tenancy.Current().ID()
	w := table("ID\tNAME\tDESCRIPTION\tACTIVE")
	for _, org := range orgs {
		active := ""
		if org.ID == current {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", org.ID, org.Name, orDash(org.Description), active)
	}
	return w.Flush()
}

type OrgCreateCmd struct {
	Name        string `arg:"" help:"Organization name."`
	Description string `help:"Short description."`
}

func (c *OrgCreateCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	org, err := client.Resources.Organizations.Create(ctx, models.OrganizationDraft{Name: c.Name, Description: c.Description})
	if err != nil {
		return err
	}
	fmt.Printf("Now working in %s\n", org.Name)
	return nil
}

type OrgUseCmd struct {
	ID string `arg:"" help:"Organization id, or personal."`
}

func (c *OrgUseCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	if c.ID == tenancy.PersonalID {
		if err := client.Resources.Organizations.Select(nil); err != nil {
			return err
		}
		fmt.Println("Now working in your personal space")
		return nil
	}
	org, err := client.Resources.Organizations.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := client.Resources.Organizations.Select(org); err != nil {
		return err
	}
	fmt.Printf("Now working in %s\n", org.Name)
	return nil
}

type OrgDeleteCmd struct {
	ID string `arg:"" help:"Organization id."`
}

func (c *OrgDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	return client.Resources.Organizations.Delete(ctx, c.ID)
}

type OrgAddCmd struct {
	ID     string `arg:"" help:"Organization id."`
	UserID string `arg:"" help:"User id to add."`
}

func (c *OrgAddCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	return client.Resources.Organizations.AddMember(ctx, c.ID, c.UserID)
}
