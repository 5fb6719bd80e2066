package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/mmynk/lifeboard/cmd/lifeboard/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Globals  commands.Globals     `embed:""`
		Version  kong.VersionFlag     `help:"Print the version."`
		Signup   commands.SignupCmd   `cmd:"" help:"Create an account and sign in."`
		Login    commands.LoginCmd    `cmd:"" help:"Sign in."`
		Logout   commands.LogoutCmd   `cmd:"" help:"Sign out."`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the session, roles and active tenancy."`
		Org      commands.OrgCmd      `cmd:"" help:"Manage organizations and the active tenancy."`
		Wallets  commands.WalletsCmd  `cmd:"" help:"Manage wallets."`
		Tx       commands.TxCmd       `cmd:"" help:"Manage transactions."`
		Episodes commands.EpisodesCmd `cmd:"" help:"Track watched episodes."`
		Settings commands.SettingsCmd `cmd:"" help:"Show or change app settings."`
		Open     commands.OpenCmd     `cmd:"" help:"Check whether a page route may be opened."`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("lifeboard"),
		kong.Description("lifeboard client: TV shows and personal finance."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	cli.Globals.Version = version
	err := cmd.Run(&cli.Globals)
	cmd.FatalIfErrorf(err)
}
