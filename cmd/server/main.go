package main

import (
	"context"

	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Debug       bool             `help:"Enable debug logging." env:"LIFEBOARD_DEBUG"`
		Version     kong.VersionFlag `help:"Print the version."`
		Serve       ServeCmd         `cmd:"" default:"withargs" help:"Start the lifeboard server."`
		CreateAdmin CreateAdminCmd   `cmd:"" help:"Create an admin user, or grant admin to an existing one."`
	}
)

// Globals are shared by every command.
type Globals struct {
	Debug   bool
	Version string
}

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("lifeboard-server"),
		kong.Description("lifeboard backend: data, auth and role services."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
