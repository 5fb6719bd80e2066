package commands

import (
	"context"
	"fmt"

	"github.com/mmynk/lifeboard/internal/settings"
)

// SettingsCmd groups the app settings commands.
type SettingsCmd struct {
	Show SettingsShowCmd `cmd:"" default:"1" help:"Show which modules are enabled."`
	Set  SettingsSetCmd  `cmd:"" help:"Enable or disable a module. Signs you out."`
}

type SettingsShowCmd struct{}

func (c *SettingsShowCmd) Run(globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	w := table("MODULE\tENABLED")
	for _, m := range settings.Modules {
		fmt.Fprintf(w, "%s\t%t\n", m, client.Settings.Enabled(m))
	}
	return w.Flush()
}

type SettingsSetCmd struct {
	Module  string `arg:"" help:"Module name." enum:"tvShows,finance"`
	Enabled string `arg:"" help:"on or off." enum:"on,off"`
}

func (c *SettingsSetCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	m, err := settings.ParseModule(c.Module)
	if err != nil {
		return err
	}
	if err := client.Settings.SetEnabled(ctx, m, c.Enabled == "on"); err != nil {
		return err
	}
	fmt.Printf("%s %s\n", m, c.Enabled)
	return nil
}
