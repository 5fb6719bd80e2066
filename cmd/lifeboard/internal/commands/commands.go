package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/mmynk/lifeboard/internal/app"
	"github.com/mmynk/lifeboard/internal/localstore"
	"github.com/mmynk/lifeboard/internal/notify"
	"github.com/mmynk/lifeboard/pkg/logging"
)

// Globals are the flags shared by every command.
type Globals struct {
	Server  string `help:"lifeboard server URL." default:"http://localhost:8080" env:"LIFEBOARD_SERVER"`
	State   string `help:"Local state file. Defaults to ~/.lifeboard/state.json." env:"LIFEBOARD_STATE" type:"path"`
	Debug   bool   `help:"Enable debug logging."`
	Version string `kong:"-"`
}

// Client assembles the client core against the configured server.
func (g *Globals) Client() (*app.Client, error) {
	level := slog.LevelWarn
	if g.Debug {
		level = slog.LevelDebug
	}
	logger := logging.New(os.Stderr, level)

	path := g.State
	if path == "" {
		var err error
		if path, err = localstore.DefaultPath(); err != nil {
			return nil, err
		}
	}
	storage, err := localstore.NewFile(path)
	if err != nil {
		return nil, err
	}

	return app.NewRemoteClient(nil, g.Server, storage, app.ClientOptions{
		Notifier: printer(os.Stderr),
		Logger:   logger,
	})
}

func printer(w io.Writer) notify.Notifier {
	return notify.Func(func(n notify.Notification) {
		if n.Level == notify.LevelError {
			fmt.Fprintf(w, "error: %s: %s\n", n.Title, n.Message)
			return
		}
		fmt.Fprintf(w, "ok: %s\n", n.Title)
	})
}

func table(header string) *tabwriter.Writer {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header)
	return w
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
