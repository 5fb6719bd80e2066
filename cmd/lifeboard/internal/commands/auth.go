package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmynk/lifeboard/internal/backend"
)

// SignupCmd creates an account.
type SignupCmd struct {
	Email     string `arg:"" help:"Account email."`
	Password  string `help:"Account password (8+ characters)." required:"" env:"LIFEBOARD_PASSWORD"`
	Name      string `help:"Display name."`
	AdminCode string `help:"Admin code configured on the server." env:"LIFEBOARD_ADMIN_CODE"`
}

func (c *SignupCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	s, err := client.Backend.SignUp(ctx, backend.SignUpParams{
		Email:       c.Email,
		DisplayName: c.Name,
		Password:    c.Password,
		AdminCode:   c.AdminCode,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Signed up as %s\n", s.Email)
	return nil
}

// LoginCmd signs in.
type LoginCmd struct {
	Email    string `arg:"" help:"Account email."`
	Password string `help:"Account password." required:"" env:"LIFEBOARD_PASSWORD"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	s, err := client.Backend.SignIn(ctx, c.Email, c.Password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s until %s\n", s.Email, s.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

// LogoutCmd signs out.
type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	if err := client.SignOut(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

// WhoamiCmd prints the session.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	s, err := client.Backend.Session(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		fmt.Println("Not signed in")
		return nil
	}
	roles, err := client.Resources.Roles.List(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("User:    %s (%s)\n", s.Email, s.UserID)
	fmt.Printf("Roles:   %s\n", orDash(strings.Join(roles, ", ")))
	fmt.Printf("Tenancy: %s\n", client.Tenancy.Current())
	return nil
}

// OpenCmd runs the route guard for a page path.
type OpenCmd struct {
	Path string `arg:"" help:"Page path, e.g. /finance/wallets."`
}

func (c *OpenCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	d, err := client.Open(ctx, c.Path)
	if err != nil {
		return err
	}
	switch {
	case d.Redirect != "":
		fmt.Printf("%s: sign in first (%s)\n", d.State, d.Redirect)
	case d.Reason != 0:
		fmt.Printf("%s: %s\n", d.State, d.Reason)
	default:
		fmt.Println(d.State)
	}
	return nil
}
