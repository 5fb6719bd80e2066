package main

import (
	"context"
	"fmt"

	"github.com/mmynk/lifeboard/internal/auth"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/service"
	"github.com/mmynk/lifeboard/pkg/logging"
)

// CreateAdminCmd registers an admin user directly against the store.
type CreateAdminCmd struct {
	Email    string `arg:"" help:"Email of the admin."`
	Password string `help:"Password for a new account." env:"LIFEBOARD_ADMIN_PASSWORD"`
	Name     string `help:"Display name for a new account."`

	Store StoreFlags `embed:"" prefix:"store-"`
}

func (c *CreateAdminCmd) Run(ctx context.Context, globals *Globals) error {
	logger := logging.Setup()

	store, err := c.Store.Open(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	user, err := store.GetUserByEmail(ctx, auth.NormalizeEmail(c.Email))
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		if c.Password == "" {
			return fmt.Errorf("no user %s; pass --password to create one", c.Email)
		}
		user, err = auth.NewPasswordAuthenticator(store).Register(ctx, c.Email, c.Name, c.Password)
		if err != nil {
			return err
		}
		logger.Info("User created", "user_id", user.ID, "email", user.Email)
	}

	if err := service.GrantRole(ctx, store, user.ID, models.RoleAdmin); err != nil {
		return err
	}
	fmt.Printf("%s is an admin\n", user.Email)
	return nil
}
