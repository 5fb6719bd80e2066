package app

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/client"
	"github.com/mmynk/lifeboard/internal/guard"
	"github.com/mmynk/lifeboard/internal/localstore"
	"github.com/mmynk/lifeboard/internal/notify"
	"github.com/mmynk/lifeboard/internal/querycache"
	"github.com/mmynk/lifeboard/internal/resource"
	"github.com/mmynk/lifeboard/internal/settings"
	"github.com/mmynk/lifeboard/internal/telemetry"
	"github.com/mmynk/lifeboard/internal/tenancy"
)

// ClientOptions configures NewClient.
type ClientOptions struct {
	Notifier notify.Notifier
	Metrics  *telemetry.CacheMetrics
	Logger   *slog.Logger
}

// Client is one assembled client core.
type Client struct {
	Backend   backend.Backend
	Tenancy   *tenancy.Context
	Cache     *querycache.Cache
	Resources *resource.Resources
	Settings  *settings.Settings
	Gate      *guard.Gate
	logger    *slog.Logger
}

// NewClient assembles the client core over b. Local state persists in
// storage.
func NewClient(b backend.Backend, storage localstore.Storage, opts ClientOptions) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.SlogNotifier{Logger: logger}
	}

	cache, err := resource.NewCache(opts.Metrics, logger)
	if err != nil {
		return nil, err
	}
	tenant := tenancy.New(storage, logger)
	resources, err := resource.New(resource.Deps{
		Backend:  b,
		Tenancy:  tenant,
		Cache:    cache,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	routes, err := guard.DefaultRoutes()
	if err != nil {
		return nil, err
	}

	return &Client{
		Backend:   b,
		Tenancy:   tenant,
		Cache:     cache,
		Resources: resources,
		Settings:  settings.New(storage, b, cache, logger),
		Gate:      guard.New(routes, logger),
		logger:    logger,
	}, nil
}

// NewRemoteClient assembles a client core talking to the server at baseURL.
func NewRemoteClient(httpClient connect.HTTPClient, baseURL string, storage localstore.Storage, opts ClientOptions) (*Client, error) {
	return NewClient(client.NewRemote(httpClient, baseURL, storage, opts.Logger), storage, opts)
}

// Identity is the guard identity of the signed-in user.
func (c *Client) Identity() guard.Identity {
	return guard.ClientIdentity(c.Backend, c.Resources.Roles)
}

// Open checks whether the page at target may be shown.
func (c *Client) Open(ctx context.Context, target string) (guard.Decision, error) {
	return c.Gate.Resolve(ctx, target, c.Identity())
}

// SignOut ends the session and drops everything cached for it.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.Backend.SignOut(ctx)
	c.Cache.Clear()
	return err
}
