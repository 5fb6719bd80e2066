// Package settings holds the client's app settings: which optional modules
// are enabled. They persist as one JSON entry in local storage.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/localstore"
	"github.com/mmynk/lifeboard/internal/querycache"
)

// Key is the local storage entry holding the settings.
const Key = "appSettings"

// Module names an optional part of the app.
type Module string

const (
	TVShows Module = "tvShows"
	Finance Module = "finance"
)

// Modules lists every module in display order.
var Modules = []Module{TVShows, Finance}

// Flags is the persisted enabled/disabled set.
type Flags struct {
	TVShows bool `json:"tvShows"`
	Finance bool `json:"finance"`
}

// Defaults has every module enabled.
var Defaults = Flags{TVShows: true, Finance: true}

// Enabled reports the flag for m.
func (f Flags) Enabled(m Module) bool {
	switch m {
	case TVShows:
		return f.TVShows
	case Finance:
		return f.Finance
	}
	return false
}

func (f Flags) with(m Module, enabled bool) Flags {
	switch m {
	case TVShows:
		f.TVShows = enabled
	case Finance:
		f.Finance = enabled
	}
	return f
}

// ParseModule resolves a module name.
func ParseModule(name string) (Module, error) {
	for _, m := range Modules {
		if string(m) == name {
			return m, nil
		}
	}
	return "", apperr.FieldInvalid("module", "unknown module %q", name)
}

// Auth is the part of backend.Auth that settings changes need.
type Auth interface {
	SignOut(ctx context.Context) error
}

// Settings is the app settings store of one client.
type Settings struct {
	mu      sync.RWMutex
	flags   Flags
	storage localstore.Storage
	auth    Auth
	cache   *querycache.Cache
	logger  *slog.Logger
}

// New restores the settings from storage. Missing or unreadable settings
// fall back to Defaults. cache may be nil.
func New(storage localstore.Storage, auth Auth, cache *querycache.Cache, logger *slog.Logger) *Settings {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Settings{storage: storage, auth: auth, cache: cache, logger: logger}
	s.flags = s.restore()
	return s
}

func (s *Settings) restore() Flags {
	raw, ok, err := s.storage.Get(Key)
	if err != nil || !ok {
		return Defaults
	}
	flags := Defaults
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		s.logger.Warn("App settings unparsable, using defaults", "error", err)
		if err := s.storage.Remove(Key); err != nil {
			s.logger.Warn("Failed to clear app settings", "error", err)
		}
		return Defaults
	}
	return flags
}

// Flags returns the current settings.
func (s *Settings) Flags() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

// Enabled reports whether m is enabled.
func (s *Settings) Enabled(m Module) bool {
	return s.Flags().Enabled(m)
}

// SetEnabled turns m on or off. Changing a flag signs the user out and
// drops every cached query; setting a flag to its current value does
// nothing.
func (s *Settings) SetEnabled(ctx context.Context, m Module, enabled bool) error {
	if _, err := ParseModule(string(m)); err != nil {
		return err
	}

	s.mu.Lock()
	if s.flags.Enabled(m) == enabled {
		s.mu.Unlock()
		return nil
	}
	next := s.flags.with(m, enabled)
	data, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to encode app settings: %w", err)
	}
	if err := s.storage.Set(Key, string(data)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist app settings: %w", err)
	}
	s.flags = next
	s.mu.Unlock()

	s.logger.Info("Module toggled, signing out", "module", m, "enabled", enabled)
	if s.cache != nil {
		s.cache.Clear()
	}
	if s.auth == nil {
		return nil
	}
	if err := s.auth.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out after settings change: %w", err)
	}
	return nil
}
