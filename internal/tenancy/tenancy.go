// Package tenancy holds the "which tenant am I working in" selection for a
// client: the user's personal space or one organization. The selection is an
// injected Context, persisted through a localstore.Storage adapter.
package tenancy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmynk/lifeboard/internal/localstore"
	"github.com/mmynk/lifeboard/internal/models"
)

// Persistence keys and the personal sentinel.
const (
	IDKey       = "currentOrganizationId"
	SnapshotKey = "currentOrganization"
	PersonalID  = "personal"
)

// Selection is either Personal or one Organization.
type Selection struct {
	org *models.Organization
}

// Personal is the personal-space selection.
var Personal = Selection{}

// ForOrganization selects org.
func ForOrganization(org models.Organization) Selection {
	return Selection{org: &org}
}

// IsPersonal reports whether s is the personal space.
func (s Selection) IsPersonal() bool {
	return s.org == nil
}

// Organization returns the selected organization, if any.
func (s Selection) Organization() (models.Organization, bool) {
	if s.org == nil {
		return models.Organization{}, false
	}
	return *s.org, true
}

// ID returns PersonalID or the organization id.
func (s Selection) ID() string {
	if s.org == nil {
		return PersonalID
	}
	return s.org.ID
}

// PartitionValue is the organization_id a row created under s must carry:
// untyped nil for Personal, the id string otherwise.
func (s Selection) PartitionValue() any {
	if s.org == nil {
		return nil
	}
	return s.org.ID
}

func (s Selection) String() string {
	if s.org == nil {
		return PersonalID
	}
	return fmt.Sprintf("organization %s (%s)", s.org.Name, s.org.ID)
}

// Context is the process-wide source of truth for the active tenancy of one
// client. Reads are snapshot reads; Set replaces the selection atomically.
type Context struct {
	mu        sync.RWMutex
	current   Selection
	storage   localstore.Storage
	logger    *slog.Logger
	listeners []func(Selection)
}

// New restores the persisted selection from storage. It never fails: any
// unreadable or unparsable state resets to Personal and clears both keys.
// The restored organization is not validated against the backend.
func New(storage localstore.Storage, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Context{storage: storage, logger: logger}
	c.current = c.restore()
	return c
}

func (c *Context) restore() Selection {
	id, ok, err := c.storage.Get(IDKey)
	if err != nil {
		c.logger.Warn("Failed to read tenancy marker, using personal", "error", err)
		c.reset()
		return Personal
	}
	if !ok || id == "" || id == PersonalID {
		return Personal
	}

	raw, ok, err := c.storage.Get(SnapshotKey)
	if err != nil || !ok {
		c.logger.Warn("Tenancy snapshot missing, using personal", "organization_id", id, "error", err)
		c.reset()
		return Personal
	}

	var org models.Organization
	if err := json.Unmarshal([]byte(raw), &org); err != nil || org.ID != id {
		c.logger.Warn("Tenancy snapshot unparsable, using personal", "organization_id", id, "error", err)
		c.reset()
		return Personal
	}

	c.logger.Debug("Restored tenancy", "organization_id", org.ID, "name", org.Name)
	return ForOrganization(org)
}

func (c *Context) reset() {
	if err := c.storage.Remove(IDKey); err != nil {
		c.logger.Warn("Failed to clear tenancy marker", "error", err)
	}
	if err := c.storage.Remove(SnapshotKey); err != nil {
		c.logger.Warn("Failed to clear tenancy snapshot", "error", err)
	}
}

// Current returns the active selection.
func (c *Context) Current() Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// IsPersonal reports whether the personal space is active.
func (c *Context) IsPersonal() bool {
	return c.Current().IsPersonal()
}

// Set selects org, or Personal when org is nil, and persists the choice.
// The in-memory selection changes even when persisting fails; the persist
// error is returned.
func (c *Context) Set(org *models.Organization) error {
	next := Personal
	if org != nil {
		next = ForOrganization(*org)
	}

	c.mu.Lock()
	c.current = next
	listeners := append([]func(Selection){}, c.listeners...)
	c.mu.Unlock()

	err := c.persist(next)
	for _, fn := range listeners {
		fn(next)
	}
	c.logger.Info("Tenancy changed", "tenant", next.ID())
	return err
}

func (c *Context) persist(s Selection) error {
	org, ok := s.Organization()
	if !ok {
		if err := c.storage.Set(IDKey, PersonalID); err != nil {
			return fmt.Errorf("failed to persist tenancy: %w", err)
		}
		if err := c.storage.Remove(SnapshotKey); err != nil {
			return fmt.Errorf("failed to clear tenancy snapshot: %w", err)
		}
		return nil
	}

	snapshot, err := json.Marshal(org)
	if err != nil {
		return fmt.Errorf("failed to encode tenancy snapshot: %w", err)
	}
	if err := c.storage.Set(IDKey, org.ID); err != nil {
		return fmt.Errorf("failed to persist tenancy: %w", err)
	}
	if err := c.storage.Set(SnapshotKey, string(snapshot)); err != nil {
		return fmt.Errorf("failed to persist tenancy snapshot: %w", err)
	}
	return nil
}

// OnChange registers fn to run after every Set.
func (c *Context) OnChange(fn func(Selection)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// OrganizationID returns the active organization id, or nil under Personal.
func (c *Context) OrganizationID() *string {
	s := c.Current()
	if s.IsPersonal() {
		return nil
	}
	id := s.ID()
	return &id
}
