// Package roster holds the in-memory working set the recognition loop matches
// against: the encodings selected by the active profile plus the kiosk's
// operating settings, refreshed wholesale on a fixed cadence.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/observability"
)

// Store is the subset of the persistence layer the provider needs.
type Store interface {
	GetSettings(ctx context.Context) (models.Profile, models.OperatingHours, error)
	RosterByProfile(ctx context.Context, profile models.Profile) ([]models.RosterEntry, error)
}

// Snapshot is one consistent view of the settings and the matching set. The
// loop holds a snapshot for a whole iteration; a refresh swaps the pointer.
type Snapshot struct {
	Profile models.Profile
	Hours   models.OperatingHours
	Entries []models.RosterEntry
}

// Provider caches the latest snapshot. A failed refresh keeps serving the
// previous one so a transient database error never empties the roster.
type Provider struct {
	store Store

	mu      sync.RWMutex
	current *Snapshot
}

func NewProvider(store Store) *Provider {
	return &Provider{store: store}
}

// Refresh pulls settings and the profile's roster in one pass and installs
// them as the new snapshot.
func (p *Provider) Refresh(ctx context.Context) error {
	profile, hours, err := p.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	entries, err := p.store.RosterByProfile(ctx, profile)
	if err != nil {
		return fmt.Errorf("load roster for %s: %w", profile, err)
	}

	p.mu.Lock()
	p.current = &Snapshot{Profile: profile, Hours: hours, Entries: entries}
	p.mu.Unlock()

	observability.RosterSize.Set(float64(len(entries)))
	slog.Debug("roster refreshed", "profile", profile.String(), "size", len(entries))
	return nil
}

// Current returns the last successful snapshot, or nil before the first
// refresh succeeds.
func (p *Provider) Current() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}
