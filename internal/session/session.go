// Package session holds per-profile UI preferences: theme, role and whether
// the welcome flow has been shown. Preferences load once and every change is
// written through to the Store.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"schedulink/internal/models"
)

// Store persists preferences.
type Store interface {
	GetPreferences(ctx context.Context, profile string) (models.Preferences, bool, error)
	SavePreferences(ctx context.Context, prefs models.Preferences) error
}

// Manager caches loaded preferences and persists each change.
type Manager struct {
	store  Store
	logger *zerolog.Logger

	mu    sync.Mutex
	cache map[string]models.Preferences
}

func NewManager(store Store, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{
		store:  store,
		logger: logger,
		cache:  make(map[string]models.Preferences),
	}
}

// Load returns preferences for profile, reading the store on first use.
func (m *Manager) Load(ctx context.Context, profile string) (models.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx, profile)
}

func (m *Manager) loadLocked(ctx context.Context, profile string) (models.Preferences, error) {
	if p, ok := m.cache[profile]; ok {
		return p, nil
	}
	p, _, err := m.store.GetPreferences(ctx, profile)
	if err != nil {
		return models.Preferences{}, fmt.Errorf("load preferences %s: %w", profile, err)
	}
	m.cache[profile] = p
	return p, nil
}

// IsNewUser reports whether profile has not finished the welcome flow.
func (m *Manager) IsNewUser(ctx context.Context, profile string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.loadLocked(ctx, profile)
	if err != nil {
		return false, err
	}
	return !p.Visited, nil
}

// update applies fn to the loaded preferences and persists the result. The
// cache only changes if the save succeeds.
func (m *Manager) update(ctx context.Context, profile string, fn func(p *models.Preferences)) (models.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.loadLocked(ctx, profile)
	if err != nil {
		return models.Preferences{}, err
	}
	next := p
	fn(&next)
	if err := m.store.SavePreferences(ctx, next); err != nil {
		return p, fmt.Errorf("save preferences %s: %w", profile, err)
	}
	m.cache[profile] = next

	m.logger.Debug().
		Str("profile", profile).
		Str("theme", string(next.Theme)).
		Str("role", string(next.Role)).
		Bool("visited", next.Visited).
		Msg("preferences saved")
	return next, nil
}

// ToggleTheme flips between light and dark.
func (m *Manager) ToggleTheme(ctx context.Context, profile string) (models.Preferences, error) {
	return m.update(ctx, profile, func(p *models.Preferences) {
		if p.Theme == models.ThemeDark {
			p.Theme = models.ThemeLight
		} else {
			p.Theme = models.ThemeDark
		}
	})
}

// SetTheme stores an explicit theme.
func (m *Manager) SetTheme(ctx context.Context, profile string, theme models.Theme) (models.Preferences, error) {
	if _, ok := models.ParseTheme(string(theme)); !ok {
		return models.Preferences{}, fmt.Errorf("unknown theme %q", theme)
	}
	return m.update(ctx, profile, func(p *models.Preferences) { p.Theme = theme })
}

// SetRole stores the role.
func (m *Manager) SetRole(ctx context.Context, profile string, role models.Role) (models.Preferences, error) {
	if _, ok := models.ParseRole(string(role)); !ok {
		return models.Preferences{}, fmt.Errorf("unknown role %q", role)
	}
	return m.update(ctx, profile, func(p *models.Preferences) { p.Role = role })
}

// MarkVisited records that the welcome flow is done.
func (m *Manager) MarkVisited(ctx context.Context, profile string) (models.Preferences, error) {
	return m.update(ctx, profile, func(p *models.Preferences) { p.Visited = true })
}

// Complete finishes the welcome flow with the chosen role in one write.
func (m *Manager) Complete(ctx context.Context, profile string, role models.Role) (models.Preferences, error) {
	if _, ok := models.ParseRole(string(role)); !ok {
		return models.Preferences{}, fmt.Errorf("unknown role %q", role)
	}
	return m.update(ctx, profile, func(p *models.Preferences) {
		p.Role = role
		p.Visited = true
	})
}

// Forget drops the cached copy so the next Load hits the store.
func (m *Manager) Forget(profile string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, profile)
}
