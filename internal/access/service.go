// Package access decides which views a profile may use based on its role.
package access

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"schedulink/internal/models"
)

// Permission names a guarded operation.
type Permission string

const (
	PermViewSlots   Permission = "view_slots"
	PermBookSlots   Permission = "book_slots"
	PermCreateSlots Permission = "create_slots"
	PermManageUsers Permission = "manage_users"
	PermExport      Permission = "export"
)

var masterOnly = map[Permission]bool{
	PermCreateSlots: true,
	PermManageUsers: true,
	PermExport:      true,
}

// AccessDeniedError is returned when a guest uses a master-only view.
type AccessDeniedError struct {
	Profile    string
	Permission Permission
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("profile %s is not allowed to %s", e.Profile, e.Permission)
}

// Preferences loads the role for a profile.
type Preferences interface {
	Load(ctx context.Context, profile string) (models.Preferences, error)
}

// Service checks permissions.
type Service struct {
	prefs   Preferences
	masters map[string]bool
	logger  zerolog.Logger
}

// NewService creates a new access control service. When masters is non-empty
// only those profiles may act as master regardless of the chosen role.
func NewService(prefs Preferences, masters []string, logger zerolog.Logger) *Service {
	allow := make(map[string]bool, len(masters))
	for _, m := range masters {
		allow[m] = true
	}
	return &Service{
		prefs:   prefs,
		masters: allow,
		logger:  logger.With().Str("component", "access").Logger(),
	}
}

// CanBecomeMaster reports whether profile may pick the master role.
func (s *Service) CanBecomeMaster(profile string) bool {
	return len(s.masters) == 0 || s.masters[profile]
}

// Allowed reports whether the preferences permit perm.
func (s *Service) Allowed(p models.Preferences, perm Permission) bool {
	if !masterOnly[perm] {
		return true
	}
	return p.Role == models.RoleMaster && s.CanBecomeMaster(p.Profile)
}

// Require returns *AccessDeniedError when profile may not use perm.
func (s *Service) Require(ctx context.Context, profile string, perm Permission) error {
	p, err := s.prefs.Load(ctx, profile)
	if err != nil {
		return fmt.Errorf("checking role: %w", err)
	}
	if !s.Allowed(p, perm) {
		s.logger.Info().
			Str("profile", profile).
			Str("permission", string(perm)).
			Str("role", string(p.Role)).
			Msg("access denied")
		return &AccessDeniedError{Profile: profile, Permission: perm}
	}
	return nil
}
