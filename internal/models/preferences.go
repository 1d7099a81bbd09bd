package models

import "time"

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Role decides which views a profile may use.
type Role string

const (
	RoleGuest  Role = "guest"
	RoleMaster Role = "master"
)

// ParseRole accepts "guest" or "master".
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleGuest, RoleMaster:
		return Role(s), true
	}
	return "", false
}

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, bool) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), true
	}
	return "", false
}

// Preferences is the persisted UI state of one profile (a chat or a CLI user).
type Preferences struct {
	Profile   string    `json:"profile"`
	Theme     Theme     `json:"theme"`
	Role      Role      `json:"role"`
	Visited   bool      `json:"visited"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreferences is what a first-time profile starts with.
func DefaultPreferences(profile string) Preferences {
	return Preferences{
		Profile: profile,
		Theme:   ThemeLight,
		Role:    RoleGuest,
	}
}

// JournalEntry records one book or cancel attempt made from this client.
type JournalEntry struct {
	ID        int64     `json:"id"`
	SlotID    int64     `json:"slot_id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
