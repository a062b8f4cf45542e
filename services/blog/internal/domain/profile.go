package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

// Display name limits in characters.
const (
	MinDisplayNameLength = 2
	MaxDisplayNameLength = 50
)

// Profile is the mutable per-user state shown on the todo board. Its level
// fields change only through the reward transaction.
type Profile struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Gender      string    `json:"gender,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Level       int       `json:"level"`
	CurrentXP   int       `json:"current_xp"`
	NextLevelXP int       `json:"next_level_xp"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Progress returns the profile's level fields.
func (p *Profile) Progress() Progress {
	return Progress{Level: p.Level, CurrentXP: p.CurrentXP, NextLevelXP: p.NextLevelXP}
}

// ProfileUpdate carries an edit to the free-form profile fields. Nil fields
// are left unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Gender      *string
	AvatarURL   *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.DisplayName == nil && u.Gender == nil && u.AvatarURL == nil
}

// Normalize trims the fields and checks the display name.
func (u *ProfileUpdate) Normalize() error {
	if u.DisplayName != nil {
		name, err := NormalizeDisplayName(*u.DisplayName)
		if err != nil {
			return err
		}
		u.DisplayName = &name
	}
	if u.Gender != nil {
		g := strings.TrimSpace(*u.Gender)
		u.Gender = &g
	}
	if u.AvatarURL != nil {
		a := strings.TrimSpace(*u.AvatarURL)
		u.AvatarURL = &a
	}
	return nil
}

// NormalizeDisplayName trims name and checks its length.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < MinDisplayNameLength || n > MaxDisplayNameLength {
		return "", apperrors.InvalidInput("display name must be between 2 and 50 characters")
	}
	return name, nil
}

// LeaderboardEntry is one row of the ranking. Rank is 1-based.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
	CurrentXP   int    `json:"current_xp"`
}

// Leaderboard limits.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// ValidateLeaderboardLimit checks that limit is within 1..MaxLeaderboardLimit.
func ValidateLeaderboardLimit(limit int) error {
	if limit < 1 || limit > MaxLeaderboardLimit {
		return apperrors.InvalidInput("limit must be between 1 and 100")
	}
	return nil
}
