package domain

import (
	"fmt"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

// Default progression policy.
const (
	DefaultInitialThreshold = 100
	DefaultLevelIncrement   = 20
)

// Progress is a profile's position on the level curve. A valid Progress
// always satisfies 0 <= CurrentXP < NextLevelXP and Level >= 1.
type Progress struct {
	Level       int `json:"level"`
	CurrentXP   int `json:"current_xp"`
	NextLevelXP int `json:"next_level_xp"`
}

// Validate reports whether p satisfies the level invariants.
func (p Progress) Validate() error {
	if p.Level < 1 || p.CurrentXP < 0 || p.NextLevelXP <= 0 || p.CurrentXP >= p.NextLevelXP {
		return apperrors.Invariant(fmt.Sprintf(
			"progress out of range: level=%d current_xp=%d next_level_xp=%d",
			p.Level, p.CurrentXP, p.NextLevelXP,
		))
	}
	return nil
}

// Award is the outcome of applying XP to a Progress.
type Award struct {
	Before       Progress
	After        Progress
	XPGained     int
	LevelsGained int
}

// LeveledUp reports whether the award crossed at least one threshold.
func (a Award) LeveledUp() bool {
	return a.LevelsGained > 0
}

// Progression is the level curve: the XP needed to leave level 1, and how
// much that requirement grows with each level.
type Progression struct {
	InitialThreshold int
	Increment        int
}

// DefaultProgression returns the standard curve: 100 XP for level 2, then
// 20 more for every level after.
func DefaultProgression() Progression {
	return Progression{InitialThreshold: DefaultInitialThreshold, Increment: DefaultLevelIncrement}
}

// Validate checks the policy itself.
func (p Progression) Validate() error {
	if p.InitialThreshold <= 0 {
		return fmt.Errorf("initial threshold must be positive, got %d", p.InitialThreshold)
	}
	if p.Increment < 0 {
		return fmt.Errorf("level increment must not be negative, got %d", p.Increment)
	}
	return nil
}

// Start is the progress of a newly created profile.
func (p Progression) Start() Progress {
	return Progress{Level: 1, CurrentXP: 0, NextLevelXP: p.InitialThreshold}
}

// Apply adds amount XP to cur. While the running total reaches the current
// threshold, the threshold is consumed, the level goes up by one and the
// threshold grows by Increment, so a large award may cross several levels.
func (p Progression) Apply(cur Progress, amount int) (Award, error) {
	if amount < 0 {
		return Award{}, apperrors.InvalidInput("xp amount must not be negative")
	}
	if err := cur.Validate(); err != nil {
		return Award{}, err
	}

	next := cur
	next.CurrentXP += amount
	levels := 0
	for next.CurrentXP >= next.NextLevelXP {
		next.CurrentXP -= next.NextLevelXP
		next.Level++
		next.NextLevelXP += p.Increment
		levels++
	}

	return Award{Before: cur, After: next, XPGained: amount, LevelsGained: levels}, nil
}
