package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Rewards holds point amounts that operators may tune without a rebuild.
type Rewards struct {
	DailyCheckInPoints int            `toml:"daily_checkin_points"`
	StreakBonusPoints  int            `toml:"streak_bonus_points"`
	StreakBonusPeriod  int            `toml:"streak_bonus_period"`
	DefaultCategory    string         `toml:"default_category"`
	CategoryPoints     map[string]int `toml:"category_points"`
}

// DefaultRewards returns the built-in reward table.
func DefaultRewards() Rewards {
	return Rewards{
		DailyCheckInPoints: 5,
		StreakBonusPoints:  50,
		StreakBonusPeriod:  7,
		DefaultCategory:    "General",
		CategoryPoints: map[string]int{
			"Soil Health":        30,
			"Water Conservation": 40,
			"Pest Management":    35,
			"Crop Practices":     30,
			"Climate Resilience": 50,
			"Institute Special":  60,
			"Emergency":          80,
			"General":            20,
		},
	}
}

// LoadRewards decodes a TOML file over the defaults. An empty path returns the defaults.
func LoadRewards(path string) (Rewards, error) {
	r := DefaultRewards()
	if path == "" {
		return r, nil
	}
	if _, err := toml.DecodeFile(path, &r); err != nil {
		return Rewards{}, fmt.Errorf("failed to decode rewards file %s: %w", path, err)
	}
	if r.StreakBonusPeriod <= 0 {
		return Rewards{}, fmt.Errorf("invalid streak_bonus_period: %d", r.StreakBonusPeriod)
	}
	if _, ok := r.CategoryPoints[r.DefaultCategory]; !ok {
		return Rewards{}, fmt.Errorf("default_category %q has no entry in category_points", r.DefaultCategory)
	}
	return r, nil
}

// PointsFor returns the reward for a mission category that carries no explicit points. The
// longest table key contained in category wins; otherwise the default category applies.
func (r Rewards) PointsFor(category string) int {
	keys := make([]string, 0, len(r.CategoryPoints))
	for k := range r.CategoryPoints {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	lower := strings.ToLower(category)
	for _, k := range keys {
		if strings.Contains(lower, strings.ToLower(k)) {
			return r.CategoryPoints[k]
		}
	}
	return r.CategoryPoints[r.DefaultCategory]
}
