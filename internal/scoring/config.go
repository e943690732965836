package scoring

import (
	"math"

	"social-rideshare/internal/models"
)

// Config weighs the two cost components and sets the hard constraints
type Config struct {
	// Alpha is the cost per detour kilometre
	Alpha float64 `yaml:"alpha" json:"alpha"`
	// Beta is the cost of a social distance of 1
	Beta float64 `yaml:"beta" json:"beta"`
	// ShareReward is what a pair gains by riding together before costs
	ShareReward float64 `yaml:"share_reward" json:"share_reward"`
	// DefaultDetourKm is charged when either rider has no trip coordinates
	DefaultDetourKm float64 `yaml:"default_detour_km" json:"default_detour_km"`
	// DefaultSocialDistance is used when the graph carries no social signal
	DefaultSocialDistance float64 `yaml:"default_social_distance" json:"default_social_distance"`
	// MaxDetourKm forbids pairs whose measured detour exceeds it. Zero disables.
	MaxDetourKm float64 `yaml:"max_detour_km" json:"max_detour_km"`
	// HardTimeWindows forbids pairs whose departure windows do not overlap
	HardTimeWindows bool `yaml:"hard_time_windows" json:"hard_time_windows"`
}

// DefaultConfig returns the weights used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Alpha:                 1.0,
		Beta:                  5.0,
		ShareReward:           10.0,
		DefaultDetourKm:       5.0,
		DefaultSocialDistance: 0.5,
		MaxDetourKm:           0,
		HardTimeWindows:       true,
	}
}

// Validate checks every weight is a finite non-negative number
func (c Config) Validate() error {
	verr := &models.ValidationError{}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"alpha", c.Alpha},
		{"beta", c.Beta},
		{"share_reward", c.ShareReward},
		{"default_detour_km", c.DefaultDetourKm},
		{"default_social_distance", c.DefaultSocialDistance},
		{"max_detour_km", c.MaxDetourKm},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			verr.Add("scoring."+f.name, "must be a non-negative number, got %g", f.value)
		}
	}
	if c.DefaultSocialDistance > 1 {
		verr.Add("scoring.default_social_distance", "must not exceed 1, got %g", c.DefaultSocialDistance)
	}
	return verr.ErrOrNil()
}
