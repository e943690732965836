package assignment

import (
	"time"

	"social-rideshare/internal/models"
)

// exactHardLimit bounds the subset tables of the exact tier to 2^20 entries
const exactHardLimit = 20

// Config bounds the search effort and shapes the partition
type Config struct {
	// ExactMaxNodes is the largest graph AlgorithmAuto solves exactly
	ExactMaxNodes int `yaml:"exact_max_nodes"`
	// ExactMaxSteps caps the subset enumerations of the exact tier. Zero disables.
	ExactMaxSteps int64 `yaml:"exact_max_steps"`
	// ExactTimeBudget caps the wall time of the exact tier. Zero disables.
	ExactTimeBudget time.Duration `yaml:"exact_time_budget"`
	// LocalSearchRounds bounds the improvement passes after greedy merging
	LocalSearchRounds int `yaml:"local_search_rounds"`
	// MinGroupSize is the smallest group the engine forms. Riders that
	// cannot be placed in a group this large are reported unassigned.
	MinGroupSize int `yaml:"min_group_size"`
	// RequireComplete turns unassigned riders and empty graphs into errors
	RequireComplete bool `yaml:"require_complete"`
}

// DefaultConfig returns the limits used when nothing is configured
func DefaultConfig() Config {
	return Config{
		ExactMaxNodes:     12,
		ExactMaxSteps:     5_000_000,
		LocalSearchRounds: 50,
		MinGroupSize:      1,
	}
}

// Validate checks the limits are usable
func (c Config) Validate() error {
	verr := &models.ValidationError{}
	if c.ExactMaxNodes < 0 || c.ExactMaxNodes > exactHardLimit {
		verr.Add("assignment.exact_max_nodes", "must be between 0 and %d, got %d", exactHardLimit, c.ExactMaxNodes)
	}
	if c.ExactMaxSteps < 0 {
		verr.Add("assignment.exact_max_steps", "must not be negative, got %d", c.ExactMaxSteps)
	}
	if c.ExactTimeBudget < 0 {
		verr.Add("assignment.exact_time_budget", "must not be negative, got %s", c.ExactTimeBudget)
	}
	if c.LocalSearchRounds < 0 {
		verr.Add("assignment.local_search_rounds", "must not be negative, got %d", c.LocalSearchRounds)
	}
	if c.MinGroupSize < 0 {
		verr.Add("assignment.min_group_size", "must not be negative, got %d", c.MinGroupSize)
	}
	return verr.ErrOrNil()
}

func (c Config) minGroupSize() int {
	if c.MinGroupSize < 1 {
		return 1
	}
	return c.MinGroupSize
}
