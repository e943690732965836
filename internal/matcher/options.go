package matcher

import (
	"errors"
	"strings"
	"time"

	"social-rideshare/internal/assignment"
	"social-rideshare/internal/models"
	"social-rideshare/internal/scoring"
)

// Options overrides the configured weights and limits for one request.
// Nil fields keep the configured value.
type Options struct {
	Alpha                 *float64 `json:"alpha,omitempty"`
	Beta                  *float64 `json:"beta,omitempty"`
	ShareReward           *float64 `json:"share_reward,omitempty"`
	DefaultDetourKm       *float64 `json:"default_detour_km,omitempty"`
	DefaultSocialDistance *float64 `json:"default_social_distance,omitempty"`
	MaxDetourKm           *float64 `json:"max_detour_km,omitempty"`
	HardTimeWindows       *bool    `json:"hard_time_windows,omitempty"`

	ExactMaxNodes     *int    `json:"exact_max_nodes,omitempty"`
	ExactTimeBudget   *string `json:"exact_time_budget,omitempty"`
	LocalSearchRounds *int    `json:"local_search_rounds,omitempty"`
	MinGroupSize      *int    `json:"min_group_size,omitempty"`
	RequireComplete   *bool   `json:"require_complete,omitempty"`
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// apply returns copies of the configs with the overrides applied and
// validated
func (o *Options) apply(sc scoring.Config, ac assignment.Config) (scoring.Config, assignment.Config, error) {
	if o == nil {
		return sc, ac, nil
	}

	setFloat(&sc.Alpha, o.Alpha)
	setFloat(&sc.Beta, o.Beta)
	setFloat(&sc.ShareReward, o.ShareReward)
	setFloat(&sc.DefaultDetourKm, o.DefaultDetourKm)
	setFloat(&sc.DefaultSocialDistance, o.DefaultSocialDistance)
	setFloat(&sc.MaxDetourKm, o.MaxDetourKm)
	setBool(&sc.HardTimeWindows, o.HardTimeWindows)

	setInt(&ac.ExactMaxNodes, o.ExactMaxNodes)
	setInt(&ac.LocalSearchRounds, o.LocalSearchRounds)
	setInt(&ac.MinGroupSize, o.MinGroupSize)
	setBool(&ac.RequireComplete, o.RequireComplete)

	verr := &models.ValidationError{}
	if o.ExactTimeBudget != nil {
		d, err := time.ParseDuration(*o.ExactTimeBudget)
		if err != nil {
			verr.Add("options.exact_time_budget", "must be a duration such as 500ms, got %q", *o.ExactTimeBudget)
		} else {
			ac.ExactTimeBudget = d
		}
	}
	for _, err := range []error{sc.Validate(), ac.Validate()} {
		var nested *models.ValidationError
		if errors.As(err, &nested) {
			for _, p := range nested.Problems {
				verr.Add("options."+fieldName(p.Field), "%s", p.Message)
			}
		}
	}
	if err := verr.ErrOrNil(); err != nil {
		return sc, ac, err
	}
	return sc, ac, nil
}

// fieldName drops the config section prefix, options are flat
func fieldName(field string) string {
	if _, name, ok := strings.Cut(field, "."); ok {
		return name
	}
	return field
}
