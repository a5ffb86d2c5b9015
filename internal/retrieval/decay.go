package retrieval

import (
	"math"
	"time"
)

// DecayConfig parameterizes temporal decay boosting.
type DecayConfig struct {
	// DecayDays is the exponential decay time constant.
	DecayDays float64
	// MinBoost is the floor the multiplier never drops below.
	MinBoost float64
	// MaxAgeDays clamps anything older straight to MinBoost.
	MaxAgeDays float64
}

// DefaultDecayConfig matches the retrieval pipeline's defaults.
var DefaultDecayConfig = DecayConfig{
	DecayDays:  365,
	MinBoost:   0.1,
	MaxAgeDays: 1825,
}

// Boost returns the multiplier for an item aged ageDays, computed as
// max(min_boost, exp(-age_days/decay_days)), clamped to min_boost once
// ageDays reaches max_age_days.
func (c DecayConfig) Boost(ageDays float64) float64 {
	if ageDays >= c.MaxAgeDays {
		return c.MinBoost
	}
	b := math.Exp(-ageDays / c.DecayDays)
	if b < c.MinBoost {
		return c.MinBoost
	}
	return b
}

// ApplyDecay multiplies score by the age-based boost for timestamp as of
// now. Entities without a timestamp (timestamp == nil) are left unchanged,
// per the no-timestamp edge case: decay only ever applies downward
// pressure on items we can actually date.
func ApplyDecay(score float64, timestamp *time.Time, now time.Time, cfg DecayConfig) float64 {
	if timestamp == nil {
		return score
	}
	ageDays := now.Sub(*timestamp).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return score * cfg.Boost(ageDays)
}
